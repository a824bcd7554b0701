// Package chat answers the landing page's consultation widget with canned,
// keyword-matched responses in English or German.
package chat

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var defaultResponses []byte

const (
	TopicGreeting = "greeting"
	TopicSolar    = "solar"
	TopicWind     = "wind"
	TopicStorage  = "storage"
	TopicHybrid   = "hybrid"
	TopicDefault  = "default"

	DefaultLanguage = "en"
)

var ErrEmptyMessage = errors.New("message is empty")

// keywords are checked in order; the first topic with a match wins.
var keywords = []struct {
	topic string
	words []string
}{
	{TopicSolar, []string{"solar", "photovoltaic", "pv"}},
	{TopicWind, []string{"wind"}},
	{TopicStorage, []string{"battery", "storage", "speicher"}},
	{TopicHybrid, []string{"hybrid"}},
}

// Responses maps language code to topic to reply text.
type Responses map[string]map[string]string

type Reply struct {
	Reply    string `json:"reply"`
	Topic    string `json:"topic"`
	Language string `json:"lang"`
}

type Agent struct {
	responses Responses
}

// New returns an agent using the built-in responses, or those in path when set.
func New(path string) (*Agent, error) {
	data := defaultResponses
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read chat responses: %w", err)
		}
		data = b
	}

	var r Responses
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse chat responses: %w", err)
	}
	if _, ok := r[DefaultLanguage][TopicDefault]; !ok {
		return nil, fmt.Errorf("chat responses: missing %s.%s", DefaultLanguage, TopicDefault)
	}
	return &Agent{responses: r}, nil
}

func (a *Agent) language(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := a.responses[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

func (a *Agent) text(lang, topic string) string {
	if s, ok := a.responses[lang][topic]; ok {
		return s
	}
	return a.responses[DefaultLanguage][topic]
}

// Greeting is the opening line shown when the widget opens or switches language.
func (a *Agent) Greeting(lang string) Reply {
	lang = a.language(lang)
	return Reply{Reply: a.text(lang, TopicGreeting), Topic: TopicGreeting, Language: lang}
}

// Respond picks the reply for message. Unsupported languages fall back to English.
func (a *Agent) Respond(message, lang string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	lang = a.language(lang)
	topic := Classify(message)
	return Reply{Reply: a.text(lang, topic), Topic: topic, Language: lang}, nil
}

// Classify returns the topic of message.
func Classify(message string) string {
	lower := strings.ToLower(message)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.topic
			}
		}
	}
	return TopicDefault
}
