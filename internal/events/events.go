// Package events publishes newsletter activity to NATS for downstream
// consumers (CRM sync, analytics). Without a NATS URL it does nothing.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/renex/internal/model"
	"github.com/dukerupert/renex/internal/subscription"
	"github.com/nats-io/nats.go"
)

const SubjectArticlePublished = "article.published"

type Config struct {
	URL           string
	Token         string
	SubjectPrefix string
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type Publisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS. An empty URL yields a publisher that drops everything.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	logger = logger.With("component", "events")
	if cfg.URL == "" {
		return &Publisher{prefix: cfg.SubjectPrefix, logger: logger}, nil
	}

	opts := []nats.Option{
		nats.Name("renex"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("connected to nats", "url", nc.ConnectedUrl())
	return &Publisher{conn: nc, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p.conn != nil
}

func (p *Publisher) subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish sends v as JSON on prefix.name.
func (p *Publisher) Publish(name string, v any) error {
	if p.conn == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject(name), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject(name), err)
	}
	return nil
}

// SubscriberEvent is the payload for subscriber.created and subscriber.removed.
type SubscriberEvent struct {
	Type      string    `json:"type"`
	Email     string    `json:"email"`
	Source    string    `json:"source,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// OnSubscriberChange is a subscription.Listener.
func (p *Publisher) OnSubscriberChange(_ context.Context, e subscription.Event) {
	payload := SubscriberEvent{
		Type:      string(e.Kind),
		Email:     e.Subscriber.Email,
		Source:    e.Subscriber.Source,
		FirstName: e.Subscriber.FirstName,
		LastName:  e.Subscriber.LastName,
		Count:     e.Count,
		Timestamp: time.Now().UTC(),
	}
	if err := p.Publish(string(e.Kind), payload); err != nil {
		p.logger.Error("publish subscriber event", "type", e.Kind, "error", err)
	}
}

// PublishArticle announces a newly published article.
func (p *Publisher) PublishArticle(article model.Article) error {
	return p.Publish(SubjectArticlePublished, article)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
