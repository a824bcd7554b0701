// Package newsletter sends article notifications and the monthly digest to
// every local subscriber.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/email"
	"github.com/dukerupert/renex/internal/model"
)

const (
	TagArticle = "article"
	TagDigest  = "digest"
)

// Mailer sends one transactional email.
type Mailer interface {
	Configured() bool
	SendEmail(ctx context.Context, msg brevo.Message) (*brevo.SentEmail, error)
}

// Recipients lists the current subscribers.
type Recipients interface {
	All() []model.Subscriber
}

// Report counts the outcome of one mailing. Failed holds the addresses that
// could not be sent to.
type Report struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

type Sender struct {
	mailer     Mailer
	recipients Recipients
	renderer   *email.Renderer
	logger     *slog.Logger
}

func NewSender(m Mailer, r Recipients, renderer *email.Renderer, logger *slog.Logger) *Sender {
	return &Sender{
		mailer:     m,
		recipients: r,
		renderer:   renderer,
		logger:     logger.With("component", "newsletter"),
	}
}

// SendArticle emails the new-article notification to every subscriber.
func (s *Sender) SendArticle(ctx context.Context, article model.Article) (Report, error) {
	if err := ValidateArticle(article); err != nil {
		return Report{}, err
	}
	html, err := s.renderer.ArticleNotificationHTML(article)
	if err != nil {
		return Report{}, fmt.Errorf("render article email: %w", err)
	}
	return s.broadcast(ctx, email.ArticleSubject(article), html, TagArticle)
}

// SendDigest emails the monthly digest to every subscriber.
func (s *Sender) SendDigest(ctx context.Context, digest model.Digest) (Report, error) {
	if strings.TrimSpace(digest.Markdown) == "" {
		return Report{}, errors.New("digest is empty")
	}
	html, err := s.renderer.DigestHTML(digest)
	if err != nil {
		return Report{}, fmt.Errorf("render digest email: %w", err)
	}
	return s.broadcast(ctx, email.DigestSubject(digest), html, TagDigest)
}

func (s *Sender) broadcast(ctx context.Context, subject, html, tag string) (Report, error) {
	if !s.mailer.Configured() {
		return Report{}, brevo.ErrNotConfigured
	}

	var report Report
	for _, sub := range s.recipients.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.mailer.SendEmail(ctx, brevo.Message{
			ToEmail: sub.Email,
			ToName:  strings.TrimSpace(sub.FirstName + " " + sub.LastName),
			Subject: subject,
			HTML:    html,
			Tags:    []string{tag},
		})
		if err != nil {
			s.logger.Warn("send newsletter", "tag", tag, "email", sub.Email, "error", err)
			report.Failed = append(report.Failed, sub.Email)
			continue
		}
		report.Sent++
	}

	s.logger.Info("newsletter sent", "tag", tag, "sent", report.Sent, "failed", len(report.Failed))
	return report, nil
}

// ValidateArticle checks the fields every notification needs.
func ValidateArticle(a model.Article) error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("article title is required")
	}
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("article url is required")
	}
	return nil
}

// ReadArticle decodes an article from YAML.
func ReadArticle(r io.Reader) (model.Article, error) {
	var a model.Article
	if err := yaml.NewDecoder(r).Decode(&a); err != nil {
		return model.Article{}, fmt.Errorf("decode article: %w", err)
	}
	return a, nil
}
