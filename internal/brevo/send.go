package brevo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/renex/internal/email"
)

type party struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type sendRequest struct {
	Sender      party    `json:"sender"`
	To          []party  `json:"to"`
	Subject     string   `json:"subject"`
	HTMLContent string   `json:"htmlContent"`
	TextContent string   `json:"textContent,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Message is a single transactional email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
	Text    string
	Tags    []string
}

// SentEmail is Brevo's answer to a transactional send.
type SentEmail struct {
	MessageID string `json:"messageId"`
}

// SendEmail sends msg from the configured sender identity.
func (c *Client) SendEmail(ctx context.Context, msg Message) (*SentEmail, error) {
	return c.send(ctx, msg, "Failed to send email")
}

func (c *Client) send(ctx context.Context, msg Message, fallback string) (*SentEmail, error) {
	if !c.Configured() {
		return nil, nil
	}

	payload := sendRequest{
		Sender:      party{Name: c.cfg.SenderName, Email: c.cfg.SenderEmail},
		To:          []party{{Name: msg.ToName, Email: msg.ToEmail}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
		Tags:        msg.Tags,
	}

	var out SentEmail
	if err := c.do(ctx, http.MethodPost, "/smtp/email", payload, &out, fallback); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendWelcomeEmail greets a new subscriber. name may be empty.
func (c *Client) SendWelcomeEmail(ctx context.Context, to, name string) (*SentEmail, error) {
	if !c.Configured() {
		return nil, nil
	}

	html, err := c.renderer.WelcomeHTML(name)
	if err != nil {
		return nil, fmt.Errorf("welcome email: %w", err)
	}
	text, err := c.renderer.WelcomeText(name)
	if err != nil {
		return nil, fmt.Errorf("welcome email: %w", err)
	}

	return c.send(ctx, Message{
		ToEmail: to,
		ToName:  name,
		Subject: email.WelcomeSubject,
		HTML:    html,
		Text:    text,
		Tags:    []string{"welcome"},
	}, "Failed to send welcome email")
}
