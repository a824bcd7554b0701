// Package subscription runs the newsletter signup and removal workflow.
//
// The local subscriber list is authoritative. The remote contact gateway is a
// best-effort mirror: its failures never prevent a local subscribe or
// unsubscribe from completing.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/model"
)

const (
	MsgSubscribed       = "Successfully subscribed! Check your email for a welcome message."
	MsgRecordedDegraded = "Subscription recorded. Email service temporarily unavailable."
	MsgUnsubscribed     = "Successfully unsubscribed"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate subscriber")
	ErrNotFound   = errors.New("subscriber not found")
)

// Error carries a message fit to show the visitor. It unwraps to one of
// ErrValidation, ErrDuplicate or ErrNotFound.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

var (
	errInvalidEmail = &Error{Kind: ErrValidation, Message: "Please enter a valid email address"}
	errNoConsent    = &Error{Kind: ErrValidation, Message: "Please agree to receive emails from us"}
	errDuplicate    = &Error{Kind: ErrDuplicate, Message: "This email is already subscribed"}
	errNotFound     = &Error{Kind: ErrNotFound, Message: "Email not found in subscriber list"}
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether email has the local@domain.tld shape.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Gateway is the remote contact provider.
type Gateway interface {
	Configured() bool
	CreateContact(ctx context.Context, email string, attrs map[string]string) (*brevo.CreatedContact, error)
	SendWelcomeEmail(ctx context.Context, to, name string) (*brevo.SentEmail, error)
	DeleteContact(ctx context.Context, email string)
}

// Store holds the local subscriber list.
type Store interface {
	All() []model.Subscriber
	Save(list []model.Subscriber)
	Count() int
}

// Details are the optional form fields sent with a signup.
type Details struct {
	FirstName  string
	LastName   string
	Source     string
	Attributes map[string]string
}

// Result is the outcome shown to the visitor.
type Result struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Warning    string            `json:"warning,omitempty"`
	Subscriber *model.Subscriber `json:"subscriber,omitempty"`
}

type EventKind string

const (
	Subscribed   EventKind = "subscriber.created"
	Unsubscribed EventKind = "subscriber.removed"
)

// Event describes a completed change to the list. Count is the list length
// after the change.
type Event struct {
	Kind       EventKind
	Subscriber model.Subscriber
	Count      int
}

// Listener is told about every completed subscribe and unsubscribe.
type Listener func(ctx context.Context, e Event)

type Manager struct {
	store     Store
	gateway   Gateway
	listeners []Listener
	logger    *slog.Logger
	now       func() time.Time

	// mu guards the list and pending. It is never held across gateway calls.
	mu      sync.Mutex
	pending map[string]struct{}
}

type Option func(*Manager)

func WithListener(l Listener) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, l)
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store Store, gateway Gateway, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		gateway: gateway,
		logger:  logger.With("component", "subscription"),
		now:     time.Now,
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe validates and records a new subscriber, mirroring it to the
// gateway when one is configured.
func (m *Manager) Subscribe(ctx context.Context, email string, consent bool, details Details) (Result, error) {
	if !ValidateEmail(email) {
		return Result{}, errInvalidEmail
	}
	if !consent {
		return Result{}, errNoConsent
	}

	key := strings.ToLower(email)
	m.mu.Lock()
	_, reserved := m.pending[key]
	if reserved || indexOf(m.store.All(), email) >= 0 {
		m.mu.Unlock()
		return Result{}, errDuplicate
	}
	m.pending[key] = struct{}{}
	m.mu.Unlock()

	source := details.Source
	if source == "" {
		source = model.DefaultSource
	}
	sub := model.Subscriber{
		Email:     email,
		Timestamp: m.now().UTC(),
		Source:    source,
		Consented: consent,
		FirstName: details.FirstName,
		LastName:  details.LastName,
	}

	result := Result{Success: true, Message: MsgSubscribed, Subscriber: &sub}
	if err := m.mirror(ctx, sub, details); err != nil {
		m.logger.Warn("remote subscribe failed, recording locally", "email", email, "error", err)
		result.Message = MsgRecordedDegraded
		result.Warning = err.Error()
	}

	m.mu.Lock()
	delete(m.pending, key)
	m.store.Save(append(m.store.All(), sub))
	count := m.store.Count()
	m.mu.Unlock()
	m.logger.Info("subscribed", "email", email, "source", source)

	m.notify(ctx, Event{Kind: Subscribed, Subscriber: sub, Count: count})
	return result, nil
}

func (m *Manager) mirror(ctx context.Context, sub model.Subscriber, details Details) error {
	if m.gateway == nil || !m.gateway.Configured() {
		return nil
	}

	attrs := make(map[string]string, len(details.Attributes)+2)
	for k, v := range details.Attributes {
		attrs[k] = v
	}
	if details.FirstName != "" {
		attrs["firstName"] = details.FirstName
	}
	if details.LastName != "" {
		attrs["lastName"] = details.LastName
	}

	if _, err := m.gateway.CreateContact(ctx, sub.Email, attrs); err != nil {
		return err
	}
	if _, err := m.gateway.SendWelcomeEmail(ctx, sub.Email, details.FirstName); err != nil {
		return err
	}
	return nil
}

// Unsubscribe removes email from the local list. Remote removal is attempted
// but its outcome is never reported.
func (m *Manager) Unsubscribe(ctx context.Context, email string) (Result, error) {
	m.mu.Lock()
	list := m.store.All()
	i := indexOf(list, email)
	if i < 0 {
		m.mu.Unlock()
		return Result{}, errNotFound
	}
	removed := list[i]
	m.store.Save(append(list[:i], list[i+1:]...))
	count := m.store.Count()
	m.mu.Unlock()
	m.logger.Info("unsubscribed", "email", email)

	if m.gateway != nil && m.gateway.Configured() {
		m.gateway.DeleteContact(ctx, email)
	}

	m.notify(ctx, Event{Kind: Unsubscribed, Subscriber: removed, Count: count})
	return Result{Success: true, Message: MsgUnsubscribed}, nil
}

// Count returns the number of local subscribers.
func (m *Manager) Count() int {
	return m.store.Count()
}

func (m *Manager) notify(ctx context.Context, e Event) {
	for _, l := range m.listeners {
		l(ctx, e)
	}
}

func indexOf(list []model.Subscriber, email string) int {
	for i, s := range list {
		if s.SameEmail(email) {
			return i
		}
	}
	return -1
}

// CountLabel is the counter widget caption for n subscribers.
func CountLabel(n int) string {
	switch {
	case n <= 0:
		return "Be the first to subscribe!"
	case n == 1:
		return "Join 1 other subscriber"
	default:
		return fmt.Sprintf("Join %d other subscribers", n)
	}
}
