package model

import (
	"strings"
	"time"
)

// DefaultSource is recorded on subscribers created through the site form.
const DefaultSource = "Website Newsletter Form"

// Subscriber is one newsletter signup. Email is the case-insensitive key.
type Subscriber struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Consented bool      `json:"consented"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
}

// SameEmail reports whether the subscriber's email matches email, ignoring case.
func (s Subscriber) SameEmail(email string) bool {
	return strings.EqualFold(s.Email, email)
}
