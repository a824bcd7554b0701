package brevo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// ContactSource is recorded in the SOURCE attribute of every contact created here.
const ContactSource = "Website Subscription"

type createContactRequest struct {
	Email         string            `json:"email"`
	Attributes    map[string]string `json:"attributes"`
	ListIDs       []int64           `json:"listIds"`
	UpdateEnabled bool              `json:"updateEnabled"`
}

// CreatedContact is Brevo's answer to a contact creation.
type CreatedContact struct {
	ID int64 `json:"id"`
}

// CreateContact adds email to the newsletter list. Attribute keys are
// normalized to Brevo's upper-case form. A "contact already exists" answer is
// returned as an *APIError like any other failure.
func (c *Client) CreateContact(ctx context.Context, email string, attrs map[string]string) (*CreatedContact, error) {
	if !c.Configured() {
		return nil, nil
	}

	payload := createContactRequest{
		Email:         email,
		Attributes:    contactAttributes(attrs),
		ListIDs:       []int64{c.cfg.ListID},
		UpdateEnabled: false,
	}

	var out CreatedContact
	if err := c.do(ctx, http.MethodPost, "/contacts", payload, &out, "Failed to add subscriber to Brevo"); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContact removes email from Brevo. Failures are logged, never returned:
// unsubscribing must succeed locally regardless of the provider.
func (c *Client) DeleteContact(ctx context.Context, email string) {
	if !c.Configured() {
		return
	}
	path := "/contacts/" + url.PathEscape(email)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, "Failed to remove contact from Brevo"); err != nil {
		c.logger.Error("brevo delete contact", "email", email, "error", err)
	}
}

// ListInfo is the subset of a Brevo list used for the public counter.
type ListInfo struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	TotalSubscribers  int    `json:"totalSubscribers"`
	UniqueSubscribers int    `json:"uniqueSubscribers"`
}

// ListCount fetches the newsletter list details.
func (c *Client) ListCount(ctx context.Context) (*ListInfo, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out ListInfo
	path := fmt.Sprintf("/contacts/lists/%d", c.cfg.ListID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "Failed to fetch list"); err != nil {
		return nil, err
	}
	return &out, nil
}

func contactAttributes(extra map[string]string) map[string]string {
	attrs := map[string]string{
		"FIRSTNAME": "",
		"LASTNAME":  "",
		"SOURCE":    ContactSource,
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if name := NormalizeAttribute(k); name != "" {
			attrs[name] = extra[k]
		}
	}
	return attrs
}

var wellKnownAttributes = map[string]string{
	"firstname": "FIRSTNAME",
	"lastname":  "LASTNAME",
	"source":    "SOURCE",
	"sms":       "SMS",
}

// NormalizeAttribute converts a form field name to a Brevo attribute name:
// firstName -> FIRSTNAME, favouriteTopic -> FAVOURITE_TOPIC, "home-region" -> HOME_REGION.
func NormalizeAttribute(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	flat := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(key))
	if name, ok := wellKnownAttributes[flat]; ok {
		return name
	}

	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			if !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return strings.Trim(b.String(), "_")
}
