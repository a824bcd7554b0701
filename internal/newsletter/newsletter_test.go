package newsletter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/email"
	"github.com/dukerupert/renex/internal/logging"
	"github.com/dukerupert/renex/internal/model"
)

type fakeMailer struct {
	configured bool
	failFor    string

	mu   sync.Mutex
	sent []brevo.Message
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) SendEmail(_ context.Context, msg brevo.Message) (*brevo.SentEmail, error) {
	if msg.ToEmail == m.failFor {
		return nil, &brevo.APIError{Status: 400, Message: "invalid recipient"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return &brevo.SentEmail{MessageID: "m"}, nil
}

type recipients []model.Subscriber

func (r recipients) All() []model.Subscriber { return r }

var list = recipients{
	{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
	{Email: "grace@example.com"},
	{Email: "bounce@example.com"},
}

func newSender(m Mailer) *Sender {
	return NewSender(m, list, email.NewRenderer("https://renex.example"), logging.Discard())
}

func TestSendArticle(t *testing.T) {
	m := &fakeMailer{configured: true, failFor: "bounce@example.com"}

	report, err := newSender(m).SendArticle(context.Background(), model.Article{
		Title: "Agrivoltaics in Bavaria",
		URL:   "https://renex.example/articles/agrivoltaics",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, []string{"bounce@example.com"}, report.Failed)

	require.Len(t, m.sent, 2)
	assert.Equal(t, "Ada Lovelace", m.sent[0].ToName)
	assert.Equal(t, "", m.sent[1].ToName)
	assert.Equal(t, "New Article: Agrivoltaics in Bavaria", m.sent[0].Subject)
	assert.Equal(t, []string{TagArticle}, m.sent[0].Tags)
	assert.Contains(t, m.sent[0].HTML, "https://renex.example/articles/agrivoltaics")
}

func TestSendArticleRequiresFields(t *testing.T) {
	m := &fakeMailer{configured: true}
	_, err := newSender(m).SendArticle(context.Background(), model.Article{Title: "No link"})
	assert.Error(t, err)
	assert.Empty(t, m.sent)
}

func TestSendDigest(t *testing.T) {
	m := &fakeMailer{configured: true}

	report, err := newSender(m).SendDigest(context.Background(), model.Digest{
		Month:    time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		Markdown: "## Highlights\n\nSolar prices fell again.<script>alert(1)</script>",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, "Monthly Renewable Energy Digest - February 2025", m.sent[0].Subject)
	assert.Contains(t, m.sent[0].HTML, "Highlights")
	assert.NotContains(t, m.sent[0].HTML, "<script>")
}

func TestSendUnconfigured(t *testing.T) {
	_, err := newSender(&fakeMailer{}).SendDigest(context.Background(), model.Digest{Markdown: "hi"})
	assert.True(t, errors.Is(err, brevo.ErrNotConfigured))
}

func TestReadArticle(t *testing.T) {
	a, err := ReadArticle(strings.NewReader("title: Heat pumps\nurl: https://renex.example/heat\nexcerpt: Why now.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Heat pumps", a.Title)
	assert.Equal(t, "Why now.", a.Summary())

	_, err = ReadArticle(strings.NewReader("title: [unclosed"))
	assert.Error(t, err)
}
