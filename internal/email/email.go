// Package email renders the newsletter's HTML and plain-text bodies.
//
// Rendering is deterministic: the same Renderer and input always produce the
// same output. Templates use [[ ]] delimiters so Brevo's own {{unsubscribe}}
// and {{update_profile}} placeholders pass through untouched.
package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dukerupert/renex/internal/model"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DefaultAuthor is credited on article notifications that name no author.
const DefaultAuthor = "Pratik Devkota"

const (
	WelcomeSubject = "Welcome to Renewable Energy Nexus! 🌱"
	digestTitle    = "Monthly Renewable Energy Digest"
)

//go:embed templates
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("").Delims("[[", "]]").ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.New("").Delims("[[", "]]").ParseFS(templateFS, "templates/*.txt"))
)

type link struct {
	Label string
	URL   string
}

// Renderer fills the email templates. SiteURL is the public site root used for
// links; Year is printed in the copyright footer.
type Renderer struct {
	SiteURL string
	Year    int

	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

func NewRenderer(siteURL string) *Renderer {
	return &Renderer{
		SiteURL:  strings.TrimRight(siteURL, "/"),
		Year:     time.Now().Year(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
}

type page struct {
	Title       string
	Year        int
	Preferences bool
}

type welcomeData struct {
	page
	Greeting string
	SiteURL  string
	Links    []link
}

func (r *Renderer) welcome(name string) welcomeData {
	greeting := "Hello"
	if name = strings.TrimSpace(name); name != "" {
		greeting = "Hi " + name
	}
	return welcomeData{
		page:     page{Title: "Welcome to Renewable Energy Nexus", Year: r.Year, Preferences: true},
		Greeting: greeting,
		SiteURL:  r.SiteURL,
		Links: []link{
			{"Learn About Energy", r.SiteURL + "#education"},
			{"Savings Calculator", r.SiteURL + "#calculator"},
			{"Latest Articles", r.SiteURL + "#articles"},
			{"Get Consultation", r.SiteURL + "#consultation"},
		},
	}
}

// WelcomeHTML renders the welcome email greeting name, or a generic greeting when name is empty.
func (r *Renderer) WelcomeHTML(name string) (string, error) {
	return executeHTML("welcome.html", r.welcome(name))
}

func (r *Renderer) WelcomeText(name string) (string, error) {
	var buf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&buf, "welcome.txt", r.welcome(name)); err != nil {
		return "", fmt.Errorf("render welcome.txt: %w", err)
	}
	return buf.String(), nil
}

type articleData struct {
	page
	Article model.Article
	Author  string
}

// ArticleNotificationHTML renders the new-article announcement. Every article
// field is escaped for its position in the document.
func (r *Renderer) ArticleNotificationHTML(article model.Article) (string, error) {
	author := article.Author
	if author == "" {
		author = DefaultAuthor
	}
	return executeHTML("article.html", articleData{
		page:    page{Title: "New Article: " + article.Title, Year: r.Year},
		Article: article,
		Author:  author,
	})
}

// ArticleSubject is the subject line for an article notification.
func ArticleSubject(article model.Article) string {
	return "New Article: " + article.Title
}

type digestData struct {
	page
	Month string
	Body  htmltemplate.HTML
}

// DigestHTML converts the digest's Markdown to HTML, strips anything outside
// the user-generated-content allowlist, and wraps it in the newsletter layout.
func (r *Renderer) DigestHTML(digest model.Digest) (string, error) {
	var md bytes.Buffer
	if err := r.markdown.Convert([]byte(digest.Markdown), &md); err != nil {
		return "", fmt.Errorf("convert digest markdown: %w", err)
	}

	data := digestData{
		page: page{Title: digestTitle + " - Renewable Energy Nexus", Year: r.Year, Preferences: true},
		Body: htmltemplate.HTML(r.policy.SanitizeBytes(md.Bytes())),
	}
	if !digest.Month.IsZero() {
		data.Month = digest.Month.Format("January 2006")
	}
	return executeHTML("digest.html", data)
}

// DigestSubject returns the digest's own subject or one derived from its month.
func DigestSubject(digest model.Digest) string {
	if digest.Subject != "" {
		return digest.Subject
	}
	if digest.Month.IsZero() {
		return digestTitle
	}
	return digestTitle + " - " + digest.Month.Format("January 2006")
}

func executeHTML(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
