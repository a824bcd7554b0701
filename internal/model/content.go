package model

import "time"

// Article is the payload of a new-article notification.
type Article struct {
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Image       string `json:"image,omitempty" yaml:"image"`
	Author      string `json:"author,omitempty" yaml:"author"`
	Date        string `json:"date,omitempty" yaml:"date"`
	Excerpt     string `json:"excerpt,omitempty" yaml:"excerpt"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Summary returns the excerpt, or the description when no excerpt is set.
func (a Article) Summary() string {
	if a.Excerpt != "" {
		return a.Excerpt
	}
	return a.Description
}

// Digest is the monthly newsletter. Markdown is rendered to sanitized HTML.
type Digest struct {
	Month    time.Time
	Subject  string
	Markdown string
}
