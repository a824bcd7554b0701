package offline

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
)

//go:embed templates/sw.js.tmpl
var scriptFS embed.FS

var scriptTemplate = template.Must(template.ParseFS(scriptFS, "templates/sw.js.tmpl"))

// Script is the browser service worker, rendered once with the same cache
// name and precache list the server-side Worker uses.
type Script struct {
	body []byte
}

func NewScript(cacheName string, precache []string) (*Script, error) {
	name, err := json.Marshal(cacheName)
	if err != nil {
		return nil, fmt.Errorf("encode cache name: %w", err)
	}
	if precache == nil {
		precache = []string{}
	}
	urls, err := json.Marshal(precache)
	if err != nil {
		return nil, fmt.Errorf("encode precache urls: %w", err)
	}

	var buf bytes.Buffer
	err = scriptTemplate.Execute(&buf, struct {
		CacheName    string
		PrecacheURLs string
	}{string(name), string(urls)})
	if err != nil {
		return nil, fmt.Errorf("render sw.js: %w", err)
	}
	return &Script{body: buf.Bytes()}, nil
}

func (s *Script) Bytes() []byte {
	return s.body
}

func (s *Script) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(s.body)
}
