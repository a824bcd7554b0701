package model

import (
	"net/http"
	"time"
)

// CacheEntry is a stored response inside one cache generation, keyed by URL.
type CacheEntry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}
