package store

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/renex/internal/model"
)

// SubscribersKey is the storage key holding the JSON subscriber list.
const SubscribersKey = "renex_subscribers"

// KeyValue is the storage the subscriber list is persisted in.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// SubscriberStore keeps the subscriber list in memory and persists it as a
// single JSON array. Storage failures are logged and never returned: a read
// failure yields an empty list, a write failure leaves the in-memory list as is.
type SubscriberStore struct {
	kv     KeyValue
	logger *slog.Logger

	mu   sync.RWMutex
	list []model.Subscriber
}

// NewSubscriberStore creates the store and loads the persisted list.
func NewSubscriberStore(kv KeyValue, logger *slog.Logger) *SubscriberStore {
	s := &SubscriberStore{kv: kv, logger: logger}
	s.Load()
	return s
}

// Load re-reads the list from storage, replacing the in-memory copy.
func (s *SubscriberStore) Load() []model.Subscriber {
	list := s.read()

	s.mu.Lock()
	s.list = list
	s.mu.Unlock()

	return clone(list)
}

func (s *SubscriberStore) read() []model.Subscriber {
	raw, ok, err := s.kv.Get(SubscribersKey)
	if err != nil {
		s.logger.Error("load subscribers", "error", err)
		return []model.Subscriber{}
	}
	if !ok || raw == "" {
		return []model.Subscriber{}
	}

	var list []model.Subscriber
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Error("parse subscribers", "error", err)
		return []model.Subscriber{}
	}
	if list == nil {
		list = []model.Subscriber{}
	}
	return list
}

// Save replaces the list and writes it to storage.
func (s *SubscriberStore) Save(list []model.Subscriber) {
	list = clone(list)

	s.mu.Lock()
	s.list = list
	s.mu.Unlock()

	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Error("encode subscribers", "error", err)
		return
	}
	if err := s.kv.Set(SubscribersKey, string(data)); err != nil {
		s.logger.Error("save subscribers", "error", err)
	}
}

// All returns a copy of the in-memory list.
func (s *SubscriberStore) All() []model.Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.list)
}

// Count returns the length of the in-memory list.
func (s *SubscriberStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Export returns the list as indented JSON for manual backup.
func (s *SubscriberStore) Export() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.list, "", "  ")
	if err != nil {
		s.logger.Error("export subscribers", "error", err)
		return "[]"
	}
	return string(data)
}

func clone(list []model.Subscriber) []model.Subscriber {
	out := make([]model.Subscriber, len(list))
	copy(out, list)
	return out
}
