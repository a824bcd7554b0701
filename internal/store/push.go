package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/renex/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// Upsert saves a browser push subscription. Re-subscribing the same endpoint
// refreshes its keys.
func (s *PushStore) Upsert(endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		endpoint, p256dh, auth,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	return s.GetByEndpoint(endpoint)
}

func (s *PushStore) GetByEndpoint(endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.QueryRow(
		`SELECT id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	).Scan(&sub.ID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) List() ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
