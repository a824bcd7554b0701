package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"kv", "cache_generations", "cache_entries", "push_subscriptions", "backups"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpenFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renex.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO kv (key, value) VALUES ('k', 'v')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var value string
	require.NoError(t, db.QueryRow(`SELECT value FROM kv WHERE key = 'k'`).Scan(&value))
	assert.Equal(t, "v", value)
}
