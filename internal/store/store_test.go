package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/renex/internal/database"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	return db
}
