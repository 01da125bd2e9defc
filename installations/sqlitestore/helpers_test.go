package sqlitestore_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/jrsteele09/slack-mcp-gateway/installations/sqlitestore"
)

// sqlxOpen returns a migrated connection to a fresh database file.
func sqlxOpen(t *testing.T) (*sqlx.DB, error) {
	t.Helper()
	db, err := sqlx.Open(sqlitestore.Driver, filepath.Join(t.TempDir(), "plan.db"))
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlitestore.Migrate(context.Background(), db.DB, false); err != nil {
		return nil, err
	}
	return db, nil
}

func containsIndex(detail string) bool {
	return strings.Contains(detail, "idx_installations_team_installed")
}
