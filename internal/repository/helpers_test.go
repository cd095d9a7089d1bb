package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/pkg/database"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "autosell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.ApplyMigrations(context.Background(), db, database.DialectSQLite))
	return db
}

func createRule(t *testing.T, repo RuleRepository, rule autosell.Rule) autosell.Rule {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &rule))
	return rule
}
