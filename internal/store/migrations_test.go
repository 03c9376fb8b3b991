package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (
    id TEXT PRIMARY KEY
);

-- another comment
CREATE INDEX idx_a ON a(id);
`
	stmts := sqlStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], "--")
	assert.Equal(t, "CREATE INDEX idx_a ON a(id)", stmts[1])
}

func TestSQLStatements_TrailingStatementWithoutSemicolon(t *testing.T) {
	stmts := sqlStatements("CREATE TABLE b (id TEXT)")
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE b (id TEXT)", stmts[0])
}

func TestParseRevision(t *testing.T) {
	revision, label, err := parseRevision("migrations/001_initial_schema.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, revision)
	assert.Equal(t, "initial_schema", label)

	_, _, err = parseRevision("migrations/nolabel.sql")
	assert.Error(t, err)

	_, _, err = parseRevision("migrations/xx_label.sql")
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	r, err := NewLibSQLRecorder(ctx, "file:"+dbPath)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// Reopening the same database must skip already applied revisions.
	r, err = NewLibSQLRecorder(ctx, "file:"+dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	var count int
	require.NoError(t, r.DB().QueryRow(`SELECT COUNT(*) FROM schema_revisions`).Scan(&count))
	assert.Equal(t, 1, count)
}
