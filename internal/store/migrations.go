package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// runMigrations brings the run-history database up to the latest schema
// revision. Revision files live under migrations/ named NNN_label.sql and
// are applied in ascending order, each inside its own transaction. Already
// applied revisions are tracked in schema_revisions and skipped.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_revisions (
		revision INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_revisions: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0) FROM schema_revisions`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema_revisions: %w", err)
	}

	entries, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, path := range entries {
		revision, label, err := parseRevision(path)
		if err != nil {
			return err
		}
		if revision <= current {
			continue
		}
		script, err := migrationFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := applyRevision(ctx, db, revision, label, string(script)); err != nil {
			return err
		}
	}
	return nil
}

func applyRevision(ctx context.Context, db *sql.DB, revision int, label, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revision %d: %w", revision, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range sqlStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("revision %d (%s): %w", revision, label, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_revisions (revision, label) VALUES (?, ?)`, revision, label,
	); err != nil {
		return fmt.Errorf("record revision %d: %w", revision, err)
	}
	return tx.Commit()
}

// parseRevision extracts the numeric revision and label from a
// migrations/NNN_label.sql path.
func parseRevision(path string) (int, string, error) {
	name := strings.TrimSuffix(path[strings.IndexByte(path, '/')+1:], ".sql")
	num, label, ok := strings.Cut(name, "_")
	if !ok {
		return 0, "", fmt.Errorf("migration file %q: want NNN_label.sql", path)
	}
	revision, err := strconv.Atoi(num)
	if err != nil {
		return 0, "", fmt.Errorf("migration file %q: bad revision: %w", path, err)
	}
	return revision, label, nil
}

// sqlStatements breaks a migration script into individual statements.
// Comment-only lines are dropped; a statement ends at a line whose last
// non-space character is a semicolon. Good enough for DDL scripts, which
// never carry semicolons inside literals.
func sqlStatements(script string) []string {
	var stmts []string
	var buf []string
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf = append(buf, line)
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(strings.Join(buf, "\n")), ";")
			stmts = append(stmts, stmt)
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		stmts = append(stmts, strings.TrimSpace(strings.Join(buf, "\n")))
	}
	return stmts
}
