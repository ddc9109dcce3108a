// Package testutil provides shared test infrastructure for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// PGTest connects to POSTGRES_URL, migrates it to the latest schema and
// empties every application table. The tables are emptied again and the
// connection closed when the test ends. Without POSTGRES_URL the test is
// skipped.
//
//	db := testutil.PGTest(t)
func PGTest(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("pgtest: open database: %v", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: connect to database: %v", err)
	}

	dir, err := migrationsDir()
	if err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: %v", err)
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: %v", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: migrate: %v", err)
	}

	if err := truncateAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: truncate: %v", err)
	}
	t.Cleanup(func() {
		_ = truncateAll(context.Background(), db)
		_ = db.Close()
	})
	return db
}

// migrationsDir finds the nearest migrations/ directory at or above the
// working directory.
func migrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("no migrations/ directory above working directory")
		}
		dir = parent
	}
}

// truncateAll empties every table in the public schema except goose's
// version table.
func truncateAll(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename <> 'goose_db_version'
	`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil || len(tables) == 0 {
		return err
	}
	// Table names come from pg_tables, not user input.
	_, err = db.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE") // #nosec G202
	return err
}
