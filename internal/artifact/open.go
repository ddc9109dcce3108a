package artifact

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Open returns a PostgresStore when databaseURL is set and a FileStore in
// dir otherwise. The returned *sql.DB is nil for the file store; the caller
// closes it.
func Open(databaseURL, dir string, keep int, logger *slog.Logger) (Store, *sql.DB, error) {
	if databaseURL == "" {
		store, err := NewFileStore(dir, keep, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgresStore(db), db, nil
}
