package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ledgerDSN enables foreign keys. The busy timeout covers a second process
// (the migrate command) holding the write lock.
func ledgerDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// OpenRepository brings the ledger at path up to the latest schema and returns
// a Repository on it.
func OpenRepository(path string) (*Repository, error) {
	if err := RunMigrations(path); err != nil {
		return nil, fmt.Errorf("OpenRepository: migrating %q: %w", path, err)
	}

	db, err := sql.Open("sqlite3", ledgerDSN(path))
	if err != nil {
		return nil, fmt.Errorf("OpenRepository: opening %q: %w", path, err)
	}
	// Ingestion runs and migrations write from one connection at a time.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenRepository: ping %q: %w", path, err)
	}
	return NewRepository(db), nil
}

// inTx commits when fn succeeds and rolls back otherwise.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inTx: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("inTx: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("inTx: commit: %w", err)
	}
	return nil
}

// ledgerNow is the timestamp written to processed_files and overrides.
// SQLite keeps it as text, so sub-second precision is dropped.
func ledgerNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
