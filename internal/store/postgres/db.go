// Package postgres is the canonical store (spec.md §4.4): all Commerce and
// FFN state the sync engine reasons about lives here, behind plain
// function-per-entity operations against a global pool, the same shape as
// the teacher's internal/storage/postgres/db.go.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DB is the global database connection pool, matching the teacher's
// package-level var so every op function below can use it directly
// without threading a handle through every call site.
var DB *sql.DB

// OpenDatabase opens the pool and verifies connectivity. Schema is managed
// by migrations (db/migrations/schema.sql); this never creates tables at
// runtime, matching the teacher's stance.
func OpenDatabase(databaseURL string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	DB = db
	if logger != nil {
		logger.Info("connected to postgres canonical store")
	}
	return nil
}

// CloseDatabase closes the pool.
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns (used by the multi-row order/return writes).
func withTx(fn func(tx *sql.Tx) error) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timeOrNil(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func strOrNil(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
