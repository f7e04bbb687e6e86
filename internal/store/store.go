package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection pool. The Applier side owns
// product/store_stock writes; the run recorder side owns runs and state.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// sqlxIn expands an IN (?) clause fragment.
func sqlxIn(fragment string, values []string) (string, []interface{}, error) {
	query, args, err := sqlx.In(fragment, values)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand IN clause: %w", err)
	}
	return query, args, nil
}

// getRebound runs a ?-placeholder single-row query after rebinding.
func (s *Store) getRebound(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
}

// selectRebound runs a ?-placeholder multi-row query after rebinding.
func (s *Store) selectRebound(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}
