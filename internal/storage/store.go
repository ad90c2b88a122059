// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package storage owns the Postgres persistence: API keys and roles, the
// append-only inference log table and the durable completion-cache tier.
// Schema migrations are embedded and applied with goose.
package storage

import (
	"context"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the database handle shared by the persistence-backed
// components.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, for tests.
func NewWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle to sibling packages.
func (s *Store) DB() *sqlx.DB { return s.db }

// Ping reports database health for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies all pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db.DB, "migrations")
}

// BootstrapAdminKey idempotently seeds one admin API key, used by the
// migrate command when ADMIN_BOOTSTRAP_KEY is set.
func (s *Store) BootstrapAdminKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (key, role_id, active)
		SELECT $1, id, TRUE FROM roles WHERE name = 'admin'
		ON CONFLICT (key) DO NOTHING`, key)
	return err
}
