// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// APIKey is the authenticated identity of a request, joined with its role.
// The key string itself is a secret and never logged.
type APIKey struct {
	Key               string    `db:"key"`
	Active            bool      `db:"active"`
	RoleName          string    `db:"role_name"`
	RequestsPerMinute int       `db:"requests_per_minute"`
	QuotaMonthly      *int64    `db:"quota_monthly"`
	QuotaUsed         int64     `db:"quota_used"`
	CreatedAt         time.Time `db:"created_at"`
}

// ErrKeyNotFound is returned when an API key does not exist.
var ErrKeyNotFound = errors.New("api key not found")

// LookupAPIKey fetches an API key with its role. Inactive keys are returned
// with Active=false; the caller decides how to reject them.
func (s *Store) LookupAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var out APIKey
	err := s.db.GetContext(ctx, &out, `
		SELECT k.key, k.active, r.name AS role_name, r.requests_per_minute,
		       k.quota_monthly, k.quota_used, k.created_at
		FROM api_keys k
		JOIN roles r ON r.id = k.role_id
		WHERE k.key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAPIKey inserts a key under the named role, used by admin tooling and
// tests.
func (s *Store) CreateAPIKey(ctx context.Context, key, role string, quotaMonthly *int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (key, role_id, quota_monthly)
		SELECT $1, id, $3 FROM roles WHERE name = $2`, key, role, quotaMonthly)
	return err
}

// DeactivateAPIKey flips a key inactive. Keys are never deleted while logs
// reference them.
func (s *Store) DeactivateAPIKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET active = FALSE WHERE key = $1`, key)
	return err
}
