// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// DurableTier is the authoritative completion cache in Postgres. Writes use
// ON CONFLICT DO NOTHING so the first completed computation for a
// fingerprint wins across replicas.
type DurableTier struct {
	db *sqlx.DB
}

// NewDurableTier creates the durable tier over the shared database handle.
func NewDurableTier(db *sqlx.DB) *DurableTier {
	return &DurableTier{db: db}
}

// Get implements the same method as documented on Tier.
func (t *DurableTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	var row struct {
		ModelID string `db:"model_id"`
		Value   string `db:"value"`
	}
	err := t.db.GetContext(ctx, &row, `
		SELECT model_id, value FROM completion_cache WHERE fingerprint = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{ModelID: row.ModelID, Value: row.Value}, true, nil
}

// Set implements the same method as documented on Tier.
func (t *DurableTier) Set(ctx context.Context, key string, entry Entry) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO completion_cache (fingerprint, model_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint) DO NOTHING`, key, entry.ModelID, entry.Value)
	return err
}
