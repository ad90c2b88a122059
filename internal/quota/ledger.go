// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package quota enforces the per-API-key monthly consumption cap. The
// check-and-consume runs in one database transaction; quota is consumed on
// attempt, not on success, so induced failures still count against the cap.
// Monthly resets are an external job's concern.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/modelfront/gateway/internal/apierror"
)

// txTimeout bounds the ledger transaction. A database timeout surfaces as
// internal_error, never as a silent success.
const txTimeout = 3 * time.Second

// Ledger is the transactional monthly counter.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger creates a ledger over the shared database handle.
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// CheckAndConsume reads the key's quota row under a row lock, rejects with
// quota_exhausted when the cap is reached, and otherwise increments
// quota_used by one and commits. A NULL quota_monthly means unlimited; the
// increment still happens so consumption stays observable.
func (l *Ledger) CheckAndConsume(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return apierror.Internal(err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		QuotaMonthly *int64 `db:"quota_monthly"`
		QuotaUsed    int64  `db:"quota_used"`
	}
	err = tx.GetContext(ctx, &row, `
		SELECT quota_monthly, quota_used FROM api_keys
		WHERE key = $1 FOR UPDATE`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return apierror.InvalidAPIKey()
	}
	if err != nil {
		return apierror.Internal(err)
	}

	if row.QuotaMonthly != nil && row.QuotaUsed >= *row.QuotaMonthly {
		return apierror.QuotaExhausted()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE api_keys SET quota_used = quota_used + 1 WHERE key = $1`, key); err != nil {
		return apierror.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return apierror.Internal(err)
	}
	return nil
}
