// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newDurableTier(t *testing.T) (*DurableTier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDurableTier(sqlx.NewDb(db, "pgx")), mock
}

func TestDurableTier_GetHit(t *testing.T) {
	tier, mock := newDurableTier(t)
	mock.ExpectQuery(`SELECT model_id, value FROM completion_cache`).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "value"}).AddRow("m1", "cached"))

	entry, ok, err := tier.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Entry{ModelID: "m1", Value: "cached"}, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDurableTier_GetMiss(t *testing.T) {
	tier, mock := newDurableTier(t)
	mock.ExpectQuery(`SELECT model_id, value FROM completion_cache`).
		WithArgs("k1").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := tier.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDurableTier_GetError(t *testing.T) {
	tier, mock := newDurableTier(t)
	mock.ExpectQuery(`SELECT model_id, value FROM completion_cache`).
		WithArgs("k1").
		WillReturnError(errors.New("connection reset"))

	_, ok, err := tier.Get(context.Background(), "k1")
	require.Error(t, err)
	require.False(t, ok)
}

func TestDurableTier_SetFirstWriterWins(t *testing.T) {
	tier, mock := newDurableTier(t)
	mock.ExpectExec(`INSERT INTO completion_cache`).
		WithArgs("k1", "m1", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second write for the same fingerprint conflicts and affects no rows.
	mock.ExpectExec(`INSERT INTO completion_cache`).
		WithArgs("k1", "m1", "other").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, tier.Set(context.Background(), "k1", Entry{ModelID: "m1", Value: "v"}))
	require.NoError(t, tier.Set(context.Background(), "k1", Entry{ModelID: "m1", Value: "other"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
