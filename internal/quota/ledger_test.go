// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package quota

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/modelfront/gateway/internal/apierror"
)

func newLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLedger(sqlx.NewDb(db, "pgx")), mock
}

func quotaRows(monthly any, used int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"quota_monthly", "quota_used"}).AddRow(monthly, used)
}

func TestCheckAndConsume_UnderCap(t *testing.T) {
	ledger, mock := newLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnRows(quotaRows(int64(10), 3))
	mock.ExpectExec(`UPDATE api_keys SET quota_used = quota_used \+ 1`).
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.CheckAndConsume(context.Background(), "k1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndConsume_Exhausted(t *testing.T) {
	ledger, mock := newLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnRows(quotaRows(int64(5), 5))
	mock.ExpectRollback()

	err := ledger.CheckAndConsume(context.Background(), "k1")
	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeQuotaExhausted, apiErr.Code)
	require.Equal(t, 402, apiErr.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndConsume_NullMonthlyIsUnlimited(t *testing.T) {
	ledger, mock := newLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnRows(quotaRows(nil, 1_000_000))
	mock.ExpectExec(`UPDATE api_keys SET quota_used = quota_used \+ 1`).
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.CheckAndConsume(context.Background(), "k1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndConsume_UnknownKey(t *testing.T) {
	ledger, mock := newLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := ledger.CheckAndConsume(context.Background(), "nope")
	require.Equal(t, apierror.CodeInvalidAPIKey, apierror.From(err).Code)
}

func TestCheckAndConsume_DatabaseErrorIsInternal(t *testing.T) {
	ledger, mock := newLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnError(errors.New("timeout"))
	mock.ExpectRollback()

	err := ledger.CheckAndConsume(context.Background(), "k1")
	apiErr := apierror.From(err)
	require.Equal(t, apierror.CodeInternal, apiErr.Code)
	require.Equal(t, 500, apiErr.Status)
}

func TestCheckAndConsume_ConsumedOnAttempt(t *testing.T) {
	// The ledger has no notion of request success: the increment commits
	// before any backend work, so a later failure cannot refund it. Cap 1
	// means the second attempt is rejected whatever happened to the first.
	ledger, mock := newLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnRows(quotaRows(int64(1), 0))
	mock.ExpectExec(`UPDATE api_keys SET quota_used = quota_used \+ 1`).
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT quota_monthly, quota_used FROM api_keys`).
		WithArgs("k1").
		WillReturnRows(quotaRows(int64(1), 1))
	mock.ExpectRollback()

	require.NoError(t, ledger.CheckAndConsume(context.Background(), "k1"))
	err := ledger.CheckAndConsume(context.Background(), "k1")
	require.Equal(t, apierror.CodeQuotaExhausted, apierror.From(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
