// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package inflog appends one structured inference log record per terminal
// request outcome, successes and failures alike.
package inflog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// writeTimeout bounds the log insert, which runs detached from the request
// context so cancelled requests still leave a record.
const writeTimeout = 5 * time.Second

// Record is one terminal outcome.
type Record struct {
	RequestID        string
	APIKey           *string
	Route            string
	ModelID          string
	PromptTokens     *int
	CompletionTokens *int
	LatencyMS        int64
	StatusCode       int
	ErrorCode        *string
	Cached           bool
}

// Logger writes inference log rows.
type Logger struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLogger creates a Logger over the shared database handle.
func NewLogger(db *sqlx.DB, logger *zap.Logger) *Logger {
	return &Logger{db: db, logger: logger}
}

// Write inserts one row. Failures are logged, not surfaced: a logging outage
// must not turn a served response into an error.
func (l *Logger) Write(ctx context.Context, rec Record) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := l.db.ExecContext(writeCtx, `
		INSERT INTO inference_logs
			(id, request_id, api_key, route, model_id, prompt_tokens,
			 completion_tokens, latency_ms, status_code, error_code, cached)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.NewString(), rec.RequestID, rec.APIKey, rec.Route, rec.ModelID,
		rec.PromptTokens, rec.CompletionTokens, rec.LatencyMS, rec.StatusCode,
		rec.ErrorCode, rec.Cached)
	if err != nil {
		l.logger.Error("cannot write inference log",
			zap.String("request_id", rec.RequestID), zap.Error(err))
	}
}

// EstimateTokens gives a rough whitespace token count, used when the backend
// does not report usage.
func EstimateTokens(s string) int {
	return len(strings.Fields(s))
}
