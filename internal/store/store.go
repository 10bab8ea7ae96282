// Package store persists answered queries per session for the answering service.
package store

import (
	"context"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

// DefaultHistoryLimit is how many records are kept per session.
const DefaultHistoryLimit = 50

// Repository is the server-side history store.
type Repository interface {
	// AppendHistory stores rec and trims the session to the newest limit entries.
	// A query id already stored returns *query.DuplicateRecordError.
	AppendHistory(ctx context.Context, sessionID string, rec query.Record) error
	// ListHistory returns the session's records newest-first.
	ListHistory(ctx context.Context, sessionID string) ([]query.Record, error)
	// ClearHistory removes every record of the session and reports how many were removed.
	ClearHistory(ctx context.Context, sessionID string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

var (
	_ Repository = (*PostgresStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)
