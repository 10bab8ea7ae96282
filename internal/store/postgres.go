package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS query_history (
	seq          BIGSERIAL PRIMARY KEY,
	query_id     TEXT NOT NULL UNIQUE,
	session_id   TEXT NOT NULL,
	query        TEXT NOT NULL,
	response     TEXT NOT NULL,
	llm_provider TEXT NOT NULL,
	dataset_id   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_query_history_session ON query_history (session_id, seq DESC);`

// PostgresStore keeps history in Postgres.
type PostgresStore struct {
	pool  *pgxpool.Pool
	limit int
}

func NewPostgres(ctx context.Context, databaseURL string, limit int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool, limit: normalizeLimit(limit)}, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, sessionID string, rec query.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO query_history (query_id, session_id, query, response, llm_provider, dataset_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (query_id) DO NOTHING`,
		rec.QueryID, sessionID, rec.Question, rec.Answer, string(rec.Provider), rec.DatasetID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &query.DuplicateRecordError{QueryID: rec.QueryID}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM query_history
		WHERE session_id = $1 AND seq NOT IN (
			SELECT seq FROM query_history WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		)`,
		sessionID, s.limit,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, sessionID string) ([]query.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT query_id, query, response, llm_provider, dataset_id, created_at
		FROM query_history
		WHERE session_id = $1
		ORDER BY seq DESC
		LIMIT $2`,
		sessionID, s.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (query.Record, error) {
		var rec query.Record
		var provider string
		err := row.Scan(&rec.QueryID, &rec.Question, &rec.Answer, &provider, &rec.DatasetID, &rec.CreatedAt)
		rec.Provider = query.Provider(provider)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM query_history WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
