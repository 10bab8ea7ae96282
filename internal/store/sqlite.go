package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/insight/internal/query"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps history in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	limit int
	mu    sync.Mutex // serialises append+trim to avoid SQLITE_BUSY
}

func NewSQLite(dbPath string, limit int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, limit: normalizeLimit(limit)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS query_history (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id     TEXT NOT NULL UNIQUE,
		session_id   TEXT NOT NULL,
		query        TEXT NOT NULL,
		response     TEXT NOT NULL,
		llm_provider TEXT NOT NULL,
		dataset_id   TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_query_history_session ON query_history(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, sessionID string, rec query.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO query_history (query_id, session_id, query, response, llm_provider, dataset_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.QueryID, sessionID, rec.Question, rec.Answer, string(rec.Provider), rec.DatasetID, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &query.DuplicateRecordError{QueryID: rec.QueryID}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM query_history
		WHERE session_id = ? AND seq NOT IN (
			SELECT seq FROM query_history WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		sessionID, sessionID, s.limit,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListHistory(ctx context.Context, sessionID string) ([]query.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, query, response, llm_provider, dataset_id, created_at
		FROM query_history
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, s.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := []query.Record{}
	for rows.Next() {
		var (
			rec      query.Record
			provider string
			created  int64
		)
		if err := rows.Scan(&rec.QueryID, &rec.Question, &rec.Answer, &provider, &rec.DatasetID, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Provider = query.Provider(provider)
		rec.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM query_history WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
