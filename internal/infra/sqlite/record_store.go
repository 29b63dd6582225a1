// Package sqlite is a single-node record store for deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"momentum-quiz-service/internal/domain"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// RecordStore keeps submissions in SQLite, one table per quiz, created on first use.
type RecordStore struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]struct{}
}

func New(dbPath string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &RecordStore{db: db, tables: make(map[string]struct{})}, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) Insert(ctx context.Context, table string, payload *domain.Payload) error {
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	source := payload.Source
	if source == "" {
		source = "momentum-site"
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT OR IGNORE INTO %q (id, quiz_id, source, score, qualification_tier, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, table),
		payload.ID, payload.QuizID, source, payload.Score, payload.Tier, string(data),
		payload.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *RecordStore) List(ctx context.Context, table string, limit int) ([]domain.Record, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, quiz_id, score, qualification_tier, data, created_at
		FROM %q ORDER BY created_at DESC LIMIT ?`, table), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r         domain.Record
			data      string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Score, &r.Tier, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r.Data = json.RawMessage(data)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RecordStore) ensureTable(ctx context.Context, table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; ok {
		return nil
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %q (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT 'momentum-site',
		score INTEGER NOT NULL,
		qualification_tier TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`, table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	s.tables[table] = struct{}{}
	return nil
}
