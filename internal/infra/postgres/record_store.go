package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"momentum-quiz-service/internal/domain"
)

// RecordStore writes Submission Payloads into per-quiz application tables.
// Each row keeps the derived columns next to the full payload in JSONB.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Insert is idempotent on the submission ID, so a retried payload never creates a second row.
func (s *RecordStore) Insert(ctx context.Context, table string, payload *domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	source := payload.Source
	if source == "" {
		source = "momentum-site"
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, quiz_id, source, score, qualification_tier, data, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`, pgx.Identifier{table}.Sanitize())

	_, err = s.pool.Exec(ctx, query,
		payload.ID, payload.QuizID, source, payload.Score, payload.Tier, data, payload.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// List returns the newest rows of a table.
func (s *RecordStore) List(ctx context.Context, table string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id::text, quiz_id, score, qualification_tier, data, created_at
FROM %s ORDER BY created_at DESC LIMIT $1`, pgx.Identifier{table}.Sanitize())

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r    domain.Record
			data []byte
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.Score, &r.Tier, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r.Data = data
		out = append(out, r)
	}
	return out, rows.Err()
}
