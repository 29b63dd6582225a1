package memory

import (
	"context"
	"encoding/json"
	"sync"

	"momentum-quiz-service/internal/domain"
)

// RecordStore keeps submissions in memory. Inserts are idempotent by submission ID.
type RecordStore struct {
	mu     sync.RWMutex
	tables map[string][]*domain.Payload
	seen   map[string]struct{}
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		tables: make(map[string][]*domain.Payload),
		seen:   make(map[string]struct{}),
	}
}

func (s *RecordStore) Insert(ctx context.Context, table string, payload *domain.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := table + "/" + payload.ID
	if _, dup := s.seen[key]; dup && payload.ID != "" {
		return nil
	}
	s.seen[key] = struct{}{}
	s.tables[table] = append(s.tables[table], payload)
	return nil
}

// List returns the newest records first.
func (s *RecordStore) List(_ context.Context, table string, limit int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tables[table]
	out := make([]domain.Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		p := rows[i]
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Record{
			ID:        p.ID,
			QuizID:    p.QuizID,
			Score:     p.Score,
			Tier:      p.Tier,
			Data:      data,
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}

// Payloads returns the stored payloads of a table in insertion order.
func (s *RecordStore) Payloads(table string) []*domain.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Payload(nil), s.tables[table]...)
}
