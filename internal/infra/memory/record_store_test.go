package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"momentum-quiz-service/internal/domain"
)

func TestRecordStoreIdempotentInsert(t *testing.T) {
	store := NewRecordStore()
	payload := &domain.Payload{
		ID:        "sub-1",
		QuizID:    "quiz-1",
		Fields:    map[string]any{"email": "a@example.com"},
		Score:     4,
		Tier:      "early",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	for i := 0; i < 2; i++ {
		if err := store.Insert(context.Background(), "sample_applications", payload); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if n := len(store.Payloads("sample_applications")); n != 1 {
		t.Fatalf("expected one stored payload, got %d", n)
	}

	records, err := store.List(context.Background(), "sample_applications", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Score != 4 {
		t.Fatalf("unexpected records: %+v", records)
	}
	var row map[string]any
	if err := json.Unmarshal(records[0].Data, &row); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if row["email"] != "a@example.com" || row["submission_id"] != "sub-1" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestRecordStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRecordStore().Insert(ctx, "t", &domain.Payload{ID: "x"}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
