package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"momentum-quiz-service/internal/domain"
	"momentum-quiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Definition{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.count())
	}
	if !mr.Exists("quiz:quiz-1:definition") {
		t.Fatalf("expected definition cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	if cached.Scoring.Choices["games_per_week"]["4+"] != quiz.Scoring.Choices["games_per_week"]["4+"] {
		t.Fatalf("cached scoring differs: %+v", cached.Scoring)
	}
	if cached.Steps[1].Index != 1 {
		t.Fatalf("expected normalized steps from cache")
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.count())
	}
}

type countingLoader struct {
	memory.QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Definition, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() domain.Definition {
	return domain.Definition{
		ID:    "quiz-1",
		Title: "Sample",
		Table: "sample_applications",
		Steps: []domain.Step{
			{Title: "Contact", Fields: []domain.Field{
				{Name: "email", Kind: domain.FieldText, Required: true},
			}},
			{Title: "Training", Fields: []domain.Field{
				{Name: "games_per_week", Kind: domain.FieldSingleChoice, Required: true, Options: []string{"0-1", "2-3", "4+"}},
			}},
		},
		Scoring: domain.ScoringConfig{
			Choices: map[string]map[string]int{"games_per_week": {"0-1": 1, "2-3": 2, "4+": 3}},
			Tiers:   []domain.Tier{{Threshold: 0, Name: "early"}, {Threshold: 3, Name: "high"}},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
