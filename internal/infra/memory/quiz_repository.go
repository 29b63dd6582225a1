package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"momentum-quiz-service/internal/domain"
)

// QuizLoader fetches quiz definitions from a backing store (files, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Definition, error)
}

const loadTimeout = 10 * time.Second

// QuizRepository caches definitions with TTL to avoid repeated loader hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Definition
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

// GetQuiz returns a cached definition or loads it once for all concurrent callers.
// A caller whose ctx ends stops waiting; the shared load keeps going for the others.
func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Definition, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	ch := r.sf.DoChan(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return r.load(loadCtx, quizID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Definition{}, res.Err
		}
		return res.Val.(domain.Definition), nil
	case <-ctx.Done():
		return domain.Definition{}, ctx.Err()
	}
}

// load fetches, validates and caches a definition. Invalid definitions are never cached.
func (r *QuizRepository) load(ctx context.Context, quizID string) (domain.Definition, error) {
	quiz, err := r.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Definition{}, err
	}
	if err := quiz.Validate(); err != nil {
		return domain.Definition{}, err
	}
	quiz = quiz.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[quizID] = cachedQuiz{
		quiz:      quiz,
		expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
	}
	return quiz, nil
}

// Invalidate forgets a cached definition so the next read reloads it.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, quizID)
}

func (r *QuizRepository) cached(quizID string) (domain.Definition, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.Definition{}, false
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map (tests and demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Definition
}

func NewStaticQuizLoader(quizzes map[string]domain.Definition) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Definition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Definition{}, domain.ErrQuizNotFound
}

// FallbackQuizLoader asks each loader in order and moves on only when a quiz is not found.
type FallbackQuizLoader []QuizLoader

func (l FallbackQuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Definition, error) {
	for _, loader := range l {
		quiz, err := loader.LoadQuiz(ctx, quizID)
		if !errors.Is(err, domain.ErrQuizNotFound) {
			return quiz, err
		}
	}
	return domain.Definition{}, domain.ErrQuizNotFound
}
