package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"momentum-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions stay in a local map so the in-process broadcast keeps working.
//   - Redis holds a liveness key per session with the idle TTL. Every Put
//     refreshes it; once it expires the local copy is dropped on the next Get.
//   - A session whose key could not be written is remembered as unmarked and
//     gets its key written on the next Get instead of being dropped.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	timeout  time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
	unmarked map[string]struct{}
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		timeout:  time.Second,
		sessions: make(map[string]*app.Session),
		unmarked: make(map[string]struct{}),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	id := session.ID()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	err := s.mark(id, session.QuizID())
	if err != nil {
		err = s.mark(id, session.QuizID())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slog.Warn("session liveness key not written", "session", id, "error", err)
		s.unmarked[id] = struct{}{}
		return
	}
	delete(s.unmarked, id)
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	_, unmarked := s.unmarked[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return session, true
	}
	if n == 0 {
		if !unmarked {
			s.forget(sessionID)
			return nil, false
		}
		if s.mark(sessionID, session.QuizID()) == nil {
			s.mu.Lock()
			delete(s.unmarked, sessionID)
			s.mu.Unlock()
		}
		return session, true
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(sessionID), s.ttl).Err()
	}
	return session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.forget(sessionID)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) mark(sessionID, quizID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.key(sessionID), quizID, s.ttl).Err()
}

func (s *SessionStore) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.unmarked, sessionID)
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
