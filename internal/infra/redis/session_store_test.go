package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
	"momentum-quiz-service/internal/infra/memory"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	session := startSession(t, store)

	key := "quiz:session:" + session.ID()
	if !mr.Exists(key) {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get(session.ID()); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete(session.ID())
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionStoreKeepsSessionWhenMarkerWriteFails(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	mr.SetError("ERR write refused")
	session := startSession(t, store)
	mr.SetError("")

	key := "quiz:session:" + session.ID()
	if mr.Exists(key) {
		t.Fatalf("liveness key should not exist after failed writes")
	}
	if _, ok := store.Get(session.ID()); !ok {
		t.Fatalf("session dropped after a failed liveness write")
	}
	if !mr.Exists(key) {
		t.Fatalf("expected Get to write the missing liveness key")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := store.Get(session.ID()); ok {
		t.Fatalf("expected session to expire normally once marked")
	}
}

func TestSessionStoreExpiresWithKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	session := startSession(t, store)

	mr.FastForward(30 * time.Second)
	if _, ok := store.Get(session.ID()); !ok {
		t.Fatalf("expected session alive within ttl")
	}
	// Get refreshed the ttl, so another 45s keeps it alive.
	mr.FastForward(45 * time.Second)
	if _, ok := store.Get(session.ID()); !ok {
		t.Fatalf("expected ttl refreshed on access")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := store.Get(session.ID()); ok {
		t.Fatalf("expected session dropped after liveness key expired")
	}
}

func TestFlagStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	flags := NewFlagStore(newClient(mr))
	ctx := context.Background()

	v, err := flags.Get(ctx, "device-1", app.FlagSidebarCollapsed)
	if err != nil || v {
		t.Fatalf("expected missing flag to read false, got %v %v", v, err)
	}
	if err := flags.Set(ctx, "device-1", app.FlagSidebarCollapsed, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if v, _ := flags.Get(ctx, "device-1", app.FlagSidebarCollapsed); !v {
		t.Fatalf("expected flag true")
	}
	if v, _ := flags.Get(ctx, "device-2", app.FlagSidebarCollapsed); v {
		t.Fatalf("flags must be per device")
	}
}

func startSession(t *testing.T, store *SessionStore) *app.Session {
	t.Helper()
	svc := app.NewQuizService(
		store,
		memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Definition{"quiz-1": sampleQuiz()}), time.Minute),
		memory.NewRecordStore(),
		app.Options{},
	)
	session, err := svc.StartSession(context.Background(), "quiz-1", "", "en")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return session
}
