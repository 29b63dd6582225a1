package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
	"momentum-quiz-service/internal/infra/memory"
)

func sampleQuiz() domain.Definition {
	return domain.Definition{
		ID:     "eligibility",
		Title:  "Eligibility",
		Table:  "parent_applications",
		Source: "momentum-site",
		Steps: []domain.Step{
			{Title: "Contact", Fields: []domain.Field{
				{Name: "parent_name", Kind: domain.FieldText, Required: true},
				{Name: "email", Kind: domain.FieldText, Required: true},
			}},
			{Title: "Training", Fields: []domain.Field{
				{Name: "training_sessions_per_week", Kind: domain.FieldSingleChoice, Required: true, Options: []string{"1-2", "3-4", "5+"}},
				{Name: "session_includes", Kind: domain.FieldMultiChoice, Options: []string{"a", "b", "c", "d"}},
			}},
			{Title: "Wrap up", Fields: []domain.Field{
				{Name: "session_length", Kind: domain.FieldSingleChoice, Required: true, Options: []string{"Under 60 minutes", "60-90 minutes", "90+ minutes"}},
				{Name: "notes", Kind: domain.FieldText},
			}},
		},
		Scoring: domain.ScoringConfig{
			Choices: map[string]map[string]int{
				"training_sessions_per_week": {"1-2": 1, "3-4": 2, "5+": 3},
			},
			Caps: map[string]int{"session_includes": 3},
			Tiers: []domain.Tier{
				{Threshold: 0, Name: "does_not_qualify"},
				{Threshold: 8, Name: "qualifies"},
			},
		},
		Messages: domain.Messages{
			Success:        map[string]string{"qualifies": "ParentSuccessQualifies"},
			SuccessDefault: "ParentSuccessReview",
		},
		Contact:        domain.ContactFields{Email: "email", Name: "parent_name"},
		Notify:         domain.NotifyConfig{Template: "parent_confirmation", StaffTiers: []string{"qualifies"}},
		CreditEstimate: true,
	}
}

type fixture struct {
	service  *app.QuizService
	sessions *memory.SessionStore
	records  app.RecordStore
	flags    *memory.FlagStore
	notes    *recordingDispatcher
}

func newFixture(t *testing.T, records app.RecordStore, opts app.Options, quizzes ...domain.Definition) *fixture {
	t.Helper()
	if len(quizzes) == 0 {
		quizzes = []domain.Definition{sampleQuiz()}
	}
	byID := make(map[string]domain.Definition, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	if records == nil {
		records = memory.NewRecordStore()
	}
	f := &fixture{
		sessions: memory.NewSessionStore(time.Hour),
		records:  records,
		flags:    memory.NewFlagStore(),
		notes:    &recordingDispatcher{},
	}
	if opts.Flags == nil {
		opts.Flags = f.flags
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = f.notes
	}
	f.service = app.NewQuizService(
		f.sessions,
		memory.NewQuizRepository(memory.NewStaticQuizLoader(byID), time.Minute),
		records,
		opts,
	)
	return f
}

func (f *fixture) start(t *testing.T, clientID string) string {
	t.Helper()
	s, err := f.service.StartSession(context.Background(), "eligibility", clientID, "en")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return s.ID()
}

// fillToLastStep answers every required field and walks to the last step.
func (f *fixture) fillToLastStep(t *testing.T, id string) {
	t.Helper()
	mustAnswer(t, f.service, id, "parent_name", "Dana Reyes")
	mustAnswer(t, f.service, id, "email", "dana@example.com")
	mustAdvance(t, f.service, id)
	mustAnswer(t, f.service, id, "training_sessions_per_week", "5+")
	mustAnswer(t, f.service, id, "session_includes", "a", "b", "c", "d")
	mustAdvance(t, f.service, id)
	mustAnswer(t, f.service, id, "session_length", "60-90 minutes")
}

func mustAnswer(t *testing.T, svc *app.QuizService, id, field string, values ...string) {
	t.Helper()
	if _, err := svc.SetAnswer(id, field, values); err != nil {
		t.Fatalf("set %s: %v", field, err)
	}
}

func mustAdvance(t *testing.T, svc *app.QuizService, id string) {
	t.Helper()
	if _, err := svc.Advance(id); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (d *recordingDispatcher) Dispatch(n domain.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
}

func (d *recordingDispatcher) all() []domain.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Notification(nil), d.sent...)
}

// scriptedStore returns the queued errors in order, then succeeds. It records every payload pointer.
type scriptedStore struct {
	mu       sync.Mutex
	errs     []error
	payloads []*domain.Payload
}

func (s *scriptedStore) Insert(_ context.Context, _ string, p *domain.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

func (s *scriptedStore) calls() []*domain.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Payload(nil), s.payloads...)
}

// blockingStore holds every insert until release is closed. It ignores ctx on purpose.
type blockingStore struct {
	mu      sync.Mutex
	count   int
	started chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (s *blockingStore) Insert(_ context.Context, _ string, _ *domain.Payload) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.started <- struct{}{}
	<-s.release
	return nil
}

func (s *blockingStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// blockingDispatcher never returns from Dispatch until released.
type blockingDispatcher struct {
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(domain.Notification) {
	<-d.release
}

var errNetworkTimeout = errors.New("network timeout")

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
