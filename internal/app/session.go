package app

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"momentum-quiz-service/internal/domain"
)

// Validation is the outcome of checking one step's required fields.
type Validation struct {
	StepIndex     int      `json:"step_index"`
	Valid         bool     `json:"valid"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
}

// FirstInvalidField is the field the caller should surface, or "".
func (v Validation) FirstInvalidField() string {
	if len(v.InvalidFields) == 0 {
		return ""
	}
	return v.InvalidFields[0]
}

// Err returns a *domain.ValidationError when the step is invalid.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &domain.ValidationError{StepIndex: v.StepIndex, Fields: append([]string(nil), v.InvalidFields...)}
}

// Controls tells a front end which commands are currently available.
type Controls struct {
	Back   bool `json:"back"`
	Next   bool `json:"next"`
	Submit bool `json:"submit"`
	Retry  bool `json:"retry"`
	Edit   bool `json:"edit"`
}

// Panel is the localized copy of the submit panel.
type Panel struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// View is a snapshot of a session for presentation.
type View struct {
	SessionID     string                 `json:"session_id"`
	QuizID        string                 `json:"quiz_id"`
	State         domain.SubmissionState `json:"state"`
	Step          domain.Step            `json:"step"`
	StepIndex     int                    `json:"step_index"`
	TotalSteps    int                    `json:"total_steps"`
	Percent       int                    `json:"percent"`
	AtFirst       bool                   `json:"at_first"`
	AtLast        bool                   `json:"at_last"`
	Controls      Controls               `json:"controls"`
	Answers       domain.Answers         `json:"answers"`
	InvalidFields []string               `json:"invalid_fields,omitempty"`
	Result        *domain.ScoreResult    `json:"result,omitempty"`
	SubmissionID  string                 `json:"submission_id,omitempty"`
	Failure       string                 `json:"failure,omitempty"`
	Panel         *Panel                 `json:"panel,omitempty"`
	ShowUpsell    bool                   `json:"show_upsell,omitempty"`
	Credit        *CreditEstimate        `json:"credit,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// sessionDeps are the collaborators a session drives during submission.
type sessionDeps struct {
	store   RecordStore
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	// present decorates a raw snapshot with copy; it must be pure.
	present func(*Session, View) View
	// succeeded runs after the succeeded state is final. It is never awaited.
	succeeded func(*Session, *domain.Payload, domain.ScoreResult)
}

// Session is one user's pass through a quiz: step pointer, Answer Set and Submission State.
type Session struct {
	id       string
	clientID string
	lang     string
	quiz     domain.Definition
	deps     sessionDeps

	mu           sync.Mutex
	state        domain.SubmissionState
	current      int
	answers      domain.Answers
	invalid      []string
	payload      *domain.Payload
	result       *domain.ScoreResult
	failure      string
	upsellUnseen bool
	updatedAt    time.Time
	subscribers  map[chan View]struct{}
}

func newSession(id string, quiz domain.Definition, deps sessionDeps) *Session {
	if deps.now == nil {
		deps.now = time.Now
	}
	return &Session{
		id:          id,
		quiz:        quiz.Normalize(),
		deps:        deps,
		state:       domain.StateNotStarted,
		answers:     make(domain.Answers),
		updatedAt:   deps.now(),
		subscribers: make(map[chan View]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// QuizID returns the identifier of the quiz being taken.
func (s *Session) QuizID() string { return s.quiz.ID }

// ClientID returns the browser/device the session was started from.
func (s *Session) ClientID() string { return s.clientID }

// Lang returns the language chosen when the session started.
func (s *Session) Lang() string { return s.lang }

// UpdatedAt reports the last time the session changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// State returns the current Submission State.
func (s *Session) State() domain.SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves a new session to the first step.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateNotStarted {
		return domain.ErrNotActive
	}
	s.state = domain.StateActive
	s.goToStep(0)
	s.broadcastLocked()
	return nil
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetAnswer replaces the values of a field on the visible step and clears its failure marker.
// An empty values slice clears the answer.
func (s *Session) SetAnswer(field string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateActive {
		return domain.ErrNotActive
	}

	f, ok := s.quiz.Steps[s.current].Field(field)
	if !ok {
		if _, _, exists := s.quiz.Field(field); exists {
			return domain.ErrFieldNotOnStep
		}
		return domain.ErrFieldNotFound
	}

	cleaned, err := cleanValues(f, values)
	if err != nil {
		return err
	}
	if len(cleaned) == 0 {
		delete(s.answers, field)
	} else {
		s.answers[field] = cleaned
	}
	s.clearMarker(field)
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// ValidateCurrentStep checks the visible step and replaces any earlier failure markers.
func (s *Session) ValidateCurrentStep() Validation {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.validateStep(s.current)
	s.invalid = v.InvalidFields
	s.broadcastLocked()
	return v
}

// Advance validates the visible step and moves forward when it is valid.
// It reports whether the step changed; on the last step it is a no-op.
func (s *Session) Advance() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateActive {
		return false, domain.ErrNotActive
	}

	v := s.validateStep(s.current)
	s.invalid = v.InvalidFields
	if !v.Valid {
		s.touchLocked()
		s.broadcastLocked()
		return false, v.Err()
	}
	if s.current == len(s.quiz.Steps)-1 {
		return false, nil
	}
	s.goToStep(s.current + 1)
	s.touchLocked()
	s.broadcastLocked()
	return true, nil
}

// Retreat moves back one step without validation.
func (s *Session) Retreat() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateActive {
		return false, domain.ErrNotActive
	}
	if s.current == 0 {
		return false, nil
	}
	s.goToStep(s.current - 1)
	s.touchLocked()
	s.broadcastLocked()
	return true, nil
}

// Submit validates every step, assembles the payload and inserts it into the record store.
// Only one attempt is ever in flight; a concurrent call gets ErrSubmissionInFlight.
func (s *Session) Submit(ctx context.Context) (domain.ScoreResult, error) {
	s.mu.Lock()
	switch s.state {
	case domain.StateActive:
	case domain.StateSubmitting:
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrSubmissionInFlight
	case domain.StateSucceeded:
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrAlreadySubmitted
	default:
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrNotActive
	}
	if s.current != len(s.quiz.Steps)-1 {
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrNotAtLastStep
	}

	// Earlier steps are checked too so a navigation bug cannot slip an empty field through.
	for i := range s.quiz.Steps {
		v := s.validateStep(i)
		if !v.Valid {
			s.goToStep(i)
			s.invalid = v.InvalidFields
			s.touchLocked()
			s.broadcastLocked()
			s.mu.Unlock()
			return domain.ScoreResult{}, v.Err()
		}
	}

	result := Score(s.quiz.Scoring, s.answers)
	payload := s.assemblePayload(result)
	s.invalid = nil
	s.result = &result
	s.payload = payload
	s.failure = ""
	s.state = domain.StateSubmitting
	s.touchLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	return s.attempt(ctx, payload, result)
}

// Retry resubmits the payload assembled by the failed attempt. Answers are not re-read.
func (s *Session) Retry(ctx context.Context) (domain.ScoreResult, error) {
	s.mu.Lock()
	switch s.state {
	case domain.StateFailed:
	case domain.StateSubmitting:
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrSubmissionInFlight
	default:
		s.mu.Unlock()
		return domain.ScoreResult{}, domain.ErrNothingToRetry
	}
	payload, result := s.payload, *s.result
	s.failure = ""
	s.state = domain.StateSubmitting
	s.touchLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	return s.attempt(ctx, payload, result)
}

// Edit abandons a failed submission and reopens the form so answers can change.
func (s *Session) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateFailed {
		return domain.ErrNothingToRetry
	}
	s.state = domain.StateActive
	s.payload = nil
	s.result = nil
	s.failure = ""
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// Payload returns the assembled Submission Payload, or nil before submission.
func (s *Session) Payload() *domain.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func (s *Session) attempt(ctx context.Context, payload *domain.Payload, result domain.ScoreResult) (domain.ScoreResult, error) {
	callCtx := ctx
	if s.deps.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.deps.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.deps.store.Insert(callCtx, s.quiz.Table, payload)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		// A store that ignores ctx must not keep the session in submitting.
		err = callCtx.Err()
	}

	s.mu.Lock()
	if err != nil {
		reason := failureReason(err)
		s.state = domain.StateFailed
		s.failure = reason
		s.touchLocked()
		s.broadcastLocked()
		s.mu.Unlock()
		return result, &domain.SubmissionError{Reason: reason, Err: err}
	}
	s.state = domain.StateSucceeded
	s.touchLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	if s.deps.succeeded != nil {
		go s.deps.succeeded(s, payload, result)
	}
	return result, nil
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrSubmitTimeout.Error()
	}
	if errors.Is(err, context.Canceled) {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

// goToStep clamps target into range and moves the step pointer. Caller holds mu.
func (s *Session) goToStep(target int) {
	last := len(s.quiz.Steps) - 1
	s.current = max(0, min(target, last))
	s.invalid = nil
}

func (s *Session) validateStep(index int) Validation {
	step := s.quiz.Steps[index]
	v := Validation{StepIndex: index, Valid: true}
	for _, f := range step.Fields {
		if !f.Required {
			continue
		}
		if !s.fieldFilled(f) {
			v.Valid = false
			v.InvalidFields = append(v.InvalidFields, f.Name)
		}
	}
	return v
}

func (s *Session) fieldFilled(f domain.Field) bool {
	switch f.Kind {
	case domain.FieldText:
		return strings.TrimSpace(s.answers.Value(f.Name)) != ""
	case domain.FieldSingleChoice:
		// A group rendered with no options can never be answered.
		if len(f.Options) == 0 {
			return false
		}
		return f.HasOption(s.answers.Value(f.Name))
	case domain.FieldMultiChoice:
		return distinctCount(s.answers[f.Name]) > 0
	}
	return false
}

func (s *Session) clearMarker(field string) {
	kept := s.invalid[:0:0]
	for _, name := range s.invalid {
		if name != field {
			kept = append(kept, name)
		}
	}
	s.invalid = kept
}

func (s *Session) assemblePayload(result domain.ScoreResult) *domain.Payload {
	fields := make(map[string]any, len(s.answers))
	for _, step := range s.quiz.Steps {
		for _, f := range step.Fields {
			vals, ok := s.answers[f.Name]
			if !ok || len(vals) == 0 {
				continue
			}
			if f.Kind == domain.FieldMultiChoice {
				fields[f.Name] = append([]string(nil), vals...)
			} else {
				fields[f.Name] = vals[0]
			}
		}
	}
	id := ""
	if s.deps.newID != nil {
		id = s.deps.newID()
	}
	return &domain.Payload{
		ID:        id,
		QuizID:    s.quiz.ID,
		Source:    s.quiz.Source,
		Fields:    fields,
		Score:     result.Score,
		Tier:      result.Tier,
		CreatedAt: s.deps.now(),
	}
}

func cleanValues(f domain.Field, values []string) ([]string, error) {
	switch f.Kind {
	case domain.FieldText:
		if len(values) > 1 {
			return nil, domain.ErrTooManyValues
		}
		if len(values) == 0 || values[0] == "" {
			return nil, nil
		}
		return []string{values[0]}, nil
	case domain.FieldSingleChoice:
		if len(values) > 1 {
			return nil, domain.ErrTooManyValues
		}
		if len(values) == 0 || values[0] == "" {
			return nil, nil
		}
		if !f.HasOption(values[0]) {
			return nil, domain.ErrUnknownOption
		}
		return []string{values[0]}, nil
	default:
		out := make([]string, 0, len(values))
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			if !f.HasOption(v) {
				return nil, domain.ErrUnknownOption
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
		return out, nil
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = s.deps.now()
}

// Subscribe returns a channel of snapshots taken on every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	// The initial snapshot goes in under the lock so no broadcast can overtake it.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	v := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- v:
		default:
			// Drop the oldest snapshot so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (s *Session) snapshotLocked() View {
	total := len(s.quiz.Steps)
	active := s.state == domain.StateActive
	atFirst := s.current == 0
	atLast := s.current == total-1

	v := View{
		SessionID:     s.id,
		QuizID:        s.quiz.ID,
		State:         s.state,
		Step:          s.quiz.Steps[s.current],
		StepIndex:     s.current,
		TotalSteps:    total,
		Percent:       progressPercent(s.current, total),
		AtFirst:       atFirst,
		AtLast:        atLast,
		Answers:       s.answers.Clone(),
		InvalidFields: append([]string(nil), s.invalid...),
		Failure:       s.failure,
		UpdatedAt:     s.updatedAt,
		Controls: Controls{
			Back:   active && !atFirst,
			Next:   active && !atLast,
			Submit: active && atLast,
			Retry:  s.state == domain.StateFailed,
			Edit:   s.state == domain.StateFailed,
		},
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	if s.payload != nil {
		v.SubmissionID = s.payload.ID
	}
	v.ShowUpsell = s.state == domain.StateSucceeded && s.upsellUnseen
	if s.deps.present != nil {
		v = s.deps.present(s, v)
	}
	return v
}

func progressPercent(current, total int) int {
	if total <= 1 {
		return 100
	}
	return int(math.Round(float64(current) / float64(total-1) * 100))
}
