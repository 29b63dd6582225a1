package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"momentum-quiz-service/internal/domain"
)

// Flag keys shared with the landing site.
const (
	FlagSidebarCollapsed = "ma_sidebar_collapsed"
	FlagUpsellShown      = "mq_upsell_shown"
)

// SessionRepository abstracts how live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Definition, error)
}

// RecordStore persists Submission Payloads. Insert is called at most once per attempt.
type RecordStore interface {
	Insert(ctx context.Context, table string, payload *domain.Payload) error
}

// RecordLister reads stored submissions back for the admin view.
type RecordLister interface {
	List(ctx context.Context, table string, limit int) ([]domain.Record, error)
}

// Dispatcher hands a notification off for delivery. It must not block on delivery.
type Dispatcher interface {
	Dispatch(n domain.Notification)
}

// FlagStore keeps the boolean flags a browser persists per device.
type FlagStore interface {
	Get(ctx context.Context, clientID, key string) (bool, error)
	Set(ctx context.Context, clientID, key string, value bool) error
}

// Copy produces the panel copy shown around submission.
type Copy interface {
	Submitting() Panel
	Succeeded(messageID string) Panel
	Failed(reason string) Panel
	Text(messageID string) string
}

// CopyProvider selects copy for a language.
type CopyProvider interface {
	For(lang string) Copy
}

// Options carries the optional collaborators of QuizService.
type Options struct {
	Dispatcher    Dispatcher
	Flags         FlagStore
	Copy          CopyProvider
	SubmitTimeout time.Duration
	FlagTimeout   time.Duration
	Credit        CreditConfig
	Logger        *slog.Logger
	Now           func() time.Time
	NewID         func() string
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	records  RecordStore
	opts     Options
	log      *slog.Logger
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, records RecordStore, opts Options) *QuizService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.FlagTimeout <= 0 {
		opts.FlagTimeout = 2 * time.Second
	}
	if opts.Credit == (CreditConfig{}) {
		opts.Credit = DefaultCreditConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{sessions: sessions, quizzes: quizzes, records: records, opts: opts, log: logger}
}

// Quiz returns a quiz definition.
func (s *QuizService) Quiz(ctx context.Context, quizID string) (domain.Definition, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartSession creates a session on the first step of a quiz.
func (s *QuizService) StartSession(ctx context.Context, quizID, clientID, lang string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	session := newSession(s.opts.NewID(), quiz, sessionDeps{
		store:     s.records,
		timeout:   s.opts.SubmitTimeout,
		now:       s.opts.Now,
		newID:     s.opts.NewID,
		present:   s.present,
		succeeded: s.afterSuccess,
	})
	session.clientID = clientID
	session.lang = lang

	// The upsell flag is read once, when the session starts. Unknown reads as unseen.
	session.upsellUnseen = true
	if shown, ok := s.readFlag(ctx, clientID, FlagUpsellShown); ok {
		session.upsellUnseen = !shown
	}

	if err := session.Start(); err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	s.log.Info("quiz session started", "session", session.ID(), "quiz", quizID)
	return session, nil
}

// Session looks up a live session.
func (s *QuizService) Session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SetAnswer records values for a field on the visible step.
func (s *QuizService) SetAnswer(sessionID, field string, values []string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	if err := session.SetAnswer(field, values); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

// Advance moves to the next step when the visible one validates.
func (s *QuizService) Advance(sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	_, err = session.Advance()
	return session.View(), err
}

// Retreat moves to the previous step.
func (s *QuizService) Retreat(sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	_, err = session.Retreat()
	return session.View(), err
}

// Submit runs the submission lifecycle to a terminal state.
func (s *QuizService) Submit(ctx context.Context, sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	_, err = session.Submit(ctx)
	s.logSubmission(session, err)
	return session.View(), err
}

// Retry resubmits the payload of a failed attempt.
func (s *QuizService) Retry(ctx context.Context, sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	_, err = session.Retry(ctx)
	s.logSubmission(session, err)
	return session.View(), err
}

// Edit reopens a failed session for changes.
func (s *QuizService) Edit(sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	err = session.Edit()
	return session.View(), err
}

// View returns a session snapshot.
func (s *QuizService) View(sessionID string) (View, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan View, func(), error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Close drops a session.
func (s *QuizService) Close(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Score scores answers against a quiz without a session.
func (s *QuizService) Score(ctx context.Context, quizID string, answers domain.Answers) (domain.ScoreResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return Score(quiz.Scoring, answers), nil
}

// EstimateCredits returns the credit estimate for a set of answers.
func (s *QuizService) EstimateCredits(answers domain.Answers) CreditEstimate {
	return EstimateCredits(s.opts.Credit, answers)
}

// Text resolves a message ID for lang. Without a copy provider the ID comes back unchanged.
func (s *QuizService) Text(lang, messageID string) string {
	if s.opts.Copy == nil {
		return messageID
	}
	return s.opts.Copy.For(lang).Text(messageID)
}

// Flag reads a per-device flag. Missing flags read as false.
func (s *QuizService) Flag(ctx context.Context, clientID, key string) (bool, error) {
	if s.opts.Flags == nil || clientID == "" {
		return false, nil
	}
	return s.opts.Flags.Get(ctx, clientID, key)
}

// SetFlag writes a per-device flag.
func (s *QuizService) SetFlag(ctx context.Context, clientID, key string, value bool) error {
	if s.opts.Flags == nil || clientID == "" {
		return nil
	}
	return s.opts.Flags.Set(ctx, clientID, key, value)
}

// Records lists stored submissions of a quiz.
func (s *QuizService) Records(ctx context.Context, quizID string, limit int) ([]domain.Record, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	lister, ok := s.records.(RecordLister)
	if !ok {
		return nil, nil
	}
	return lister.List(ctx, quiz.Table, limit)
}

func (s *QuizService) readFlag(ctx context.Context, clientID, key string) (bool, bool) {
	if s.opts.Flags == nil || clientID == "" {
		return false, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.FlagTimeout)
	defer cancel()
	v, err := s.opts.Flags.Get(ctx, clientID, key)
	if err != nil {
		s.log.Warn("read flag", "client", clientID, "key", key, "error", err)
		return false, false
	}
	return v, true
}

// present decorates a snapshot with copy and the post-submit extras.
// It runs under the session lock and only reads immutable session fields.
func (s *QuizService) present(session *Session, v View) View {
	var c Copy
	if s.opts.Copy != nil {
		c = s.opts.Copy.For(session.lang)
	}
	quiz := session.quiz

	switch v.State {
	case domain.StateSubmitting:
		v.Panel = panelOrID(c, func(c Copy) Panel { return c.Submitting() }, Panel{Title: "SubmittingTitle", Message: "SubmittingMessage"})
	case domain.StateSucceeded:
		id := successMessageID(quiz, v.Result)
		v.Panel = panelOrID(c, func(c Copy) Panel { return c.Succeeded(id) }, Panel{Title: "SuccessTitle", Message: id})
		if quiz.CreditEstimate {
			est := EstimateCredits(s.opts.Credit, v.Answers)
			if c != nil {
				est.Note = c.Text(est.NoteID)
			}
			v.Credit = &est
		}
	case domain.StateFailed:
		reason := v.Failure
		fallback := Panel{Title: "FailureTitle", Message: "FailureGeneric"}
		if reason != "" {
			fallback.Message = reason
		}
		v.Panel = panelOrID(c, func(c Copy) Panel { return c.Failed(reason) }, fallback)
	}
	return v
}

func panelOrID(c Copy, fn func(Copy) Panel, fallback Panel) *Panel {
	if c == nil {
		return &fallback
	}
	p := fn(c)
	return &p
}

func successMessageID(quiz domain.Definition, result *domain.ScoreResult) string {
	if result != nil {
		if id, ok := quiz.Messages.Success[result.Tier]; ok {
			return id
		}
	}
	if quiz.Messages.SuccessDefault != "" {
		return quiz.Messages.SuccessDefault
	}
	return "SuccessDefault"
}

// afterSuccess runs once the succeeded state is final. Nothing here can change that state.
func (s *QuizService) afterSuccess(session *Session, payload *domain.Payload, result domain.ScoreResult) {
	if session.clientID != "" && s.opts.Flags != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.FlagTimeout)
		if err := s.opts.Flags.Set(ctx, session.clientID, FlagUpsellShown, true); err != nil {
			s.log.Warn("write upsell flag", "client", session.clientID, "error", err)
		}
		cancel()
	}

	if s.opts.Dispatcher == nil {
		return
	}
	for _, n := range BuildNotifications(session.quiz, payload, result) {
		s.opts.Dispatcher.Dispatch(n)
	}
}

func (s *QuizService) logSubmission(session *Session, err error) {
	if err != nil {
		s.log.Warn("quiz submission not completed", "session", session.ID(), "quiz", session.QuizID(), "error", err)
		return
	}
	s.log.Info("quiz submission stored", "session", session.ID(), "quiz", session.QuizID())
}

// BuildNotifications returns the applicant confirmation and, for staff tiers, a staff alert.
func BuildNotifications(quiz domain.Definition, payload *domain.Payload, result domain.ScoreResult) []domain.Notification {
	fields := make(map[string]string, len(payload.Fields))
	for name := range payload.Fields {
		fields[name] = payload.Text(name)
	}
	base := domain.Notification{
		Template:     quiz.Notify.Template,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		SubmissionID: payload.ID,
		Score:        result.Score,
		Tier:         result.Tier,
		Fields:       fields,
		Recipient: domain.Contact{
			Email: payload.Text(quiz.Contact.Email),
			Name:  payload.Text(quiz.Contact.Name),
			Phone: payload.Text(quiz.Contact.Phone),
		},
	}

	var out []domain.Notification
	if base.Recipient.Email != "" && base.Template != "" {
		n := base
		n.Kind = domain.NotifyApplicant
		out = append(out, n)
	}
	for _, tier := range quiz.Notify.StaffTiers {
		if tier == result.Tier {
			n := base
			n.Kind = domain.NotifyStaff
			n.Template = "staff_alert"
			out = append(out, n)
			break
		}
	}
	return out
}
