package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
)

var (
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	ErrDeadlinePassed   = errors.New("attempt deadline passed")
	ErrNoQuestions      = errors.New("question bank has no exam questions")
	ErrUnknownQuestion  = errors.New("question is not part of this attempt")
	ErrInvalidIndex     = errors.New("question index out of range")
)

// EventRecorder is the append side of the event log.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

// ActivityRecorder is told when a learner finishes an exam.
type ActivityRecorder interface {
	Touch(ctx context.Context, userID string, at time.Time) (progress.Streak, error)
}

type Service struct {
	mu        sync.Mutex
	store     *SQLStore
	questions question.Store
	checker   *question.Checker
	blueprint Blueprint
	scale     ScaleMapper
	events    EventRecorder
	activity  ActivityRecorder
	eventType string
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithBlueprint(b Blueprint) Option       { return func(s *Service) { s.blueprint = b } }
func WithScale(m ScaleMapper) Option         { return func(s *Service) { s.scale = m } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }
func WithActivity(a ActivityRecorder) Option { return func(s *Service) { s.activity = a } }
func WithEvents(e EventRecorder, typ string) Option {
	return func(s *Service) { s.events, s.eventType = e, typ }
}

func NewService(store *SQLStore, questions question.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		questions: questions,
		checker:   question.NewChecker(nil),
		blueprint: NewBlueprint(FullExamQuestions, DefaultTimeLimit),
		scale:     ScaleFor("toeic.v1"),
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Blueprint() Blueprint { return s.blueprint }

// Start draws questions part by part and opens a timed attempt. Parts the
// bank cannot fill are filled with what exists.
func (s *Service) Start(ctx context.Context, userID string) (View, error) {
	var ids []string
	for _, p := range s.blueprint.Parts {
		qs, err := s.questions.Draw(ctx, p.Category, p.Count)
		if err != nil {
			return View{}, fmt.Errorf("draw %s: %w", p.Category, err)
		}
		for _, q := range qs {
			ids = append(ids, q.ID)
		}
	}
	if len(ids) == 0 {
		return View{}, ErrNoQuestions
	}
	now := s.now()
	a := Attempt{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuestionIDs: ids,
		Answers:     map[string]question.Answer{},
		Status:      StatusInProgress,
		StartedAt:   now.Unix(),
		Deadline:    now.Add(s.blueprint.TimeLimit).Unix(),
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return View{}, err
	}
	return s.view(ctx, a)
}

// Get returns the attempt, closing it first if its deadline has passed.
func (s *Service) Get(ctx context.Context, userID, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	if a.Open() && s.expired(a) {
		if a, err = s.finish(ctx, a, StatusExpired); err != nil {
			return View{}, err
		}
	}
	return s.view(ctx, a)
}

func (s *Service) Answer(ctx context.Context, userID, id, questionID string, ans question.Answer) (View, error) {
	return s.mutate(ctx, userID, id, func(a *Attempt) error {
		if !a.has(questionID) {
			return ErrUnknownQuestion
		}
		a.Answers[questionID] = ans
		return nil
	})
}

func (s *Service) Navigate(ctx context.Context, userID, id string, index int) (View, error) {
	return s.mutate(ctx, userID, id, func(a *Attempt) error {
		if index < 0 || index >= len(a.QuestionIDs) {
			return ErrInvalidIndex
		}
		a.Current = index
		return nil
	})
}

// Advance moves to the next question. A blur advance is also counted, since
// it means the learner left the exam page.
func (s *Service) Advance(ctx context.Context, userID, id, reason string) (View, error) {
	return s.mutate(ctx, userID, id, func(a *Attempt) error {
		if reason == ReasonBlur {
			a.BlurCount++
		}
		if a.Current+1 < len(a.QuestionIDs) {
			a.Current++
		}
		return nil
	})
}

// Submit grades and closes the attempt. Submitting a closed attempt returns
// it unchanged.
func (s *Service) Submit(ctx context.Context, userID, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	if !a.Open() {
		return s.view(ctx, a)
	}
	status := StatusSubmitted
	if s.expired(a) {
		status = StatusExpired
	}
	if a, err = s.finish(ctx, a, status); err != nil {
		return View{}, err
	}
	return s.view(ctx, a)
}

// mutate applies fn to an open attempt. Past the deadline the attempt is
// submitted instead and ErrDeadlinePassed is returned with its final view.
func (s *Service) mutate(ctx context.Context, userID, id string, fn func(*Attempt) error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(ctx, userID, id)
	if err != nil {
		return View{}, err
	}
	if !a.Open() {
		return View{}, ErrAttemptSubmitted
	}
	if s.expired(a) {
		if a, err = s.finish(ctx, a, StatusExpired); err != nil {
			return View{}, err
		}
		v, err := s.view(ctx, a)
		if err != nil {
			return View{}, err
		}
		return v, ErrDeadlinePassed
	}
	if err := fn(&a); err != nil {
		return View{}, err
	}
	if err := s.store.SaveProgress(ctx, a); err != nil {
		return View{}, err
	}
	return s.view(ctx, a)
}

func (s *Service) load(ctx context.Context, userID, id string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (s *Service) expired(a Attempt) bool {
	return s.now().Unix() >= a.Deadline
}

func (s *Service) finish(ctx context.Context, a Attempt, status string) (Attempt, error) {
	qs, err := s.questions.GetMany(ctx, a.QuestionIDs)
	if err != nil {
		return Attempt{}, fmt.Errorf("load questions: %w", err)
	}
	raw, err := s.grade(ctx, a, qs)
	if err != nil {
		return Attempt{}, err
	}
	scaled := s.scale.Scale(raw)

	now := s.now()
	a.Status = status
	a.SubmittedAt = now.Unix()
	r := Result{
		ID:              uuid.NewString(),
		AttemptID:       a.ID,
		UserID:          a.UserID,
		ListeningRaw:    raw.ListeningCorrect,
		ListeningTotal:  raw.ListeningTotal,
		ReadingRaw:      raw.ReadingCorrect,
		ReadingTotal:    raw.ReadingTotal,
		ListeningScaled: scaled.Listening,
		ReadingScaled:   scaled.Reading,
		TotalScaled:     scaled.Total,
		CreatedAt:       now.Unix(),
	}
	if err := s.store.Finish(ctx, a, r); err != nil {
		return Attempt{}, err
	}

	if s.activity != nil {
		if _, err := s.activity.Touch(ctx, a.UserID, now); err != nil {
			s.log.Error("exam streak update failed", zap.String("attempt_id", a.ID), zap.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.Record(ctx, s.eventType, a.UserID, r); err != nil {
			s.log.Error("exam event append failed", zap.String("attempt_id", a.ID), zap.Error(err))
		}
	}
	return a, nil
}

// grade counts correct questions per section. Every question is worth one
// point; a gap question only scores when every gap is right.
func (s *Service) grade(ctx context.Context, a Attempt, qs map[string]question.Question) (Raw, error) {
	var raw Raw
	for _, id := range a.QuestionIDs {
		q, ok := qs[id]
		if !ok {
			continue
		}
		got := 0
		if ans, answered := a.Answers[id]; answered {
			res, err := s.checker.Check(ctx, q, ans)
			if err == nil && res.Correct {
				got = 1
			}
		}
		switch q.Category.Section() {
		case question.SectionListening:
			raw.ListeningCorrect += got
			raw.ListeningTotal++
		case question.SectionReading:
			raw.ReadingCorrect += got
			raw.ReadingTotal++
		}
	}
	return raw, nil
}

func (s *Service) view(ctx context.Context, a Attempt) (View, error) {
	qs, err := s.questions.GetMany(ctx, a.QuestionIDs)
	if err != nil {
		return View{}, err
	}
	v := View{Attempt: a, Questions: make([]question.Question, 0, len(a.QuestionIDs))}
	for _, id := range a.QuestionIDs {
		q, ok := qs[id]
		if !ok {
			continue
		}
		if a.Open() {
			q = q.Public()
		}
		v.Questions = append(v.Questions, q)
	}
	if a.Open() {
		v.RemainingSec = max(0, a.Deadline-s.now().Unix())
		return v, nil
	}
	r, err := s.store.GetResult(ctx, a.ID)
	if err != nil && !errors.Is(err, ErrResultNotFound) {
		return View{}, err
	}
	if err == nil {
		v.Result = &r
	}
	return v, nil
}

// History lists a user's attempts without question bodies.
func (s *Service) History(ctx context.Context, userID string) ([]Attempt, error) {
	return s.store.ListAttempts(ctx, userID, 20)
}
