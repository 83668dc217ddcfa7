package lessonflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/lessons"
)

var (
	ErrSessionNotFound = errors.New("lessonflow: session not found")
	ErrLessonNotFound  = errors.New("lessonflow: lesson not found")
)

type Service struct {
	mu        sync.Mutex
	reg       *Registry
	eval      Evaluator
	reporters []Reporter
	log       *zap.Logger
	hearts    int
	now       func() time.Time
}

type Option func(*Service)

func WithHearts(n int) Option               { return func(s *Service) { s.hearts = n } }
func WithEvaluator(e Evaluator) Option      { return func(s *Service) { s.eval = e } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithReporter(r Reporter) Option {
	return func(s *Service) { s.reporters = append(s.reporters, r) }
}

func NewService(reg *Registry, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		reg:    reg,
		eval:   NewEvaluator(),
		log:    log,
		hearts: DefaultHearts,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create opens a new session for userID on lessonID in the intro stage.
func (s *Service) Create(ctx context.Context, userID, lessonID string) (*Session, error) {
	l := lessons.Get(lessonID)
	if l == nil {
		return nil, ErrLessonNotFound
	}
	sess := NewSession(uuid.NewString(), userID, l, s.eval, s.hearts, s.now)

	s.mu.Lock()
	s.reg.put(sess)
	out := sess.snapshot()
	s.mu.Unlock()
	return out, nil
}

// Get returns a copy of a session owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.reg.get(id)
	if !ok || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// Apply runs an action on a session. When the action finishes the session
// the completion is handed to every reporter; reporter failures are logged
// and do not roll the session back.
func (s *Service) Apply(ctx context.Context, userID, id string, a Action) (*Session, Feedback, error) {
	s.mu.Lock()
	sess, ok := s.reg.get(id)
	if !ok || sess.UserID != userID {
		s.mu.Unlock()
		return nil, Feedback{}, ErrSessionNotFound
	}
	wasFinished := sess.Finished()
	fb, err := sess.Apply(ctx, a)
	s.reg.put(sess)
	out := sess.snapshot()
	s.mu.Unlock()

	if err != nil {
		return out, fb, err
	}
	if !wasFinished && out.Finished() && out.Completion != nil {
		s.report(ctx, *out.Completion)
	}
	return out, fb, nil
}

func (s *Service) report(ctx context.Context, c Completion) {
	for _, r := range s.reporters {
		if err := r.LessonCompleted(ctx, c); err != nil {
			s.log.Error("lesson completion report failed",
				zap.String("session_id", c.SessionID),
				zap.String("user_id", c.UserID),
				zap.String("lesson_id", c.LessonID),
				zap.Error(err))
		}
	}
}

// Purge drops idle sessions; used by the scheduler.
func (s *Service) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Purge()
}
