package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quiz-learning-service/internal/domain"
)

// GameObserver receives scoring events (metrics, tracing).
type GameObserver interface {
	AnswerRecorded(correct bool, points int)
	SessionFinished()
	BestPromoted()
}

// BestListener is told when a consolidation promotes a new best session.
type BestListener interface {
	BestChanged(ctx context.Context, session domain.GameSession)
}

// GameService contains the session scoring use cases: recording answers,
// finishing sessions and consolidating the best attempt per student and module.
type GameService struct {
	sessions  SessionRepository
	answers   AnswerRepository
	modules   ModuleFinder
	questions QuestionSource

	policy   PointsPolicy
	scale    decimal.Decimal
	now      func() time.Time
	newID    func() string
	observer GameObserver
	listener BestListener
}

// GameOption customizes a GameService.
type GameOption func(*GameService)

func WithPointsPolicy(policy PointsPolicy) GameOption {
	return func(g *GameService) { g.policy = policy }
}

func WithGradeScale(scale decimal.Decimal) GameOption {
	return func(g *GameService) { g.scale = scale }
}

// WithClock is mostly useful for deterministic timestamps in tests.
func WithClock(now func() time.Time) GameOption {
	return func(g *GameService) { g.now = now }
}

func WithObserver(observer GameObserver) GameOption {
	return func(g *GameService) { g.observer = observer }
}

func WithBestListener(listener BestListener) GameOption {
	return func(g *GameService) { g.listener = listener }
}

func NewGameService(sessions SessionRepository, answers AnswerRepository, modules ModuleFinder, questions QuestionSource, opts ...GameOption) *GameService {
	g := &GameService{
		sessions:  sessions,
		answers:   answers,
		modules:   modules,
		questions: questions,
		policy:    DefaultPointsPolicy(100),
		scale:     DefaultGradeScale,
		now:       time.Now,
		newID:     uuid.NewString,
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// StartSession opens an in-progress session for the caller on a playable module.
func (g *GameService) StartSession(ctx context.Context, who domain.Identity, moduleID string) (domain.GameSession, error) {
	module, err := g.playableModule(ctx, moduleID)
	if err != nil {
		return domain.GameSession{}, err
	}

	session := domain.GameSession{
		ID:        g.newID(),
		UserID:    who.UserID,
		ModuleID:  module.ID,
		CreatedAt: g.now(),
	}
	if err := g.sessions.Create(ctx, session); err != nil {
		return domain.GameSession{}, domain.Internal(err)
	}
	return session, nil
}

// RecordAnswer validates one submission against the session's module, appends
// it to the ledger and updates the running counters. Each question is
// answered at most once per session; a repeat is a Conflict.
func (g *GameService) RecordAnswer(ctx context.Context, who domain.Identity, sessionID, questionID string, selected int, timeSpent time.Duration) (domain.AnswerResult, error) {
	if selected < 0 || selected >= domain.OptionCount {
		return domain.AnswerResult{}, domain.ErrOptionOutOfRange
	}
	if timeSpent < 0 {
		return domain.AnswerResult{}, domain.BadRequest("time spent must not be negative")
	}

	session, err := g.ownedSession(ctx, who, sessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if session.Finished {
		return domain.AnswerResult{}, domain.ErrSessionFinished
	}

	module, err := g.playableModule(ctx, session.ModuleID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	question, err := g.moduleQuestion(ctx, module.ID, questionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	limit := time.Duration(module.TimePerQuestion) * time.Second
	answer, updated, err := g.sessions.RecordAnswer(ctx, session.ID, func(locked domain.GameSession) (domain.Answer, error) {
		if locked.Finished {
			return domain.Answer{}, domain.ErrSessionFinished
		}
		correct := selected == question.Correct
		return domain.Answer{
			ID:             g.newID(),
			SessionID:      locked.ID,
			QuestionID:     question.ID,
			SelectedOption: selected,
			IsCorrect:      correct,
			Points: g.policy.Points(PointsInput{
				Correct:   correct,
				TimeSpent: timeSpent,
				TimeLimit: limit,
				Streak:    locked.Streak,
			}),
			TimeSpentMs: timeSpent.Milliseconds(),
			CreatedAt:   g.now(),
		}, nil
	})
	if err != nil {
		return domain.AnswerResult{}, domain.Internal(err)
	}

	g.observer.AnswerRecorded(answer.IsCorrect, answer.Points)
	return domain.AnswerResult{
		Answer:        answer,
		CorrectOption: question.Correct,
		Explanation:   question.Explanation,
		Session:       updated,
	}, nil
}

// FinishSession finalizes a session and consolidates the best attempt.
// Finishing an already finished session leaves its grade untouched and only
// re-runs consolidation, so a retry after a failed consolidation repairs the
// best slot.
func (g *GameService) FinishSession(ctx context.Context, who domain.Identity, sessionID string) (domain.FinishResult, error) {
	session, err := g.ownedSession(ctx, who, sessionID)
	if err != nil {
		return domain.FinishResult{}, err
	}
	if session.Finished {
		return g.reconsolidate(ctx, session)
	}

	finished, transitioned, err := g.sessions.Finish(ctx, session.ID, func(s *domain.GameSession) {
		at := g.now()
		s.Finished = true
		s.FinishedAt = &at
		s.Nota = decimal.NewNullDecimal(ComputeNota(s.CorrectAnswers, s.TotalAnswered, g.scale))
	})
	if err != nil {
		return domain.FinishResult{}, domain.Internal(err)
	}
	if !transitioned {
		return g.reconsolidate(ctx, finished)
	}
	g.observer.SessionFinished()

	isBest, err := g.Consolidate(ctx, finished)
	if err != nil {
		return domain.FinishResult{}, err
	}
	finished.IsBest = isBest
	return domain.FinishResult{Session: finished, Transitioned: true}, nil
}

func (g *GameService) reconsolidate(ctx context.Context, session domain.GameSession) (domain.FinishResult, error) {
	isBest, err := g.Consolidate(ctx, session)
	if err != nil {
		return domain.FinishResult{}, err
	}
	session.IsBest = isBest
	return domain.FinishResult{Session: session}, nil
}

// Consolidate decides whether a finished session supersedes the pair's current
// best and swaps the flag when it does. The comparison and swap happen while
// the (user, module) slot is held.
func (g *GameService) Consolidate(ctx context.Context, session domain.GameSession) (bool, error) {
	if !session.Finished {
		return false, domain.Conflict("session %s is not finished", session.ID)
	}

	var isBest, promoted bool
	err := g.sessions.WithBestSlot(ctx, session.UserID, session.ModuleID, func(slot BestSlot) error {
		current, ok, err := slot.Current(ctx)
		if err != nil {
			return err
		}
		if ok && current.ID == session.ID {
			isBest = true
			return nil
		}
		if ok && CompareSessions(session, current) <= 0 {
			return nil
		}
		if err := slot.ClearBest(ctx); err != nil {
			return err
		}
		if err := slot.MarkBest(ctx, session.ID); err != nil {
			return err
		}
		isBest, promoted = true, true
		return nil
	})
	if err != nil {
		return false, domain.Internal(err)
	}

	if promoted {
		g.observer.BestPromoted()
		if g.listener != nil {
			session.IsBest = true
			g.listener.BestChanged(ctx, session)
		}
	}
	return isBest, nil
}

// SessionDetail is a session with its ledger and the counters replayed from it.
type SessionDetail struct {
	Session  domain.GameSession `json:"session"`
	Answers  []domain.Answer    `json:"answers"`
	Replayed domain.Counters    `json:"replayed"`
}

// GetSession returns the session and its answers. Administrators may read any session.
func (g *GameService) GetSession(ctx context.Context, who domain.Identity, sessionID string) (SessionDetail, error) {
	session, err := g.readableSession(ctx, who, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	answers, err := g.answers.FindBySessionID(ctx, session.ID)
	if err != nil {
		return SessionDetail{}, domain.Internal(err)
	}
	return SessionDetail{
		Session:  session,
		Answers:  answers,
		Replayed: domain.ReplayAnswers(answers),
	}, nil
}

// ListSessions returns the caller's sessions on a module, most recent first.
func (g *GameService) ListSessions(ctx context.Context, who domain.Identity, moduleID string) ([]domain.GameSession, error) {
	sessions, err := g.sessions.FindByUserAndModule(ctx, who.UserID, moduleID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return sessions, nil
}

// BestSession returns the caller's best session on a module.
func (g *GameService) BestSession(ctx context.Context, who domain.Identity, moduleID string) (domain.GameSession, error) {
	session, err := g.sessions.FindBestByUserAndModule(ctx, who.UserID, moduleID)
	if err != nil {
		return domain.GameSession{}, domain.Internal(err)
	}
	return session, nil
}

// BestSessions lists a student's best sessions. Students may only list their own.
func (g *GameService) BestSessions(ctx context.Context, who domain.Identity, userID string) ([]domain.GameSession, error) {
	if userID != who.UserID && !who.IsAdmin() {
		return nil, domain.Forbidden("cannot read another student's sessions")
	}
	sessions, err := g.sessions.FindBestSessionsByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return sessions, nil
}

// ModuleQuestions lists a playable module's questions for play, without answers.
func (g *GameService) ModuleQuestions(ctx context.Context, moduleID string) ([]domain.Question, error) {
	if _, err := g.playableModule(ctx, moduleID); err != nil {
		return nil, err
	}
	questions, err := g.questions.ModuleQuestions(ctx, moduleID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		q.Correct = -1
		q.Explanation = ""
		out = append(out, q)
	}
	return out, nil
}

// ownedSession loads a session the caller is allowed to play. Foreign sessions
// are reported as missing.
func (g *GameService) ownedSession(ctx context.Context, who domain.Identity, sessionID string) (domain.GameSession, error) {
	session, err := g.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return domain.GameSession{}, domain.Internal(err)
	}
	if session.UserID != who.UserID {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (g *GameService) readableSession(ctx context.Context, who domain.Identity, sessionID string) (domain.GameSession, error) {
	session, err := g.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return domain.GameSession{}, domain.Internal(err)
	}
	if session.UserID != who.UserID && !who.IsAdmin() {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (g *GameService) playableModule(ctx context.Context, moduleID string) (domain.Module, error) {
	module, err := g.modules.FindModule(ctx, moduleID)
	if err != nil {
		return domain.Module{}, domain.Internal(err)
	}
	if !module.Playable() {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	return module, nil
}

// moduleQuestion finds a playable question inside the module. Questions of other
// modules are reported as missing.
func (g *GameService) moduleQuestion(ctx context.Context, moduleID, questionID string) (domain.Question, error) {
	questions, err := g.questions.ModuleQuestions(ctx, moduleID)
	if err != nil {
		return domain.Question{}, domain.Internal(err)
	}
	for _, q := range questions {
		if q.ID == questionID && q.Playable() {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

type noopObserver struct{}

func (noopObserver) AnswerRecorded(bool, int) {}
func (noopObserver) SessionFinished()         {}
func (noopObserver) BestPromoted()            {}
