package app

import (
	"context"
	"time"

	"quiz-learning-service/internal/domain"
)

// SessionRepository abstracts how game sessions are stored (in-memory, Postgres).
type SessionRepository interface {
	Create(ctx context.Context, session domain.GameSession) error
	FindByID(ctx context.Context, id string) (domain.GameSession, error)
	// FindByUserAndModule returns the pair's sessions, most recent first.
	FindByUserAndModule(ctx context.Context, userID, moduleID string) ([]domain.GameSession, error)
	FindBestByUserAndModule(ctx context.Context, userID, moduleID string) (domain.GameSession, error)
	FindBestSessionsByUser(ctx context.Context, userID string) ([]domain.GameSession, error)

	// RecordAnswer locks the session, asks build for the answer derived from the
	// locked state, appends it to the ledger and folds it into the counters in
	// one atomic step.
	RecordAnswer(ctx context.Context, sessionID string, build func(domain.GameSession) (domain.Answer, error)) (domain.Answer, domain.GameSession, error)

	// Finish locks the session and, if it is still in progress, applies finalize
	// and stores the result. The bool reports whether the transition happened.
	Finish(ctx context.Context, sessionID string, finalize func(*domain.GameSession)) (domain.GameSession, bool, error)

	// WithBestSlot runs fn while holding the (user, module) best slot.
	WithBestSlot(ctx context.Context, userID, moduleID string, fn func(BestSlot) error) error
}

// BestSlot is the serialized view of one (student, module) pair's best flag.
type BestSlot interface {
	Current(ctx context.Context) (domain.GameSession, bool, error)
	ClearBest(ctx context.Context) error
	MarkBest(ctx context.Context, sessionID string) error
}

// AnswerRepository reads the append-only answer ledger.
type AnswerRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) ([]domain.Answer, error)
}

// ModuleFinder loads a single module regardless of its lifecycle state.
type ModuleFinder interface {
	FindModule(ctx context.Context, id string) (domain.Module, error)
}

// QuestionSource loads the playable questions of a module (from cache/backing store).
type QuestionSource interface {
	ModuleQuestions(ctx context.Context, moduleID string) ([]domain.Question, error)
}

// QuestionInvalidator drops cached questions after catalog edits.
type QuestionInvalidator interface {
	Invalidate(ctx context.Context, moduleID string) error
}

// CatalogRepository persists modules and questions with soft deletes.
type CatalogRepository interface {
	ModuleFinder
	CreateModule(ctx context.Context, module domain.Module) error
	UpdateModule(ctx context.Context, module domain.Module) error
	ListActiveModules(ctx context.Context) ([]domain.Module, error)
	SoftDeleteModule(ctx context.Context, id string, at time.Time) error

	CreateQuestion(ctx context.Context, question domain.Question) error
	// FindQuestion returns only active, non-deleted questions.
	FindQuestion(ctx context.Context, id string) (domain.Question, error)
	ListActiveQuestions(ctx context.Context, moduleID string) ([]domain.Question, error)
	SoftDeleteQuestion(ctx context.Context, id string, at time.Time) error
}

// UserRepository persists users; deactivation replaces deletion.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	FindUser(ctx context.Context, id string) (domain.User, error)
	FindActiveUserByPhone(ctx context.Context, phone string) (domain.User, error)
	DeactivateUser(ctx context.Context, id string) error
}

// RankingRepository is the read projection of best+finished sessions per active student.
// Students without best sessions are returned with an empty slice.
type RankingRepository interface {
	BestSessionsByStudent(ctx context.Context) ([]domain.StudentBestSessions, error)
}

// RankingCache stores the last computed ranking.
type RankingCache interface {
	Get(ctx context.Context) (domain.Ranking, bool, error)
	Set(ctx context.Context, ranking domain.Ranking) error
	Invalidate(ctx context.Context) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

// TokenIssuer issues and validates identity tokens.
type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
	Parse(token string) (domain.Identity, error)
}
