package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/domain"
)

const uniqueViolation = "23505"

const sessionColumns = `id, user_id, module_id, score, correct_answers, total_answered, streak, max_streak, nota, finished, is_best, finished_at, created_at`

// SessionStore persists game sessions and the answer ledger with pgx.
// Every read-modify-write runs in a transaction holding the session row lock.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session domain.GameSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		session.ID, session.UserID, session.ModuleID, session.Score, session.CorrectAnswers,
		session.TotalAnswered, session.Streak, session.MaxStreak, session.Nota,
		session.Finished, session.IsBest, session.FinishedAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) FindByID(ctx context.Context, id string) (domain.GameSession, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) FindByUserAndModule(ctx context.Context, userID, moduleID string) ([]domain.GameSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE user_id = $1 AND module_id = $2
		ORDER BY created_at DESC, id DESC`, userID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *SessionStore) FindBestByUserAndModule(ctx context.Context, userID, moduleID string) (domain.GameSession, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE user_id = $1 AND module_id = $2 AND is_best`, userID, moduleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, domain.NotFound("no best session for module %s", moduleID)
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("load best session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) FindBestSessionsByUser(ctx context.Context, userID string) ([]domain.GameSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE user_id = $1 AND is_best AND finished
		ORDER BY module_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list best sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *SessionStore) RecordAnswer(ctx context.Context, sessionID string, build func(domain.GameSession) (domain.Answer, error)) (domain.Answer, domain.GameSession, error) {
	var (
		answer  domain.Answer
		session domain.GameSession
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		answer, err = build(locked)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO answers (id, session_id, question_id, selected_option, is_correct, points, time_spent_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			answer.ID, answer.SessionID, answer.QuestionID, answer.SelectedOption,
			answer.IsCorrect, answer.Points, answer.TimeSpentMs, answer.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "answers_session_question_key" {
				return domain.ErrQuestionAnswered
			}
			return fmt.Errorf("insert answer: %w", err)
		}

		c := locked.Counters().Apply(answer)
		_, err = tx.Exec(ctx, `
			UPDATE game_sessions
			SET score = $2, correct_answers = $3, total_answered = $4, streak = $5, max_streak = $6
			WHERE id = $1`,
			locked.ID, c.Score, c.CorrectAnswers, c.TotalAnswered, c.Streak, c.MaxStreak,
		)
		if err != nil {
			return fmt.Errorf("update counters: %w", err)
		}
		locked.Score = c.Score
		locked.CorrectAnswers = c.CorrectAnswers
		locked.TotalAnswered = c.TotalAnswered
		locked.Streak = c.Streak
		locked.MaxStreak = c.MaxStreak
		session = locked
		return nil
	})
	if err != nil {
		return domain.Answer{}, domain.GameSession{}, err
	}
	return answer, session, nil
}

func (s *SessionStore) Finish(ctx context.Context, sessionID string, finalize func(*domain.GameSession)) (domain.GameSession, bool, error) {
	var (
		session      domain.GameSession
		transitioned bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		session = locked
		if locked.Finished {
			return nil
		}

		finalize(&locked)
		_, err = tx.Exec(ctx, `
			UPDATE game_sessions SET finished = $2, finished_at = $3, nota = $4
			WHERE id = $1`,
			locked.ID, locked.Finished, locked.FinishedAt, locked.Nota,
		)
		if err != nil {
			return fmt.Errorf("finish session: %w", err)
		}
		session, transitioned = locked, true
		return nil
	})
	if err != nil {
		return domain.GameSession{}, false, err
	}
	return session, transitioned, nil
}

// WithBestSlot serializes consolidation per (user, module) with a transaction
// scoped advisory lock. The partial unique index on is_best backs it up.
func (s *SessionStore) WithBestSlot(ctx context.Context, userID, moduleID string, fn func(app.BestSlot) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "best:"+userID+"/"+moduleID); err != nil {
			return fmt.Errorf("lock best slot: %w", err)
		}
		return fn(&bestSlot{tx: tx, userID: userID, moduleID: moduleID})
	})
}

func (s *SessionStore) FindBySessionID(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, question_id, selected_option, is_correct, points, time_spent_ms, created_at
		FROM answers WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := make([]domain.Answer, 0)
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.SelectedOption, &a.IsCorrect, &a.Points, &a.TimeSpentMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *SessionStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type bestSlot struct {
	tx       pgx.Tx
	userID   string
	moduleID string
}

func (b *bestSlot) Current(ctx context.Context) (domain.GameSession, bool, error) {
	session, err := scanSession(b.tx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE user_id = $1 AND module_id = $2 AND is_best`, b.userID, b.moduleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, false, nil
	}
	if err != nil {
		return domain.GameSession{}, false, fmt.Errorf("load best session: %w", err)
	}
	return session, true, nil
}

func (b *bestSlot) ClearBest(ctx context.Context) error {
	_, err := b.tx.Exec(ctx, `
		UPDATE game_sessions SET is_best = FALSE
		WHERE user_id = $1 AND module_id = $2 AND is_best`, b.userID, b.moduleID)
	if err != nil {
		return fmt.Errorf("clear best: %w", err)
	}
	return nil
}

func (b *bestSlot) MarkBest(ctx context.Context, sessionID string) error {
	tag, err := b.tx.Exec(ctx, `
		UPDATE game_sessions SET is_best = TRUE
		WHERE id = $1 AND user_id = $2 AND module_id = $3 AND finished`, sessionID, b.userID, b.moduleID)
	if err != nil {
		return fmt.Errorf("mark best: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func lockSession(ctx context.Context, tx pgx.Tx, id string) (domain.GameSession, error) {
	session, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("lock session: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (domain.GameSession, error) {
	var s domain.GameSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.ModuleID, &s.Score, &s.CorrectAnswers, &s.TotalAnswered,
		&s.Streak, &s.MaxStreak, &s.Nota, &s.Finished, &s.IsBest, &s.FinishedAt, &s.CreatedAt,
	)
	return s, err
}

func collectSessions(rows pgx.Rows) ([]domain.GameSession, error) {
	defer rows.Close()
	out := make([]domain.GameSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}
