package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"quiz-learning-service/internal/domain"
)

// RankingStore reads the best-session projection for every active student.
type RankingStore struct {
	pool *pgxpool.Pool
}

func NewRankingStore(pool *pgxpool.Pool) *RankingStore {
	return &RankingStore{pool: pool}
}

func (r *RankingStore) BestSessionsByStudent(ctx context.Context) ([]domain.StudentBestSessions, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name, u.phone,
		       b.module_id, b.module_title, b.module_order, b.session_id,
		       b.nota, b.score, b.correct_answers, b.total_answered, b.max_streak, b.finished_at
		FROM users u
		LEFT JOIN best_sessions b ON b.user_id = u.id
		WHERE u.active AND u.role = 'STUDENT'
		ORDER BY u.id, b.module_order, b.module_id`)
	if err != nil {
		return nil, fmt.Errorf("query best sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StudentBestSessions, 0)
	for rows.Next() {
		var (
			student                             domain.StudentRef
			moduleID, moduleTitle, sessionID    *string
			moduleOrder                         *int
			nota                                decimal.NullDecimal
			score, correct, answered, maxStreak *int
			finishedAt                          *time.Time
		)
		if err := rows.Scan(
			&student.ID, &student.Name, &student.Phone,
			&moduleID, &moduleTitle, &moduleOrder, &sessionID,
			&nota, &score, &correct, &answered, &maxStreak, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan best session: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].Student.ID != student.ID {
			out = append(out, domain.StudentBestSessions{Student: student, Sessions: []domain.BestSessionRow{}})
		}
		if sessionID == nil {
			continue
		}
		row := domain.BestSessionRow{
			ModuleID:       *moduleID,
			ModuleTitle:    *moduleTitle,
			ModuleOrder:    *moduleOrder,
			SessionID:      *sessionID,
			Nota:           nota.Decimal,
			Score:          *score,
			CorrectAnswers: *correct,
			TotalAnswered:  *answered,
			MaxStreak:      *maxStreak,
		}
		if finishedAt != nil {
			row.FinishedAt = *finishedAt
		}
		last := &out[len(out)-1]
		last.Sessions = append(last.Sessions, row)
	}
	return out, rows.Err()
}
