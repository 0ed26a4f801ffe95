package app

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quiz-learning-service/internal/domain"
)

// NotaPrecision is the number of decimal places kept on grades and averages.
const NotaPrecision = 3

// DefaultGradeScale is the full-grade value.
var DefaultGradeScale = decimal.NewFromInt(10)

// MaxGradeScale is the largest grade a session can store (NUMERIC(6,3)).
var MaxGradeScale = decimal.RequireFromString("999.999")

// ValidateGradeScale rejects scales that are not positive or that would
// produce grades beyond MaxGradeScale.
func ValidateGradeScale(scale decimal.Decimal) error {
	if !scale.IsPositive() || scale.GreaterThan(MaxGradeScale) {
		return domain.BadRequest("grade scale %s must be in (0, %s]", scale, MaxGradeScale)
	}
	return nil
}

// PointsInput describes one answer for a PointsPolicy.
type PointsInput struct {
	Correct   bool
	TimeSpent time.Duration
	// TimeLimit is zero when the module has no per-question limit.
	TimeLimit time.Duration
	// Streak is the session streak before this answer.
	Streak int
}

// PointsPolicy awards points for one answer. Implementations must be monotonic:
// less time on a correct answer, or a longer prior streak, never yields fewer points.
type PointsPolicy interface {
	Points(in PointsInput) int
}

// StreakSpeedPolicy pays Base for a correct answer plus a linear speed bonus
// and a capped streak bonus. Incorrect answers pay nothing.
type StreakSpeedPolicy struct {
	Base           int
	MaxSpeedBonus  int
	StreakStep     int
	MaxStreakBonus int
}

// DefaultPointsPolicy derives the bonus curve from the base points.
func DefaultPointsPolicy(base int) StreakSpeedPolicy {
	return StreakSpeedPolicy{
		Base:           base,
		MaxSpeedBonus:  base / 2,
		StreakStep:     base / 10,
		MaxStreakBonus: base / 2,
	}
}

func (p StreakSpeedPolicy) Points(in PointsInput) int {
	if !in.Correct {
		return 0
	}
	points := p.Base
	if in.TimeLimit > 0 && p.MaxSpeedBonus > 0 {
		spent := in.TimeSpent
		if spent < 0 {
			spent = 0
		}
		if spent > in.TimeLimit {
			spent = in.TimeLimit
		}
		points += int(int64(p.MaxSpeedBonus) * int64(in.TimeLimit-spent) / int64(in.TimeLimit))
	}
	if in.Streak > 0 && p.StreakStep > 0 && p.MaxStreakBonus > 0 {
		// capping the multiplier first keeps the product from overflowing
		streak := min(in.Streak, p.MaxStreakBonus)
		points += min(streak*p.StreakStep, p.MaxStreakBonus)
	}
	return points
}

// ComputeNota returns round3(correct/total * scale), rounding half up, or zero
// when nothing was answered.
func ComputeNota(correct, total int, scale decimal.Decimal) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(scale).
		DivRound(decimal.NewFromInt(int64(total)), NotaPrecision)
}

// CompareSessions orders finished sessions for best-attempt selection. It is
// positive when a beats b: higher nota, then higher score, then higher max
// streak, then earlier finish, then lower id.
func CompareSessions(a, b domain.GameSession) int {
	if c := a.Nota.Decimal.Cmp(b.Nota.Decimal); c != 0 {
		return c
	}
	if a.Score != b.Score {
		return sign(a.Score - b.Score)
	}
	if a.MaxStreak != b.MaxStreak {
		return sign(a.MaxStreak - b.MaxStreak)
	}
	at, bt := finishedAt(a), finishedAt(b)
	if !at.Equal(bt) {
		if at.Before(bt) {
			return 1
		}
		return -1
	}
	return -strings.Compare(a.ID, b.ID)
}

func finishedAt(s domain.GameSession) time.Time {
	if s.FinishedAt == nil {
		return time.Time{}
	}
	return *s.FinishedAt
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
