package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionCount is the fixed number of answer options every question carries.
const OptionCount = 4

// Role distinguishes administrators from students.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleStudent       Role = "STUDENT"
)

// Identity is the authenticated caller supplied by the auth collaborator.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdministrator
}

// User is a student or administrator. Deactivation replaces hard deletes.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Module is an ordered, soft-deletable container of questions.
type Module struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
	// TimePerQuestion is the per-question limit in seconds; zero means unlimited.
	TimePerQuestion int        `json:"timePerQuestion"`
	Active          bool       `json:"active"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Playable reports whether students may start sessions on the module.
func (m Module) Playable() bool {
	return m.Active && m.DeletedAt == nil
}

// Question models an MCQ question with exactly four options and one correct index.
type Question struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"moduleId"`
	Prompt      string     `json:"prompt"`
	Options     []string   `json:"options"`
	Correct     int        `json:"correct"`
	Explanation string     `json:"explanation"`
	Category    string     `json:"category"`
	Context     string     `json:"context,omitempty"`
	Order       int        `json:"order"`
	Active      bool       `json:"active"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Playable reports whether the question can receive answers.
func (q Question) Playable() bool {
	return q.Active && q.DeletedAt == nil
}

// GameSession is one play-through of one module by one student.
type GameSession struct {
	ID             string              `json:"id"`
	UserID         string              `json:"userId"`
	ModuleID       string              `json:"moduleId"`
	Score          int                 `json:"score"`
	CorrectAnswers int                 `json:"correctAnswers"`
	TotalAnswered  int                 `json:"totalAnswered"`
	Streak         int                 `json:"streak"`
	MaxStreak      int                 `json:"maxStreak"`
	Nota           decimal.NullDecimal `json:"nota"`
	Finished       bool                `json:"finished"`
	IsBest         bool                `json:"isBest"`
	FinishedAt     *time.Time          `json:"finishedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Counters returns the running counters derived from the answer ledger.
func (s GameSession) Counters() Counters {
	return Counters{
		Score:          s.Score,
		CorrectAnswers: s.CorrectAnswers,
		TotalAnswered:  s.TotalAnswered,
		Streak:         s.Streak,
		MaxStreak:      s.MaxStreak,
	}
}

// Counters are the denormalized running totals of a session.
type Counters struct {
	Score          int `json:"score"`
	CorrectAnswers int `json:"correctAnswers"`
	TotalAnswered  int `json:"totalAnswered"`
	Streak         int `json:"streak"`
	MaxStreak      int `json:"maxStreak"`
}

// Apply folds one answer into the counters.
func (c Counters) Apply(a Answer) Counters {
	c.TotalAnswered++
	c.Score += a.Points
	if a.IsCorrect {
		c.CorrectAnswers++
		c.Streak++
	} else {
		c.Streak = 0
	}
	if c.Streak > c.MaxStreak {
		c.MaxStreak = c.Streak
	}
	return c
}

// ReplayAnswers rebuilds session counters from the ledger, in submission order.
func ReplayAnswers(answers []Answer) Counters {
	var c Counters
	for _, a := range answers {
		c = c.Apply(a)
	}
	return c
}

// Answer is an append-only ledger row for one submitted response.
type Answer struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	QuestionID     string    `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	Points         int       `json:"points"`
	TimeSpentMs    int64     `json:"timeSpentMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AnswerResult summarizes a recorded answer for the caller.
type AnswerResult struct {
	Answer        Answer      `json:"answer"`
	CorrectOption int         `json:"correctOption"`
	Explanation   string      `json:"explanation"`
	Session       GameSession `json:"session"`
}

// FinishResult is returned when a session is finalized.
type FinishResult struct {
	Session GameSession `json:"session"`
	// Transitioned is false when the session had already been finished.
	Transitioned bool `json:"transitioned"`
}

// StudentRef identifies a student in projections.
type StudentRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// BestSessionRow is one best+finished session joined with module metadata.
type BestSessionRow struct {
	ModuleID       string          `json:"moduleId"`
	ModuleTitle    string          `json:"moduleTitle"`
	ModuleOrder    int             `json:"moduleOrder"`
	SessionID      string          `json:"sessionId"`
	Nota           decimal.Decimal `json:"nota"`
	Score          int             `json:"score"`
	CorrectAnswers int             `json:"correctAnswers"`
	TotalAnswered  int             `json:"totalAnswered"`
	MaxStreak      int             `json:"maxStreak"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

// StudentBestSessions is the read projection consumed by the ranking aggregator.
type StudentBestSessions struct {
	Student  StudentRef       `json:"student"`
	Sessions []BestSessionRow `json:"sessions"`
}

// ModuleBreakdown is a per-module line in ranking and stats output.
type ModuleBreakdown struct {
	ModuleID       string          `json:"moduleId"`
	ModuleTitle    string          `json:"moduleTitle"`
	Nota           decimal.Decimal `json:"nota"`
	Score          int             `json:"score"`
	CorrectAnswers int             `json:"correctAnswers"`
	TotalAnswered  int             `json:"totalAnswered"`
	MaxStreak      int             `json:"maxStreak"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

// StudentSummary is the per-student aggregate over best sessions.
type StudentSummary struct {
	Student          StudentRef        `json:"student"`
	AverageNota      decimal.Decimal   `json:"averageNota"`
	ModulesCompleted int               `json:"modulesCompleted"`
	TotalCorrect     int               `json:"totalCorrect"`
	TotalScore       int               `json:"totalScore"`
	Modules          []ModuleBreakdown `json:"modules"`
}

// RankingEntry is a summary with its 1-based position.
type RankingEntry struct {
	Position int `json:"position"`
	StudentSummary
}

// Ranking captures the ordered leaderboard.
type Ranking struct {
	Entries   []RankingEntry `json:"entries"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
