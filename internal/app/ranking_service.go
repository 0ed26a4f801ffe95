package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"quiz-learning-service/internal/domain"
)

// RankingService projects best sessions into the leaderboard and student statistics.
type RankingService struct {
	repo  RankingRepository
	cache RankingCache
	feed  *RankingFeed
	now   func() time.Time

	// generation counts promotions; a snapshot read under an older generation
	// is never written to the cache.
	cacheMu    sync.Mutex
	generation uint64
}

// NewRankingService wires the projection. cache may be nil.
func NewRankingService(repo RankingRepository, cache RankingCache) *RankingService {
	return &RankingService{
		repo:  repo,
		cache: cache,
		feed:  NewRankingFeed(),
		now:   time.Now,
	}
}

// BuildRanking returns students with at least one best session, best first.
// A cached snapshot may lag a consolidation that just happened.
func (r *RankingService) BuildRanking(ctx context.Context) (domain.Ranking, error) {
	gen := r.currentGeneration()
	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx); err == nil && ok {
			return cached, nil
		}
	}

	summaries, err := r.summaries(ctx)
	if err != nil {
		return domain.Ranking{}, err
	}
	entries := make([]domain.RankingEntry, 0, len(summaries))
	for _, s := range summaries {
		if s.ModulesCompleted == 0 {
			continue
		}
		entries = append(entries, domain.RankingEntry{
			Position:       len(entries) + 1,
			StudentSummary: s,
		})
	}
	ranking := domain.Ranking{Entries: entries, UpdatedAt: r.now()}

	r.store(ctx, gen, ranking)
	return ranking, nil
}

func (r *RankingService) currentGeneration() uint64 {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	return r.generation
}

// store caches ranking unless a promotion happened since gen was read.
func (r *RankingService) store(ctx context.Context, gen uint64, ranking domain.Ranking) {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if r.generation != gen {
		return
	}
	// a failed cache write only costs a recomputation
	_ = r.cache.Set(ctx, ranking)
}

// BuildStudentStats returns every active student, including those without
// best sessions, in ranking order.
func (r *RankingService) BuildStudentStats(ctx context.Context) ([]domain.StudentSummary, error) {
	return r.summaries(ctx)
}

// AllStudentStats is the administrator view over every active student.
func (r *RankingService) AllStudentStats(ctx context.Context, who domain.Identity) ([]domain.StudentSummary, error) {
	if !who.IsAdmin() {
		return nil, domain.Forbidden("administrator role required")
	}
	return r.summaries(ctx)
}

// StudentStats returns a single student's summary.
func (r *RankingService) StudentStats(ctx context.Context, who domain.Identity, userID string) (domain.StudentSummary, error) {
	if userID != who.UserID && !who.IsAdmin() {
		return domain.StudentSummary{}, domain.Forbidden("cannot read another student's stats")
	}
	summaries, err := r.summaries(ctx)
	if err != nil {
		return domain.StudentSummary{}, err
	}
	for _, s := range summaries {
		if s.Student.ID == userID {
			return s, nil
		}
	}
	return domain.StudentSummary{}, domain.ErrUserNotFound
}

// BestChanged drops the cached ranking and pushes a fresh one to subscribers.
func (r *RankingService) BestChanged(ctx context.Context, _ domain.GameSession) {
	r.cacheMu.Lock()
	r.generation++
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx)
	}
	r.cacheMu.Unlock()
	if !r.feed.HasSubscribers() {
		return
	}
	ranking, err := r.BuildRanking(ctx)
	if err != nil {
		return
	}
	r.feed.Publish(ranking)
}

// Subscribe returns a channel of ranking snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *RankingService) Subscribe(ctx context.Context) (<-chan domain.Ranking, func(), error) {
	initial, err := r.BuildRanking(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := r.feed.Subscribe(initial)
	return ch, cancel, nil
}

func (r *RankingService) summaries(ctx context.Context) ([]domain.StudentSummary, error) {
	rows, err := r.repo.BestSessionsByStudent(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	summaries := make([]domain.StudentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summarize(row))
	}
	SortSummaries(summaries)
	return summaries, nil
}

// Summarize aggregates one student's best sessions. The average is rounded
// half up to NotaPrecision places; no sessions yields zero.
func Summarize(row domain.StudentBestSessions) domain.StudentSummary {
	summary := domain.StudentSummary{
		Student:     row.Student,
		AverageNota: decimal.Zero,
		Modules:     make([]domain.ModuleBreakdown, 0, len(row.Sessions)),
	}
	total := decimal.Zero
	for _, s := range row.Sessions {
		total = total.Add(s.Nota)
		summary.TotalCorrect += s.CorrectAnswers
		summary.TotalScore += s.Score
		summary.Modules = append(summary.Modules, domain.ModuleBreakdown{
			ModuleID:       s.ModuleID,
			ModuleTitle:    s.ModuleTitle,
			Nota:           s.Nota,
			Score:          s.Score,
			CorrectAnswers: s.CorrectAnswers,
			TotalAnswered:  s.TotalAnswered,
			MaxStreak:      s.MaxStreak,
			FinishedAt:     s.FinishedAt,
		})
	}
	summary.ModulesCompleted = len(row.Sessions)
	if summary.ModulesCompleted > 0 {
		summary.AverageNota = total.DivRound(decimal.NewFromInt(int64(summary.ModulesCompleted)), NotaPrecision)
	}

	orders := make(map[string]int, len(row.Sessions))
	for _, s := range row.Sessions {
		orders[s.ModuleID] = s.ModuleOrder
	}
	sort.SliceStable(summary.Modules, func(i, j int) bool {
		mi, mj := summary.Modules[i], summary.Modules[j]
		if orders[mi.ModuleID] != orders[mj.ModuleID] {
			return orders[mi.ModuleID] < orders[mj.ModuleID]
		}
		return mi.ModuleID < mj.ModuleID
	})
	return summary
}

// SortSummaries orders by average nota desc, then modules completed desc,
// total correct answers desc, student name and finally student id.
func SortSummaries(summaries []domain.StudentSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if c := a.AverageNota.Cmp(b.AverageNota); c != 0 {
			return c > 0
		}
		if a.ModulesCompleted != b.ModulesCompleted {
			return a.ModulesCompleted > b.ModulesCompleted
		}
		if a.TotalCorrect != b.TotalCorrect {
			return a.TotalCorrect > b.TotalCorrect
		}
		if c := strings.Compare(a.Student.Name, b.Student.Name); c != 0 {
			return c < 0
		}
		return a.Student.ID < b.Student.ID
	})
}
