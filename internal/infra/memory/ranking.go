package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-learning-service/internal/domain"
)

// RankingProjection joins best sessions with active students and module metadata.
type RankingProjection struct {
	sessions *SessionStore
	catalog  *CatalogStore
}

func NewRankingProjection(sessions *SessionStore, catalog *CatalogStore) *RankingProjection {
	return &RankingProjection{sessions: sessions, catalog: catalog}
}

func (p *RankingProjection) BestSessionsByStudent(ctx context.Context) ([]domain.StudentBestSessions, error) {
	best := p.sessions.bestSessionsByUser()
	students := p.catalog.activeStudents()
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })

	out := make([]domain.StudentBestSessions, 0, len(students))
	for _, u := range students {
		row := domain.StudentBestSessions{
			Student:  domain.StudentRef{ID: u.ID, Name: u.Name, Phone: u.Phone},
			Sessions: make([]domain.BestSessionRow, 0, len(best[u.ID])),
		}
		for _, gs := range best[u.ID] {
			module, err := p.catalog.FindModule(ctx, gs.ModuleID)
			if err != nil {
				continue
			}
			var finishedAt time.Time
			if gs.FinishedAt != nil {
				finishedAt = *gs.FinishedAt
			}
			row.Sessions = append(row.Sessions, domain.BestSessionRow{
				ModuleID:       module.ID,
				ModuleTitle:    module.Title,
				ModuleOrder:    module.Order,
				SessionID:      gs.ID,
				Nota:           gs.Nota.Decimal,
				Score:          gs.Score,
				CorrectAnswers: gs.CorrectAnswers,
				TotalAnswered:  gs.TotalAnswered,
				MaxStreak:      gs.MaxStreak,
				FinishedAt:     finishedAt,
			})
		}
		out = append(out, row)
	}
	return out, nil
}

// RankingCache keeps the last ranking for a TTL.
type RankingCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	ranking   *domain.Ranking
	expiresAt time.Time
}

func NewRankingCache(ttl time.Duration) *RankingCache {
	return &RankingCache{ttl: ttl, clock: time.Now}
}

func (c *RankingCache) Get(context.Context) (domain.Ranking, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ranking == nil || !c.expiresAt.After(c.clock()) {
		return domain.Ranking{}, false, nil
	}
	return *c.ranking, true, nil
}

func (c *RankingCache) Set(_ context.Context, ranking domain.Ranking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranking = &ranking
	c.expiresAt = c.clock().Add(c.ttl)
	return nil
}

func (c *RankingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranking = nil
	return nil
}
