package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository and
// app.AnswerRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.GameSession
	answers  map[string][]domain.Answer

	slots keyedMutex
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.GameSession),
		answers:  make(map[string][]domain.Answer),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.Conflict("session %s already exists", session.ID)
	}
	stored := session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *SessionStore) FindByID(_ context.Context, id string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

func (s *SessionStore) FindByUserAndModule(_ context.Context, userID, moduleID string) ([]domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.filterLocked(func(gs *domain.GameSession) bool {
		return gs.UserID == userID && gs.ModuleID == moduleID
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *SessionStore) FindBestByUserAndModule(_ context.Context, userID, moduleID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if best, ok := s.bestLocked(userID, moduleID); ok {
		return best, nil
	}
	return domain.GameSession{}, domain.NotFound("no best session for module %s", moduleID)
}

func (s *SessionStore) FindBestSessionsByUser(_ context.Context, userID string) ([]domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.filterLocked(func(gs *domain.GameSession) bool {
		return gs.UserID == userID && gs.IsBest && gs.Finished
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *SessionStore) RecordAnswer(_ context.Context, sessionID string, build func(domain.GameSession) (domain.Answer, error)) (domain.Answer, domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Answer{}, domain.GameSession{}, domain.ErrSessionNotFound
	}
	answer, err := build(*session)
	if err != nil {
		return domain.Answer{}, domain.GameSession{}, err
	}
	for _, prev := range s.answers[sessionID] {
		if prev.QuestionID == answer.QuestionID {
			return domain.Answer{}, domain.GameSession{}, domain.ErrQuestionAnswered
		}
	}

	s.answers[sessionID] = append(s.answers[sessionID], answer)
	c := session.Counters().Apply(answer)
	session.Score = c.Score
	session.CorrectAnswers = c.CorrectAnswers
	session.TotalAnswered = c.TotalAnswered
	session.Streak = c.Streak
	session.MaxStreak = c.MaxStreak
	return answer, *session, nil
}

func (s *SessionStore) Finish(_ context.Context, sessionID string, finalize func(*domain.GameSession)) (domain.GameSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.GameSession{}, false, domain.ErrSessionNotFound
	}
	if session.Finished {
		return *session, false, nil
	}
	updated := *session
	finalize(&updated)
	*session = updated
	return updated, true, nil
}

func (s *SessionStore) WithBestSlot(ctx context.Context, userID, moduleID string, fn func(app.BestSlot) error) error {
	unlock := s.slots.Lock(userID + "/" + moduleID)
	defer unlock()
	return fn(&bestSlot{store: s, userID: userID, moduleID: moduleID})
}

func (s *SessionStore) FindBySessionID(_ context.Context, sessionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Answer(nil), s.answers[sessionID]...), nil
}

// bestSessionsByUser feeds the ranking projection.
func (s *SessionStore) bestSessionsByUser() map[string][]domain.GameSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.GameSession)
	for _, gs := range s.sessions {
		if gs.IsBest && gs.Finished {
			out[gs.UserID] = append(out[gs.UserID], *gs)
		}
	}
	return out
}

func (s *SessionStore) filterLocked(keep func(*domain.GameSession) bool) []domain.GameSession {
	out := make([]domain.GameSession, 0)
	for _, gs := range s.sessions {
		if keep(gs) {
			out = append(out, *gs)
		}
	}
	return out
}

func (s *SessionStore) bestLocked(userID, moduleID string) (domain.GameSession, bool) {
	for _, gs := range s.sessions {
		if gs.UserID == userID && gs.ModuleID == moduleID && gs.IsBest {
			return *gs, true
		}
	}
	return domain.GameSession{}, false
}

type bestSlot struct {
	store    *SessionStore
	userID   string
	moduleID string
}

func (b *bestSlot) Current(context.Context) (domain.GameSession, bool, error) {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	best, ok := b.store.bestLocked(b.userID, b.moduleID)
	return best, ok, nil
}

func (b *bestSlot) ClearBest(context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, gs := range b.store.sessions {
		if gs.UserID == b.userID && gs.ModuleID == b.moduleID {
			gs.IsBest = false
		}
	}
	return nil
}

func (b *bestSlot) MarkBest(_ context.Context, sessionID string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	gs, ok := b.store.sessions[sessionID]
	if !ok || gs.UserID != b.userID || gs.ModuleID != b.moduleID {
		return domain.ErrSessionNotFound
	}
	gs.IsBest = true
	return nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
