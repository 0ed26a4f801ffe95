package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-learning-service/internal/domain"
)

// CatalogStore keeps modules, questions and users in memory. Deletes are soft.
type CatalogStore struct {
	mu        sync.RWMutex
	modules   map[string]domain.Module
	questions map[string]domain.Question
	users     map[string]domain.User
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		modules:   make(map[string]domain.Module),
		questions: make(map[string]domain.Question),
		users:     make(map[string]domain.User),
	}
}

func (s *CatalogStore) CreateModule(_ context.Context, module domain.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[module.ID] = module
	return nil
}

func (s *CatalogStore) UpdateModule(_ context.Context, module domain.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[module.ID]; !ok {
		return domain.ErrModuleNotFound
	}
	s.modules[module.ID] = module
	return nil
}

func (s *CatalogStore) FindModule(_ context.Context, id string) (domain.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	module, ok := s.modules[id]
	if !ok {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	return module, nil
}

func (s *CatalogStore) ListActiveModules(_ context.Context) ([]domain.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Module, 0, len(s.modules))
	for _, m := range s.modules {
		if m.Playable() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *CatalogStore) SoftDeleteModule(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	module, ok := s.modules[id]
	if !ok {
		return domain.ErrModuleNotFound
	}
	module.Active = false
	module.DeletedAt = &at
	s.modules[id] = module
	return nil
}

func (s *CatalogStore) CreateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question.Options = append([]string(nil), question.Options...)
	s.questions[question.ID] = question
	return nil
}

func (s *CatalogStore) FindQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[id]
	if !ok || !question.Playable() {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (s *CatalogStore) ListActiveQuestions(_ context.Context, moduleID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.ModuleID == moduleID && q.Playable() {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *CatalogStore) SoftDeleteQuestion(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	question.Active = false
	question.DeletedAt = &at
	s.questions[id] = question
	return nil
}

func (s *CatalogStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && u.Phone == user.Phone {
			return domain.ErrPhoneTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *CatalogStore) FindUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *CatalogStore) FindActiveUserByPhone(_ context.Context, phone string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Active && u.Phone == phone {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *CatalogStore) DeactivateUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Active = false
	s.users[id] = user
	return nil
}

func (s *CatalogStore) activeStudents() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.Active && u.Role == domain.RoleStudent {
			out = append(out, u)
		}
	}
	return out
}

// StaticQuestionLoader is a loader backed by a fixed map (useful for tests/demos).
type StaticQuestionLoader struct {
	questions map[string][]domain.Question
}

func NewStaticQuestionLoader(questions map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) ListActiveQuestions(_ context.Context, moduleID string) ([]domain.Question, error) {
	return l.questions[moduleID], nil
}
