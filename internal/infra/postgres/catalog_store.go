package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-learning-service/internal/domain"
)

type moduleModel struct {
	bun.BaseModel `bun:"table:modules,alias:m"`

	ID              string     `bun:"id,pk"`
	Title           string     `bun:"title"`
	Order           int        `bun:"sort_order"`
	TimePerQuestion int        `bun:"time_per_question"`
	Active          bool       `bun:"active"`
	DeletedAt       *time.Time `bun:"deleted_at"`
	CreatedAt       time.Time  `bun:"created_at"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          string     `bun:"id,pk"`
	ModuleID    string     `bun:"module_id"`
	Prompt      string     `bun:"prompt"`
	Options     []string   `bun:"options,type:jsonb"`
	Correct     int        `bun:"correct"`
	Explanation string     `bun:"explanation"`
	Category    string     `bun:"category"`
	Context     string     `bun:"context"`
	Order       int        `bun:"sort_order"`
	Active      bool       `bun:"active"`
	DeletedAt   *time.Time `bun:"deleted_at"`
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk"`
	Name         string    `bun:"name"`
	Phone        string    `bun:"phone"`
	PasswordHash string    `bun:"password_hash"`
	Role         string    `bun:"role"`
	Active       bool      `bun:"active"`
	CreatedAt    time.Time `bun:"created_at"`
}

// CatalogStore persists modules, questions and users through bun.
// Deletes are soft: modules and questions get deleted_at, users get active = false.
type CatalogStore struct {
	db bun.IDB
}

func NewCatalogStore(db bun.IDB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) CreateModule(ctx context.Context, module domain.Module) error {
	m := toModuleModel(module)
	if _, err := s.db.NewInsert().Model(&m).Returning("NULL").Exec(ctx); err != nil {
		return fmt.Errorf("insert module: %w", err)
	}
	return nil
}

func (s *CatalogStore) UpdateModule(ctx context.Context, module domain.Module) error {
	m := toModuleModel(module)
	res, err := s.db.NewUpdate().Model(&m).
		Column("title", "sort_order", "time_per_question", "active").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrModuleNotFound
	}
	return nil
}

func (s *CatalogStore) FindModule(ctx context.Context, id string) (domain.Module, error) {
	var m moduleModel
	err := s.db.NewSelect().Model(&m).Where("m.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	if err != nil {
		return domain.Module{}, fmt.Errorf("load module: %w", err)
	}
	return m.toDomain(), nil
}

func (s *CatalogStore) ListActiveModules(ctx context.Context) ([]domain.Module, error) {
	var rows []moduleModel
	err := s.db.NewSelect().Model(&rows).
		Where("m.active").
		Where("m.deleted_at IS NULL").
		Order("m.sort_order ASC", "m.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	out := make([]domain.Module, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *CatalogStore) SoftDeleteModule(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*moduleModel)(nil)).
		Set("active = FALSE").
		Set("deleted_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrModuleNotFound
	}
	return nil
}

func (s *CatalogStore) CreateQuestion(ctx context.Context, question domain.Question) error {
	q := toQuestionModel(question)
	if _, err := s.db.NewInsert().Model(&q).Returning("NULL").Exec(ctx); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *CatalogStore) FindQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q questionModel
	err := s.db.NewSelect().Model(&q).
		Where("q.id = ?", id).
		Where("q.active").
		Where("q.deleted_at IS NULL").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q.toDomain(), nil
}

// ListActiveQuestions also serves as the loader behind the question caches.
func (s *CatalogStore) ListActiveQuestions(ctx context.Context, moduleID string) ([]domain.Question, error) {
	var rows []questionModel
	err := s.db.NewSelect().Model(&rows).
		Where("q.module_id = ?", moduleID).
		Where("q.active").
		Where("q.deleted_at IS NULL").
		Order("q.sort_order ASC", "q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, q := range rows {
		out = append(out, q.toDomain())
	}
	return out, nil
}

func (s *CatalogStore) SoftDeleteQuestion(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*questionModel)(nil)).
		Set("active = FALSE").
		Set("deleted_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *CatalogStore) CreateUser(ctx context.Context, user domain.User) error {
	u := toUserModel(user)
	if _, err := s.db.NewInsert().Model(&u).Returning("NULL").Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return domain.ErrPhoneTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *CatalogStore) FindUser(ctx context.Context, id string) (domain.User, error) {
	var u userModel
	err := s.db.NewSelect().Model(&u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return u.toDomain(), nil
}

func (s *CatalogStore) FindActiveUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	var u userModel
	err := s.db.NewSelect().Model(&u).Where("u.phone = ?", phone).Where("u.active").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user by phone: %w", err)
	}
	return u.toDomain(), nil
}

func (s *CatalogStore) DeactivateUser(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().Model((*userModel)(nil)).
		Set("active = FALSE").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func toModuleModel(m domain.Module) moduleModel {
	return moduleModel{
		ID:              m.ID,
		Title:           m.Title,
		Order:           m.Order,
		TimePerQuestion: m.TimePerQuestion,
		Active:          m.Active,
		DeletedAt:       m.DeletedAt,
		CreatedAt:       m.CreatedAt,
	}
}

func (m moduleModel) toDomain() domain.Module {
	return domain.Module{
		ID:              m.ID,
		Title:           m.Title,
		Order:           m.Order,
		TimePerQuestion: m.TimePerQuestion,
		Active:          m.Active,
		DeletedAt:       m.DeletedAt,
		CreatedAt:       m.CreatedAt,
	}
}

func toQuestionModel(q domain.Question) questionModel {
	return questionModel{
		ID:          q.ID,
		ModuleID:    q.ModuleID,
		Prompt:      q.Prompt,
		Options:     q.Options,
		Correct:     q.Correct,
		Explanation: q.Explanation,
		Category:    q.Category,
		Context:     q.Context,
		Order:       q.Order,
		Active:      q.Active,
		DeletedAt:   q.DeletedAt,
	}
}

func (q questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:          q.ID,
		ModuleID:    q.ModuleID,
		Prompt:      q.Prompt,
		Options:     q.Options,
		Correct:     q.Correct,
		Explanation: q.Explanation,
		Category:    q.Category,
		Context:     q.Context,
		Order:       q.Order,
		Active:      q.Active,
		DeletedAt:   q.DeletedAt,
	}
}

func toUserModel(u domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Name:         u.Name,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
	}
}

func (u userModel) toDomain() domain.User {
	return domain.User{
		ID:           u.ID,
		Name:         u.Name,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         domain.Role(u.Role),
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
	}
}
