package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-learning-service/internal/domain"
)

// CatalogService holds the administrator CRUD over modules and questions.
type CatalogService struct {
	repo        CatalogRepository
	invalidator QuestionInvalidator
	now         func() time.Time
}

// NewCatalogService wires the catalog. invalidator may be nil when questions are not cached.
func NewCatalogService(repo CatalogRepository, invalidator QuestionInvalidator) *CatalogService {
	return &CatalogService{repo: repo, invalidator: invalidator, now: time.Now}
}

type ModuleInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Order           int    `json:"order" validate:"gte=0"`
	TimePerQuestion int    `json:"timePerQuestion" validate:"gte=0"`
	Active          bool   `json:"active"`
}

type QuestionInput struct {
	ModuleID    string   `json:"moduleId" validate:"required"`
	Prompt      string   `json:"prompt" validate:"required"`
	Options     []string `json:"options" validate:"len=4,dive,required"`
	Correct     int      `json:"correct" validate:"gte=0,lte=3"`
	Explanation string   `json:"explanation"`
	Category    string   `json:"category"`
	Context     string   `json:"context"`
	Order       int      `json:"order" validate:"gte=0"`
	Active      bool     `json:"active"`
}

func (c *CatalogService) CreateModule(ctx context.Context, who domain.Identity, in ModuleInput) (domain.Module, error) {
	if !who.IsAdmin() {
		return domain.Module{}, domain.Forbidden("administrator role required")
	}
	if err := validateModule(in); err != nil {
		return domain.Module{}, err
	}
	module := domain.Module{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(in.Title),
		Order:           in.Order,
		TimePerQuestion: in.TimePerQuestion,
		Active:          in.Active,
		CreatedAt:       c.now(),
	}
	if err := c.repo.CreateModule(ctx, module); err != nil {
		return domain.Module{}, domain.Internal(err)
	}
	return module, nil
}

func (c *CatalogService) UpdateModule(ctx context.Context, who domain.Identity, id string, in ModuleInput) (domain.Module, error) {
	if !who.IsAdmin() {
		return domain.Module{}, domain.Forbidden("administrator role required")
	}
	if err := validateModule(in); err != nil {
		return domain.Module{}, err
	}
	module, err := c.liveModule(ctx, id)
	if err != nil {
		return domain.Module{}, err
	}
	module.Title = strings.TrimSpace(in.Title)
	module.Order = in.Order
	module.TimePerQuestion = in.TimePerQuestion
	module.Active = in.Active
	if err := c.repo.UpdateModule(ctx, module); err != nil {
		return domain.Module{}, domain.Internal(err)
	}
	return module, nil
}

// ListModules returns active, non-deleted modules in play order.
func (c *CatalogService) ListModules(ctx context.Context) ([]domain.Module, error) {
	modules, err := c.repo.ListActiveModules(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return modules, nil
}

func (c *CatalogService) DeleteModule(ctx context.Context, who domain.Identity, id string) error {
	if !who.IsAdmin() {
		return domain.Forbidden("administrator role required")
	}
	if _, err := c.liveModule(ctx, id); err != nil {
		return err
	}
	if err := c.repo.SoftDeleteModule(ctx, id, c.now()); err != nil {
		return domain.Internal(err)
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CatalogService) CreateQuestion(ctx context.Context, who domain.Identity, in QuestionInput) (domain.Question, error) {
	if !who.IsAdmin() {
		return domain.Question{}, domain.Forbidden("administrator role required")
	}
	if err := validateQuestion(in); err != nil {
		return domain.Question{}, err
	}
	if _, err := c.liveModule(ctx, in.ModuleID); err != nil {
		return domain.Question{}, err
	}
	question := domain.Question{
		ID:          uuid.NewString(),
		ModuleID:    in.ModuleID,
		Prompt:      strings.TrimSpace(in.Prompt),
		Options:     append([]string(nil), in.Options...),
		Correct:     in.Correct,
		Explanation: in.Explanation,
		Category:    in.Category,
		Context:     in.Context,
		Order:       in.Order,
		Active:      in.Active,
	}
	if err := c.repo.CreateQuestion(ctx, question); err != nil {
		return domain.Question{}, domain.Internal(err)
	}
	c.invalidate(ctx, in.ModuleID)
	return question, nil
}

// ListQuestions is the administrator view, answers included.
func (c *CatalogService) ListQuestions(ctx context.Context, who domain.Identity, moduleID string) ([]domain.Question, error) {
	if !who.IsAdmin() {
		return nil, domain.Forbidden("administrator role required")
	}
	questions, err := c.repo.ListActiveQuestions(ctx, moduleID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return questions, nil
}

func (c *CatalogService) DeleteQuestion(ctx context.Context, who domain.Identity, id string) error {
	if !who.IsAdmin() {
		return domain.Forbidden("administrator role required")
	}
	question, err := c.repo.FindQuestion(ctx, id)
	if err != nil {
		return domain.Internal(err)
	}
	if err := c.repo.SoftDeleteQuestion(ctx, id, c.now()); err != nil {
		return domain.Internal(err)
	}
	c.invalidate(ctx, question.ModuleID)
	return nil
}

func (c *CatalogService) liveModule(ctx context.Context, id string) (domain.Module, error) {
	module, err := c.repo.FindModule(ctx, id)
	if err != nil {
		return domain.Module{}, domain.Internal(err)
	}
	if module.DeletedAt != nil {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	return module, nil
}

func (c *CatalogService) invalidate(ctx context.Context, moduleID string) {
	if c.invalidator == nil {
		return
	}
	// entries expire on their own TTL if this fails
	_ = c.invalidator.Invalidate(ctx, moduleID)
}

func validateModule(in ModuleInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.BadRequest("missing field title")
	}
	if in.TimePerQuestion < 0 {
		return domain.BadRequest("time per question must not be negative")
	}
	return nil
}

func validateQuestion(in QuestionInput) error {
	if strings.TrimSpace(in.Prompt) == "" {
		return domain.BadRequest("missing field prompt")
	}
	if len(in.Options) != domain.OptionCount {
		return domain.BadRequest("a question needs exactly %d options, got %d", domain.OptionCount, len(in.Options))
	}
	for i, opt := range in.Options {
		if strings.TrimSpace(opt) == "" {
			return domain.BadRequest("option %d is empty", i)
		}
	}
	if in.Correct < 0 || in.Correct >= domain.OptionCount {
		return domain.BadRequest("index of correct answer is out of range")
	}
	return nil
}
