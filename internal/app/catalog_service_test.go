package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/domain"
	"quiz-learning-service/internal/infra/memory"
)

var admin = domain.Identity{UserID: "root", Role: domain.RoleAdministrator}

type invalidations struct{ modules []string }

func (i *invalidations) Invalidate(_ context.Context, moduleID string) error {
	i.modules = append(i.modules, moduleID)
	return nil
}

func validQuestion(moduleID string) app.QuestionInput {
	return app.QuestionInput{
		ModuleID: moduleID,
		Prompt:   "Capital of Brazil?",
		Options:  []string{"Rio", "Brasilia", "Salvador", "Recife"},
		Correct:  1,
		Active:   true,
	}
}

func TestCatalogRequiresAdministrator(t *testing.T) {
	ctx := context.Background()
	svc := app.NewCatalogService(memory.NewCatalogStore(), nil)

	_, err := svc.CreateModule(ctx, student, app.ModuleInput{Title: "Basics", Active: true})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CreateQuestion(ctx, student, validQuestion("m1"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteModule(ctx, student, "m1"), domain.ErrForbidden)
	_, err = svc.ListQuestions(ctx, student, "m1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCatalogModuleLifecycle(t *testing.T) {
	ctx := context.Background()
	hook := &invalidations{}
	svc := app.NewCatalogService(memory.NewCatalogStore(), hook)

	second, err := svc.CreateModule(ctx, admin, app.ModuleInput{Title: "Second", Order: 2, Active: true})
	require.NoError(t, err)
	first, err := svc.CreateModule(ctx, admin, app.ModuleInput{Title: " First ", Order: 1, TimePerQuestion: 20, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "First", first.Title)

	modules, err := svc.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, first.ID, modules[0].ID)

	updated, err := svc.UpdateModule(ctx, admin, second.ID, app.ModuleInput{Title: "Second", Order: 0, Active: true})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Order)

	require.NoError(t, svc.DeleteModule(ctx, admin, first.ID))
	assert.Equal(t, []string{first.ID}, hook.modules)

	modules, err = svc.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, second.ID, modules[0].ID)

	assert.ErrorIs(t, svc.DeleteModule(ctx, admin, first.ID), domain.ErrModuleNotFound, "deleted modules stay deleted")
	_, err = svc.UpdateModule(ctx, admin, first.ID, app.ModuleInput{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogValidatesQuestions(t *testing.T) {
	ctx := context.Background()
	svc := app.NewCatalogService(memory.NewCatalogStore(), nil)
	module, err := svc.CreateModule(ctx, admin, app.ModuleInput{Title: "Basics", Active: true})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*app.QuestionInput)
		want   error
	}{
		{"three options", func(in *app.QuestionInput) { in.Options = in.Options[:3] }, domain.ErrBadRequest},
		{"blank option", func(in *app.QuestionInput) { in.Options = []string{"a", " ", "c", "d"} }, domain.ErrBadRequest},
		{"correct out of range", func(in *app.QuestionInput) { in.Correct = 4 }, domain.ErrBadRequest},
		{"negative correct", func(in *app.QuestionInput) { in.Correct = -1 }, domain.ErrBadRequest},
		{"empty prompt", func(in *app.QuestionInput) { in.Prompt = "" }, domain.ErrBadRequest},
		{"unknown module", func(in *app.QuestionInput) { in.ModuleID = "missing" }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validQuestion(module.ID)
			tt.mutate(&in)
			_, err := svc.CreateQuestion(ctx, admin, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCatalogQuestionLifecycle(t *testing.T) {
	ctx := context.Background()
	hook := &invalidations{}
	svc := app.NewCatalogService(memory.NewCatalogStore(), hook)
	module, err := svc.CreateModule(ctx, admin, app.ModuleInput{Title: "Basics", Active: true})
	require.NoError(t, err)

	q, err := svc.CreateQuestion(ctx, admin, validQuestion(module.ID))
	require.NoError(t, err)

	questions, err := svc.ListQuestions(ctx, admin, module.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, 1, questions[0].Correct, "administrators see the answer")

	require.NoError(t, svc.DeleteQuestion(ctx, admin, q.ID))
	questions, err = svc.ListQuestions(ctx, admin, module.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.Equal(t, []string{module.ID, module.ID}, hook.modules)

	assert.ErrorIs(t, svc.DeleteQuestion(ctx, admin, q.ID), domain.ErrQuestionNotFound)
}
