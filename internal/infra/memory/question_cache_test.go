package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-learning-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string][]domain.Question{
			"mod-1": sampleQuestions(),
		}),
	}
	cache := NewQuestionCache(loader, time.Minute)

	questions, err := cache.ModuleQuestions(context.Background(), "mod-1")
	require.NoError(t, err)
	assert.Len(t, questions, 1)
	assert.EqualValues(t, 1, loader.calls.Load())

	_, err = cache.ModuleQuestions(context.Background(), "mod-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, loader.calls.Load(), "expected cache hit")
}

func TestQuestionCacheInvalidate(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string][]domain.Question{
			"mod-1": sampleQuestions(),
		}),
	}
	cache := NewQuestionCache(loader, time.Minute)
	ctx := context.Background()

	_, err := cache.ModuleQuestions(ctx, "mod-1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "mod-1"))

	_, err = cache.ModuleQuestions(ctx, "mod-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestQuestionCacheExpires(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(map[string][]domain.Question{
			"mod-1": sampleQuestions(),
		}),
	}
	cache := NewQuestionCache(loader, time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, err := cache.ModuleQuestions(context.Background(), "mod-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.ModuleQuestions(context.Background(), "mod-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
}

func (l *countingLoader) ListActiveQuestions(ctx context.Context, moduleID string) ([]domain.Question, error) {
	l.calls.Add(1)
	return l.QuestionLoader.ListActiveQuestions(ctx, moduleID)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:       "q1",
			ModuleID: "mod-1",
			Prompt:   "What is 2 + 2?",
			Options:  []string{"3", "4", "5", "6"},
			Correct:  1,
			Active:   true,
		},
	}
}
