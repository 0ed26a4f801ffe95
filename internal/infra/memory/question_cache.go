package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-learning-service/internal/domain"
)

// QuestionLoader fetches a module's active questions from the backing store.
type QuestionLoader interface {
	ListActiveQuestions(ctx context.Context, moduleID string) ([]domain.Question, error)
}

// QuestionCache caches module questions with TTL to avoid repeated DB hits.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) ModuleQuestions(ctx context.Context, moduleID string) ([]domain.Question, error) {
	if questions, ok := c.lookup(moduleID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(moduleID, func() (interface{}, error) {
		// another caller may have filled the entry while we waited
		if questions, ok := c.lookup(moduleID); ok {
			return questions, nil
		}

		questions, err := c.loader.ListActiveQuestions(ctx, moduleID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[moduleID] = cachedQuestions{
			questions: questions,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops a module's entry after catalog edits.
func (c *QuestionCache) Invalidate(_ context.Context, moduleID string) error {
	c.mu.Lock()
	delete(c.cache, moduleID)
	c.mu.Unlock()
	return nil
}

func (c *QuestionCache) lookup(moduleID string) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[moduleID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
