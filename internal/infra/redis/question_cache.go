package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-learning-service/internal/domain"
)

// QuestionLoader fetches a module's active questions from the backing store.
type QuestionLoader interface {
	ListActiveQuestions(ctx context.Context, moduleID string) ([]domain.Question, error)
}

// QuestionCache keeps each module's playable questions in Redis and falls back
// to the loader on a miss. Questions are stored as one JSON document per module:
//
//	SET quiz:module:{moduleID}:questions [...]
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ModuleQuestions(ctx context.Context, moduleID string) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx, moduleID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(moduleID, func() (interface{}, error) {
		// re-check in case another caller filled it
		if questions, ok := c.cached(ctx, moduleID); ok {
			return questions, nil
		}

		questions, err := c.loader.ListActiveQuestions(ctx, moduleID)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(questions); err == nil {
			// a failed write only means the next call loads again
			_ = c.client.Set(ctx, c.key(moduleID), payload, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached questions of a module.
func (c *QuestionCache) Invalidate(ctx context.Context, moduleID string) error {
	c.sf.Forget(moduleID)
	return c.client.Del(ctx, c.key(moduleID)).Err()
}

func (c *QuestionCache) cached(ctx context.Context, moduleID string) ([]domain.Question, bool) {
	payload, err := c.client.Get(ctx, c.key(moduleID)).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(payload, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(moduleID string) string {
	return "quiz:module:" + moduleID + ":questions"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// IsMiss reports whether err is a plain cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
