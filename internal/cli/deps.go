package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/config"
	"quiz-learning-service/internal/infra/memory"
	"quiz-learning-service/internal/infra/postgres"
	rediscache "quiz-learning-service/internal/infra/redis"
	"quiz-learning-service/internal/infra/security"
	"quiz-learning-service/internal/metrics"
	transport "quiz-learning-service/internal/transport/http"
	"quiz-learning-service/migrations"
)

// deps is the assembled object graph plus the resources to release on exit.
type deps struct {
	services transport.Services
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// catalogStore is the module, question and user storage; both backends serve all three.
type catalogStore interface {
	app.CatalogRepository
	app.UserRepository
}

// buildDeps picks Postgres or in-memory storage and Redis or in-process
// caches depending on what cfg configures.
func buildDeps(ctx context.Context, cfg config.Config, log logrus.FieldLogger, m *metrics.Metrics) (*deps, error) {
	d := &deps{}

	scale, err := decimal.NewFromString(cfg.Game.GradeScale)
	if err != nil {
		return nil, fmt.Errorf("invalid grade scale %q: %w", cfg.Game.GradeScale, err)
	}
	if err := app.ValidateGradeScale(scale); err != nil {
		return nil, err
	}

	var (
		sessions  app.SessionRepository
		answers   app.AnswerRepository
		catalog   catalogStore
		rankRepo  app.RankingRepository
		questions app.QuestionSource
		rankCache app.RankingCache
	)

	questionTTL := config.TTLDuration(cfg.Game.QuestionTTL, 10*time.Minute)
	rankingTTL := config.TTLDuration(cfg.Game.RankingTTL, 30*time.Second)

	var loader rediscache.QuestionLoader
	if cfg.Postgres.URL != "" {
		if _, err := migrations.Up(ctx, cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)

		db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL))), pgdialect.New())
		d.closers = append(d.closers, func() { _ = db.Close() })

		store := postgres.NewSessionStore(pool)
		catalogStore := postgres.NewCatalogStore(db)
		sessions, answers, catalog, loader = store, store, catalogStore, catalogStore
		rankRepo = postgres.NewRankingStore(pool)
		log.Info("using postgres storage")
	} else {
		store := memory.NewSessionStore()
		catalogStore := memory.NewCatalogStore()
		sessions, answers, catalog, loader = store, store, catalogStore, catalogStore
		rankRepo = memory.NewRankingProjection(store, catalogStore)
		log.Warn("postgres url not configured, using in-memory storage")
	}

	var invalidator app.QuestionInvalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		qc := rediscache.NewQuestionCache(client, loader, questionTTL)
		questions, invalidator = qc, qc
		rankCache = rediscache.NewRankingCache(client, rankingTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis caches")
	} else {
		qc := memory.NewQuestionCache(loader, questionTTL)
		questions, invalidator = qc, qc
		rankCache = memory.NewRankingCache(rankingTTL)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("jwt secret not configured, generated an ephemeral one; tokens will not survive a restart")
	}
	tokens, err := security.NewJWTIssuer(secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	if err != nil {
		d.Close()
		return nil, err
	}

	ranking := app.NewRankingService(rankRepo, rankCache)
	gameOpts := []app.GameOption{
		app.WithGradeScale(scale),
		app.WithPointsPolicy(app.DefaultPointsPolicy(cfg.Game.BasePoints)),
		app.WithBestListener(ranking),
	}
	if m != nil {
		gameOpts = append(gameOpts, app.WithObserver(m))
	}

	d.services = transport.Services{
		Auth:    app.NewAuthService(catalog, security.NewBcryptHasher(cfg.Auth.BcryptCost), tokens),
		Catalog: app.NewCatalogService(catalog, invalidator),
		Game:    app.NewGameService(sessions, answers, catalog, questions, gameOpts...),
		Ranking: ranking,
	}
	return d, nil
}
