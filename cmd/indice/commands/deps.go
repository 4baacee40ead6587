package commands

import (
	"fmt"
	"time"

	"github.com/quantbr/indice/internal/calendar"
	"github.com/quantbr/indice/internal/external/brapi"
	"github.com/quantbr/indice/internal/external/fundamentus"
	"github.com/quantbr/indice/internal/index"
	"github.com/quantbr/indice/internal/scheduler"
	"github.com/quantbr/indice/internal/scheduler/jobs"
	"github.com/quantbr/indice/pkg/config"
	"github.com/quantbr/indice/pkg/database"
	"github.com/quantbr/indice/pkg/httputil"
	"github.com/quantbr/indice/pkg/logger"
	"github.com/quantbr/indice/pkg/redis"
)

// runtime holds the wired dependencies shared by all commands.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	service *index.Service
}

func initRuntime() (*runtime, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (optional; disabled falls back to no-op cache)
	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Rate-limited HTTP clients for the external providers
	limiter := redis.NewRateLimiter(redisClient, "indice")
	brapiHTTP := httputil.New(log).
		WithRetry(3, 1*time.Second).
		WithRateLimiter(limiter, redis.BrapiRateLimit).
		WithLocalRateLimit(10, 10)
	fundamentusHTTP := httputil.NewWithTimeout(log, 30*time.Second).
		WithRetry(3, 2*time.Second).
		WithRateLimiter(limiter, redis.FundamentusRateLimit).
		WithLocalRateLimit(2, 2)

	// 6. Shared cache
	cache := redis.NewCache(redisClient, "indice")

	// 7. External providers and trading calendar
	quotes := brapi.NewClient(cfg, brapiHTTP, cache, log)
	fundamentals := fundamentus.NewClient(cfg, fundamentusHTTP, cache, log)
	cal := calendar.NewBrazil()

	// 8. Repositories
	definitions := index.NewDefinitionRepository(db.Pool)
	compositions := index.NewCompositionRepository(db.Pool)
	points := index.NewPointRepository(db.Pool)
	auditLog := index.NewRebalanceLogRepository(db.Pool)
	checkpoints := index.NewCheckpointRepository(db.Pool)

	// 9. Index service
	service := index.NewService(
		definitions, compositions, points, auditLog, checkpoints,
		quotes, fundamentals, cal, log,
	)

	return &runtime{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   redisClient,
		service: service,
	}, nil
}

// Close releases the runtime's connections.
func (rt *runtime) Close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	rt.db.Close()
}

// newScheduler registers the two daily batch jobs.
func (rt *runtime) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(rt.log)

	if err := sched.AddJob(jobs.NewMarkToMarketJob(rt.service, rt.cfg.Schedules.MarkToMarket, rt.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewRebalanceJob(rt.service, rt.cfg.Schedules.Rebalance, rt.log)); err != nil {
		return nil, err
	}

	return sched, nil
}
