package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/cache"
	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/persistence"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
	"github.com/spec-kit/helpdesk-workflow/internal/worker"
)

// runtime is the wired object graph shared by every subcommand.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	pg        *persistence.Postgres
	redis     *persistence.Redis
	metrics   *observability.Metrics
	notifier  *worker.NotificationWorker
	store     repository.Store
	directory repository.DirectoryRepository

	graph      *service.StatusGraphService
	assignment *service.AssignmentService
	history    *service.HistoryRecorder
	workflow   *service.WorkflowService
	stats      *service.StatsService
}

type bootstrapOptions struct {
	// migrate runs migrations regardless of POSTGRES_RUN_MIGRATIONS.
	migrate bool
	// requirePostgres refuses the in-memory fallback.
	requirePostgres bool
}

func bootstrap(ctx context.Context, opts bootstrapOptions) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return nil, err
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pool := pg.PoolHandle()
	if pool == nil && opts.requirePostgres {
		return nil, fmt.Errorf("POSTGRES_DSN is required for this command")
	}

	if opts.migrate || cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		pg:      pg,
		redis:   persistence.NewRedis(ctx, cfg.Redis, logger),
		metrics: observability.NewMetrics(),
	}

	if pool != nil {
		rt.store = repository.NewPostgresStore(pool)
		rt.directory = repository.NewDirectoryRepository(pool)
	} else {
		rt.store = repository.NewMemoryStore()
		rt.directory = repository.NewMemoryDirectory()
	}

	var (
		locker     lock.TicketLocker
		statsCache cache.StatsCache
	)
	if rt.redis.Enabled() {
		locker = lock.NewRedisLocker(rt.redis.Client, cfg.Workflow.LockTTL(), cfg.Workflow.LockWait())
		if ttl := cfg.Workflow.StatsCacheTTL(); ttl > 0 {
			statsCache = cache.NewRedisStatsCache(rt.redis.Client, ttl)
		}
	} else {
		locker = lock.NewLocalLocker(cfg.Workflow.LockWait())
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier, err := service.NewNotifier(cfg.Notification, rt.redis.Client, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.notifier = worker.NewNotificationWorker(notifier, logger, worker.Options{
		QueueSize:  cfg.Notification.QueueSize,
		MaxRetries: cfg.Notification.MaxRetries,
		Base:       cfg.Notification.RetryBase(),
	})
	// deliveries outlive the command context so Close can drain the queue
	rt.notifier.Start(context.WithoutCancel(ctx))
	service.NewNotificationService(dispatcher, rt.notifier, logger).RegisterHandlers()

	users := service.NewUserDirectory(rt.directory)
	rt.graph = service.NewStatusGraphService(rt.store, logger)
	rt.assignment = service.NewAssignmentService(service.AssignmentDependencies{
		Store:     rt.store,
		Directory: users,
	})
	rt.history = service.NewHistoryRecorder(rt.store, nil)
	rt.workflow = service.NewWorkflowService(service.WorkflowDependencies{
		Store:      rt.store,
		Locker:     locker,
		Graph:      rt.graph,
		Assignment: rt.assignment,
		History:    rt.history,
		Directory:  users,
		Dispatcher: dispatcher,
		Metrics:    rt.metrics,
		Logger:     logger,
	})
	rt.stats = service.NewStatsService(service.StatsDependencies{
		Store:     rt.store,
		Directory: users,
		Cache:     statsCache,
		Options:   domain.ProjectionOptions{CanceledCountsTowardTotal: cfg.Workflow.CanceledCountsTowardTotal},
		Logger:    logger,
	})
	return rt, nil
}

// Close drains pending notifications, releases connections and flushes the
// logger.
func (r *runtime) Close() {
	r.notifier.Stop()
	r.redis.Close()
	r.pg.Close()
	_ = r.logger.Sync()
}
