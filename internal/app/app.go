package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"xianyu-autosell/config"
	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/handler"
	"xianyu-autosell/internal/redis"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/internal/server"
	"xianyu-autosell/internal/services"
	"xianyu-autosell/internal/session"
	"xianyu-autosell/internal/storage"
	"xianyu-autosell/internal/websocket"
	"xianyu-autosell/internal/workflow"
	"xianyu-autosell/pkg/database"
	"xianyu-autosell/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// rateWindow is the period PROCESS_RATE_LIMIT applies to.
const rateWindow = time.Minute

// App owns every long-lived dependency of the service.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Dialect database.Dialect
	Redis   *goredis.Client

	Orders     repository.OrderRepository
	Rules      repository.RuleRepository
	Stock      repository.StockRepository
	Deliveries repository.DeliveryLogRepository

	AutoSell *services.AutoSellService
	Tracker  *services.OrderTracker
	Importer *services.StockImporter
	Worker   *services.RefreshWorker
	Sessions *session.Registry

	Hub     *websocket.Hub
	Bridge  *websocket.RedisBridge
	Limiter *redis.RateLimiter

	log *logger.Logger
}

// New connects to the database (applying migrations) and, when configured,
// Redis and object storage, then builds the service graph. The refresh
// worker is created but not started.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, dialect, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.ApplyMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		DB:         db,
		Dialect:    dialect,
		Orders:     repository.NewOrderRepository(db),
		Rules:      repository.NewRuleRepository(db),
		Stock:      repository.NewStockRepository(db, dialect),
		Deliveries: repository.NewDeliveryLogRepository(db),
		Hub:        websocket.NewHub(),
		log:        log,
	}

	var (
		locker    services.OrderLocker
		publisher events.Publisher = a.Hub
	)
	if cfg.RedisEnabled() {
		a.Redis = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redis.Ping(ctx, a.Redis); err != nil {
			a.Close()
			return nil, err
		}
		locker = redis.NewOrderLocker(a.Redis, cfg.DeliveryLockTTL)
		publisher = redis.NewPublisher(a.Redis)
		a.Bridge = websocket.NewRedisBridge(redis.NewSubscriber(a.Redis), a.Hub)
		a.Limiter = redis.NewRateLimiter(a.Redis, cfg.ProcessRateLimit, rateWindow)
		log.Infof("Redis connected at %s:%s", cfg.RedisHost, cfg.RedisPort)
	} else {
		log.Infof("Redis not configured, using in-process delivery locks")
	}

	var objects services.ObjectStore
	if cfg.S3Enabled() {
		client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		objects = client
	}

	var factory session.Factory
	if cfg.SessionGatewayURL != "" {
		factory = session.NewGatewayFactory(cfg.SessionGatewayURL, &http.Client{Timeout: cfg.DetailFetchTimeout})
	}
	a.Sessions = session.NewRegistry(factory)

	var starter workflow.Starter
	if cfg.WorkflowEngineURL != "" {
		starter = workflow.NewHTTPStarter(cfg.WorkflowEngineURL, nil)
	}

	emitter := events.NewEmitter(publisher, log.Named("events"))
	a.AutoSell = services.NewAutoSellService(
		services.NewRuleMatcher(a.Rules, log),
		a.Stock,
		services.NewDeliveryExecutor(a.Stock, &http.Client{Timeout: cfg.APIDeliveryTimeout}, log),
		services.NewDeliveryLogger(a.Deliveries, log),
		locker,
		emitter,
		log.Named("autosell"),
	)
	a.Tracker = services.NewOrderTracker(a.Orders, a.AutoSell, a.Sessions, starter, emitter, cfg.DetailFetchTimeout, log.Named("tracker"))
	a.Importer = services.NewStockImporter(a.Rules, a.Stock, objects, log.Named("stock"))

	a.Worker = services.NewRefreshWorker(func(ctx context.Context, accountID, orderID string) error {
		_, err := a.Tracker.RefreshOrderDetail(ctx, accountID, orderID)
		return err
	}, cfg.RefreshWorkers, cfg.RefreshQueueSize, cfg.RefreshJobTimeout, log.Named("refresh"))
	a.Tracker.SetRefreshQueue(a.Worker)

	return a, nil
}

// Handlers builds the HTTP handler set.
func (a *App) Handlers() *server.Handlers {
	return &server.Handlers{
		Orders:    handler.NewOrderHandler(a.Tracker),
		AutoSell:  handler.NewAutoSellHandler(a.AutoSell, a.Importer),
		WebSocket: websocket.NewHandler(a.Hub, a.log.Named("ws")),
	}
}

// HealthChecks lists the dependencies reported by /health.
func (a *App) HealthChecks() map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, a.DB) },
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, a.Redis) }
	}
	return checks
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warnf("close redis: %v", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.log.Warnf("close database: %v", err)
		}
	}
}
