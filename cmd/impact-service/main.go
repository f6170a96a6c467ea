package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/database/minio"
	"impact-service/internal/database/postgres"
	"impact-service/internal/database/redis"
	"impact-service/internal/database/reference"
	"impact-service/internal/database/sqlite"
	"impact-service/internal/event"
	"impact-service/internal/handlers"
	"impact-service/internal/repository"
	"impact-service/internal/services"
	"impact-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/jmoiron/sqlx"
)

func setupLogging(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo})))

	return file, nil
}

func openDatabase(ctx context.Context, cfg *config.ImpactServiceConfig) (*sqlx.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.ConnectWithRetry(ctx, cfg.PostgresCfg, 10*time.Second)
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", cfg.DBDriver)
}

func main() {
	config.LoadEnvFile(os.Getenv("ENV_FILE"))
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging to stderr: %v\n", err)
	} else {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reference data
	table, err := reference.LoadGeography(cfg.EngineCfg.GeographyFile)
	if err != nil {
		log.Fatalf("failed to load geography: %v", err)
	}
	geo, err := services.NewGeographyResolver(table)
	if err != nil {
		log.Fatalf("invalid geography table: %v", err)
	}

	// Storage
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	recordRepo := repository.NewRecordRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	health := handlers.NewHealthHandler(map[string]handlers.HealthChecker{"database": recordRepo})

	localCache := repository.NewLocalAggregateCache(cfg.CacheCfg.TTL, 2*cfg.CacheCfg.TTL)
	var aggregateCache services.AggregateCache = localCache
	if cfg.RedisCfg.Enabled {
		redisClient, err := redis.Open(ctx, cfg.RedisCfg)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache only", "error", err)
		} else {
			defer redisClient.Close()
			aggregateCache = repository.NewTieredAggregateCache(localCache,
				repository.NewRedisAggregateCache(redisClient), cfg.CacheCfg.LocalTTL)
			health.AddCheck("redis", handlers.HealthCheckFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}))
		}
	}

	var factPackStore services.FactPackStore
	if cfg.MinioCfg.Enabled {
		minioClient, err := minio.NewMinioClient(ctx, cfg.MinioCfg)
		if err != nil {
			slog.Warn("minio unavailable, fact pack publishing disabled", "error", err)
		} else {
			factPackStore = repository.NewFactPackStore(minioClient)
			health.AddCheck("minio", handlers.HealthCheckFunc(minioClient.Ping))
		}
	}

	// Engine
	scorer := services.NewEgraScorer()
	guard := services.NewPrivacyGuard()
	periods := services.NewCalendarPeriodResolver(cfg.EngineCfg, time.Now)
	engine := services.NewAggregationService(recordRepo, schoolRepo, geo, periods, scorer, cfg.EngineCfg)
	cached := services.NewCachedAggregator(engine, aggregateCache, cfg.CacheCfg.TTL)
	invalidation := event.NewInvalidationHandler(cached)

	// Events
	var publisher services.RecordEventPublisher = event.NewLocalPublisher(invalidation)
	if cfg.RabbitMQCfg.Enabled {
		broker, err := event.ConnectBroker(cfg.RabbitMQCfg)
		if err != nil {
			slog.Warn("rabbitmq unavailable, invalidating in-process only", "error", err)
		} else {
			defer broker.Close()
			publisher = event.NewRecordPublisher(broker.PublishChannel())

			consumeCh, err := broker.ConsumerChannel()
			if err != nil {
				log.Fatalf("failed to open consumer channel: %v", err)
			}
			if err := event.NewRecordConsumer(consumeCh, invalidation).Start(ctx); err != nil {
				log.Fatalf("failed to start record consumer: %v", err)
			}
		}
	}

	recordService := services.NewRecordService(recordRepo, schoolRepo, geo, scorer, publisher, cfg.EngineCfg.TrainingFollowUpDays, time.Now)
	schoolService := services.NewSchoolService(schoolRepo, geo, publisher, time.Now)
	factPackService := services.NewFactPackService(cached, factPackStore, guard, time.Now)

	// Workers
	var workerWg sync.WaitGroup
	pool := worker.NewWorkingPool(cfg.WorkerCfg.NumWorkers, cfg.WorkerCfg.QueueSize)
	workerWg.Add(1)
	go pool.Start(ctx, &workerWg)

	warmer := worker.NewWarmScheduler(cfg.CacheCfg.WarmCron, pool, cached, geo, cfg.EngineCfg.StoreTimeout*6)
	if err := warmer.Start(ctx); err != nil {
		log.Fatalf("failed to start warm scheduler: %v", err)
	}
	if _, err := warmer.WarmAll(ctx); err != nil {
		slog.Warn("initial cache warm incomplete", "error", err)
	}

	// HTTP
	app := fiber.New()
	handlers.NewImpactHandler(cached, services.NewPublicMapper(guard), guard, cfg.CacheCfg.PublicMaxAge).Register(app)
	handlers.NewRecordHandler(recordService).Register(app)
	handlers.NewSchoolHandler(schoolService).Register(app)
	handlers.NewEgraHandler(scorer, guard).Register(app)
	handlers.NewFactPackHandler(factPackService).Register(app)
	health.Register(app)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signaled")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
	}()

	slog.Info("impact service starting", "port", cfg.Port, "db_driver", cfg.DBDriver)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("http server stopped", "error", err)
	}

	stop()
	workerWg.Wait()
	slog.Info("impact service stopped")
}
