package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mirefox/wallcast/config"
	appmodel "github.com/mirefox/wallcast/internal/app/model"
	apprepository "github.com/mirefox/wallcast/internal/app/repository"
	appserver "github.com/mirefox/wallcast/internal/app/server"
	appservice "github.com/mirefox/wallcast/internal/app/service"
	"github.com/mirefox/wallcast/internal/infra/logger"
	infraNATS "github.com/mirefox/wallcast/internal/infra/nats"
	infraPostgres "github.com/mirefox/wallcast/internal/infra/postgres"
	infraPrometheus "github.com/mirefox/wallcast/internal/infra/prometheus"
	infraRedis "github.com/mirefox/wallcast/internal/infra/redis"
	"github.com/mirefox/wallcast/internal/search"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
		zap.String("search_base_url", cfg.Search.BaseURL),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.User{},
		&appmodel.KinkTag{},
		&appmodel.Link{},
		&appmodel.LinkCapability{},
		&appmodel.HistoryEntry{},
		&appmodel.Notification{},
		&appmodel.Comment{},
		&appmodel.ClimaxLog{},
		&appmodel.TrackEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	historyRepo := apprepository.NewHistoryRepository(gormDB)
	userRepo := apprepository.NewUserRepository(gormDB)
	reactionStore := apprepository.NewReactionStore(gormDB)
	trackEventRepo := apprepository.NewTrackEventRepository(gormDB)

	tracker := appservice.NewTracker(js, log)

	trackConsumer := appservice.NewTrackConsumer(js, log, trackEventRepo)
	if err := trackConsumer.Start(); err != nil {
		log.Fatal("Failed to start tracking consumer", zap.Error(err))
	}

	searchClient := search.NewClient(search.Config{
		BaseURL:   cfg.Search.BaseURL,
		UserAgent: cfg.Search.UserAgent,
		Timeout:   time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	}, log, tracker)

	resultCache := infraRedis.NewResultCache(redisClient)
	results := appservice.NewResultService(resultCache, searchClient, log)

	broadcaster := appservice.NewBroadcaster(natsConn, userRepo, log)
	linkService := appservice.NewLinkService(linkRepo, historyRepo, broadcaster, log)
	reactions := appservice.NewReactionService(reactionStore, log)

	sweeper := appservice.NewExpirySweeper(log, linkRepo)
	sweeper.Start()
	defer sweeper.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Postgres:    pool,
		Redis:       redisClient,
		NATS:        natsConn,
		JetStream:   js,
		Links:       linkRepo,
		History:     historyRepo,
		LinkService: linkService,
		Results:     results,
		Reactions:   reactions,
		Broadcaster: broadcaster,
		Tracker:     tracker,
	})

	if err := server.Listen(":8080"); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
