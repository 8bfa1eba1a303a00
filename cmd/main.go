package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/cache"
	"github.com/Dosada05/ride-challenges/config"
	"github.com/Dosada05/ride-challenges/db"
	"github.com/Dosada05/ride-challenges/handlers"
	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/repositories"
	api "github.com/Dosada05/ride-challenges/routes"
	"github.com/Dosada05/ride-challenges/scheduler"
	"github.com/Dosada05/ride-challenges/services"
	"github.com/Dosada05/ride-challenges/storage"
	"github.com/Dosada05/ride-challenges/strava"
)

const shutdownTimeout = 15 * time.Second

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newStatsCache выбирает Redis, затем BoltDB, иначе кэш отключён.
func newStatsCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	switch {
	case cfg.RedisURL != "":
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("statistics cache: redis")
		return store, nil
	case cfg.CachePath != "":
		store, err := cache.NewBoltStore(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		logger.Info("statistics cache: bolt", zap.String("path", cfg.CachePath))
		return store, nil
	default:
		logger.Info("statistics cache disabled")
		return cache.NewNoopStore(), nil
	}
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.Int("port", cfg.ServerPort))

	ctx := context.Background()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", zap.Error(err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}
	logger.Info("database connection established")

	statsCache, err := newStatsCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize statistics cache", zap.Error(err))
	}
	defer statsCache.Close()

	// Архив исходных GPX (Cloudflare R2), опционально
	var archive storage.Archive
	if cfg.R2 != nil {
		archive, err = storage.NewR2Archive(ctx, storage.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			logger.Fatal("failed to initialize Cloudflare R2 archive", zap.Error(err))
		}
		logger.Info("Cloudflare R2 archive initialized")
	}

	var provider services.ActivityProvider
	if cfg.Strava != nil {
		provider = strava.NewClient(strava.Config{
			ClientID:     cfg.Strava.ClientID,
			ClientSecret: cfg.Strava.ClientSecret,
			RedirectURL:  cfg.Strava.RedirectURL,
			Timeout:      cfg.Strava.Timeout,
		})
		logger.Info("Strava integration enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	trackRepo := repositories.NewPostgresTrackRepository(dbConn)
	challengeRepo := repositories.NewPostgresChallengeRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	positionRepo := repositories.NewPostgresPositionRepository(dbConn)
	commentRepo := repositories.NewPostgresCommentRepository(dbConn)
	stravaRepo := repositories.NewPostgresStravaRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	transactor := services.NewSQLTransactor(dbConn)
	eligibility := services.NewEligibilityFilter(trackRepo)
	positionService := services.NewPositionService(
		transactor,
		challengeRepo,
		participantRepo,
		positionRepo,
		eligibility,
		recorder,
		logger.Named("positions"),
		services.PositionServiceConfig{Concurrency: cfg.SyncConcurrency},
	)
	statsService := services.NewStatisticsService(
		userRepo,
		trackRepo,
		challengeRepo,
		eligibility,
		statsCache,
		cfg.StatsCacheTTL,
		recorder,
		logger.Named("statistics"),
	)
	trackService := services.NewTrackService(trackRepo, challengeRepo, eligibility, positionService, archive, logger.Named("tracks"))
	challengeService := services.NewChallengeService(
		transactor,
		challengeRepo,
		participantRepo,
		positionRepo,
		commentRepo,
		eligibility,
		positionService,
		logger.Named("challenges"),
	)
	commentService := services.NewCommentService(commentRepo, challengeService)
	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	userService := services.NewUserService(userRepo, stravaRepo, statsService, positionService)

	stravaCfg := services.StravaServiceConfig{Concurrency: cfg.SyncConcurrency}
	if cfg.Strava != nil {
		stravaCfg.SyncDays = cfg.Strava.SyncDays
	}
	stravaService := services.NewStravaService(provider, stravaRepo, trackService, positionService, recorder, logger.Named("strava"), stravaCfg)
	logger.Info("Services initialized")

	// Планировщик синхронизации и пересчёта позиций
	var sched *scheduler.Scheduler
	if cfg.SyncEnabled {
		var syncer scheduler.Syncer
		if provider != nil {
			syncer = stravaService
		}
		sched, err = scheduler.New(scheduler.Config{CronSpec: cfg.SyncCron}, syncer, positionService, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("failed to configure scheduler", zap.Error(err))
		}
		sched.Start()
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		User:      handlers.NewUserHandler(userService, statsService),
		Track:     handlers.NewTrackHandler(trackService),
		Challenge: handlers.NewChallengeHandler(challengeService, positionService, trackService),
		Position:  handlers.NewPositionHandler(positionService, challengeService),
		Comment:   handlers.NewCommentHandler(commentService),
		Strava:    handlers.NewStravaHandler(stravaService),
	}, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger.Named("http"),
		Metrics:        httpMetrics,
		Gatherer:       registry,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http-server")),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if sched != nil {
			sched.Stop(shutdownCtx)
		}

		logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", zap.Error(closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
