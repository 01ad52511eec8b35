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

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/api"
	"github.com/lalith-99/tradielink/internal/config"
	"github.com/lalith-99/tradielink/internal/db"
	"github.com/lalith-99/tradielink/internal/messaging"
	"github.com/lalith-99/tradielink/internal/observ"
	"github.com/lalith-99/tradielink/internal/presence"
	"github.com/lalith-99/tradielink/internal/repository"
	"github.com/lalith-99/tradielink/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 2. Postgres, with the schema brought up to date
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolSize{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// ---------------------------------------------------------------
	// 3. Repositories. Typing presence lives in Postgres unless Redis
	//    is configured for it.
	// ---------------------------------------------------------------
	pool := database.Pool()
	users := postgres.NewUserStore(pool)
	jobs := postgres.NewJobStore(pool)

	health := map[string]api.Pinger{"database": api.PingFunc(database.Health)}

	var typing repository.TypingRepository = postgres.NewTypingStore(pool)
	if cfg.TypingBackend == config.TypingBackendRedis {
		redisStore, err := presence.NewRedisStore(ctx, cfg.RedisURL, cfg.TypingTTL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisStore.Close()
		typing = redisStore
		health["redis"] = redisStore
	}
	logger.Info("typing presence backend", zap.String("backend", cfg.TypingBackend))

	svc := messaging.NewService(messaging.Stores{
		Users:    users,
		Threads:  postgres.NewThreadStore(pool),
		Messages: postgres.NewMessageStore(pool),
		Reads:    postgres.NewReadCursorStore(pool),
		Closures: postgres.NewClosureStore(pool),
		Typing:   typing,
	}, logger, messaging.WithTypingTTL(cfg.TypingTTL))

	// ---------------------------------------------------------------
	// 4. HTTP
	// ---------------------------------------------------------------
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Handlers{
		Auth:      api.NewAuthHandler(users, cfg.JWTSecret, cfg.JWTTTL, logger),
		Messages:  api.NewMessageHandler(svc, logger),
		Directory: api.NewDirectoryHandler(users, logger),
		Jobs:      api.NewJobHandler(jobs, time.Now, logger),
		Stats:     api.NewStatsHandler(svc, jobs, logger),
		Health:    health,
	}, api.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting TradieLink API",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
