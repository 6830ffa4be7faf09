package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prudhvinik1/inkboard/internal/api"
	"github.com/prudhvinik1/inkboard/internal/audit"
	"github.com/prudhvinik1/inkboard/internal/config"
	"github.com/prudhvinik1/inkboard/internal/database"
	"github.com/prudhvinik1/inkboard/internal/repositories"
	"github.com/prudhvinik1/inkboard/internal/services"
	"github.com/prudhvinik1/inkboard/internal/whiteboard"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStrokeStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	recorder, closeAudit, err := newAuditRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	notifier := whiteboard.NewRedisNotifier(redisClient, logger)
	defer notifier.Close()

	boards := whiteboard.NewService(store, notifier, recorder, whiteboard.ClearPolicy(cfg.ClearRole), logger)
	authService := services.NewAuthService(repositories.NewRedisSessionRepository(redisClient), cfg.JWTSecret, cfg.JWTExpiry)
	presence := repositories.NewRedisPresenceRepository(redisClient)

	handler := api.NewHandler(boards, authService, presence, api.Options{
		IssuerAPIKey:     cfg.IssuerAPIKey,
		DefaultSessionID: cfg.DefaultSessionID,
		AllowedOrigins:   cfg.CORSAllowOrigins,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newStrokeStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.StrokeEventRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory stroke store; strokes are lost on restart")
		return repositories.NewMemoryStrokeEventRepository(), func() {}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return repositories.NewPostgresStrokeEventRepository(pool), pool.Close, nil
}

func newAuditRecorder(cfg *config.Config, logger *zap.Logger) (audit.Recorder, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured; audit events are logged only")
		return audit.NewLogRecorder(logger), func() {}, nil
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 0

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	dispatcher := audit.NewDispatcher(producer, cfg.KafkaTopic, logger, audit.DispatcherOptions{
		QueueSize:   1024,
		Workers:     2,
		MaxRetry:    5,
		BaseBackoff: 100 * time.Millisecond,
	})
	return dispatcher, func() {
		dispatcher.Close()
		if err := producer.Close(); err != nil {
			logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.IsDev() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
