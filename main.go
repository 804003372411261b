package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/voter-check/internal/auth"
	"github.com/example/voter-check/internal/electoral"
	"github.com/example/voter-check/internal/embedding"
	"github.com/example/voter-check/internal/faceengine"
	"github.com/example/voter-check/internal/handlers"
	"github.com/example/voter-check/internal/logging"
	"github.com/example/voter-check/internal/repository"
	"github.com/example/voter-check/internal/usecase"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	db := initDatabase(ctx, logger)
	repo := repository.NewIdentityRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, logger)

	engineURL := getEnv("FACE_ENGINE_URL", "http://face-engine:9090")
	engine, err := faceengine.NewHTTPClient(engineURL, logger)
	if err != nil {
		logger.Fatal("failed to configure face engine client", zap.Error(err))
	}

	threshold := verifyThreshold(logger)
	cache := usecase.NewRedisCache(redisClient)
	enrollUC := usecase.NewEnrollmentUseCase(repo, engine, logger)
	verifyUC := usecase.NewVerificationUseCase(repo, cache, engine, threshold, logger)

	authority := electoral.NewClient(
		getEnv("ELECTORAL_BASE_URL", "https://gateway-voters.eci.gov.in/api/v1"),
		getEnv("ELECTORAL_PORTAL_URL", "https://electoralsearch.eci.gov.in/"),
		electoral.NewRedisChallengeGuard(redisClient),
		logger,
	)

	r := gin.Default()

	jwtSecret := getEnv("JWT_SECRET", "dev-secret")
	jwtAudience := os.Getenv("JWT_AUDIENCE")
	adminAuth := auth.JWTMiddleware(jwtSecret, jwtAudience)

	handlers.RegisterRoutes(r, enrollUC, verifyUC, repo, authority, adminAuth, logger)

	server := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	logger.Info("voter-check API listening",
		zap.String("addr", ":8080"),
		zap.Float64("verify_threshold", threshold))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// verifyThreshold reads the verification cutoff. The 0.50 default is a
// deliberate product decision (the vendor's ArcFace cosine default is ~0.68);
// deployments change it through the environment, not the code.
func verifyThreshold(logger *zap.Logger) float64 {
	raw := getEnv("VERIFY_THRESHOLD", "")
	if raw == "" {
		return embedding.DefaultThreshold
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold < -1 || threshold > 1 {
		logger.Fatal("invalid VERIFY_THRESHOLD", zap.String("value", raw))
	}
	return threshold
}

func initDatabase(ctx context.Context, zapLogger *zap.Logger) *gorm.DB {
	dsn := getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=votercheck port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, zapLogger *zap.Logger) *redis.Client {
	addr := getEnv("REDIS_ADDR", "redis:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
