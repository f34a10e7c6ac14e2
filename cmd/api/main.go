package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/go-rental-auth/internal/application/identity"
	"github.com/go-rental-auth/internal/application/license"
	"github.com/go-rental-auth/internal/application/otp"
	"github.com/go-rental-auth/internal/config"
	"github.com/go-rental-auth/internal/infrastructure/awsconf"
	"github.com/go-rental-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-rental-auth/internal/infrastructure/jwt"
	redisinfra "github.com/go-rental-auth/internal/infrastructure/redis"
	s3infra "github.com/go-rental-auth/internal/infrastructure/s3"
	"github.com/go-rental-auth/internal/infrastructure/smtp"
	"github.com/go-rental-auth/internal/infrastructure/sns"
	"github.com/go-rental-auth/internal/pkg/logger"
	transporthttp "github.com/go-rental-auth/internal/transport/http"
	"github.com/go-rental-auth/internal/transport/http/handler"
	"github.com/go-rental-auth/internal/transport/http/middleware"
)

const (
	serviceName     = "rental-auth"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return err
	}

	dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	readiness := map[string]handler.Checker{
		"dynamodb": func(ctx context.Context) error {
			return dynamo.Ping(ctx, dynamoClient, cfg.DynamoTables.Users)
		},
	}

	var otpRepo otp.Repo
	switch cfg.OTPStore {
	case "redis":
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer closeRedis(log, rdb)
		otpRepo = redisinfra.NewOTPRepo(rdb)
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		otpRepo = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs)
	}

	var notifier otp.Notifier
	switch cfg.Notifier {
	case "sns":
		notifier = sns.NewNotifier(sns.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.SNSTopicARN)
	default:
		notifier = smtp.NewMailer(cfg)
	}

	tokens, err := jwtinfra.NewProvider(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.S3BucketName)
	readiness["s3"] = store.Ping
	intake := license.NewIntake(store, log)

	policy := otp.Policy{Window: cfg.OTPTTL}
	issuer := otp.NewIssuer(otp.IssuerDeps{
		Repo:          otpRepo,
		Notifier:      notifier,
		Policy:        policy,
		NotifyTimeout: cfg.NotifierTimeout,
		Logger:        log,
	})

	svc := identity.NewService(identity.ServiceDeps{
		UserRepo:     dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.UserEmails),
		OTPRepo:      otpRepo,
		Issuer:       issuer,
		Tokens:       tokens,
		Licenses:     intake,
		Policy:       policy,
		MaxAttempts:  cfg.OTPMaxAttempts,
		BcryptCost:   cfg.BcryptCost,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       log,
	})

	// 5 requests/second, burst of 10, per client IP.
	limiter := middleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Close()

	router := transporthttp.NewRouter(&transporthttp.Deps{
		Identity:       svc,
		Licenses:       intake,
		Tokens:         tokens,
		Readiness:      readiness,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxyHeaders,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"otp_store", cfg.OTPStore, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func closeRedis(log *slog.Logger, rdb *goredis.Client) {
	if err := rdb.Close(); err != nil {
		log.Error("close redis", "err", err)
	}
}
