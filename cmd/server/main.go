package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/auth"
	"github.com/ayush/storefront/backend/internal/config"
	"github.com/ayush/storefront/backend/internal/logging"
	"github.com/ayush/storefront/backend/internal/mail"
	"github.com/ayush/storefront/backend/internal/middleware"
	"github.com/ayush/storefront/backend/internal/observability"
	"github.com/ayush/storefront/backend/internal/server"
	"github.com/ayush/storefront/backend/internal/store"
	"github.com/ayush/storefront/backend/internal/users"
)

// accountStore is what every backend provides to the services.
type accountStore interface {
	auth.AccountStore
	users.AccountStore
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	// ── Accounts ─────────────────────────────────────────────
	var accounts accountStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		defer pgPool.Close()
		pgStore := store.NewPostgresStore(pgPool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("postgres migrate", zap.Error(err))
		}
		accounts = pgStore

	case config.BackendMongo:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal("mongo connect", zap.Error(err))
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			logger.Fatal("mongo ping", zap.Error(err))
		}
		mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			logger.Fatal("mongo indexes", zap.Error(err))
		}
		accounts = mongoStore

	default:
		logger.Warn("using in-memory account store, data is lost on restart")
		accounts = store.NewMemoryStore()
	}
	logger.Info("account store ready", zap.String("backend", cfg.StoreBackend))

	// ── Redis ────────────────────────────────────────────────
	var limiterBackend redis.Cmdable
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn(logger, "redis unavailable, rate limiting disabled", err)
		} else {
			defer rdb.Close()
			limiterBackend = rdb
		}
	}

	// ── MinIO ────────────────────────────────────────────────
	var files users.FileStore
	if cfg.MinioAccessKey != "" {
		minioStore, err := store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal("minio connect", zap.Error(err))
		}
		files = minioStore
	} else {
		logger.Warn("MINIO_ACCESS_KEY not set, profile images disabled")
	}

	// ── Mail ─────────────────────────────────────────────────
	var mailer auth.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
			cfg.MailFrom, cfg.ResetURLBase, cfg.ResetTokenTTL,
		)
	} else {
		logger.Warn("SMTP_HOST not set, reset emails are logged only")
		mailer = mail.NewLogMailer(logger)
	}

	// ── Auth ─────────────────────────────────────────────────
	metrics := observability.NewMetrics()

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	tokens, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}
	authSvc, err := auth.NewService(
		accounts, hasher, tokens, auth.NewResetTokenGenerator(cfg.ResetTokenTTL), mailer, logger,
		auth.WithEventRecorder(metrics),
	)
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(authSvc, logger)
	usersHandler := users.NewHandler(users.NewService(accounts, files, logger), logger)

	router := server.NewRouter(server.Deps{
		Logger:         logger,
		Auth:           authHandler,
		Users:          usersHandler,
		Tokens:         tokens,
		Accounts:       accounts,
		Limiter:        middleware.NewRateLimiter(limiterBackend, cfg.RateLimitMax, cfg.RateLimitWindow, logger, metrics),
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		TrustProxy:     cfg.TrustProxy,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("backend listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
