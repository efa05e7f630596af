package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/analysis"
	"cvbuilder/internal/api"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/coverletter"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/extract"
	"cvbuilder/internal/ratelimit"
	"cvbuilder/internal/storage"
)

func main() {
	// .env 可选，缺失时只使用进程环境变量。
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// 限流与配额在 Redis 不可用时放行，这里只告警。
		logger.Warn("ping redis failed", slog.Any("error", err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	authService, err := loadAuthService(cfg.Auth)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	aiClient := ai.NewFromConfig(context.Background(), cfg.AI, logger)
	defer aiClient.Close()
	if aiClient.MockMode() {
		logger.Warn("ai client running in mock mode")
	}

	extractor := extract.NewExtractor(cfg.Upload.ExtractLimit, logger)
	cvService := cv.NewService(db, cfg.API.MaxCVsPerUser)
	analyses := analysis.NewService(db, aiClient, extractor, storageClient, cfg.Upload.MaxBytes, logger)
	letters := coverletter.NewService(db, cvService, aiClient,
		&ratelimit.Daily{Counter: redisClient, Scope: "quota:cover_letters", Limit: cfg.AI.CoverLettersPerDay},
		logger,
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Dependencies{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		Queue:       asynqClient,
		Storage:     storageClient,
		AuthService: authService,
		CVs:         cvService,
		Analyses:    analyses,
		Letters:     letters,
		Extractor:   extractor,
		Logger:      logger,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}

func loadAuthService(cfg config.AuthConfig) (*auth.AuthService, error) {
	privatePEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return auth.NewAuthService(privatePEM, publicPEM, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}
