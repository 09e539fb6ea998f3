package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatflow/internal/config"
	"chatflow/internal/db"
	"chatflow/internal/llm"
	"chatflow/internal/repository"
	"chatflow/internal/server"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var repo repository.ChatRepository = repository.NewMemoryChatRepository()
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		repo = repository.NewPgChatRepository(pool)
	} else {
		logger.Info("no DATABASE_URL, using in-memory repository")
	}

	var responder server.Responder = server.EchoResponder{}
	if cfg.LLMAPIKey != "" {
		generator := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
		responder = server.NewLLMResponder(generator)
	}

	limiter := server.NewMemoryStreamRateLimiter(time.Minute, 20)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = server.NewRedisStreamRateLimiter(redisClient, time.Minute, 20)
		}
		cancel()
	}

	var jwtSvc *server.JWTService
	var authH *server.AuthHandler
	if cfg.JWTSecret != "" {
		jwtSvc = server.NewJWTService(cfg.JWTSecret, 24*time.Hour)
		authH = server.NewAuthHandler(logger, jwtSvc, cfg.DevUserEmail, cfg.DevPassHash)
	} else {
		logger.Warn("jwt secret not configured, running open")
	}

	chatH := server.NewChatHandler(logger, repo)
	streamH := server.NewStreamHandler(logger, repo, responder, limiter)
	router := server.NewRouter(logger, authH, chatH, streamH, jwtSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
