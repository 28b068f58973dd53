// File: cmd/server/wire.go
package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/iyunix/go-chat/internal/config"
	"github.com/iyunix/go-chat/internal/database"
	"github.com/iyunix/go-chat/internal/handlers"
	"github.com/iyunix/go-chat/internal/ratelimit"
	"github.com/iyunix/go-chat/internal/render"
	"github.com/iyunix/go-chat/internal/repository/chat"
	"github.com/iyunix/go-chat/internal/repository/message"
	"github.com/iyunix/go-chat/internal/repository/user"
	"github.com/iyunix/go-chat/internal/services"
	"github.com/iyunix/go-chat/internal/services/ai"
	"github.com/iyunix/go-chat/internal/services/attachment"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
	"github.com/iyunix/go-chat/internal/services/memory"
	"github.com/iyunix/go-chat/internal/turnlock"
)

// Application aggregates the long-lived pieces main needs to run and stop.
type Application struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Memory  *services.MemoryService
	Handler http.Handler
}

// Close releases external connections. It is safe to call on a partially
// built application.
func (a *Application) Close() {
	if a.Memory != nil {
		if err := a.Memory.Close(); err != nil {
			log.Warn().Err(err).Msg("closing memory index")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	if err := database.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	database.Configure(cfg.DB.Driver, cfg.DB.DSN)
	return database.Connection()
}

// ProvideRedis returns nil when REDIS_ADDR is unset; callers then fall back
// to single-process locks and limits.
func ProvideRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return rdb, nil
}

func ProvideAIConfig(cfg *config.Config) *ai.Config {
	aiConfig := ai.DefaultConfig()
	aiConfig.LLMKey = cfg.LLM.APIKey
	aiConfig.LLMBaseURL = cfg.LLM.BaseURL
	aiConfig.Model = cfg.LLM.Model
	aiConfig.Temperature = float32(cfg.LLM.Temperature)
	aiConfig.StreamTimeout = cfg.LLM.StreamTimeout
	aiConfig.EmbeddingKey = cfg.Memory.EmbeddingKey
	aiConfig.EmbeddingBaseURL = cfg.Memory.EmbeddingBaseURL
	aiConfig.EmbeddingModel = cfg.Memory.EmbeddingModel
	return aiConfig
}

func ProvideChatConfig(cfg *config.Config) *chatservice.Config {
	chatConfig := chatservice.DefaultConfig()
	chatConfig.Model = cfg.LLM.Model
	chatConfig.Temperature = float32(cfg.LLM.Temperature)
	chatConfig.StreamTimeout = cfg.LLM.StreamTimeout
	chatConfig.PersistInterrupted = cfg.Chat.PersistInterrupted
	chatConfig.MaxAttachments = cfg.Storage.MaxAttachments
	if cfg.LLM.Instruction != "" {
		chatConfig.Instruction = cfg.LLM.Instruction
	}
	return chatConfig
}

// ProvideMemory returns nil when memory augmentation is disabled.
func ProvideMemory(cfg *config.Config, embedder memory.Embedder, instruction string) (*services.MemoryService, error) {
	if !cfg.Memory.Enabled {
		return nil, nil
	}
	memConfig := memory.DefaultConfig()
	memConfig.APIKey = cfg.Memory.PineconeAPIKey
	memConfig.IndexHost = cfg.Memory.PineconeHost
	memConfig.Namespace = cfg.Memory.Namespace
	memConfig.TopK = cfg.Memory.TopK
	memConfig.Instruction = instruction
	return services.NewMemoryService(embedder, memConfig, services.NewLogger("memory"))
}

func ProvideTurnLocker(cfg *config.Config, rdb *redis.Client) chatservice.TurnLocker {
	if rdb == nil {
		return turnlock.NewMemory()
	}
	return turnlock.NewRedis(rdb, cfg.Redis.LockTTL)
}

// ProvideTurnLimiter returns nil when limiting is switched off with
// RATE_TURNS_PER_WINDOW=0.
func ProvideTurnLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if cfg.Rate.TurnsPerWindow == 0 {
		return nil
	}
	limitConfig := ratelimit.DefaultTurnConfig()
	limitConfig.MaxRequests = cfg.Rate.TurnsPerWindow
	limitConfig.Window = cfg.Rate.Window
	if rdb == nil {
		return ratelimit.NewMemoryRateLimiter(limitConfig)
	}
	return ratelimit.NewRedisRateLimiter(rdb, limitConfig)
}

func ProvideIngestor(cfg *config.Config) (*attachment.Ingestor, error) {
	store, err := attachment.NewFileStore(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	return attachment.NewIngestor(store, cfg.Storage.MaxUploadBytes, services.NewLogger("attachment")), nil
}

// InitializeApplication builds every service and the HTTP handler.
func InitializeApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	db, err := ProvideDatabase(cfg)
	if err != nil {
		return app, fmt.Errorf("database: %w", err)
	}
	app.DB = db

	rdb, err := ProvideRedis(ctx, cfg)
	if err != nil {
		return app, err
	}
	app.Redis = rdb

	aiConfig := ProvideAIConfig(cfg)
	if err := aiConfig.Validate(); err != nil {
		return app, ai.NewConfigError(err.Error())
	}
	provider := ai.NewOpenAIProvider(aiConfig)

	chatConfig := ProvideChatConfig(cfg)
	mem, err := ProvideMemory(cfg, provider, chatConfig.Instruction)
	if err != nil {
		return app, fmt.Errorf("memory: %w", err)
	}
	app.Memory = mem

	deps := services.ChatServiceDeps{
		Config:      chatConfig,
		ChatRepo:    chat.NewChatRepository(db),
		MessageRepo: message.NewMessageRepository(db),
		AI:          provider,
		Locker:      ProvideTurnLocker(cfg, rdb),
		Logger:      services.NewLogger("chat"),
	}
	if mem != nil {
		deps.Memory = mem
	}
	chatService, err := services.NewChatService(deps)
	if err != nil {
		return app, fmt.Errorf("chat service: %w", err)
	}
	userService := services.NewUserService(user.NewGormUserRepository(db), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ingestor, err := ProvideIngestor(cfg)
	if err != nil {
		return app, fmt.Errorf("attachments: %w", err)
	}

	app.Handler = handlers.NewRouter(handlers.RouterConfig{
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		CORSOrigin:    cfg.Server.CORSOrigin,
		FilesDir:      cfg.Storage.UploadDir,
		Metrics:       promhttp.Handler(),
		TurnLimiter:   ProvideTurnLimiter(cfg, rdb),
		AuthHandler:   handlers.NewAuthHandler(userService),
		ChatHandler:   handlers.NewChatHandler(userService, chatService, render.NewMarkdown()),
		TurnHandler:   handlers.NewTurnHandler(chatService),
		UploadHandler: handlers.NewUploadHandler(ingestor, chatService, cfg.Storage.MaxUploadBytes),
	})
	return app, nil
}
