// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Environment string

	Server  ServerConfig
	Auth    AuthConfig
	DB      DBConfig
	LLM     LLMConfig
	Memory  MemoryConfig
	Redis   RedisConfig
	Rate    RateConfig
	Storage StorageConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	CORSOrigin        string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type DBConfig struct {
	Driver string
	DSN    string
}

type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Instruction   string
	Temperature   float64
	StreamTimeout time.Duration
}

type MemoryConfig struct {
	Enabled          bool
	EmbeddingKey     string
	EmbeddingBaseURL string
	EmbeddingModel   string
	PineconeAPIKey   string
	PineconeHost     string
	Namespace        string
	TopK             int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type RateConfig struct {
	TurnsPerWindow int
	Window         time.Duration
}

type StorageConfig struct {
	UploadDir      string
	PublicBaseURL  string
	MaxUploadBytes int64
	MaxAttachments int
}

type ChatConfig struct {
	PersistInterrupted bool
}

type LogConfig struct {
	Level      string
	Structured bool
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment variables or .env file.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if !strings.EqualFold(env, "production") {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found; continuing with environment variables")
		}
	}

	port := getEnv("SERVER_PORT", "8080")
	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:              port,
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
			ShutdownTimeout:   getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			CORSOrigin:        getEnv("CORS_ORIGIN", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET_KEY", ""),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		DB: DBConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DB_DSN", "go-chat.db"),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("LLM_API_KEY", ""),
			BaseURL:       getEnv("LLM_BASE_URL", ""),
			Model:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			Instruction:   getEnv("LLM_SYSTEM_INSTRUCTION", ""),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			StreamTimeout: getEnvAsDuration("LLM_STREAM_TIMEOUT", 5*time.Minute),
		},
		Memory: MemoryConfig{
			Enabled:          getEnvAsBool("MEMORY_ENABLED", false),
			EmbeddingKey:     getEnv("EMBEDDING_API_KEY", ""),
			EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingModel:   getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
			PineconeAPIKey:   getEnv("PINECONE_API_KEY", ""),
			PineconeHost:     getEnv("PINECONE_INDEX_HOST", ""),
			Namespace:        getEnv("PINECONE_NAMESPACE", "chat-memory"),
			TopK:             getEnvAsInt("MEMORY_TOPK", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("TURN_LOCK_TTL", 10*time.Minute),
		},
		Rate: RateConfig{
			TurnsPerWindow: getEnvAsInt("RATE_TURNS_PER_WINDOW", 30),
			Window:         getEnvAsDuration("RATE_WINDOW", time.Hour),
		},
		Storage: StorageConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:"+port) + "/files",
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
			MaxAttachments: getEnvAsInt("MAX_ATTACHMENTS", 2),
		},
		Chat: ChatConfig{
			PersistInterrupted: getEnvAsBool("CHAT_PERSIST_INTERRUPTED", false),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Structured: getEnvAsBool("LOG_JSON", strings.EqualFold(env, "production")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules. Secrets are only mandatory in
// production.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DB.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Rate.TurnsPerWindow < 0 || c.Rate.Window <= 0 {
		return fmt.Errorf("invalid rate limit %d per %s", c.Rate.TurnsPerWindow, c.Rate.Window)
	}

	if c.IsProduction() {
		missing := []string{}
		if c.Auth.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if c.LLM.APIKey == "" {
			missing = append(missing, "LLM_API_KEY")
		}
		if c.Memory.Enabled && c.Memory.PineconeAPIKey == "" {
			missing = append(missing, "PINECONE_API_KEY")
		}
		if c.Memory.Enabled && c.Memory.PineconeHost == "" {
			missing = append(missing, "PINECONE_INDEX_HOST")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required production environment variables: %v", missing)
		}
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Warn().Str("key", key).Msg("could not parse env var as integer, using default")
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Warn().Str("key", key).Msg("could not parse env var as float, using default")
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strValue)
	if err != nil {
		log.Warn().Str("key", key).Msg("could not parse env var as bool, using default")
		return defaultValue
	}
	return v
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strValue)
	if err != nil {
		log.Warn().Str("key", key).Msg("could not parse env var as duration, using default")
		return defaultValue
	}
	return v
}
