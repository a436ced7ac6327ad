package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	HubLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type DatabaseConfig struct {
	Connection      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

type AuthConfig struct {
	JwtSecret string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama"
	EmbeddingBaseURL  string
	EmbeddingModel    string
	EmbeddingTimeout  time.Duration
	LLMProvider       string // "ollama"
	LLMBaseURL        string
	LLMModel          string // e.g. "granite3.3:2b"
	LLMTimeout        time.Duration
}

type RagConfig struct {
	ChunkStrategy     string // "chars" or "lines"
	MaxTokensPerChunk int
	CharsPerToken     int
	LinesPerChunk     int
	LinesOverlap      int
	TopK              int
	PrepareTopK       int
	MaxContextChars   int
	EmbedConcurrency  int
	EmbedCacheTTL     time.Duration
	KeepAliveInterval time.Duration
	CoordinatorTTL    time.Duration // idle time before an owner's coordinator is dropped
	TopicWriteTimeout time.Duration
	PrepareTopic      string        // watermill topic for finished preparations
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			HubLogFilePath:     getEnv("HUB_LOG_FILE_PATH", "hub.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogQueries:      getEnvAsBool("DB_LOG_QUERIES", false),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", getEnv("OLLAMA_BASE_URL", "http://localhost:11434")),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingTimeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", getEnv("OLLAMA_BASE_URL", "http://localhost:11434")),
			LLMModel:          getEnv("LLM_MODEL", "granite3.3:2b"),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 600*time.Second),
		},
		Rag: RagConfig{
			ChunkStrategy:     getEnv("RAG_CHUNK_STRATEGY", "chars"),
			MaxTokensPerChunk: getEnvAsInt("RAG_MAX_TOKENS_PER_CHUNK", 2000),
			CharsPerToken:     getEnvAsInt("RAG_CHARS_PER_TOKEN", 4),
			LinesPerChunk:     getEnvAsInt("RAG_LINES_PER_CHUNK", 120),
			LinesOverlap:      getEnvAsInt("RAG_LINES_OVERLAP", 20),
			TopK:              getEnvAsInt("RAG_TOP_K", 4),
			PrepareTopK:       getEnvAsInt("RAG_PREPARE_TOP_K", 2),
			MaxContextChars:   getEnvAsInt("RAG_MAX_CONTEXT_CHARS", 12000),
			EmbedConcurrency:  getEnvAsInt("RAG_EMBED_CONCURRENCY", 1),
			EmbedCacheTTL:     getEnvAsDuration("RAG_EMBED_CACHE_TTL", 30*time.Minute),
			KeepAliveInterval: getEnvAsDuration("KEEP_ALIVE_INTERVAL", 90*time.Minute),
			CoordinatorTTL:    getEnvAsDuration("RAG_COORDINATOR_TTL", 2*time.Hour),
			TopicWriteTimeout: getEnvAsDuration("RAG_TOPIC_WRITE_TIMEOUT", 10*time.Second),
			PrepareTopic:      getEnv("DOCUMENT_PREPARED_TOPIC_NAME", "DOCUMENT_PREPARED"),
		},
	}
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JwtSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90m") or whole seconds ("600").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
