package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("LLM_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, 4, cfg.Rag.TopK)
	assert.Equal(t, 2, cfg.Rag.PrepareTopK)
	assert.Equal(t, 10*time.Second, cfg.Rag.TopicWriteTimeout)
	assert.Equal(t, 2000, cfg.Rag.MaxTokensPerChunk)
	assert.Equal(t, 4, cfg.Rag.CharsPerToken)
	assert.Equal(t, 120, cfg.Rag.LinesPerChunk)
	assert.Equal(t, 20, cfg.Rag.LinesOverlap)
	assert.Equal(t, 12000, cfg.Rag.MaxContextChars)
	assert.Equal(t, 1, cfg.Rag.EmbedConcurrency)
	assert.Equal(t, 90*time.Minute, cfg.Rag.KeepAliveInterval)
	assert.Equal(t, 600*time.Second, cfg.Ai.LLMTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "6")
	t.Setenv("RAG_EMBED_CONCURRENCY", "4")
	t.Setenv("LLM_TIMEOUT", "30")
	t.Setenv("KEEP_ALIVE_INTERVAL", "5m")
	t.Setenv("DB_LOG_QUERIES", "true")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, 6, cfg.Rag.TopK)
	assert.Equal(t, 4, cfg.Rag.EmbedConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Ai.LLMTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Rag.KeepAliveInterval)
	assert.True(t, cfg.Database.LogQueries)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ai.LLMBaseURL)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ai.EmbeddingBaseURL)
	assert.True(t, cfg.App.IsProduction())
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.False(t, getEnvAsBool("X_BOOL", false))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
}

func TestValidate_RequiresJwtSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, Load().Validate())

	t.Setenv("JWT_SECRET", "s3cret")
	assert.NoError(t, Load().Validate())
}
