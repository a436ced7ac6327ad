package factory

import (
	"fmt"
	"time"

	"docqa-be/pkg/llm"
	"docqa-be/pkg/llm/ollama"
	"docqa-be/pkg/rag"
)

func NewLLMProvider(providerType, modelName, baseURL string, timeout time.Duration, logger rag.Logger) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama", "granite":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
