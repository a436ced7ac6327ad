package factory

import (
	"testing"

	"docqa-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider("ollama", "granite3.3:2b", "", 0, nil)
	require.NoError(t, err)
	op, ok := p.(*ollama.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", op.BaseURL)
	assert.Equal(t, ollama.DefaultTimeout, op.Client.Timeout)

	_, err = NewLLMProvider("openai", "gpt", "", 0, nil)
	assert.Error(t, err)
}
