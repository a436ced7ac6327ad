package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docqa-be/pkg/llm"
	"docqa-be/pkg/rag"
)

const DefaultTimeout = 600 * time.Second

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
	// StreamClient has no overall timeout; streams end through ctx.
	StreamClient *http.Client
	Logger       rag.Logger
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, timeout time.Duration, logger rag.Logger) *OllamaProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: timeout,
		},
		StreamClient: &http.Client{},
		Logger:       rag.OrNop(logger),
	}
}

// --- Request structs (Internal to this package) ---

type ollamaGenerateRequest struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	Stream      bool           `json:"stream"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p,omitempty"`
	Options     *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature      float64  `json:"temperature"`
	NumPredict       int      `json:"num_predict,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	RepeatPenalty    float64  `json:"repeat_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	resp, err := o.post(ctx, o.Client, prompt, false, opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w: %w", rag.ErrGenerationFailure, err)
	}

	reply := llm.ClassifyReply(bodyBytes, o.Logger)
	if reply.Kind == llm.ReplyFallback {
		o.Logger.Warn("OllamaProvider", "Reply had no usable shape", map[string]interface{}{
			"body_len": len(bodyBytes),
		})
	}
	return reply.Text, nil
}

func (o *OllamaProvider) GenerateStream(ctx context.Context, prompt string, opts ...llm.Option) (io.ReadCloser, error) {
	resp, err := o.post(ctx, o.StreamClient, prompt, true, opts)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Ping lists local models, which is cheap and keeps the backend warm.
func (o *OllamaProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama ping failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama ping: status %d", resp.StatusCode)
	}
	return nil
}

func (o *OllamaProvider) post(ctx context.Context, client *http.Client, prompt string, stream bool, opts []llm.Option) (*http.Response, error) {
	// 1. Process Options
	options := llm.Apply(opts...)

	// 2. Prepare Payload
	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaGenerateRequest{
		Model:       model,
		Prompt:      prompt,
		Stream:      stream,
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
		TopP:        options.TopP,
		Options: &ollamaOptions{
			Temperature:      options.Temperature,
			NumPredict:       options.MaxTokens,
			TopP:             options.TopP,
			RepeatPenalty:    options.RepeatPenalty,
			PresencePenalty:  options.PresencePenalty,
			FrequencyPenalty: options.FrequencyPenalty,
			Stop:             options.Stop,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// 3. Send Request
	url := o.BaseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %w", rag.ErrGenerationFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama error: status %d, body: %s", rag.ErrGenerationFailure, resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}
