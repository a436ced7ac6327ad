package llm

import (
	"context"
	"io"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

// Options are the sampling parameters sent with every generation request.
type Options struct {
	Temperature      float64
	TopP             float64
	RepeatPenalty    float64
	PresencePenalty  float64
	FrequencyPenalty float64
	MaxTokens        int
	Stop             []string
	Model            string // Override default model
}

// DefaultOptions are the fixed sampling defaults. They favour short,
// non-repetitive answers from small local models.
func DefaultOptions() Options {
	return Options{
		Temperature:      0.2,
		TopP:             0.9,
		RepeatPenalty:    1.25,
		PresencePenalty:  0.2,
		FrequencyPenalty: 0.2,
		MaxTokens:        512,
		Stop:             []string{"\n\nCONTEXT:", "\n\nQUESTION:", "\n\nAnswer:", "\n\nContext:"},
	}
}

// Apply returns the defaults with opts applied.
func Apply(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// LLMProvider defines the contract for any generation backend
type LLMProvider interface {
	// Generate sends one prompt and returns the classified reply text
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// GenerateStream sends one prompt and returns the raw NDJSON body
	GenerateStream(ctx context.Context, prompt string, options ...Option) (io.ReadCloser, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
}
