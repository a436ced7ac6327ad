// Package engine runs retrieval and generation for one question.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa-be/pkg/embedding"
	"docqa-be/pkg/llm"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/chunker"
	"docqa-be/pkg/rag/prompt"
	"docqa-be/pkg/rag/rank"
	"docqa-be/pkg/rag/scope"
	"docqa-be/pkg/stream"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	AtomicPreviewChars    = 240
	StreamingPreviewChars = 220
	TopicMaxTokens        = 256
)

type Config struct {
	TopK             int
	EmbedConcurrency int
}

// Request is one question. A non-empty Category selects category mode,
// which answers over the whole scope instead of retrieved chunks.
type Request struct {
	OwnerID  uuid.UUID
	Question string
	Category string
	Scope    scope.Scope
	TopK     int
}

func (r Request) categoryMode() bool {
	return strings.TrimSpace(r.Category) != ""
}

type Answer struct {
	Text    string
	Sources []stream.Source
}

// Retrieval is the ranked outcome of one question against one scope.
type Retrieval struct {
	Chunks []chunker.Chunk
	Ranked []rank.ScoredChunk
	Failed int
}

// Texts returns the ranked chunk texts, best first.
func (r *Retrieval) Texts() []string {
	out := make([]string, len(r.Ranked))
	for i, s := range r.Ranked {
		out[i] = r.Chunks[s.ChunkIndex].Text
	}
	return out
}

// Sources returns previews of the ranked chunks.
func (r *Retrieval) Sources(previewChars int) []stream.Source {
	out := make([]stream.Source, len(r.Ranked))
	for i, s := range r.Ranked {
		out[i] = stream.Source{
			ChunkIndex: s.ChunkIndex,
			Preview:    prompt.Clip(r.Chunks[s.ChunkIndex].Text, previewChars),
			Score:      s.Similarity,
		}
	}
	return out
}

type Engine struct {
	resolver *scope.Resolver
	chunker  chunker.Chunker
	embedder embedding.EmbeddingProvider
	llm      llm.LLMProvider
	prompts  *prompt.Builder
	cfg      Config
	logger   rag.Logger
	tracer   trace.Tracer
}

func New(
	resolver *scope.Resolver,
	chunks chunker.Chunker,
	embedder embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	prompts *prompt.Builder,
	cfg Config,
	logger rag.Logger,
) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = rank.DefaultTopK
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	return &Engine{
		resolver: resolver,
		chunker:  chunks,
		embedder: embedder,
		llm:      llmProvider,
		prompts:  prompts,
		cfg:      cfg,
		logger:   rag.OrNop(logger),
		tracer:   otel.Tracer("docqa-be/pkg/rag/engine"),
	}
}

// Ask answers req in one generation call.
func (e *Engine) Ask(ctx context.Context, req Request) (*Answer, error) {
	promptText, retrieval, err := e.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "rag.generate")
	defer span.End()

	start := time.Now()
	text, err := e.llm.Generate(ctx, promptText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		e.logger.Error("RagEngine", "Generation failed", map[string]interface{}{"error": err.Error()})
		return nil, asGenerationFailure(err)
	}

	e.logger.Info("RagEngine", "Answer generated", map[string]interface{}{
		"owner_id":    req.OwnerID,
		"answer_len":  len(text),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	answer := &Answer{Text: text}
	if retrieval != nil {
		answer.Sources = retrieval.Sources(AtomicPreviewChars)
	}
	return answer, nil
}

// AskStream answers req as a frame stream. Retrieved sources are the first
// frame; the caller must Close the stream.
func (e *Engine) AskStream(ctx context.Context, req Request) (*stream.Stream, error) {
	promptText, retrieval, err := e.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := e.llm.GenerateStream(ctx, promptText)
	if err != nil {
		e.logger.Error("RagEngine", "Stream request failed", map[string]interface{}{"error": err.Error()})
		return nil, asGenerationFailure(err)
	}

	var prelude []stream.Frame
	if retrieval != nil {
		prelude = append(prelude, stream.Sources(retrieval.Sources(StreamingPreviewChars)))
	}
	return stream.Open(ctx, body, e.logger, prelude...), nil
}

// GenerateTopic asks for a short label for text. The result is not
// normalized.
func (e *Engine) GenerateTopic(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", rag.ErrNoContext
	}
	raw, err := e.llm.Generate(ctx, e.prompts.Topic(text), llm.WithMaxTokens(TopicMaxTokens))
	if err != nil {
		return "", asGenerationFailure(err)
	}
	return raw, nil
}

func (e *Engine) buildPrompt(ctx context.Context, req Request) (string, *Retrieval, error) {
	if req.OwnerID == uuid.Nil {
		return "", nil, rag.ErrNotAuthenticated
	}
	sc := req.Scope
	if sc == nil {
		sc = scope.All{}
	}

	merged, err := e.resolver.ResolveText(ctx, req.OwnerID, sc)
	if err != nil {
		return "", nil, fmt.Errorf("resolve scope %s: %w", sc, err)
	}
	if strings.TrimSpace(merged) == "" {
		return "", nil, rag.ErrNoContext
	}

	if req.categoryMode() {
		return e.prompts.Category(req.Category, merged), nil, nil
	}

	retrieval, err := e.retrieveFrom(ctx, merged, req.Question, req.TopK)
	if err != nil {
		return "", nil, err
	}
	return e.prompts.Freeform(req.Question, retrieval.Texts()), retrieval, nil
}

// Retrieve ranks the chunks of sc against question without generating.
func (e *Engine) Retrieve(ctx context.Context, ownerID uuid.UUID, sc scope.Scope, question string, topK int) (*Retrieval, error) {
	merged, err := e.resolver.ResolveText(ctx, ownerID, sc)
	if err != nil {
		return nil, fmt.Errorf("resolve scope %s: %w", sc, err)
	}
	if strings.TrimSpace(merged) == "" {
		return nil, rag.ErrNoContext
	}
	return e.retrieveFrom(ctx, merged, question, topK)
}

func (e *Engine) retrieveFrom(ctx context.Context, merged, question string, topK int) (*Retrieval, error) {
	ctx, span := e.tracer.Start(ctx, "rag.retrieve")
	defer span.End()

	if topK <= 0 {
		topK = e.cfg.TopK
	}

	// 1. Chunk
	chunks := e.chunker.Split(merged)
	if len(chunks) == 0 {
		return nil, rag.ErrNoContext
	}

	// 2. Embed chunks, keeping results in chunk order
	vectors := e.embedChunks(ctx, chunks)

	candidates := make([]rank.Candidate, len(chunks))
	failed := 0
	for i, c := range chunks {
		candidates[i] = rank.Candidate{ChunkIndex: c.Index, Vector: vectors[i]}
		if vectors[i] == nil {
			failed++
		}
	}

	// 3. Embed query
	queryRes, err := e.embedder.Generate(ctx, question)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("RagEngine", "Query embedding failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %w", rag.ErrEmbeddingFailure, err)
	}

	// 4. Rank
	ranked := rank.TopK(queryRes.Embedding.Values, candidates, topK)

	span.SetAttributes(
		attribute.Int("rag.chunks", len(chunks)),
		attribute.Int("rag.embed_failures", failed),
		attribute.Int("rag.top_k", topK),
		attribute.Int("rag.ranked", len(ranked)),
	)
	e.logger.Debug("RagEngine", "Chunks ranked", map[string]interface{}{
		"chunks":         len(chunks),
		"embed_failures": failed,
		"ranked":         len(ranked),
	})

	if len(ranked) == 0 {
		return nil, rag.ErrNoRelevantContext
	}

	return &Retrieval{Chunks: chunks, Ranked: ranked, Failed: failed}, nil
}

// embedChunks embeds every chunk with bounded concurrency. A failed chunk
// leaves a nil vector and does not affect its siblings.
func (e *Engine) embedChunks(ctx context.Context, chunks []chunker.Chunk) [][]float32 {
	vectors := make([][]float32, len(chunks))

	var g errgroup.Group
	g.SetLimit(e.cfg.EmbedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			res, err := e.embedder.Generate(ctx, c.Text)
			if err != nil {
				e.logger.Warn("RagEngine", "Chunk embedding failed, skipping", map[string]interface{}{
					"chunk": c.Index,
					"error": err.Error(),
				})
				return nil
			}
			if res != nil && len(res.Embedding.Values) > 0 {
				vectors[i] = res.Embedding.Values
			}
			return nil
		})
	}
	_ = g.Wait()

	return vectors
}

func asGenerationFailure(err error) error {
	if errors.Is(err, rag.ErrGenerationFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", rag.ErrGenerationFailure, err)
}
