package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"docqa-be/internal/config"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/repository/unitofwork"
	"docqa-be/internal/service"
	"docqa-be/pkg/database"
	"docqa-be/pkg/embedding"
	"docqa-be/pkg/llm/factory"
	"docqa-be/pkg/rag/chunker"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/rag/prompt"
	"docqa-be/pkg/rag/scope"
	"docqa-be/pkg/stream"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

/*
Traces one question through retrieval: the chunks that were ranked, their
scores and the exact prompt sent to the model.

USAGE:
  go run ./cmd/trace_rag -user <uuid> -q "question" [-scope all|latest|current|ids] [-doc 12] [-ids 3,4] [-generate]
*/

func main() {
	userFlag := flag.String("user", "", "owner id")
	question := flag.String("q", "", "question")
	scopeKind := flag.String("scope", "all", "all, latest, current or ids")
	docID := flag.String("doc", "", "document id for -scope current")
	idList := flag.String("ids", "", "comma separated ids for -scope ids")
	topK := flag.Int("k", 0, "chunks to keep (0 uses RAG_TOP_K)")
	generate := flag.Bool("generate", false, "stream the model answer after the prompt")
	flag.Parse()

	owner, err := uuid.Parse(*userFlag)
	if err != nil || strings.TrimSpace(*question) == "" {
		color.Red("usage: trace_rag -user <uuid> -q <question> [-scope ...]")
		os.Exit(1)
	}

	var ids []interface{}
	for _, part := range strings.Split(*idList, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	sc, err := scope.Parse(*scopeKind, *docID, ids)
	if err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}

	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig())
	if err != nil {
		color.Red("❌ Failed to connect to database: %v", err)
		os.Exit(1)
	}
	store := service.NewRecordStore(unitofwork.NewRepositoryFactory(db))
	log := logger.NewZapLogger(cfg.App.LogFilePath, false)

	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.LLMBaseURL, cfg.Ai.LLMTimeout, log)
	if err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}

	prompts := prompt.NewBuilder(cfg.Rag.MaxContextChars)
	eng := engine.New(
		scope.NewResolver(store),
		chunker.New(chunker.Config{
			Strategy:          cfg.Rag.ChunkStrategy,
			MaxTokensPerChunk: cfg.Rag.MaxTokensPerChunk,
			CharsPerToken:     cfg.Rag.CharsPerToken,
			LinesPerChunk:     cfg.Rag.LinesPerChunk,
			LinesOverlap:      cfg.Rag.LinesOverlap,
		}),
		embedding.NewOllamaProvider(cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingTimeout),
		llmProvider,
		prompts,
		engine.Config{TopK: cfg.Rag.TopK, EmbedConcurrency: cfg.Rag.EmbedConcurrency},
		log,
	)

	ctx := context.Background()
	k := *topK
	if k <= 0 {
		k = cfg.Rag.TopK
	}

	color.Cyan("🔎 Owner %s, scope %s, top %d", owner, sc, k)
	retrieval, err := eng.Retrieve(ctx, owner, sc, *question, k)
	if err != nil {
		color.Red("❌ Retrieve failed: %v", err)
		os.Exit(1)
	}

	color.Yellow("\n[CHUNKS] %d total, %d failed to embed", len(retrieval.Chunks), retrieval.Failed)
	for i, scored := range retrieval.Ranked {
		c := retrieval.Chunks[scored.ChunkIndex]
		color.Green("#%d chunk %d score %s", i+1, scored.ChunkIndex, strconv.FormatFloat(scored.Similarity, 'f', 4, 64))
		fmt.Println(prompt.Clip(c.Text, engine.AtomicPreviewChars))
	}

	color.Yellow("\n[PROMPT]")
	fmt.Println(prompts.Freeform(*question, retrieval.Texts()))

	if !*generate {
		return
	}

	color.Yellow("\n[ANSWER]")
	s, err := eng.AskStream(ctx, engine.Request{OwnerID: owner, Question: *question, Scope: sc, TopK: k})
	if err != nil {
		color.Red("❌ Generation failed: %v", err)
		os.Exit(1)
	}
	defer s.Close()
	for frame := range s.Frames() {
		switch frame.Kind {
		case stream.KindToken:
			fmt.Print(frame.Text)
		case stream.KindError:
			color.Red("\n❌ %s", frame.Reason)
		case stream.KindDone:
			fmt.Println()
			color.Green("✅ done")
		}
	}
}
