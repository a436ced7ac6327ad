//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"docqa-be/internal/config"
	"docqa-be/pkg/embedding"
	"docqa-be/pkg/rag/rank"
)

func main() {
	cfg := config.Load()

	// 1. Initialize Provider
	fmt.Printf("--- Embedding model %s at %s ---\n", cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingBaseURL)
	provider := embedding.NewOllamaProvider(cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 2. Define Test Cases
	texts := []string{
		"The quick brown fox jumps over the lazy dog",      // Original
		"A fast brown fox leaps over a sleepy canine",      // Semantically similar
		"Quantum physics explores the nature of particles", // Completely different
	}

	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := provider.Generate(ctx, t)
		if err != nil {
			log.Fatalf("Error (Text %d): %v", i+1, err)
		}
		vectors[i] = res.Embedding.Values
		fmt.Printf("Text %d dimensions: %d\n", i+1, len(vectors[i]))
	}

	// 3. Compare Similarity with the same scoring the ranker uses
	fmt.Println("\n--- Semantic Similarity Comparison ---")
	fmt.Printf("Similarity (Text 1 vs Text 2 - Similar): %.4f\n", rank.CosineSimilarity(vectors[0], vectors[1]))
	fmt.Printf("Similarity (Text 1 vs Text 3 - Different): %.4f\n", rank.CosineSimilarity(vectors[0], vectors[2]))

	// 4. Rank the corpus against the first text
	candidates := make([]rank.Candidate, len(vectors)-1)
	for i := range candidates {
		candidates[i] = rank.Candidate{ChunkIndex: i + 1, Vector: vectors[i+1]}
	}
	fmt.Println("\n--- Ranking against Text 1 ---")
	for _, s := range rank.TopK(vectors[0], candidates, len(candidates)) {
		fmt.Printf("Text %d: %.4f\n", s.ChunkIndex+1, s.Similarity)
	}
}
