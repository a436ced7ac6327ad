// Package rank scores chunk vectors against a query vector.
package rank

import (
	"math"
	"sort"
)

const DefaultTopK = 4

// Candidate is a chunk and its vector. A nil Vector means the embedding
// failed and the chunk is not scored.
type Candidate struct {
	ChunkIndex int
	Vector     []float32
}

type ScoredChunk struct {
	ChunkIndex int
	Similarity float64
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|) with each magnitude floored at 1
// when it is zero, clamped to [-1, 1]. Vectors of different length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, sumA, sumB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		sumA += x * x
		sumB += y * y
	}

	magA := math.Sqrt(sumA)
	if magA == 0 {
		magA = 1
	}
	magB := math.Sqrt(sumB)
	if magB == 0 {
		magB = 1
	}

	sim := dot / (magA * magB)
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// TopK scores every candidate that has a vector of the query's length and
// returns the best topK, highest first. Exact ties keep candidate order.
// topK <= 0 uses DefaultTopK.
func TopK(query []float32, candidates []Candidate, topK int) []ScoredChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Vector == nil || len(c.Vector) != len(query) {
			continue
		}
		scored = append(scored, ScoredChunk{
			ChunkIndex: c.ChunkIndex,
			Similarity: CosineSimilarity(query, c.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
