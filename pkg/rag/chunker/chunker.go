// Package chunker splits merged document text into retrieval units.
package chunker

import (
	"strings"
)

const (
	DefaultMaxTokensPerChunk = 2000
	DefaultCharsPerToken     = 4
	DefaultLinesPerChunk     = 120
	DefaultLinesOverlap      = 20

	StrategyChars = "chars"
	StrategyLines = "lines"
)

// Chunk is one slice of the input text. Index is its position in the output.
type Chunk struct {
	Index int
	Text  string
}

type Chunker interface {
	Split(text string) []Chunk
}

type Config struct {
	Strategy          string
	MaxTokensPerChunk int
	CharsPerToken     int
	LinesPerChunk     int
	LinesOverlap      int
}

// New returns the chunker named by cfg.Strategy. Unknown names fall back to
// the character budget strategy.
func New(cfg Config) Chunker {
	if cfg.Strategy == StrategyLines {
		return LineWindow{LinesPerChunk: cfg.LinesPerChunk, LinesOverlap: cfg.LinesOverlap}
	}
	return CharBudget{MaxTokensPerChunk: cfg.MaxTokensPerChunk, CharsPerToken: cfg.CharsPerToken}
}

// CharBudget cuts every MaxTokensPerChunk*CharsPerToken runes, moving each cut
// back to the last space after the chunk start so words stay whole.
type CharBudget struct {
	MaxTokensPerChunk int
	CharsPerToken     int
}

func (c CharBudget) maxChars() int {
	tokens := c.MaxTokensPerChunk
	if tokens <= 0 {
		tokens = DefaultMaxTokensPerChunk
	}
	ratio := c.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	return tokens * ratio
}

func (c CharBudget) Split(text string) []Chunk {
	runes := []rune(text)
	total := len(runes)
	maxChars := c.maxChars()

	var chunks []Chunk
	for start := 0; start < total; {
		end := start + maxChars
		if end >= total {
			end = total
		} else if space := lastSpace(runes, start, end); space > start {
			end = space
		}

		part := string(runes[start:end])
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: part})
		}
		start = end
	}
	return chunks
}

// lastSpace finds the last ' ' at or before end that lies after start, or -1.
func lastSpace(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// LineWindow groups LinesPerChunk lines per chunk, with consecutive chunks
// sharing LinesOverlap lines.
type LineWindow struct {
	LinesPerChunk int
	LinesOverlap  int
}

func (l LineWindow) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	size := l.LinesPerChunk
	if size <= 0 {
		size = DefaultLinesPerChunk
	}
	step := size - l.LinesOverlap
	if l.LinesOverlap < 0 || step <= 0 {
		step = size
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var chunks []Chunk
	for i := 0; i < len(lines); i += step {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}

		part := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: part})
		}

		if end == len(lines) {
			break
		}
	}
	return chunks
}
