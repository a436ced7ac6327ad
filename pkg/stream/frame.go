// Package stream decodes newline-delimited JSON generation output into frames.
package stream

import "encoding/json"

type Kind string

const (
	KindToken   Kind = "token"
	KindSources Kind = "sources"
	KindDone    Kind = "done"
	KindError   Kind = "error"
)

// Source describes one retrieved chunk sent ahead of the answer tokens.
type Source struct {
	ChunkIndex int     `json:"chunkIndex"`
	Preview    string  `json:"preview"`
	Score      float64 `json:"score"`
}

// Frame is a Token, Sources, Done or Error event. Only the field matching
// Kind is set.
type Frame struct {
	Kind    Kind
	Text    string
	Sources []Source
	Reason  string
}

func Token(text string) Frame { return Frame{Kind: KindToken, Text: text} }
func Sources(sources []Source) Frame { return Frame{Kind: KindSources, Sources: sources} }
func Done() Frame { return Frame{Kind: KindDone} }
func Error(reason string) Frame { return Frame{Kind: KindError, Reason: reason} }
func (f Frame) Terminal() bool { return f.Kind == KindDone || f.Kind == KindError }

func (f Frame) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"type": f.Kind}
	switch f.Kind {
	case KindToken:
		out["text"] = f.Text
	case KindSources:
		sources := f.Sources
		if sources == nil {
			sources = []Source{}
		}
		out["sources"] = sources
	case KindError:
		out["error"] = f.Reason
	}
	return json.Marshal(out)
}
