package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"docqa-be/pkg/rag"
	"docqa-be/pkg/stream"
)

// FallbackAnswer is returned when no reply shape yields text.
const FallbackAnswer = "No usable response from the generation backend."

type ReplyKind int

const (
	ReplyResponse ReplyKind = iota
	ReplyEmbeddedStream
	ReplyBareStream
	ReplyFallback
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyResponse:
		return "response"
	case ReplyEmbeddedStream:
		return "embedded_stream"
	case ReplyBareStream:
		return "bare_stream"
	default:
		return "fallback"
	}
}

// Reply is a classified non-streaming generation result.
type Reply struct {
	Kind ReplyKind
	Text string
}

type replyEnvelope struct {
	Response *string `json:"response"`
	Data     *string `json:"data"`
}

// ClassifyReply extracts answer text from a non-streaming body. Shapes are
// tried in order: an object with a "response" field, an object whose "data"
// field holds NDJSON, then the body itself as NDJSON (raw or as a JSON
// string). The first shape that yields text wins; otherwise the fallback.
func ClassifyReply(body []byte, logger rag.Logger) Reply {
	trimmed := bytes.TrimSpace(body)

	var env replyEnvelope
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &env) == nil {
		switch {
		case env.Response != nil:
			return Reply{Kind: ReplyResponse, Text: strings.TrimSpace(*env.Response)}
		case env.Data != nil:
			if text, ok := joinTokens([]byte(*env.Data), logger); ok {
				return Reply{Kind: ReplyEmbeddedStream, Text: text}
			}
		}
		return Reply{Kind: ReplyFallback, Text: FallbackAnswer}
	}

	var bare string
	if len(trimmed) > 0 && trimmed[0] == '"' && json.Unmarshal(trimmed, &bare) == nil {
		trimmed = []byte(bare)
	}
	if text, ok := joinTokens(trimmed, logger); ok {
		return Reply{Kind: ReplyBareStream, Text: text}
	}
	return Reply{Kind: ReplyFallback, Text: FallbackAnswer}
}

// joinTokens concatenates Token frames up to the first terminal frame.
func joinTokens(ndjson []byte, logger rag.Logger) (string, bool) {
	var sb strings.Builder
	for _, f := range stream.DecodeAll(ndjson, logger) {
		if f.Terminal() {
			break
		}
		if f.Kind == stream.KindToken {
			sb.WriteString(f.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	return text, text != ""
}
