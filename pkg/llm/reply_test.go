package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReply(t *testing.T) {
	ndjson := `{"response":"Hello"}` + "\n" + `{"response":" world"}` + "\n" + `{"done":true}` + "\n" + `{"response":"ignored"}`

	tests := []struct {
		name     string
		body     string
		wantKind ReplyKind
		wantText string
	}{
		{"response field", `{"model":"m","response":"  The answer. ","done":true}`, ReplyResponse, "The answer."},
		{"response wins over data", `{"response":"direct","data":"{\"response\":\"nested\"}"}`, ReplyResponse, "direct"},
		{"embedded data stream", `{"data":` + quote(ndjson) + `}`, ReplyEmbeddedStream, "Hello world"},
		{"bare ndjson body", ndjson, ReplyBareStream, "Hello world"},
		{"json string body", quote(ndjson), ReplyBareStream, "Hello world"},
		{"object without known fields", `{"message":"hi"}`, ReplyFallback, FallbackAnswer},
		{"data without tokens", `{"data":"garbage"}`, ReplyFallback, FallbackAnswer},
		{"empty body", ``, ReplyFallback, FallbackAnswer},
		{"plain text", `just words`, ReplyFallback, FallbackAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyReply([]byte(tt.body), nil)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantText, got.Text)
		})
	}
}

func TestApply(t *testing.T) {
	o := Apply(WithMaxTokens(256), WithModel("granite"))
	assert.Equal(t, 256, o.MaxTokens)
	assert.Equal(t, "granite", o.Model)
	assert.Equal(t, 0.2, o.Temperature)
	assert.Len(t, o.Stop, 4)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
