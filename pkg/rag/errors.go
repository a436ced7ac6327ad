package rag

import "errors"

// Failure conditions surfaced to callers. Each maps to a stable reason string.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoContext         = errors.New("no document text found")
	ErrNoRelevantContext = errors.New("no relevant context")
	ErrEmbeddingFailure  = errors.New("embedding failed")
	ErrGenerationFailure = errors.New("generation failed")
	ErrStreamTransport   = errors.New("stream transport error")
	ErrStillPreparing    = errors.New("document is still preparing")
	ErrPreparationFailed = errors.New("document preparation failed")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotAuthenticated, "NOT_AUTHENTICATED"},
	{ErrNoContext, "NO_CONTEXT"},
	{ErrNoRelevantContext, "NO_RELEVANT_CONTEXT"},
	{ErrEmbeddingFailure, "EMBEDDING_FAILURE"},
	{ErrGenerationFailure, "GENERATION_FAILURE"},
	{ErrStreamTransport, "STREAM_TRANSPORT_ERROR"},
	{ErrStillPreparing, "STILL_PREPARING"},
	{ErrPreparationFailed, "PREPARATION_FAILED"},
}

// Reason returns the stable reason code for err, or "INTERNAL_ERROR" when err
// does not wrap one of the package sentinels.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "INTERNAL_ERROR"
}
