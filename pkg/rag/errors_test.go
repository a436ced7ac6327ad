package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain sentinel", ErrNoContext, "NO_CONTEXT"},
		{"wrapped", fmt.Errorf("ask: %w", ErrStillPreparing), "STILL_PREPARING"},
		{"double wrapped", fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrGenerationFailure)), "GENERATION_FAILURE"},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}
