package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/workspace"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), ErrCodeTimeout},
		{"skipped", workspace.ErrSkipped, ErrCodeFileSkipped},
		{"file not found", cserrors.IOError("file not found", nil), ErrCodeFileNotFound},
		{"file too large", cserrors.New(cserrors.ErrCodeFileTooLarge, "too large", nil), ErrCodeFileTooLarge},
		{"index failed", cserrors.New(cserrors.ErrCodeIndexFailed, "insert", nil), ErrCodeIndexFailed},
		{"engine init", cserrors.New(cserrors.ErrCodeEngineInitFailed, "open", nil), ErrCodeIndexFailed},
		{"validation", cserrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"invalid path", cserrors.New(cserrors.ErrCodeInvalidPath, "not a file uri", nil), ErrCodeInvalidParams},
		{"network", cserrors.New(cserrors.ErrCodeListenFailed, "listen", nil), ErrCodeTimeout},
		{"search failed", cserrors.New(cserrors.ErrCodeSearchFailed, "query", nil), ErrCodeInternalError},
		{"plain", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPError(t *testing.T) {
	orig := NewInvalidParamsError("query parameter is required")

	got := MapError(fmt.Errorf("wrapped: %w", orig))

	assert.Same(t, orig, got)
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := cserrors.ValidationError("limit out of range", nil).WithSuggestion("Use a limit of at most 100.")

	got := MapError(err)

	assert.Equal(t, "limit out of range Use a limit of at most 100.", got.Message)
}

func TestMapError_HidesPlainErrorText(t *testing.T) {
	got := MapError(errors.New("open /secret/path: permission denied"))

	assert.NotContains(t, got.Message, "/secret/path")
}
