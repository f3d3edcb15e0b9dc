package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeLockHeld, "another codesnip server is running", errors.New("resource busy")).
		WithSuggestion("Stop the other server or use a different --dir")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: another codesnip server is running")
	assert.Contains(t, out, "Cause: resource busy")
	assert.Contains(t, out, "Hint: Stop the other server")
	assert.Contains(t, out, "Code: ERR_207_LOCK_HELD")
}

func TestFormatForCLI_PlainAndNil(t *testing.T) {
	assert.Equal(t, "", FormatForCLI(nil))
	assert.Contains(t, FormatForCLI(errors.New("boom")), "Code: ERR_501_INTERNAL")
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeInvalidQuery, "query is empty", nil).WithDetail("tool", "search_snippets")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ERR_403_INVALID_QUERY", got["code"])
	assert.Equal(t, "VALIDATION", got["category"])
	assert.Equal(t, false, got["retryable"])
	assert.Equal(t, map[string]any{"tool": "search_snippets"}, got["details"])
	assert.NotContains(t, got, "cause")
}

func TestFormatJSON_Nil(t *testing.T) {
	data, err := FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))

	attrs := LogAttrs(New(ErrCodeIndexFailed, "insert", errors.New("closed")))
	assert.Contains(t, attrs, "ERR_505_INDEX_FAILED")
	assert.Contains(t, attrs, "closed")
}
