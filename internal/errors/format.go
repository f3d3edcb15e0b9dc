package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	e, ok := As(err)
	if !ok {
		e = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		fmt.Fprintf(&sb, "  Cause: %v\n", e.Cause)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", e.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", e.Code)

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for tool clients.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	e, ok := As(err)
	if !ok {
		e = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       e.Code,
		Message:    e.Message,
		Category:   string(e.Category),
		Details:    e.Details,
		Suggestion: e.Suggestion,
		Retryable:  e.Retryable,
	}
	if e.Cause != nil {
		je.Cause = e.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs returns key-value pairs for slog.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	e, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", e.Code,
		"error", e.Message,
		"category", string(e.Category),
		"retryable", e.Retryable,
	}
	if e.Cause != nil {
		attrs = append(attrs, "cause", e.Cause.Error())
	}
	for k, v := range e.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
