// Package mcp exposes the snippet index to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/workspace"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexFailed indicates the index could not be updated.
	ErrCodeIndexFailed = -32001

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// ErrCodeFileTooLarge indicates a file is too large to index.
	ErrCodeFileTooLarge = -32005

	// ErrCodeFileSkipped indicates the file is excluded from the workspace.
	ErrCodeFileSkipped = -32006

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, workspace.ErrSkipped):
		return &MCPError{Code: ErrCodeFileSkipped, Message: "File is excluded from the workspace."}
	}

	if ce, ok := cserrors.As(err); ok {
		return mapStructured(ce)
	}

	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapStructured(e *cserrors.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s %s", e.Message, e.Suggestion)
	}

	switch e.Code {
	case cserrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: message}
	case cserrors.ErrCodeFileTooLarge:
		return &MCPError{Code: ErrCodeFileTooLarge, Message: message}
	case cserrors.ErrCodeIndexFailed, cserrors.ErrCodeEngineInitFailed:
		return &MCPError{Code: ErrCodeIndexFailed, Message: message}
	}

	switch e.Category {
	case cserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case cserrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
