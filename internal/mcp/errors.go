// Package mcp exposes the archivist query surface as Model Context Protocol
// tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotBuilt indicates no lexical index is loaded.
	ErrCodeIndexNotBuilt = -32001

	// ErrCodeAdapterFailed indicates an external collaborator failed.
	ErrCodeAdapterFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates an unknown document or resource.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with code and message.
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

	var ae *aerrors.ArchivistError
	if errors.As(err, &ae) {
		return mapArchivistError(ae)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewNotFoundError creates an error for unknown documents or resources.
func NewNotFoundError(what string) *MCPError {
	return &MCPError{Code: ErrCodeNotFound, Message: fmt.Sprintf("'%s' not found.", what)}
}

func mapArchivistError(ae *aerrors.ArchivistError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Code {
	case aerrors.ErrCodeIndexNotBuilt, aerrors.ErrCodeCorruptIndex, aerrors.ErrCodeIndexVersion:
		return &MCPError{Code: ErrCodeIndexNotBuilt, Message: message}
	case aerrors.ErrCodeAdapterTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case aerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	}

	switch ae.Category {
	case aerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case aerrors.CategoryExternal:
		return &MCPError{Code: ErrCodeAdapterFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
