package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/domain/validation"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. It returns nil for errors
// with no client-facing meaning.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, progress.ErrInvalidPhase):
		return &APIError{Code: "INVALID_PHASE", Message: "module or phase not in the framework", RecoveryHint: "Call list_framework_modules for valid numbers"}
	case errors.Is(err, validation.ErrInvalid):
		return &APIError{Code: "INVALID_INPUT", Message: validation.Message(err), Details: validation.Details(err)}
	case errors.Is(err, project.ErrProjectNotFound):
		return &APIError{Code: "PROJECT_NOT_FOUND", Message: "project not found", RecoveryHint: "Call list_projects for valid IDs"}
	case errors.Is(err, progress.ErrProgressNotFound):
		return &APIError{Code: "PHASE_RECORD_NOT_FOUND", Message: "no record for this phase"}
	case errors.Is(err, note.ErrNoteNotFound):
		return &APIError{Code: "NOTE_NOT_FOUND", Message: "note not found"}
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return &APIError{Code: "UNAUTHENTICATED", Message: "authentication required", RecoveryHint: "Send a valid bearer token"}
	default:
		return nil
	}
}

// toolError converts a service error into the error returned by a tool.
// Unmapped errors are replaced by a generic message.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return &APIError{Code: "INTERNAL", Message: "internal error"}
}
