package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/domain/validation"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{err: project.ErrProjectNotFound, code: "PROJECT_NOT_FOUND"},
		{err: fmt.Errorf("wrapped: %w", note.ErrNoteNotFound), code: "NOTE_NOT_FOUND"},
		{err: progress.ErrInvalidPhase, code: "INVALID_PHASE"},
		{err: validation.New("Invalid project data").Add("title", "Title is required"), code: "INVALID_INPUT"},
		{err: auth.ErrUnauthenticated, code: "UNAUTHENTICATED"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			apiErr := MapError(tt.err)
			require.NotNil(t, apiErr)
			require.Equal(t, tt.code, apiErr.Code)
		})
	}

	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(errors.New("disk full")))
}

func TestToolErrorHidesInternalCause(t *testing.T) {
	err := toolError(errors.New("connection refused to 10.0.0.5"))
	require.NotContains(t, err.Error(), "10.0.0.5")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "INTERNAL", apiErr.Code)
}
