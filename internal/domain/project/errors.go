package project

import (
	"errors"

	"github.com/rpggio/phasetrack/internal/domain/validation"
)

var (
	// ErrProjectNotFound indicates the project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = validation.ErrInvalid
)
