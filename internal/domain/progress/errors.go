package progress

import (
	"errors"

	"github.com/rpggio/phasetrack/internal/domain/validation"
)

var (
	// ErrProgressNotFound indicates no record exists for the phase.
	ErrProgressNotFound = errors.New("module progress not found")

	// ErrInvalidPhase indicates a module/phase pair absent from the catalog.
	// It is also a validation error.
	ErrInvalidPhase error = validation.New("Invalid module or phase number").
			Add("phaseNumber", "not part of the framework catalog")
)
