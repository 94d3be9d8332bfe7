package project

import (
	"strings"
	"unicode/utf8"

	"github.com/rpggio/phasetrack/internal/domain/validation"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// ValidateTitle checks the title length after trimming.
func ValidateTitle(verr *validation.Error, title string) {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		verr.Add("title", "Title is required")
	case utf8.RuneCountInString(trimmed) > MaxTitleLength:
		verr.Add("title", "Title must be 100 characters or less")
	}
}

// ValidateDescription checks the optional description length.
func ValidateDescription(verr *validation.Error, description *string) {
	if description == nil {
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(*description)) > MaxDescriptionLength {
		verr.Add("description", "Description must be 500 characters or less")
	}
}

func normalizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
