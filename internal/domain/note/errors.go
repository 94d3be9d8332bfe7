package note

import "errors"

// ErrNoteNotFound indicates the note doesn't exist.
var ErrNoteNotFound = errors.New("note not found")
