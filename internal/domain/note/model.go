package note

import "time"

// Note is free text attached to a project.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
