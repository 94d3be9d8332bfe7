package project

import "time"

// Project is a user's run through the framework checklist.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary is a project with its aggregated completion.
type Summary struct {
	Project
	CompletionPercent int `json:"completionPercent"`
}
