package progress

import "time"

// Status is the completion state of one phase.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// ModuleProgress is a project's record for one catalog phase.
type ModuleProgress struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	ModuleNumber  int       `json:"moduleNumber"`
	ModuleTitle   string    `json:"moduleTitle"`
	PhaseNumber   int       `json:"phaseNumber"`
	PhaseTitle    string    `json:"phaseTitle"`
	Content       *string   `json:"content"`
	PromptCreated *string   `json:"promptCreated"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ModuleCompletion is the completion of a single module.
type ModuleCompletion struct {
	ModuleNumber int    `json:"moduleNumber"`
	ModuleTitle  string `json:"moduleTitle"`
	Completed    int    `json:"completed"`
	Total        int    `json:"total"`
	Percent      int    `json:"percent"`
}

// Completion is the aggregated progress of a project.
type Completion struct {
	ProjectID string             `json:"projectId"`
	Percent   int                `json:"percent"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Modules   []ModuleCompletion `json:"modules"`
}
