package artifact

import "time"

// MasterArtifact is a consolidated deliverable attached to a project.
type MasterArtifact struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	ArtifactType    string    `json:"artifactType"`
	ArtifactContent string    `json:"artifactContent"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
