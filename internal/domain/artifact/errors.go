package artifact

import "errors"

// ErrArtifactNotFound indicates the artifact doesn't exist.
var ErrArtifactNotFound = errors.New("master artifact not found")
