package model

// BuildResult is produced by a build backend and consumed once by the
// orchestrator.
type BuildResult struct {
	ArtifactPath string
	Success      bool
	Diagnostic   string
}
