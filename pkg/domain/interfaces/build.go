package interfaces

import (
	"context"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// BuildAdapter is a build backend. The manifest format is opaque to callers.
type BuildAdapter interface {
	Name() string
	// RequiredTools lists executables that must be on PATH
	RequiredTools() []string

	SetManifestVersion(ctx context.Context, v model.Version) error
	// ReadManifestVersion returns nil when the manifest has no version
	ReadManifestVersion(ctx context.Context) (*string, error)
	ReadProjectIdentifier(ctx context.Context) (string, error)

	// Build packages the project. The manifest must already carry v.
	Build(ctx context.Context, v model.Version, artifactID string, skipTests bool) (*model.BuildResult, error)
}

// VersionStore persists the version record file.
type VersionStore interface {
	// Read returns nil when there is no record yet
	Read(ctx context.Context) (*string, error)
	Write(ctx context.Context, v model.Version) error
}
