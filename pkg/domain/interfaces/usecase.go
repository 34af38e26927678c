package interfaces

import (
	"context"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// ReleaseUseCase drives a release run end to end
type ReleaseUseCase interface {
	// Release cuts and publishes a new version
	Release(ctx context.Context, opts model.RunOptions) (*model.RunResult, error)

	// UploadOnly rebuilds the current version and attaches it to the
	// existing release
	UploadOnly(ctx context.Context, opts model.RunOptions) (*model.RunResult, error)

	// CurrentVersion reconciles and returns the current version
	CurrentVersion(ctx context.Context) (model.Version, error)
}
