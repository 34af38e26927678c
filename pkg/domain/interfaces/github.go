package interfaces

import (
	"context"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// GitHubClient is the thin release API of the hosting service. It performs
// exactly one request per call and never retries; retry policy lives in the
// publisher.
type GitHubClient interface {
	// GetReleaseByTag returns the release for tag, or an error tagged
	// model.ErrTagNotFound when there is none
	GetReleaseByTag(ctx context.Context, tag string) (*model.Release, error)

	// GetLatestRelease returns the latest published release
	GetLatestRelease(ctx context.Context) (*model.Release, error)

	// CreateRelease creates a published release for an existing tag. A
	// duplicate is rejected with an error tagged model.ErrTagAlreadyExists
	CreateRelease(ctx context.Context, tag, name, body string) (*model.Release, error)

	// ListAssets lists assets attached to a release
	ListAssets(ctx context.Context, releaseID int64) ([]model.Asset, error)

	// UploadAsset uploads the file at path as an asset named name
	UploadAsset(ctx context.Context, releaseID int64, name, path string) (*model.Asset, error)

	// DeleteAsset removes an asset from its release
	DeleteAsset(ctx context.Context, assetID int64) error
}

// ReleaseHost creates releases and attaches the run's artifact with bounded
// retries and idempotent replacement.
type ReleaseHost interface {
	CreateRelease(ctx context.Context, tag, title, notes, artifactPath string) (*model.PublishResult, error)
	UploadAsset(ctx context.Context, tag, artifactPath string, replaceExisting bool) error
	ReleaseExists(ctx context.Context, tag string) (bool, error)
	ListAssetNames(ctx context.Context, tag string) (map[string]struct{}, error)
	LatestReleaseTag(ctx context.Context) (string, error)
}
