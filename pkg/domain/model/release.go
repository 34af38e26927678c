package model

import "path/filepath"

// Release is the host-side view of a published release.
type Release struct {
	ID      int64
	Tag     string
	Name    string
	HTMLURL string
	Assets  []Asset
}

// Asset is a file attached to a release on the host.
type Asset struct {
	ID   int64
	Name string
	Size int
}

// AssetNames returns the set of asset names attached to the release.
func (r *Release) AssetNames() map[string]struct{} {
	names := make(map[string]struct{}, len(r.Assets))
	for _, a := range r.Assets {
		names[a.Name] = struct{}{}
	}
	return names
}

// ReleaseAsset is the single artifact a run attaches to its release.
type ReleaseAsset struct {
	ReleaseTag   string
	ArtifactPath string
	Name         string
}

// NewReleaseAsset names the asset after the artifact's file name
func NewReleaseAsset(tag, artifactPath string) *ReleaseAsset {
	return &ReleaseAsset{
		ReleaseTag:   tag,
		ArtifactPath: artifactPath,
		Name:         filepath.Base(artifactPath),
	}
}

// PublishResult reports how a release ended up on the host. Attached is
// false when the release exists but the artifact could not be attached;
// Warnings then carries the manual recovery guidance. Asset is set exactly
// when Attached is.
type PublishResult struct {
	Release       *Release
	Attached      bool
	Asset         *ReleaseAsset
	AlreadyExists bool
	Attempts      int
	Warnings      []string
}
