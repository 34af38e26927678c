package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so the orchestrator and CLI can decide between
// abort, degrade and exit code without string matching.
var (
	// ErrTagPrecondition marks configuration and environment problems found
	// before any mutation (missing tools, unknown backend, lock held).
	ErrTagPrecondition = goerr.NewTag("precondition")

	// ErrTagInvalidVersion marks a version string that is not MAJOR.MINOR.PATCH.
	ErrTagInvalidVersion = goerr.NewTag("invalid_version")

	// ErrTagBuildFailed marks a non-zero exit of the build backend.
	ErrTagBuildFailed = goerr.NewTag("build_failed")

	// ErrTagArtifactNotFound marks a successful build without a resolvable artifact.
	ErrTagArtifactNotFound = goerr.NewTag("artifact_not_found")

	// ErrTagVersionMismatch marks a manifest that does not report the intended version.
	ErrTagVersionMismatch = goerr.NewTag("version_mismatch")

	// ErrTagPublish marks a release that could not be created on the host.
	ErrTagPublish = goerr.NewTag("publish")

	// ErrTagAlreadyExists marks a host-side "already exists" rejection.
	ErrTagAlreadyExists = goerr.NewTag("already_exists")

	// ErrTagNotFound marks a host-side lookup that found nothing.
	ErrTagNotFound = goerr.NewTag("not_found")

	// ErrTagPlugin marks a failing plugin executable.
	ErrTagPlugin = goerr.NewTag("plugin")
)
