package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// ReconcileVersion picks the current version from the version file, then the
// build manifest, then fallback. needsRecord is true when neither store held
// a version and a record has to be created.
func ReconcileVersion(fileVersion, manifestVersion *string, fallback model.Version) (model.Version, bool, error) {
	if fileVersion != nil {
		v, err := model.ParseVersion(*fileVersion)
		if err != nil {
			return model.Version{}, false, goerr.Wrap(err, "version file holds an invalid version")
		}
		return v, false, nil
	}

	if manifestVersion != nil {
		v, err := model.ParseVersion(*manifestVersion)
		if err != nil {
			return model.Version{}, false, goerr.Wrap(err, "build manifest holds an invalid version")
		}
		return v, false, nil
	}

	return fallback, true, nil
}

// CurrentVersion reconciles the version file and the build manifest without
// consulting the release host
func CurrentVersion(ctx context.Context, versions interfaces.VersionStore, build interfaces.BuildAdapter, fallback model.Version) (model.Version, error) {
	d := &deps{versions: versions, build: build}
	resolved, err := resolveVersion(ctx, d, model.RunOptions{SkipVersionSync: true}, fallback)
	if err != nil {
		return model.Version{}, err
	}
	return resolved.current, nil
}

type versionResolution struct {
	current     model.Version
	needsRecord bool
}

// resolveVersion reads both stores and reconciles them. Unless skipped, the
// result is compared with the latest published release; a mismatch is only
// logged unless syncLatest explicitly asks to adopt the published version.
func resolveVersion(ctx context.Context, d *deps, opts model.RunOptions, fallback model.Version) (*versionResolution, error) {
	logger := ctxlog.From(ctx)

	fileVersion, err := d.versions.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read version file")
	}
	manifestVersion, err := d.build.ReadManifestVersion(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read build manifest version", goerr.V("backend", d.build.Name()))
	}

	current, needsRecord, err := ReconcileVersion(fileVersion, manifestVersion, fallback)
	if err != nil {
		return nil, err
	}

	if fileVersion != nil && manifestVersion != nil && *fileVersion != *manifestVersion {
		logger.Warn("Version file and build manifest disagree, using version file",
			"version_file", *fileVersion,
			"manifest", *manifestVersion,
		)
	}
	if needsRecord {
		logger.Info("No version recorded yet, starting from default", "version", current.String())
	}

	if !opts.SkipVersionSync {
		current, err = syncWithPublished(ctx, d, current, opts.SyncLatest)
		if err != nil {
			return nil, err
		}
	}

	return &versionResolution{current: current, needsRecord: needsRecord}, nil
}

func syncWithPublished(ctx context.Context, d *deps, current model.Version, syncLatest bool) (model.Version, error) {
	logger := ctxlog.From(ctx)

	tag, err := d.host.LatestReleaseTag(ctx)
	if err != nil {
		logger.Warn("Could not compare with latest published release", "error", err)
		return current, nil
	}
	if tag == "" {
		return current, nil
	}

	published, err := model.ParseTag(tag)
	if err != nil {
		logger.Warn("Latest published release has a non-version tag", "tag", tag)
		return current, nil
	}
	if published == current {
		return current, nil
	}

	if !syncLatest {
		msg := "Local version is ahead of the latest published release"
		if published.Compare(current) > 0 {
			msg = "Latest published release is newer than the local version; pass --sync-latest to adopt it"
		}
		logger.Warn(msg, "local", current.String(), "published", published.String())
		return current, nil
	}

	// Only the in-memory current version changes here. The record is written
	// after the plan is approved.
	logger.Info("Adopting latest published version", "from", current.String(), "to", published.String())
	return published, nil
}

// verifyManifest fails when the manifest does not report want
func verifyManifest(ctx context.Context, build interfaces.BuildAdapter, want model.Version) error {
	got, err := build.ReadManifestVersion(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to read manifest version after update")
	}
	if got == nil || *got != want.String() {
		actual := "<none>"
		if got != nil {
			actual = *got
		}
		return goerr.New("build manifest does not report the release version",
			goerr.V("expected", want.String()),
			goerr.V("actual", actual),
			goerr.V("backend", build.Name()),
			goerr.T(model.ErrTagVersionMismatch))
	}
	return nil
}
