package usecase

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// UploadOnly rebuilds the current version and attaches the artifact to the
// release that already exists for it. No commit or tag is made, so there is
// nothing to roll back.
func (uc *releaseUseCase) UploadOnly(ctx context.Context, opts model.RunOptions) (*model.RunResult, error) {
	logger := ctxlog.From(ctx).With("run_id", uuid.NewString(), "mode", "upload-only")
	ctx = ctxlog.With(ctx, logger)

	rec := &Recorder{}
	r := &run{
		d:      uc.runDeps(opts.DryRun, rec),
		rec:    rec,
		result: &model.RunResult{State: model.StateInit},
	}
	d := r.d

	if err := uc.checkTools(d.build); err != nil {
		return uc.fail(ctx, r, err)
	}

	project, err := d.build.ReadProjectIdentifier(ctx)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to read project name", goerr.T(model.ErrTagPrecondition)))
	}

	// The release being repaired is the recorded one, never a newer published one
	opts.SkipVersionSync = true
	resolved, err := resolveVersion(ctx, d, opts, uc.cfg.DefaultVersion)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	current := resolved.current
	r.to(ctx, model.StateVersionResolved)

	r.result.Plan = &model.ReleasePlan{
		CurrentVersion: current,
		NextVersion:    current,
		ProjectName:    project,
		DryRun:         opts.DryRun,
		Backend:        d.build.Name(),
	}
	tag := current.Tag()

	exists, err := d.host.ReleaseExists(ctx, tag)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to look up release", goerr.V("tag", tag), goerr.T(model.ErrTagPublish)))
	}
	if !exists {
		return uc.fail(ctx, r, goerr.New("no release exists for the current version; run a full release first",
			goerr.V("tag", tag),
			goerr.T(model.ErrTagPublish)))
	}

	manifest, err := d.build.ReadManifestVersion(ctx)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to read build manifest version"))
	}
	if manifest == nil || *manifest != current.String() {
		if err := d.build.SetManifestVersion(ctx, current); err != nil {
			return uc.fail(ctx, r, goerr.Wrap(err, "failed to update build manifest"))
		}
		if err := verifyManifest(ctx, d.build, current); err != nil {
			return uc.fail(ctx, r, err)
		}
	}

	artifact, err := uc.buildArtifact(ctx, d, current, project)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	r.to(ctx, model.StateBuilt)

	if err := d.host.UploadAsset(ctx, tag, artifact, true); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to attach artifact", goerr.V("tag", tag), goerr.T(model.ErrTagPublish)))
	}
	r.result.Publish = &model.PublishResult{
		Release:       &model.Release{Tag: tag},
		Attached:      true,
		Asset:         model.NewReleaseAsset(tag, artifact),
		AlreadyExists: true,
		Attempts:      1,
	}
	r.to(ctx, model.StateDone)

	logger.Info("Artifact attached to existing release", "tag", tag, "asset", filepath.Base(artifact))
	return r.finish(), nil
}
