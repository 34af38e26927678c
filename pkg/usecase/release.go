package usecase

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// deps are the collaborators of one run, possibly wrapped for dry run
type deps struct {
	vcs       interfaces.VcsGateway
	changelog interfaces.ChangelogGenerator
	build     interfaces.BuildAdapter
	host      interfaces.ReleaseHost
	plugins   interfaces.PluginRunner
	versions  interfaces.VersionStore
}

// PlanPrinter shows the release plan to the operator before approval
type PlanPrinter func(ctx context.Context, plan *model.ReleasePlan)

type releaseUseCase struct {
	cfg      model.Config
	deps     deps
	prompter interfaces.Prompter
	lookPath func(string) (string, error)
	printer  PlanPrinter
}

// ReleaseOption configures the release use case
type ReleaseOption func(*releaseUseCase)

// WithLookPath replaces the executable lookup used by the tool check
func WithLookPath(fn func(string) (string, error)) ReleaseOption {
	return func(uc *releaseUseCase) {
		uc.lookPath = fn
	}
}

// WithPlanPrinter sets how the plan is presented before approval
func WithPlanPrinter(fn PlanPrinter) ReleaseOption {
	return func(uc *releaseUseCase) {
		uc.printer = fn
	}
}

// NewRelease creates a new instance of ReleaseUseCase
func NewRelease(
	cfg model.Config,
	vcs interfaces.VcsGateway,
	changelog interfaces.ChangelogGenerator,
	build interfaces.BuildAdapter,
	host interfaces.ReleaseHost,
	plugins interfaces.PluginRunner,
	versions interfaces.VersionStore,
	prompter interfaces.Prompter,
	opts ...ReleaseOption,
) interfaces.ReleaseUseCase {
	uc := &releaseUseCase{
		cfg: cfg,
		deps: deps{
			vcs:       vcs,
			changelog: changelog,
			build:     build,
			host:      host,
			plugins:   plugins,
			versions:  versions,
		},
		prompter: prompter,
		lookPath: exec.LookPath,
		printer:  logPlan,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func logPlan(ctx context.Context, plan *model.ReleasePlan) {
	ctxlog.From(ctx).Info("Release plan",
		"project", plan.ProjectName,
		"current", plan.CurrentVersion.String(),
		"next", plan.NextVersion.String(),
		"tag", plan.Tag(),
		"branch", plan.Branch,
		"backend", plan.Backend,
		"commit_message", plan.CommitMessage,
		"dry_run", plan.DryRun,
	)
}

func (uc *releaseUseCase) runDeps(dryRun bool, rec *Recorder) *deps {
	if !dryRun {
		d := uc.deps
		return &d
	}
	return &deps{
		vcs:       &dryRunVcs{VcsGateway: uc.deps.vcs, rec: rec},
		changelog: uc.deps.changelog,
		build:     &dryRunBuild{BuildAdapter: uc.deps.build, rec: rec},
		host:      &dryRunHost{ReleaseHost: uc.deps.host, rec: rec},
		plugins:   &dryRunPlugins{PluginRunner: uc.deps.plugins, rec: rec},
		versions:  &dryRunVersionStore{VersionStore: uc.deps.versions, rec: rec},
	}
}

// checkTools reports every missing executable at once
func (uc *releaseUseCase) checkTools(build interfaces.BuildAdapter) error {
	required := append([]string{"git"}, build.RequiredTools()...)

	var missing []string
	for _, tool := range required {
		if _, err := uc.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return goerr.New("required tools are not installed",
			goerr.V("missing", strings.Join(missing, ", ")),
			goerr.T(model.ErrTagPrecondition))
	}
	return nil
}

// run tracks how far a release got so that failure handling compensates
// only what actually happened.
type run struct {
	d      *deps
	rec    *Recorder
	result *model.RunResult

	baseCommit string
	committed  bool
	pushed     bool
	tagged     bool
	published  bool
}

func (r *run) to(ctx context.Context, s model.State) {
	r.result.State = s
	ctxlog.From(ctx).Debug("Release state", "state", string(s))
}

func (r *run) finish() *model.RunResult {
	if r.rec != nil {
		r.result.Actions = r.rec.Actions()
	}
	return r.result
}

// Release runs the full release state machine
func (uc *releaseUseCase) Release(ctx context.Context, opts model.RunOptions) (*model.RunResult, error) {
	if opts.UploadOnly {
		return uc.UploadOnly(ctx, opts)
	}

	logger := ctxlog.From(ctx).With("run_id", uuid.NewString())
	ctx = ctxlog.With(ctx, logger)

	rec := &Recorder{}
	r := &run{
		d:      uc.runDeps(opts.DryRun, rec),
		rec:    rec,
		result: &model.RunResult{State: model.StateInit},
	}
	d := r.d

	// Init: nothing below mutates anything until the plan is approved
	if err := uc.checkTools(d.build); err != nil {
		return uc.fail(ctx, r, err)
	}
	base, err := d.vcs.HeadCommit(ctx)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to read HEAD commit", goerr.T(model.ErrTagPrecondition)))
	}
	r.baseCommit = base

	branch, proceed, err := uc.preflight(ctx, d)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	if !proceed {
		return uc.cancel(ctx, r)
	}

	r.to(ctx, model.StatePreReleaseHooks)
	if err := d.plugins.Run(ctx, model.HookPreRelease); err != nil {
		return uc.fail(ctx, r, err)
	}

	project, err := d.build.ReadProjectIdentifier(ctx)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to read project name", goerr.T(model.ErrTagPrecondition)))
	}
	resolved, err := resolveVersion(ctx, d, opts, uc.cfg.DefaultVersion)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	r.to(ctx, model.StateVersionResolved)

	next, err := model.NextVersion(resolved.current, opts.Bump, opts.CustomVersion)
	if err != nil {
		return uc.fail(ctx, r, err)
	}

	changelog, err := d.changelog.Generate(ctx)
	if err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to generate changelog"))
	}
	notes := opts.ReleaseNotes
	if notes == "" {
		if notes, err = uc.prompter.Input(ctx, "Release notes", changelog); err != nil {
			return uc.fail(ctx, r, err)
		}
	}
	message := opts.CommitMessage
	if message == "" {
		if message, err = uc.prompter.Input(ctx, "Commit message", model.DefaultCommitMessage(next)); err != nil {
			return uc.fail(ctx, r, err)
		}
	}

	plan := &model.ReleasePlan{
		CurrentVersion:     resolved.current,
		NextVersion:        next,
		ProjectName:        project,
		CommitMessage:      message,
		ReleaseNotes:       notes,
		DryRun:             opts.DryRun,
		NeedsVersionRecord: resolved.needsRecord,
		Backend:            d.build.Name(),
		Branch:             branch,
		BaseCommit:         base,
	}
	r.result.Plan = plan

	uc.printer(ctx, plan)
	ok, err := uc.prompter.Confirm(ctx, model.GateProceed, fmt.Sprintf("Release %s as %s?", project, plan.Tag()))
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	if !ok {
		return uc.cancel(ctx, r)
	}

	// Version record and manifest. A mismatch here would ship an artifact
	// with the wrong embedded version.
	if err := d.versions.Write(ctx, next); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to write version file"))
	}
	if err := d.build.SetManifestVersion(ctx, next); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to update build manifest"))
	}
	if err := verifyManifest(ctx, d.build, next); err != nil {
		return uc.fail(ctx, r, err)
	}

	// Build strictly precedes any git mutation
	artifact, err := uc.buildArtifact(ctx, d, next, project)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	r.to(ctx, model.StateBuilt)
	if err := d.plugins.Run(ctx, model.HookPostBuild); err != nil {
		return uc.fail(ctx, r, err)
	}

	if err := d.plugins.Run(ctx, model.HookPreCommit); err != nil {
		return uc.fail(ctx, r, err)
	}
	if err := d.vcs.CommitAll(ctx, message); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to commit release"))
	}
	r.committed = true
	if err := d.vcs.Push(ctx); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to push release commit"))
	}
	r.pushed = true
	r.to(ctx, model.StateCommitted)

	if err := d.vcs.Tag(ctx, plan.Tag(), message); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to create tag", goerr.V("tag", plan.Tag())))
	}
	r.tagged = true
	if err := d.vcs.PushTag(ctx, plan.Tag()); err != nil {
		return uc.fail(ctx, r, goerr.Wrap(err, "failed to push tag", goerr.V("tag", plan.Tag())))
	}
	r.to(ctx, model.StateTagged)

	published, err := uc.publish(ctx, d, plan, artifact)
	if err != nil {
		return uc.fail(ctx, r, err)
	}
	r.result.Publish = published
	r.published = true
	r.to(ctx, model.StatePublished)
	for _, w := range published.Warnings {
		logger.Warn(w)
	}

	// Re-write the record if anything (e.g. a plugin) changed it
	if recorded, err := d.versions.Read(ctx); err != nil || recorded == nil || *recorded != next.String() {
		logger.Warn("Version file drifted after publish, rewriting it", "version", next.String())
		if err := d.versions.Write(ctx, next); err != nil {
			logger.Warn("Failed to rewrite version file", "error", err)
		}
	}

	r.to(ctx, model.StatePostReleaseHook)
	if err := d.plugins.Run(ctx, model.HookPostRelease); err != nil {
		return uc.fail(ctx, r, err)
	}

	r.to(ctx, model.StateDone)
	logger.Info("Release completed", "tag", plan.Tag(), "dry_run", opts.DryRun)
	return r.finish(), nil
}

// preflight checks the branch and working tree and asks before continuing
func (uc *releaseUseCase) preflight(ctx context.Context, d *deps) (string, bool, error) {
	status, err := d.vcs.Status(ctx)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read repository status", goerr.T(model.ErrTagPrecondition))
	}
	main, err := d.vcs.MainBranch(ctx)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to determine main branch", goerr.T(model.ErrTagPrecondition))
	}

	if status.Branch != main {
		ctxlog.From(ctx).Warn("Not on the main branch", "branch", status.Branch, "main", main)
		ok, err := uc.prompter.Confirm(ctx, model.GateBranch,
			fmt.Sprintf("Current branch %q is not the main branch %q. Continue?", status.Branch, main))
		if err != nil || !ok {
			return status.Branch, false, err
		}
	}

	if status.HasUncommittedChanges {
		ctxlog.From(ctx).Warn("Working tree has uncommitted changes; they will be part of the release commit")
		ok, err := uc.prompter.Confirm(ctx, model.GateDirty, "Uncommitted changes found. Continue?")
		if err != nil || !ok {
			return status.Branch, false, err
		}
	}

	return status.Branch, true, nil
}

func (uc *releaseUseCase) buildArtifact(ctx context.Context, d *deps, v model.Version, project string) (string, error) {
	result, err := d.build.Build(ctx, v, project, uc.cfg.SkipTests)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", goerr.New("build failed",
			goerr.V("backend", d.build.Name()),
			goerr.V("diagnostic", result.Diagnostic),
			goerr.T(model.ErrTagBuildFailed))
	}
	if result.ArtifactPath == "" {
		return "", goerr.New("build produced no artifact",
			goerr.V("diagnostic", result.Diagnostic),
			goerr.T(model.ErrTagArtifactNotFound))
	}

	ctxlog.From(ctx).Info("Build succeeded", "artifact", result.ArtifactPath)
	return result.ArtifactPath, nil
}

// publish creates the release, or only makes sure the artifact is attached
// when a previous run already created it.
func (uc *releaseUseCase) publish(ctx context.Context, d *deps, plan *model.ReleasePlan, artifact string) (*model.PublishResult, error) {
	tag := plan.Tag()

	exists, err := d.host.ReleaseExists(ctx, tag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check for existing release", goerr.T(model.ErrTagPublish))
	}
	if !exists {
		return d.host.CreateRelease(ctx, tag, tag, plan.ReleaseNotes, artifact)
	}

	ctxlog.From(ctx).Info("Release already exists, skipping creation", "tag", tag)
	result := &model.PublishResult{Release: &model.Release{Tag: tag}, AlreadyExists: true}

	names, err := d.host.ListAssetNames(ctx, tag)
	if err == nil {
		if _, ok := names[filepath.Base(artifact)]; ok {
			result.Attached = true
			result.Asset = model.NewReleaseAsset(tag, artifact)
			return result, nil
		}
	}

	if err := d.host.UploadAsset(ctx, tag, artifact, true); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"release %s exists but %s could not be attached: %v; retry with `shipit release --upload-only`",
			tag, filepath.Base(artifact), err))
		return result, nil
	}
	result.Attached = true
	result.Asset = model.NewReleaseAsset(tag, artifact)
	return result, nil
}

func (uc *releaseUseCase) cancel(ctx context.Context, r *run) (*model.RunResult, error) {
	ctxlog.From(ctx).Info("Release cancelled by operator")
	r.to(ctx, model.StateCancelled)
	return r.finish(), nil
}

// fail runs the on-error hooks and, when history may have been changed,
// offers rollback. It always returns the original error.
func (uc *releaseUseCase) fail(ctx context.Context, r *run, cause error) (*model.RunResult, error) {
	logger := ctxlog.From(ctx)

	if r.result.State != model.StateInit {
		if err := r.d.plugins.Run(ctx, model.HookOnError); err != nil {
			logger.Warn("on-error hooks failed", "error", err)
		}
	}

	if (r.committed || r.tagged) && !r.published {
		r.to(ctx, model.StateErrorRollback)
		ok, err := uc.prompter.Confirm(ctx, model.GateRollback,
			fmt.Sprintf("Release failed: %v. Roll back the release commit and tag (force push)?", cause))
		switch {
		case err != nil:
			logger.Warn("Rollback prompt failed, leaving git state as is", "error", err)
		case !ok:
			logger.Warn("Rollback declined; release commit and tag are left for manual recovery",
				"base_commit", r.baseCommit)
		default:
			if err := uc.rollback(ctx, r); err != nil {
				logger.Error("Rollback failed", "error", err)
			} else {
				r.result.RolledBack = true
			}
		}
	}

	r.to(ctx, model.StateFailed)
	return r.finish(), cause
}

// rollback deletes the tag and resets to the commit captured at run start,
// undoing only the steps that happened.
func (uc *releaseUseCase) rollback(ctx context.Context, r *run) error {
	logger := ctxlog.From(ctx)
	d := r.d

	if r.tagged && r.result.Plan != nil {
		tag := r.result.Plan.Tag()
		logger.Info("Rollback: deleting tag", "tag", tag)
		if err := d.vcs.DeleteTagLocalAndRemote(ctx, tag); err != nil {
			return goerr.Wrap(err, "rollback: failed to delete tag", goerr.V("tag", tag))
		}
	}

	if r.committed {
		logger.Info("Rollback: resetting to base commit", "commit", r.baseCommit)
		if err := d.vcs.HardReset(ctx, r.baseCommit); err != nil {
			return goerr.Wrap(err, "rollback: failed to reset", goerr.V("commit", r.baseCommit))
		}
	}

	if r.pushed {
		logger.Info("Rollback: force pushing")
		if err := d.vcs.ForcePush(ctx); err != nil {
			return goerr.Wrap(err, "rollback: failed to force push")
		}
	}

	logger.Info("Rollback completed")
	return nil
}

// CurrentVersion reconciles the version stores without touching anything
func (uc *releaseUseCase) CurrentVersion(ctx context.Context) (model.Version, error) {
	return CurrentVersion(ctx, uc.deps.versions, uc.deps.build, uc.cfg.DefaultVersion)
}
