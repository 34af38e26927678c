package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// Recorder collects the mutating actions a dry run skipped
type Recorder struct {
	actions []model.Action
}

func (r *Recorder) record(ctx context.Context, component, op string, args ...string) {
	a := model.Action{Component: component, Operation: op, Args: args}
	r.actions = append(r.actions, a)
	ctxlog.From(ctx).Info("[dry-run] would execute", "action", a.String())
}

// Actions returns the recorded actions in order
func (r *Recorder) Actions() []model.Action {
	return append([]model.Action(nil), r.actions...)
}

// dryRunVcs delegates reads and records writes
type dryRunVcs struct {
	interfaces.VcsGateway
	rec *Recorder
}

func (v *dryRunVcs) CommitAll(ctx context.Context, message string) error {
	v.rec.record(ctx, "vcs", "CommitAll", message)
	return nil
}

func (v *dryRunVcs) Push(ctx context.Context) error {
	v.rec.record(ctx, "vcs", "Push")
	return nil
}

func (v *dryRunVcs) Tag(ctx context.Context, name, message string) error {
	v.rec.record(ctx, "vcs", "Tag", name, message)
	return nil
}

func (v *dryRunVcs) PushTag(ctx context.Context, name string) error {
	v.rec.record(ctx, "vcs", "PushTag", name)
	return nil
}

func (v *dryRunVcs) DeleteTagLocalAndRemote(ctx context.Context, name string) error {
	v.rec.record(ctx, "vcs", "DeleteTagLocalAndRemote", name)
	return nil
}

func (v *dryRunVcs) HardReset(ctx context.Context, commit string) error {
	v.rec.record(ctx, "vcs", "HardReset", commit)
	return nil
}

func (v *dryRunVcs) ForcePush(ctx context.Context) error {
	v.rec.record(ctx, "vcs", "ForcePush")
	return nil
}

// dryRunHost delegates lookups and records release mutations
type dryRunHost struct {
	interfaces.ReleaseHost
	rec *Recorder
}

func (h *dryRunHost) CreateRelease(ctx context.Context, tag, title, notes, artifactPath string) (*model.PublishResult, error) {
	h.rec.record(ctx, "host", "CreateRelease", tag, title, artifactPath)
	result := &model.PublishResult{
		Release:  &model.Release{Tag: tag, Name: title},
		Attempts: 1,
	}
	if artifactPath != "" {
		result.Attached = true
		result.Asset = model.NewReleaseAsset(tag, artifactPath)
	}
	return result, nil
}

func (h *dryRunHost) UploadAsset(ctx context.Context, tag, artifactPath string, replaceExisting bool) error {
	h.rec.record(ctx, "host", "UploadAsset", tag, artifactPath, strconv.FormatBool(replaceExisting))
	return nil
}

// dryRunVersionStore records writes and serves them back to later reads
type dryRunVersionStore struct {
	interfaces.VersionStore
	rec     *Recorder
	written *string
}

func (s *dryRunVersionStore) Read(ctx context.Context) (*string, error) {
	if s.written != nil {
		return s.written, nil
	}
	return s.VersionStore.Read(ctx)
}

func (s *dryRunVersionStore) Write(ctx context.Context, v model.Version) error {
	s.rec.record(ctx, "version", "Write", v.String())
	str := v.String()
	s.written = &str
	return nil
}

// dryRunBuild records manifest changes and the build itself
type dryRunBuild struct {
	interfaces.BuildAdapter
	rec      *Recorder
	manifest *string
}

func (b *dryRunBuild) SetManifestVersion(ctx context.Context, v model.Version) error {
	b.rec.record(ctx, "build", "SetManifestVersion", v.String())
	str := v.String()
	b.manifest = &str
	return nil
}

func (b *dryRunBuild) ReadManifestVersion(ctx context.Context) (*string, error) {
	if b.manifest != nil {
		return b.manifest, nil
	}
	return b.BuildAdapter.ReadManifestVersion(ctx)
}

func (b *dryRunBuild) Build(ctx context.Context, v model.Version, artifactID string, skipTests bool) (*model.BuildResult, error) {
	b.rec.record(ctx, "build", "Build", v.String(), artifactID, strconv.FormatBool(skipTests))
	return &model.BuildResult{
		ArtifactPath: filepath.Join("<output>", fmt.Sprintf("%s-%s", artifactID, v)),
		Success:      true,
		Diagnostic:   "dry-run: build skipped",
	}, nil
}

// dryRunPlugins lists what would run without executing it
type dryRunPlugins struct {
	interfaces.PluginRunner
	rec *Recorder
}

func (p *dryRunPlugins) Run(ctx context.Context, hook model.HookName) error {
	inv, err := p.Discover(ctx, hook)
	if err != nil {
		return err
	}
	for _, exe := range inv.Executables {
		p.rec.record(ctx, "plugin", string(hook), exe)
	}
	return nil
}
