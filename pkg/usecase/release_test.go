package usecase_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/usecase"
)

type testEnv struct {
	log      *callLog
	gh       *fakeGitHub
	vcs      *fakeVcs
	build    *fakeBuild
	plugins  *fakePlugins
	versions *fakeVersions
	prompter *fakePrompter
	lookPath func(string) (string, error)
}

func newTestEnv(t *testing.T) *testEnv {
	log := &callLog{}
	return &testEnv{
		log: log,
		gh:  newFakeGitHub(),
		vcs: &fakeVcs{log: log, branch: "main", main: "main", head: "base123"},
		build: &fakeBuild{
			log:      log,
			outDir:   t.TempDir(),
			project:  "artifact",
			manifest: ptr("1.0.0"),
		},
		plugins:  &fakePlugins{log: log, failOn: map[model.HookName]error{}},
		versions: &fakeVersions{value: ptr("1.0.0")},
		prompter: &fakePrompter{answers: map[model.Gate]bool{}},
		lookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	}
}

func (e *testEnv) useCase() interfaces.ReleaseUseCase {
	var sleeps int
	host := usecase.NewPublisher(e.gh, testPublishConfig(), usecase.WithSleep(noSleep(&sleeps)))
	return usecase.NewRelease(
		model.DefaultConfig(),
		e.vcs, fakeChangelog{}, e.build, host, e.plugins, e.versions, e.prompter,
		usecase.WithLookPath(e.lookPath),
	)
}

func TestRelease_PatchBumpEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, result.Plan.Tag(), "v1.0.1")
	gt.Equal(t, result.Plan.BaseCommit, "base123")
	gt.Equal(t, result.Plan.CommitMessage, "Release v1.0.1")
	gt.Equal(t, result.Plan.ReleaseNotes, "- fix widget\n- add gadget")
	gt.True(t, result.Publish.Attached)
	gt.Equal(t, result.Publish.Asset.Name, "artifact-1.0.1.bin")
	gt.Equal(t, result.Publish.Asset.ReleaseTag, "v1.0.1")

	gt.Equal(t, env.log.calls, []string{
		"hook:pre-release",
		"set-manifest:1.0.1",
		"build:1.0.1",
		"hook:post-build",
		"hook:pre-commit",
		"commit",
		"push",
		"tag:v1.0.1",
		"push-tag:v1.0.1",
		"hook:post-release",
	})

	_, ok := env.gh.assetNames("v1.0.1")["artifact-1.0.1.bin"]
	gt.True(t, ok)
	gt.Equal(t, *env.versions.value, "1.0.1")
	gt.A(t, result.Actions).Length(0)
}

func TestRelease_BuildPrecedesGitMutation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpMinor})
	gt.NoError(t, err)

	build := env.log.index("build:1.1.0")
	gt.Number(t, build).Greater(-1)
	gt.Number(t, env.log.index("commit")).Greater(build)
	gt.Number(t, env.log.index("tag:v1.1.0")).Greater(build)
}

func TestRelease_DryRunMutatesNothing(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:   model.BumpMajor,
		DryRun: true,
	})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.True(t, result.Plan.DryRun)

	gt.A(t, env.log.calls).Length(0)
	gt.A(t, env.gh.releases).Length(0)
	gt.Equal(t, *env.versions.value, "1.0.0")
	gt.Equal(t, *env.build.manifest, "1.0.0")

	var ops []string
	for _, a := range result.Actions {
		ops = append(ops, a.Component+"."+a.Operation)
	}
	gt.True(t, slices.Contains(ops, "version.Write"))
	gt.True(t, slices.Contains(ops, "build.Build"))
	gt.True(t, slices.Contains(ops, "vcs.CommitAll"))
	gt.True(t, slices.Contains(ops, "vcs.Tag"))
	gt.True(t, slices.Contains(ops, "host.CreateRelease"))
	gt.True(t, slices.Contains(ops, "plugin.pre-release"))
}

func TestRelease_DeclinedPlanIsCancelled(t *testing.T) {
	env := newTestEnv(t)
	env.prompter.answers[model.GateProceed] = false

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.NoError(t, err)
	gt.True(t, result.Cancelled())
	gt.Equal(t, env.log.calls, []string{"hook:pre-release"})
	gt.Equal(t, *env.versions.value, "1.0.0")
}

func TestRelease_BranchGate(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		env := newTestEnv(t)
		env.vcs.branch = "feature/x"
		env.prompter.answers[model.GateBranch] = false

		result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
		gt.NoError(t, err)
		gt.True(t, result.Cancelled())
		gt.A(t, env.log.calls).Length(0)
	})

	t.Run("approved", func(t *testing.T) {
		env := newTestEnv(t)
		env.vcs.branch = "feature/x"

		result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
		gt.NoError(t, err)
		gt.Equal(t, result.State, model.StateDone)
		gt.True(t, env.prompter.wasAsked(model.GateBranch))
		gt.False(t, env.prompter.wasAsked(model.GateDirty))
	})
}

func TestRelease_DirtyTreeGate(t *testing.T) {
	env := newTestEnv(t)
	env.vcs.dirty = true
	env.prompter.answers[model.GateDirty] = false

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.NoError(t, err)
	gt.True(t, result.Cancelled())
	gt.A(t, env.log.calls).Length(0)
}

func TestRelease_MissingTools(t *testing.T) {
	env := newTestEnv(t)
	env.lookPath = func(name string) (string, error) {
		if name == "fakebuild" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagPrecondition))
	gt.Equal(t, result.State, model.StateFailed)
	gt.A(t, env.log.calls).Length(0)
}

func TestRelease_BuildFailureLeavesGitUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.build.fail = true

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagBuildFailed))
	gt.Equal(t, result.State, model.StateFailed)
	gt.False(t, result.RolledBack)

	gt.False(t, env.log.has("commit"))
	gt.False(t, env.log.has("tag:v1.0.1"))
	gt.True(t, env.log.has("hook:on-error"))
	gt.False(t, env.prompter.wasAsked(model.GateRollback))
}

func TestRelease_ManifestMismatchStopsBeforeBuild(t *testing.T) {
	env := newTestEnv(t)
	env.build.ignoreSet = true

	_, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagVersionMismatch))
	gt.False(t, env.log.has("build:1.0.1"))
	gt.False(t, env.log.has("commit"))
}

func TestRelease_PluginFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.plugins.failOn[model.HookPreRelease] = goerr.New("plugin exited 1", goerr.T(model.ErrTagPlugin))

	_, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagPlugin))
	gt.Equal(t, env.log.calls, []string{"hook:pre-release", "hook:on-error"})
}

func TestRelease_PublishFailureRollback(t *testing.T) {
	setup := func(t *testing.T) *testEnv {
		env := newTestEnv(t)
		env.gh.createFail = func(call int) (bool, error) {
			return false, errors.New("bad gateway")
		}
		return env
	}

	t.Run("approved rollback restores base commit", func(t *testing.T) {
		env := setup(t)
		env.prompter.answers[model.GateRollback] = true

		result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.ErrTagPublish))
		gt.Equal(t, result.State, model.StateFailed)
		gt.True(t, result.RolledBack)

		onError := env.log.index("hook:on-error")
		gt.Number(t, onError).Greater(-1)
		gt.Number(t, env.log.index("delete-tag:v1.0.1")).Greater(onError)
		gt.Number(t, env.log.index("reset:base123")).Greater(env.log.index("delete-tag:v1.0.1"))
		gt.Number(t, env.log.index("force-push")).Greater(env.log.index("reset:base123"))
	})

	t.Run("declined rollback keeps commit and tag", func(t *testing.T) {
		env := setup(t)
		env.prompter.answers[model.GateRollback] = false

		result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
		gt.Error(t, err)
		gt.False(t, result.RolledBack)
		gt.True(t, env.prompter.wasAsked(model.GateRollback))
		gt.False(t, env.log.has("delete-tag:v1.0.1"))
		gt.False(t, env.log.has("force-push"))
	})
}

func TestRelease_PushFailureRollsBackLocalCommitOnly(t *testing.T) {
	env := newTestEnv(t)
	env.vcs.pushFail = errors.New("remote rejected")
	env.prompter.answers[model.GateRollback] = true

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.Error(t, err)
	gt.True(t, result.RolledBack)
	gt.True(t, env.log.has("reset:base123"))
	gt.False(t, env.log.has("force-push"))
	gt.False(t, env.log.has("delete-tag:v1.0.1"))
}

func TestRelease_ExistingReleaseOnlyAttaches(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v1.0.1")

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:            model.BumpPatch,
		SkipVersionSync: true,
	})
	gt.NoError(t, err)
	gt.True(t, result.Publish.AlreadyExists)
	gt.True(t, result.Publish.Attached)
	gt.Equal(t, env.gh.createCalls, 0)
	gt.Equal(t, len(env.gh.assetNames("v1.0.1")), 1)
}

func TestRelease_CustomVersion(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:          model.BumpCustom,
		CustomVersion: "3.0.0",
		ReleaseNotes:  "hand written",
		CommitMessage: "chore: release",
	})
	gt.NoError(t, err)
	gt.Equal(t, result.Plan.Tag(), "v3.0.0")
	gt.Equal(t, result.Plan.ReleaseNotes, "hand written")
	gt.True(t, env.log.has("tag:v3.0.0"))
}

func TestRelease_InvalidCustomVersion(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:          model.BumpCustom,
		CustomVersion: "3.0",
	})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagInvalidVersion))
	gt.False(t, env.log.has("commit"))
}

func TestUploadOnly(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v1.0.0")
	uc := env.useCase()

	for range 2 {
		result, err := uc.UploadOnly(context.Background(), model.RunOptions{})
		gt.NoError(t, err)
		gt.Equal(t, result.State, model.StateDone)
	}

	names := env.gh.assetNames("v1.0.0")
	gt.Equal(t, len(names), 1)
	_, ok := names["artifact-1.0.0.bin"]
	gt.True(t, ok)
	gt.Equal(t, env.gh.createCalls, 0)
	gt.False(t, env.log.has("commit"))
	gt.False(t, env.log.has("set-manifest:1.0.0"))
}

func TestUploadOnly_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v1.0.0")

	result, err := env.useCase().UploadOnly(context.Background(), model.RunOptions{DryRun: true})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.True(t, result.Plan.DryRun)

	gt.Equal(t, env.gh.uploadCalls, 0)
	gt.Equal(t, len(env.gh.assetNames("v1.0.0")), 0)
	gt.A(t, env.log.calls).Length(0)

	var ops []string
	for _, a := range result.Actions {
		ops = append(ops, a.Component+"."+a.Operation)
	}
	gt.True(t, slices.Contains(ops, "build.Build"))
	gt.True(t, slices.Contains(ops, "host.UploadAsset"))
}

func TestUploadOnly_RequiresExistingRelease(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.useCase().UploadOnly(context.Background(), model.RunOptions{})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagPublish))
	gt.False(t, env.log.has("build:1.0.0"))
}

func TestCurrentVersion(t *testing.T) {
	env := newTestEnv(t)
	env.versions.value = nil
	env.build.manifest = ptr("2.3.4")

	v, err := env.useCase().CurrentVersion(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, v.String(), "2.3.4")
}

func TestRelease_NewerPublishedVersionOnlyWarns(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v2.0.0")

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, result.Plan.CurrentVersion.String(), "1.0.0")
	gt.Equal(t, result.Plan.Tag(), "v1.0.1")
	gt.Equal(t, env.gh.latestCalls, 1)
	gt.Equal(t, *env.versions.value, "1.0.1")
}

func TestRelease_SyncLatestAdoptsPublishedVersion(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v2.0.0")

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:       model.BumpPatch,
		SyncLatest: true,
	})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, result.Plan.CurrentVersion.String(), "2.0.0")
	gt.Equal(t, result.Plan.Tag(), "v2.0.1")
	gt.True(t, env.log.has("tag:v2.0.1"))
	gt.Equal(t, *env.versions.value, "2.0.1")
}

func TestRelease_SyncLatestDeclinedKeepsVersionRecord(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v2.0.0")
	env.prompter.answers[model.GateProceed] = false

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:       model.BumpPatch,
		SyncLatest: true,
	})
	gt.NoError(t, err)
	gt.True(t, result.Cancelled())
	gt.Equal(t, result.Plan.CurrentVersion.String(), "2.0.0")
	gt.Equal(t, *env.versions.value, "1.0.0")
	gt.Equal(t, *env.build.manifest, "1.0.0")
}

func TestRelease_SkipVersionSync(t *testing.T) {
	env := newTestEnv(t)
	env.gh.addRelease("v2.0.0")

	result, err := env.useCase().Release(context.Background(), model.RunOptions{
		Bump:            model.BumpPatch,
		SyncLatest:      true,
		SkipVersionSync: true,
	})
	gt.NoError(t, err)
	gt.Equal(t, env.gh.latestCalls, 0)
	gt.Equal(t, result.Plan.Tag(), "v1.0.1")
}

func TestRelease_ExistenceLookupRetried(t *testing.T) {
	env := newTestEnv(t)
	env.gh.getFail = func(call int) error {
		if call == 1 {
			return errors.New("502 bad gateway")
		}
		return nil
	}

	result, err := env.useCase().Release(context.Background(), model.RunOptions{Bump: model.BumpPatch})
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, env.gh.createCalls, 1)
	gt.False(t, env.prompter.wasAsked(model.GateRollback))
	gt.False(t, env.log.has("delete-tag:v1.0.1"))
}
