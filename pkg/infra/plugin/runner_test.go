package plugin_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
	"github.com/m-mizutani/shipit/pkg/infra/plugin"
)

type fakeRunner struct {
	calls []command.Command
	exit  map[string]int
}

func (r *fakeRunner) Run(ctx context.Context, cmd command.Command) (*command.Result, error) {
	r.calls = append(r.calls, cmd)
	return &command.Result{ExitCode: r.exit[filepath.Base(cmd.Name)]}, nil
}

func (r *fakeRunner) names() []string {
	var names []string
	for _, c := range r.calls {
		names = append(names, filepath.Base(c.Name))
	}
	return names
}

func writePlugin(t *testing.T, dir string, hook model.HookName, name string, mode os.FileMode) {
	t.Helper()
	hookDir := filepath.Join(dir, "plugins", string(hook))
	gt.NoError(t, os.MkdirAll(hookDir, 0755))
	gt.NoError(t, os.WriteFile(filepath.Join(hookDir, name), []byte("#!/bin/sh\nexit 0\n"), mode))
}

func TestRunner_Discover(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writePlugin(t, dir, model.HookPreRelease, "10-a.sh", 0755)
	writePlugin(t, dir, model.HookPreRelease, "02-b.sh", 0755)
	writePlugin(t, dir, model.HookPreRelease, "README.md", 0644)
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "plugins", string(model.HookPreRelease), "nested"), 0755))

	p := plugin.New(dir, "plugins")

	inv, err := p.Discover(ctx, model.HookPreRelease)
	gt.NoError(t, err)
	gt.Equal(t, inv.Executables, []string{
		filepath.Join(dir, "plugins", "pre-release", "02-b.sh"),
		filepath.Join(dir, "plugins", "pre-release", "10-a.sh"),
	})

	inv, err = p.Discover(ctx, model.HookPostBuild)
	gt.NoError(t, err)
	gt.A(t, inv.Executables).Length(0)

	_, err = p.Discover(ctx, model.HookName("post-deploy"))
	gt.Error(t, err)
}

func TestRunner_DiscoverFollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}
	ctx := context.Background()
	dir := t.TempDir()
	writePlugin(t, dir, model.HookPreRelease, "10-a.sh", 0755)

	shared := filepath.Join(t.TempDir(), "check.sh")
	gt.NoError(t, os.WriteFile(shared, []byte("#!/bin/sh\nexit 0\n"), 0755))
	notes := filepath.Join(t.TempDir(), "notes.txt")
	gt.NoError(t, os.WriteFile(notes, []byte("notes"), 0644))

	hookDir := filepath.Join(dir, "plugins", string(model.HookPreRelease))
	gt.NoError(t, os.Symlink(shared, filepath.Join(hookDir, "05-link.sh")))
	gt.NoError(t, os.Symlink(notes, filepath.Join(hookDir, "06-notes.txt")))
	gt.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(hookDir, "07-dangling.sh")))

	inv, err := plugin.New(dir, "plugins").Discover(ctx, model.HookPreRelease)
	gt.NoError(t, err)
	gt.Equal(t, inv.Executables, []string{
		filepath.Join(hookDir, "05-link.sh"),
		filepath.Join(hookDir, "10-a.sh"),
	})
}

func TestRunner_RunsInLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, model.HookPreRelease, "10-a.sh", 0755)
	writePlugin(t, dir, model.HookPreRelease, "02-b.sh", 0755)

	runner := &fakeRunner{}
	p := plugin.New(dir, "plugins", plugin.WithCommandRunner(runner))

	gt.NoError(t, p.Run(context.Background(), model.HookPreRelease))
	gt.Equal(t, runner.names(), []string{"02-b.sh", "10-a.sh"})
	for _, c := range runner.calls {
		gt.Equal(t, c.Dir, dir)
		gt.Equal(t, c.Env, []string{"SHIPIT_HOOK=pre-release"})
	}
}

func TestRunner_FirstFailureStops(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, model.HookPreCommit, "01-lint.sh", 0755)
	writePlugin(t, dir, model.HookPreCommit, "02-never.sh", 0755)

	runner := &fakeRunner{exit: map[string]int{"01-lint.sh": 2}}
	p := plugin.New(dir, "plugins", plugin.WithCommandRunner(runner))

	err := p.Run(context.Background(), model.HookPreCommit)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagPlugin))
	gt.Equal(t, runner.names(), []string{"01-lint.sh"})
}

func TestRunner_OnErrorIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, model.HookOnError, "01-notify.sh", 0755)
	writePlugin(t, dir, model.HookOnError, "02-cleanup.sh", 0755)

	runner := &fakeRunner{exit: map[string]int{"01-notify.sh": 1}}
	p := plugin.New(dir, "plugins", plugin.WithCommandRunner(runner))

	gt.NoError(t, p.Run(context.Background(), model.HookOnError))
	gt.Equal(t, runner.names(), []string{"01-notify.sh", "02-cleanup.sh"})
}

func TestRunner_DiscoversPluginsAddedByEarlierHooks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := plugin.New(dir, "plugins", plugin.WithCommandRunner(&fakeRunner{}))

	inv, err := p.Discover(ctx, model.HookPostRelease)
	gt.NoError(t, err)
	gt.A(t, inv.Executables).Length(0)

	writePlugin(t, dir, model.HookPostRelease, "01-announce.sh", 0755)
	inv, err = p.Discover(ctx, model.HookPostRelease)
	gt.NoError(t, err)
	gt.A(t, inv.Executables).Length(1)
}

func TestRunner_ExecutesRealPlugin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	hookDir := filepath.Join(dir, "plugins", "post-build")
	gt.NoError(t, os.MkdirAll(hookDir, 0755))
	script := "#!/bin/sh\necho \"$SHIPIT_HOOK\" > hook.txt\n"
	gt.NoError(t, os.WriteFile(filepath.Join(hookDir, "01-write.sh"), []byte(script), 0755))

	gt.NoError(t, plugin.New(dir, "plugins").Run(context.Background(), model.HookPostBuild))

	raw, err := os.ReadFile(filepath.Join(dir, "hook.txt"))
	gt.NoError(t, err)
	gt.Equal(t, string(raw), "post-build\n")
}
