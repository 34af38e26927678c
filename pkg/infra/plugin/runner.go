package plugin

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
)

// Runner executes plugins found under {pluginDir}/{hook}/
type Runner struct {
	repoDir   string
	pluginDir string
	runner    command.Runner
}

// Option configures a Runner
type Option func(*Runner)

// WithCommandRunner replaces how plugin executables are started
func WithCommandRunner(r command.Runner) Option {
	return func(p *Runner) {
		p.runner = r
	}
}

// New creates a plugin runner. A relative pluginDir is resolved against
// repoDir, which is also the working directory of every plugin.
func New(repoDir, pluginDir string, opts ...Option) *Runner {
	if !filepath.IsAbs(pluginDir) {
		pluginDir = filepath.Join(repoDir, pluginDir)
	}
	p := &Runner{
		repoDir:   repoDir,
		pluginDir: pluginDir,
		runner:    command.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ interfaces.PluginRunner = (*Runner)(nil)

// Discover lists executable regular files, or symlinks to them, directly
// under the hook directory, sorted by path. It reads the directory on every
// call so that earlier hooks may add plugins for later ones.
func (p *Runner) Discover(ctx context.Context, hook model.HookName) (*model.HookInvocation, error) {
	if err := hook.Validate(); err != nil {
		return nil, goerr.Wrap(err, "cannot discover plugins", goerr.T(model.ErrTagPlugin))
	}

	inv := &model.HookInvocation{Hook: hook}
	dir := filepath.Join(p.pluginDir, string(hook))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return inv, nil
		}
		return nil, goerr.Wrap(err, "failed to read plugin directory",
			goerr.V("dir", dir),
			goerr.T(model.ErrTagPlugin))
	}

	// os.ReadDir returns entries sorted by file name. Symlinks are judged by
	// their target.
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil {
			ctxlog.From(ctx).Debug("Skipping unreadable plugin entry", "path", path, "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if info.Mode().Perm()&0111 == 0 {
			ctxlog.From(ctx).Debug("Skipping non-executable plugin file", "path", path)
			continue
		}
		inv.Executables = append(inv.Executables, path)
	}
	return inv, nil
}

// Run executes the plugins of hook in order. The first failure stops the
// hook, except for best-effort hooks where failures are logged and the
// remaining plugins still run.
func (p *Runner) Run(ctx context.Context, hook model.HookName) error {
	logger := ctxlog.From(ctx)

	inv, err := p.Discover(ctx, hook)
	if err != nil {
		if hook.BestEffort() {
			logger.Warn("Plugin discovery failed", "hook", string(hook), "error", err)
			return nil
		}
		return err
	}
	if len(inv.Executables) == 0 {
		logger.Debug("No plugins for hook", "hook", string(hook))
		return nil
	}

	for _, exe := range inv.Executables {
		err := p.exec(ctx, hook, exe)
		if err == nil {
			continue
		}
		if hook.BestEffort() {
			logger.Warn("Plugin failed, continuing", "hook", string(hook), "plugin", exe, "error", err)
			continue
		}
		return err
	}
	return nil
}

func (p *Runner) exec(ctx context.Context, hook model.HookName, exe string) error {
	logger := ctxlog.From(ctx)
	cmd := command.Command{
		Dir:  p.repoDir,
		Env:  []string{"SHIPIT_HOOK=" + string(hook)},
		Name: exe,
	}

	logger.Info("Running plugin", "hook", string(hook), "plugin", filepath.Base(exe))
	res, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return goerr.Wrap(err, "plugin could not be started",
			goerr.V("hook", string(hook)),
			goerr.V("plugin", exe),
			goerr.T(model.ErrTagPlugin))
	}
	if out := strings.TrimSpace(res.Output); out != "" {
		logger.Info("Plugin output", "plugin", filepath.Base(exe), "output", out)
	}
	if !res.Success() {
		return goerr.New("plugin failed",
			goerr.V("hook", string(hook)),
			goerr.V("plugin", exe),
			goerr.V("exit_code", res.ExitCode),
			goerr.T(model.ErrTagPlugin))
	}
	return nil
}
