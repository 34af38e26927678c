package cli

import (
	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/build"
	"github.com/m-mizutani/shipit/pkg/infra/command"
	"github.com/m-mizutani/shipit/pkg/infra/git"
	"github.com/m-mizutani/shipit/pkg/infra/plugin"
	"github.com/m-mizutani/shipit/pkg/infra/versionfile"
)

// workspace bundles the local collaborators of the repository being released
type workspace struct {
	cfg      model.Config
	git      *git.Gateway
	build    interfaces.BuildAdapter
	versions *versionfile.Store
	plugins  *plugin.Runner
}

func openWorkspace(cfg model.Config) (*workspace, error) {
	runner := command.NewExecRunner()

	gitOpts := []git.Option{git.WithRemote(cfg.Remote), git.WithRunner(runner)}
	if cfg.MainBranch != "" {
		gitOpts = append(gitOpts, git.WithMainBranch(cfg.MainBranch))
	}
	gw, err := git.NewGateway(cfg.RepoDir, gitOpts...)
	if err != nil {
		return nil, err
	}

	adapter, err := build.NewRegistry().New(cfg.BuildBackend, cfg.RepoDir, runner)
	if err != nil {
		return nil, err
	}

	return &workspace{
		cfg:      cfg,
		git:      gw,
		build:    adapter,
		versions: versionfile.New(cfg.RepoDir, cfg.VersionFile),
		plugins:  plugin.New(cfg.RepoDir, cfg.PluginDir, plugin.WithCommandRunner(runner)),
	}, nil
}
