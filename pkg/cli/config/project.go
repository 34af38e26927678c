package config

import (
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// Project holds settings of the repository being released
type Project struct {
	Dir            string
	ConfigFile     string
	VersionFile    string
	DefaultVersion string
	SkipTests      bool
	BuildBackend   string
	MainBranch     string
	PluginDir      string
	Remote         string
}

// Flags returns CLI flags for project configuration
func (c *Project) Flags() []cli.Flag {
	defaults := model.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"C"},
			Usage:       "Repository root to release",
			Value:       ".",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("SHIPIT_DIR"),
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "TOML config file, relative to the repository root",
			Value:       DefaultFile,
			Destination: &c.ConfigFile,
			Sources:     cli.EnvVars("SHIPIT_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "version-file",
			Usage:       "File holding the current version",
			Value:       defaults.VersionFile,
			Destination: &c.VersionFile,
			Sources:     cli.EnvVars("SHIPIT_VERSION_FILE"),
		},
		&cli.StringFlag{
			Name:        "default-version",
			Usage:       "Version assumed when no version is recorded anywhere",
			Value:       defaults.DefaultVersion.String(),
			Destination: &c.DefaultVersion,
			Sources:     cli.EnvVars("SHIPIT_DEFAULT_VERSION"),
		},
		&cli.BoolFlag{
			Name:        "skip-tests",
			Usage:       "Skip tests during the build",
			Destination: &c.SkipTests,
			Sources:     cli.EnvVars("SHIPIT_SKIP_TESTS"),
		},
		&cli.StringFlag{
			Name:        "build-backend",
			Usage:       "Build backend (maven, gradle). Detected from the manifest when empty",
			Destination: &c.BuildBackend,
			Sources:     cli.EnvVars("SHIPIT_BUILD_BACKEND"),
		},
		&cli.StringFlag{
			Name:        "main-branch",
			Usage:       "Release branch. Detected from the remote when empty",
			Destination: &c.MainBranch,
			Sources:     cli.EnvVars("SHIPIT_MAIN_BRANCH"),
		},
		&cli.StringFlag{
			Name:        "plugin-dir",
			Usage:       "Directory of hook executables, relative to the repository root",
			Value:       defaults.PluginDir,
			Destination: &c.PluginDir,
			Sources:     cli.EnvVars("SHIPIT_PLUGIN_DIR"),
		},
		&cli.StringFlag{
			Name:        "remote",
			Usage:       "Git remote to push to",
			Value:       defaults.Remote,
			Destination: &c.Remote,
			Sources:     cli.EnvVars("SHIPIT_REMOTE"),
		},
	}
}

// ConfigPath returns the config file location resolved against Dir
func (c *Project) ConfigPath() string {
	if filepath.IsAbs(c.ConfigFile) {
		return c.ConfigFile
	}
	return filepath.Join(c.Dir, c.ConfigFile)
}

// Apply fills settings not given by flag or environment from the config file
func (c *Project) Apply(cmd *cli.Command, f *File) {
	fileValue(cmd, "version-file", &c.VersionFile, f.VersionFile)
	fileValue(cmd, "default-version", &c.DefaultVersion, f.DefaultVersion)
	fileValue(cmd, "build-backend", &c.BuildBackend, f.BuildBackend)
	fileValue(cmd, "main-branch", &c.MainBranch, f.MainBranch)
	fileValue(cmd, "plugin-dir", &c.PluginDir, f.PluginDir)
	fileValue(cmd, "remote", &c.Remote, f.Remote)
	if f.SkipTests != nil && !cmd.IsSet("skip-tests") {
		c.SkipTests = *f.SkipTests
	}
}

// Config assembles the run configuration
func (c *Project) Config(publish model.PublishConfig) (model.Config, error) {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return model.Config{}, goerr.Wrap(err, "failed to resolve repository directory",
			goerr.V("dir", c.Dir),
			goerr.T(model.ErrTagPrecondition))
	}

	fallback, err := model.ParseVersion(c.DefaultVersion)
	if err != nil {
		return model.Config{}, goerr.Wrap(err, "invalid default version")
	}

	cfg := model.DefaultConfig()
	cfg.RepoDir = dir
	cfg.VersionFile = c.VersionFile
	cfg.DefaultVersion = fallback
	cfg.SkipTests = c.SkipTests
	cfg.BuildBackend = c.BuildBackend
	cfg.MainBranch = c.MainBranch
	cfg.PluginDir = c.PluginDir
	cfg.Remote = c.Remote
	cfg.Publish = publish
	return cfg, nil
}
