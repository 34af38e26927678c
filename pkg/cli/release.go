package cli

import (
	"context"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/cli/config"
	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/lock"
	"github.com/m-mizutani/shipit/pkg/infra/prompt"
	"github.com/m-mizutani/shipit/pkg/usecase"
)

type releaseFlags struct {
	bump            string
	version         string
	dryRun          bool
	uploadOnly      bool
	skipVersionSync bool
	syncLatest      bool
	yes             bool
	rollback        bool
	notes           string
	message         string
}

func (f *releaseFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bump",
			Usage:       "Version part to increment (patch, minor, major, custom)",
			Value:       string(model.BumpPatch),
			Destination: &f.bump,
			Sources:     cli.EnvVars("SHIPIT_BUMP"),
		},
		&cli.StringFlag{
			Name:        "set-version",
			Usage:       "Release exactly this MAJOR.MINOR.PATCH version (implies --bump custom)",
			Destination: &f.version,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Resolve and print the plan, record mutations without executing them",
			Destination: &f.dryRun,
			Sources:     cli.EnvVars("SHIPIT_DRY_RUN"),
		},
		&cli.BoolFlag{
			Name:        "upload-only",
			Usage:       "Rebuild the current version and attach it to its existing release",
			Destination: &f.uploadOnly,
		},
		&cli.BoolFlag{
			Name:        "skip-version-sync",
			Usage:       "Do not compare the local version with the latest published release",
			Destination: &f.skipVersionSync,
			Sources:     cli.EnvVars("SHIPIT_SKIP_VERSION_SYNC"),
		},
		&cli.BoolFlag{
			Name:        "sync-latest",
			Usage:       "Adopt the latest published version when it differs from the local one",
			Destination: &f.syncLatest,
		},
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Approve all confirmations except rollback",
			Destination: &f.yes,
			Sources:     cli.EnvVars("SHIPIT_YES"),
		},
		&cli.BoolFlag{
			Name:        "rollback-on-failure",
			Usage:       "Approve the rollback confirmation when not asked interactively",
			Destination: &f.rollback,
			Sources:     cli.EnvVars("SHIPIT_ROLLBACK_ON_FAILURE"),
		},
		&cli.StringFlag{
			Name:        "notes",
			Usage:       "Release notes. Defaults to the generated changelog",
			Destination: &f.notes,
		},
		&cli.StringFlag{
			Name:        "message",
			Aliases:     []string{"m"},
			Usage:       "Release commit message. Defaults to \"Release vX.Y.Z\"",
			Destination: &f.message,
		},
	}
}

func (f *releaseFlags) runOptions() (model.RunOptions, error) {
	bump, err := model.ParseBump(f.bump)
	if err != nil {
		return model.RunOptions{}, err
	}
	if f.version != "" {
		bump = model.BumpCustom
	}
	if bump == model.BumpCustom && f.version == "" {
		return model.RunOptions{}, goerr.New("--bump custom requires --set-version",
			goerr.T(model.ErrTagPrecondition))
	}

	return model.RunOptions{
		Bump:            bump,
		CustomVersion:   f.version,
		DryRun:          f.dryRun,
		UploadOnly:      f.uploadOnly,
		SkipVersionSync: f.skipVersionSync,
		SyncLatest:      f.syncLatest,
		ReleaseNotes:    f.notes,
		CommitMessage:   f.message,
	}, nil
}

// prompter picks how confirmations are answered. Without a terminal and
// without --yes every gate but an opted-in rollback is declined.
func (f *releaseFlags) prompter(interactive bool) interfaces.Prompter {
	switch {
	case f.yes:
		return prompt.AutoApprove(f.rollback)
	case interactive:
		return prompt.NewTerminal()
	default:
		return prompt.NewStatic(map[model.Gate]bool{model.GateRollback: f.rollback})
	}
}

func cmdRelease(s *settings) *cli.Command {
	var githubCfg config.GitHub
	var publishCfg config.Publish
	var rf releaseFlags

	return &cli.Command{
		Name:  "release",
		Usage: "Build, tag and publish the next version",
		Flags: slices.Concat(rf.flags(), githubCfg.Flags(), publishCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			opts, err := rf.runOptions()
			if err != nil {
				return err
			}

			githubCfg.Apply(c, s.file)
			if err := publishCfg.Apply(c, s.file); err != nil {
				return err
			}
			cfg, err := s.project.Config(publishCfg.Config())
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cfg)
			if err != nil {
				return err
			}

			runLock := lock.New(lock.PathFor(ws.git.GitDir()))
			if err := runLock.Acquire(); err != nil {
				return err
			}
			defer func() {
				if err := runLock.Release(); err != nil {
					logger.Warn("Failed to release run lock", "error", err)
				}
			}()

			var remoteURL string
			if githubCfg.Repository == "" {
				if remoteURL, err = ws.git.RemoteURL(ctx); err != nil {
					return err
				}
			}
			client, err := githubCfg.NewClient(remoteURL, cfg.Publish.RequestTimeout)
			if err != nil {
				return err
			}

			interactive := prompt.IsInteractive()
			if !interactive && !rf.yes {
				logger.Warn("No terminal attached and --yes not given, confirmations will be declined")
			}

			out := c.Root().Writer
			uc := usecase.NewRelease(
				cfg,
				ws.git,
				ws.git,
				ws.build,
				usecase.NewPublisher(client, cfg.Publish),
				ws.plugins,
				ws.versions,
				rf.prompter(interactive),
				usecase.WithPlanPrinter(planPrinter(out)),
			)

			var result *model.RunResult
			if opts.UploadOnly {
				result, err = uc.UploadOnly(ctx, opts)
			} else {
				result, err = uc.Release(ctx, opts)
			}
			printResult(out, result)
			return err
		},
	}
}
