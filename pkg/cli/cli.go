package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/cli/config"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/domain/types"
)

// settings are shared by all subcommands once the root Before hook ran
type settings struct {
	project config.Project
	file    *config.File
}

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var logger *slog.Logger
	s := &settings{file: &config.File{}}

	// Values from .env must be in the environment before flags are parsed
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("Failed to load .env", "error", err)
	}

	app := &cli.Command{
		Name:    types.AppName,
		Usage:   "Release automation for Maven and Gradle projects",
		Version: types.Version,
		Flags:   slices.Concat(loggerCfg.Flags(), sentryCfg.Flags(), s.project.Flags()),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)

			if err := sentryCfg.Configure(); err != nil {
				return nil, err
			}

			file, err := config.LoadFile(s.project.ConfigPath(), c.IsSet("config"))
			if err != nil {
				return nil, err
			}
			s.project.Apply(c, file)
			s.file = file

			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdRelease(s),
			cmdVersion(s),
			cmdChangelog(s),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))

		if sentryCfg.Enabled() {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		return err
	}

	return nil
}

// ExitCode maps the error returned by Run to a process exit status:
// 0 on success or a declined confirmation, 2 on configuration and
// precondition problems, 1 on any other failure
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case goerr.HasTag(err, model.ErrTagPrecondition), goerr.HasTag(err, model.ErrTagInvalidVersion):
		return 2
	default:
		return 1
	}
}
