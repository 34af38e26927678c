package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/usecase"
)

func cmdVersion(s *settings) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the current version reconciled from the version file and the build manifest",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := s.project.Config(model.DefaultConfig().Publish)
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cfg)
			if err != nil {
				return err
			}

			v, err := usecase.CurrentVersion(ctx, ws.versions, ws.build, cfg.DefaultVersion)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, v.String())
			return nil
		},
	}
}
