package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/infra/git"
)

func cmdChangelog(s *settings) *cli.Command {
	return &cli.Command{
		Name:  "changelog",
		Usage: "Print commit subjects since the most recent tag",
		Action: func(ctx context.Context, c *cli.Command) error {
			gw, err := git.NewGateway(s.project.Dir)
			if err != nil {
				return err
			}

			log, err := gw.Generate(ctx)
			if err != nil {
				return err
			}
			if log != "" {
				fmt.Fprintln(c.Root().Writer, log)
			}
			return nil
		},
	}
}
