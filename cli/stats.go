package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/core"
)

func statsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "stats",
		Usage: "Show what a scope has stored",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger, err := cfg.newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mc, err := cfg.memoryConfig()
			if err != nil {
				return err
			}
			store, err := cfg.openStore(ctx, mc, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			var human, ai int
			for _, r := range store.Records() {
				if r.Role == core.RoleHuman {
					human++
				} else {
					ai++
				}
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "scope:   %s\n", store.Scope())
			fmt.Fprintf(w, "dir:     %s\n", store.Dir())
			fmt.Fprintf(w, "device:  %s\n", store.Device())
			fmt.Fprintf(w, "records: %d (%d user, %d assistant)\n", store.Len(), human, ai)
			return nil
		},
	}
}
