package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/core"
)

func importCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "import",
		Usage:     "Import conversation history into a scope",
		ArgsUsage: "[history.json ...]",
		Flags:     globalFlags(&cfg),
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

			// Histories under --history-dir are imported while opening.
			store, err := cfg.openStore(ctx, mc, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			added := 0
			for _, path := range c.Args().Slice() {
				msgs, err := readHistoryFile(path)
				if err != nil {
					return err
				}
				added += store.Import(ctx, msgs)
			}

			fmt.Fprintf(c.Root().Writer, "imported %d turns from files, %d stored in %s\n", added, store.Len(), store.Scope())
			return nil
		},
	}
}

func readHistoryFile(path string) ([]core.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	var msgs []core.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode history file %s: %w", path, err)
	}
	return msgs, nil
}
