package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg       config
		role      string
		timestamp string
		convCtx   string
		filter    bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "role",
			Aliases:     []string{"r"},
			Usage:       "human or ai",
			Value:       "human",
			Destination: &role,
		},
		&cli.StringFlag{
			Name:        "timestamp",
			Usage:       "Timestamp of the turn (default: now)",
			Destination: &timestamp,
		},
		&cli.StringFlag{
			Name:        "context",
			Usage:       "Conversation context passed to the extractor",
			Destination: &convCtx,
		},
		&cli.BoolFlag{
			Name:        "filter",
			Usage:       "Score the turn with the extractor before storing it",
			Destination: &filter,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Store one conversation turn",
		ArgsUsage: "<content>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			content := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(content) == "" {
				return errors.New("content is required")
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			if timestamp == "" {
				timestamp = time.Now().UTC().Format(time.RFC3339)
			}

			logger, err := cfg.newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mc, err := cfg.memoryConfig()
			if err != nil {
				return err
			}

			extra, err := cfg.filterOptions(&mc, logger, filter)
			if err != nil {
				return err
			}

			store, err := cfg.openStore(ctx, mc, logger, extra...)
			if err != nil {
				return err
			}
			defer store.Close()

			if store.Remember(ctx, r, content, timestamp, convCtx) {
				fmt.Fprintf(c.Root().Writer, "stored (%d turns in %s)\n", store.Len(), store.Scope())
			} else {
				fmt.Fprintln(c.Root().Writer, "skipped")
			}
			return nil
		},
	}
}
