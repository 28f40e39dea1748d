package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/memory"
)

func searchCommand() *cli.Command {
	var (
		cfg       config
		showHits  bool
		summaries int
	)

	flags := []cli.Flag{
		&cli.FloatFlag{
			Name:  "threshold",
			Usage: "Minimum similarity (overrides context_threshold)",
		},
		&cli.IntFlag{
			Name:  "max-chars",
			Usage: "Context size limit (overrides max_context_chars)",
		},
		&cli.BoolFlag{
			Name:        "hits",
			Usage:       "Print the nearest turns with their similarity instead of the context block",
			Destination: &showHits,
		},
		&cli.IntFlag{
			Name:  "summaries-limit",
			Usage: "Also print up to this many extracted summaries",
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Show the memory context for a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("query is required")
			}
			summaries = int(c.Int("summaries-limit"))

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

			w := c.Root().Writer
			if showHits {
				hits, err := store.Search(ctx, query, mc.SearchK)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(w, "%.3f  %s\n", h.Similarity, h.Record.Format())
				}
			} else {
				var opts []memory.SearchOption
				if c.IsSet("threshold") {
					opts = append(opts, memory.WithThreshold(c.Float("threshold")))
				}
				if c.IsSet("max-chars") {
					opts = append(opts, memory.WithMaxChars(int(c.Int("max-chars"))))
				}
				out := store.SearchRelevantContext(ctx, query, opts...)
				if out == "" {
					fmt.Fprintln(w, "no relevant memories")
				} else {
					fmt.Fprintln(w, out)
				}
			}

			if summaries > 0 {
				found, err := store.SearchSummaries(ctx, query, summaries)
				if err != nil {
					return err
				}
				for _, m := range found {
					fmt.Fprintf(w, "- %s\n", m.Summary)
				}
			}
			return nil
		},
	}
}
