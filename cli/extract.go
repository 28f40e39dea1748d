package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/memory/extract"
)

func extractCommand() *cli.Command {
	var (
		cfg     config
		role    string
		convCtx string
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
			Name:        "context",
			Usage:       "Conversation context passed to the model",
			Destination: &convCtx,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Score a message for long-term importance without storing it",
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

			logger, err := cfg.newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mc, err := cfg.memoryConfig()
			if err != nil {
				return err
			}
			extractor, err := cfg.newExtractor(mc, logger)
			if err != nil {
				return err
			}

			res := extractor.Extract(ctx, r, content, convCtx)
			return writeResult(c, res)
		},
	}
}

type resultOutput struct {
	Status     string           `json:"status"`
	Importance float64          `json:"importance"`
	Memories   []extract.Memory `json:"memories"`
	Error      string           `json:"error,omitempty"`
}

func writeResult(c *cli.Command, res extract.Result) error {
	out := resultOutput{
		Status:     res.Status.String(),
		Importance: res.Importance,
		Memories:   res.Memories,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
