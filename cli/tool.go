package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/tools"
)

type toolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

func toolCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "tool",
		Usage:     "List the agent memory tools, or call one with a JSON input",
		ArgsUsage: "[name] [json]",
		Flags:     flags,
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
			extra, err := cfg.filterOptions(&mc, logger, false)
			if err != nil {
				return err
			}
			registry := memory.NewRegistry(mc, append(cfg.storeOptions(logger), extra...)...)
			defer registry.Close()

			available := tools.MemoryTools(registry, cfg.scope)
			w := c.Root().Writer

			if c.Args().Len() == 0 {
				defs := make([]toolDefinition, 0, len(available))
				for _, t := range available {
					defs = append(defs, toolDefinition{
						Name:        t.Name,
						Description: t.Description,
						InputSchema: t.InputSchema,
					})
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}

			name := c.Args().Get(0)
			tool, ok := tools.Find(available, name)
			if !ok {
				return fmt.Errorf("unknown tool %q", name)
			}
			out, err := tool.Run(ctx, json.RawMessage(c.Args().Get(1)))
			if err != nil {
				return err
			}
			fmt.Fprintln(w, out)
			return nil
		},
	}
}
