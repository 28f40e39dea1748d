// Package cli implements the nimmem command line tool for inspecting and
// filling semantic memory stores outside an agent.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/becomeliminal/nim-memory/core"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if err := newApp(os.Stdout).Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}
	return nil
}

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "nimmem",
		Usage:  "Long-term semantic memory for conversational agents",
		Writer: w,
		Commands: []*cli.Command{
			importCommand(),
			addCommand(),
			searchCommand(),
			extractCommand(),
			statsCommand(),
			toolCommand(),
		},
	}
}

// parseRole accepts the stored role names and their prompt labels.
func parseRole(s string) (core.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human", "user":
		return core.RoleHuman, nil
	case "ai", "assistant":
		return core.RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role %q (want human or ai)", s)
	}
}
