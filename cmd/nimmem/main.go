package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/becomeliminal/nim-memory/cli"
)

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Run(ctx, os.Args); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err.Message)
		os.Exit(err.Code)
	}
}
