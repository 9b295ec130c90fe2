// cmd/sitegrain/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/sitegrain/sitegrain/internal/cli"
)

func main() {
	// Interrupt cancels the run context; in-flight fetches finish and
	// accumulated pages are still persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}
