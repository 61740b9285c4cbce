// cmd/readcorr/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"readcorr/internal/app"
	"readcorr/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand(app.Run)
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
