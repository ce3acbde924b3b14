package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	calculatorcmd "github.com/louisbranch/authless-calculator/internal/cmd/calculator"
	"github.com/louisbranch/authless-calculator/internal/platform/config"
)

// main serves the calculator over HTTP or stdio.
func main() {
	command, err := calculatorcmd.NewCommand(config.Environ(), calculatorcmd.Run)
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if err := command.ExecuteContext(ctx); err != nil {
		stop()
		config.Exitf("calculator: %v", err)
	}
	stop()
}
