package main

import (
	"fmt"
	"os"

	"github.com/mikey/mailview/internal/di"
	"github.com/mikey/mailview/internal/ports"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, frontend ports.Frontend) error {
	defer logger.Sync()

	if err := frontend.Start(); err != nil {
		return err
	}
	return frontend.Stop()
}
