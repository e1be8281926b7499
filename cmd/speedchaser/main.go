package main

import (
	"context"
	"os"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	rootCmd := NewRootCmd(version, newApp())
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

// servicesFunc returns the services of the scope selected on the command line.
type servicesFunc func(cmd *cobra.Command) (*internal.Services, error)

func newApp() servicesFunc {
	resolver := internal.NewScopeResolver()

	var cached *internal.Services
	return func(cmd *cobra.Command) (*internal.Services, error) {
		if cached != nil {
			return cached, nil
		}

		scopeHint, _ := cmd.Flags().GetString("scope")
		verbose, _ := cmd.Flags().GetBool("verbose")

		_ = godotenv.Load(resolver.Resolve(scopeHint).EnvPath())

		logger := internal.NewLogger(cmd.ErrOrStderr(), verbose)
		svc, err := internal.LoadServices(resolver, scopeHint, logger)
		if err != nil {
			return nil, err
		}
		cached = svc
		return svc, nil
	}
}
