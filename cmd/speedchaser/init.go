package main

import (
	"fmt"
	"os"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a speedchaser directory",
		Long:  `Create a .speedchaser directory holding the configuration and the vector store.`,
		RunE:  runInit,
	}

	cmd.Flags().Bool("global", false, "Initialize global scope (~/.speedchaser)")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	isGlobal, _ := cmd.Flags().GetBool("global")

	resolver := internal.NewScopeResolver()

	var scope internal.Scope
	if isGlobal {
		scope = resolver.Global()
	} else {
		here, err := resolver.Here()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		scope = here
	}

	if _, err := os.Stat(scope.StateDir); err == nil {
		return fmt.Errorf("already initialized at %s", scope.StateDir)
	}

	if err := os.MkdirAll(scope.VectorPath(), 0755); err != nil {
		return fmt.Errorf("create vectorstore directory: %w", err)
	}

	if err := internal.SaveConfig(scope, internal.DefaultConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized speedchaser at %s\n", scope.StateDir)
	return nil
}
