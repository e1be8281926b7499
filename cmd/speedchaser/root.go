package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func NewRootCmd(version string, svc servicesFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "speedchaser",
		Short:         "Retrieval-augmented chat over your local files",
		Long:          `Ingest local documents into a vector index and chat with a language model that sees the most relevant chunks.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	if svc != nil {
		addSubcommands(rootCmd, svc)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("scope", "", "Target scope (global|project)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging on stderr")
}

func addSubcommands(root *cobra.Command, svc servicesFunc) {
	root.AddCommand(
		NewInitCmd(),
		NewIngestCmd(svc),
		NewSearchCmd(svc),
		NewAskCmd(svc),
		NewFileCmd(svc),
		NewChatCmd(svc),
		NewIndexCmd(svc),
		NewDocsCmd(svc),
		NewMCPCmd(svc, root.Version),
	)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
