package main

import (
	"fmt"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/spf13/cobra"
)

func NewDocsCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate configuration documentation",
		Long:  `Write a markdown description of the active configuration to docs/current_config.md.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := svc(cmd)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			quiet, _ := cmd.Flags().GetBool("quiet")

			path, doc, err := s.Docs.Execute(cmd.Context(), internal.GenerateDocsInput{Dir: dir})
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Documentation saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().String("dir", "docs", "Output directory")
	cmd.Flags().BoolP("quiet", "q", false, "Only print where the file was written")
	return cmd
}
