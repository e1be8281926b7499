package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/4thel00z/speedchaser/internal"
	"github.com/spf13/cobra"
)

func NewSearchCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the ingested documents",
		Long:  `Return the chunks nearest to the query, nearest first, without calling a chat model.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeSearchRunner(svc),
	}

	cmd.Flags().IntP("number", "n", internal.DefaultTopK, "Maximum results")
	cmd.Flags().Bool("full", false, "Print whole chunks instead of a preview")
	return cmd
}

func makeSearchRunner(svc servicesFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := svc(cmd)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("number")
		full, _ := cmd.Flags().GetBool("full")
		asJSON, _ := cmd.Flags().GetBool("json")

		results, err := s.Retriever.Retrieve(cmd.Context(), query, limit)
		if errors.Is(err, internal.ErrNoIndex) {
			return fmt.Errorf("no vector index found, run 'speedchaser ingest' first: %w", err)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if asJSON {
			if results == nil {
				results = []internal.Result{}
			}
			return writeJSON(cmd, results)
		}

		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s@%d\n", r.Distance, r.SourcePath, r.Offset)
			content := r.Content
			if !full {
				content = preview(content, 160)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "        %s\n", content)
		}
		return nil
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
