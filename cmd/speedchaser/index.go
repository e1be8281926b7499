package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewIndexCmd(svc servicesFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the vector index",
	}

	cmd.AddCommand(newIndexStatusCmd(svc))
	return cmd
}

func newIndexStatusCmd(svc servicesFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := svc(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			st, err := s.Store.Status()
			if err != nil {
				return fmt.Errorf("index status: %w", err)
			}

			if asJSON {
				return writeJSON(cmd, st)
			}

			if !st.Exists {
				fmt.Fprintln(cmd.OutOrStdout(), "No index yet: use 'speedchaser ingest' to build one.")
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Chunks:    %d\n", st.Count)
			fmt.Fprintf(w, "Dimension: %d\n", st.Dimension)
			fmt.Fprintf(w, "Model:     %s\n", st.Model)
			fmt.Fprintf(w, "Backend:   %s\n", st.Backend)
			fmt.Fprintf(w, "Built:     %s\n", st.BuiltAt.Local().Format(time.RFC1123))
			fmt.Fprintf(w, "Index:     %s\n", st.IndexPath)
			fmt.Fprintf(w, "Metadata:  %s\n", st.MetadataPath)
			return nil
		},
	}
}
