package main

import (
	"github.com/4thel00z/speedchaser/internal"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func NewMCPCmd(svc servicesFunc, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve document search over MCP (stdio)",
		Long:  `Expose the search_documents tool to MCP clients over stdin/stdout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := svc(cmd)
			if err != nil {
				return err
			}

			srv := internal.NewSearchServer(s.Retriever, version, s.Config.Retrieval.TopK)
			return server.ServeStdio(srv)
		},
	}
}
