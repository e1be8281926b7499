package internal

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const SearchToolName = "search_documents"

type documentRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

// NewSearchServer exposes retrieval as an MCP tool.
func NewSearchServer(retriever documentRetriever, version string, defaultTopK int) *server.MCPServer {
	if defaultTopK < 1 {
		defaultTopK = DefaultTopK
	}

	tool := mcp.NewTool(SearchToolName,
		mcp.WithDescription("Search the locally ingested documents and return the nearest chunks with their source file"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of chunks to return"),
			mcp.Min(1),
		),
	)

	srv := server.NewMCPServer("speedchaser", version, server.WithToolCapabilities(false))
	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := retriever.Retrieve(ctx, q, request.GetInt("top_k", defaultTopK))
		if errors.Is(err, ErrNoIndex) {
			return mcp.NewToolResultError("no documents have been ingested yet"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var response strings.Builder
		for _, r := range res {
			raw, err := json.Marshal(struct {
				Distance float32 `json:"distance"`
				File     string  `json:"file"`
				Offset   int     `json:"offset"`
				Text     string  `json:"text"`
			}{
				Distance: r.Distance,
				File:     r.SourcePath,
				Offset:   r.Offset,
				Text:     r.Content,
			})
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			response.Write(raw)
			response.WriteByte('\n')
		}

		return mcp.NewToolResultText(response.String()), nil
	})

	return srv
}
