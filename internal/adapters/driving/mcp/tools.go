package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

const defaultSearchLimit = 20

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"words to look for in frame descriptions; empty lists every frame"`
	Mode   string `json:"mode,omitempty" jsonschema:"keyword, semantic, filter or smart; empty uses the configured mode"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 20)"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of results to skip"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Path  string `json:"path"`
	Text  string `json:"text"`
	Score int    `json:"score,omitempty"`
}

// RebuildInput is the (empty) input schema for the rebuild_index tool.
type RebuildInput struct{}

// RebuildOutput is the output schema for the rebuild_index tool.
type RebuildOutput struct {
	Entries int `json:"entries"`
	Chunks  int `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search video preview frames by their descriptions",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rebuild the frame index from the thumbnails directory",
	}, s.handleRebuild)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	mode := domain.SearchMode(input.Mode)
	if mode != "" && !mode.IsValid() {
		return nil, SearchOutput{}, fmt.Errorf("unknown search mode %q: %w", input.Mode, domain.ErrInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if err := s.ports.Index.EnsureLoaded(ctx); err != nil {
		return nil, SearchOutput{}, fmt.Errorf("load index: %w", err)
	}

	results, err := s.ports.Search.Search(ctx, input.Query, domain.SearchOptions{
		Mode:   mode,
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{Path: r.Path, Text: r.Text, Score: r.Score}
	}

	return nil, output, nil
}

// handleRebuild handles the rebuild_index tool invocation.
func (s *Server) handleRebuild(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RebuildInput,
) (*mcp.CallToolResult, RebuildOutput, error) {
	n, err := s.ports.Index.Rebuild(ctx)
	if err != nil {
		return nil, RebuildOutput{}, fmt.Errorf("rebuild index: %w", err)
	}
	stats := s.ports.Index.Stats()
	return nil, RebuildOutput{Entries: n, Chunks: stats.Chunks}, nil
}
