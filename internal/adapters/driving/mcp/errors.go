// Package mcp provides an MCP (Model Context Protocol) server adapter for vpp.
// It lets AI assistants search the frame index and trigger rebuilds.
package mcp

import "errors"

var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrMissingIndexService is returned when the index service is not provided.
	ErrMissingIndexService = errors.New("mcp: index service is required")
)
