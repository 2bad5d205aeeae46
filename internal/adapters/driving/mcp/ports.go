package mcp

import (
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server uses.
type Ports struct {
	// Search ranks frames against a query.
	Search driving.SearchService

	// Index owns the frame index.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Index == nil {
		return ErrMissingIndexService
	}
	return nil
}
