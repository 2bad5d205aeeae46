package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

const uriScheme = "vpp://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Frame index statistics",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "frames/{+path}",
		Name:        "frame",
		Description: "Indexed text of one frame, by path relative to the thumbnails directory",
		MIMEType:    "text/plain",
	}, s.handleFrameResource)
}

type indexInfo struct {
	Entries  int    `json:"entries"`
	Chunks   int    `json:"chunks"`
	Root     string `json:"root"`
	CacheDir string `json:"cache_dir"`
	LoadedAt string `json:"loaded_at,omitempty"`
}

// handleIndexResource returns index statistics, loading the index if needed.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if err := s.ports.Index.EnsureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	stats := s.ports.Index.Stats()
	info := indexInfo{
		Entries:  stats.Entries,
		Chunks:   stats.Chunks,
		Root:     stats.Root,
		CacheDir: stats.CacheDir,
	}
	if !stats.LoadedAt.IsZero() {
		info.LoadedAt = stats.LoadedAt.UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling index info: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleFrameResource returns the indexed text of one frame.
func (s *Server) handleFrameResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	path, err := extractFramePath(req.Params.URI)
	if err != nil {
		return nil, err
	}
	if err := s.ports.Index.EnsureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	entry, ok := s.ports.Index.Snapshot()[path]
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     entry.Text,
		}},
	}, nil
}

// extractFramePath extracts the frame path from vpp://frames/{path}.
func extractFramePath(uri string) (string, error) {
	prefix := uriScheme + "frames/"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("invalid URI format: %s: %w", uri, domain.ErrInvalidInput)
	}
	path, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return "", fmt.Errorf("invalid URI escape: %s: %w", uri, domain.ErrInvalidInput)
	}
	if path == "" {
		return "", fmt.Errorf("missing frame path: %s: %w", uri, domain.ErrInvalidInput)
	}
	return path, nil
}
