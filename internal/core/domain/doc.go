// Package domain defines the core business entities for vpp.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Credential: An API key plus the opaque identifier used in bookkeeping
//   - Index: The searchable mapping from frame path to text and tokens
//   - FrameLocation: Per-frame source/timecode metadata
//   - SearchOptions / SearchResult: Ranking engine input and output
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
