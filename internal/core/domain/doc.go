// Package domain defines the core business entities for kbase.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ContentItem: an uploaded file or a submitted text entry
//   - ProcessingStatus: the lifecycle state machine of a content item
//   - EmbeddingChunk: one embedded span of a content item
//   - SearchResult: a ranked similarity hit
//   - DashboardStats: aggregate corpus figures
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
