package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// errDashboardUnavailable is returned by dashboard tools when no dashboard port is wired.
var errDashboardUnavailable = errors.New("dashboard is not available on this server")

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"natural language text to match against stored chunks"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
	Threshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"minimum cosine similarity in [0,1] (default 0.7)"`
	Kinds     []string `json:"kinds,omitempty" jsonschema:"restrict to content kinds: file, text, document"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single matching chunk.
type SearchResultOutput struct {
	Ref        string  `json:"ref"`
	Name       string  `json:"name,omitempty"`
	ChunkID    int64   `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// QueueOutput is the output schema for the processing_queue tool.
type QueueOutput struct {
	Items []domain.QueueItem `json:"items"`
	Count int                `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find stored text chunks most similar to a query",
	}, s.handleSearch)

	if s.ports.Dashboard == nil {
		return
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dashboard_stats",
		Description: "Totals for files, text entries, embeddings and storage, plus daily uploads",
	}, s.handleDashboardStats)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "processing_queue",
		Description: "Items waiting for or undergoing processing, oldest first",
	}, s.handleProcessingQueue)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{Limit: input.Limit, Threshold: input.Threshold}
	for _, k := range input.Kinds {
		kind, err := domain.ParseContentKind(k)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		opts.Kinds = append(opts.Kinds, kind)
	}

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			Ref:        results[i].Content.String(),
			Name:       results[i].DisplayName,
			ChunkID:    results[i].ChunkID,
			ChunkIndex: results[i].ChunkIndex,
			Similarity: results[i].Similarity,
			Text:       results[i].ChunkText,
		}
	}
	return nil, output, nil
}

func (s *Server) handleDashboardStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, domain.DashboardStats, error) {
	if s.ports.Dashboard == nil {
		return nil, domain.DashboardStats{}, errDashboardUnavailable
	}
	stats, err := s.ports.Dashboard.Stats(ctx)
	if err != nil {
		return nil, domain.DashboardStats{}, err
	}
	return nil, *stats, nil
}

func (s *Server) handleProcessingQueue(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, QueueOutput, error) {
	if s.ports.Dashboard == nil {
		return nil, QueueOutput{}, errDashboardUnavailable
	}
	queue, err := s.ports.Dashboard.ProcessingQueue(ctx)
	if err != nil {
		return nil, QueueOutput{}, err
	}
	if queue == nil {
		queue = []domain.QueueItem{}
	}
	return nil, QueueOutput{Items: queue, Count: len(queue)}, nil
}
