package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// SearchService provides similarity search to external actors.
type SearchService interface {
	// Search embeds the query and returns the most similar chunks.
	// Results are ordered by similarity descending, then chunk ID ascending.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
