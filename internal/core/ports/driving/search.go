package driving

import (
	"context"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// SearchService ranks indexed frames against a query.
type SearchService interface {
	// Search runs the strategy selected by opts.Mode over the current index.
	// Strategy failures degrade to fewer results, not errors.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// ClearRelevanceCache drops every recorded yes/no answer.
	ClearRelevanceCache() error
}
