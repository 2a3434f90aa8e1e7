package driving

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// QueryService answers questions with ranked context from the index.
type QueryService interface {
	// AnswerContext embeds the question, retrieves similar chunks and
	// assembles a deduplicated, ranked bundle. Zero-valued options fall back
	// to configured defaults.
	AnswerContext(ctx context.Context, question string, opts domain.QueryOptions) (*domain.ContextBundle, error)
}
