package services

import (
	"context"

	"research_impact_go_backend/internal/providers"
)

// AttentionFetcher is the alternative-attention lookup consumed by the
// readership estimator. Satisfied by providers.AltmetricClient.
type AttentionFetcher interface {
	FetchAttention(ctx context.Context, doi string) (*providers.AttentionRecord, error)
}
