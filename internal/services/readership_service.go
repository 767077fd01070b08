package services

import (
	"context"
	"fmt"
	"strings"

	"research_impact_go_backend/internal/providers"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Confidence levels for readership estimates, from mostly-verified to
// mostly-heuristic.
const (
	ConfidenceVeryHigh = "Very High"
	ConfidenceHigh     = "High"
	ConfidenceGood     = "Good"
	ConfidenceModerate = "Moderate"
	ConfidenceLow      = "Low"
)

// ReadershipConfig carries the estimation multipliers. The defaults are
// published heuristic ratios, kept as configuration so they can be
// recalibrated without touching the estimator.
type ReadershipConfig struct {
	CitationReadMultiplier int
	SocialReadMultiplier   int
}

// DefaultReadershipConfig returns the published heuristic ratios: 15
// reads per citation and 5 reads per social mention.
func DefaultReadershipConfig() ReadershipConfig {
	return ReadershipConfig{
		CitationReadMultiplier: 15,
		SocialReadMultiplier:   5,
	}
}

// VerifiedCounters are exact direct-tracking numbers, present only when
// the publication is hosted under our own tracking.
type VerifiedCounters struct {
	Views     int    `json:"views"`
	Downloads int    `json:"downloads"`
	Countries int    `json:"countries"`
	Source    string `json:"source"`
	Tracked   bool   `json:"tracked"`
}

// ReadershipBreakdown shows how much of the total came from each
// estimation channel.
type ReadershipBreakdown struct {
	FromCitations        int `json:"fromCitations"`
	FromSocial           int `json:"fromSocial"`
	FromDirect           int `json:"fromDirect"`
	FromReferenceManager int `json:"fromReferenceManager"`
}

// AttentionSummary is the alternative-attention sub-record surfaced
// alongside the estimate.
type AttentionSummary struct {
	Score           float64 `json:"score"`
	SocialMentions  int     `json:"socialMentions"`
	MSMMentions     int     `json:"msmMentions"`
	PolicyCitations int     `json:"policyCitations"`
}

// ReadershipMetrics is the on-demand estimate of total readership. It
// is never stored; every call recomputes it from current data.
type ReadershipMetrics struct {
	Verified        VerifiedCounters    `json:"verified"`
	EstimatedReads  int                 `json:"estimatedReads"`
	Confidence      float64             `json:"confidence"`
	ConfidenceLevel string              `json:"confidenceLevel"`
	Breakdown       ReadershipBreakdown `json:"breakdown"`
	Attention       AttentionSummary    `json:"attention"`
	Methodology     string              `json:"methodology"`
}

// ReadershipService fuses verified tracking counters with
// citation-derived and attention-derived estimates.
type ReadershipService struct {
	store     PublicationStoreDB
	attention AttentionFetcher
	config    ReadershipConfig
	log       zerolog.Logger
}

// NewReadershipService creates a ReadershipService.
func NewReadershipService(store PublicationStoreDB, attention AttentionFetcher, config ReadershipConfig, log zerolog.Logger) *ReadershipService {
	return &ReadershipService{
		store:     store,
		attention: attention,
		config:    config,
		log:       log,
	}
}

// EstimateReadership produces a best-effort readership estimate for one
// publication. An unreachable attention provider degrades that channel
// to zero instead of failing the estimate.
func (s *ReadershipService) EstimateReadership(ctx context.Context, researcherID uuid.UUID, publicationID uint) (*ReadershipMetrics, error) {
	pub, err := s.store.PublicationByID(researcherID, publicationID)
	if err != nil {
		return nil, fmt.Errorf("loading publication: %w", err)
	}

	doi := ""
	if pub.DOI != nil {
		doi = *pub.DOI
	}

	metrics := &ReadershipMetrics{}
	var methodology []string

	if doi != "" {
		counter, err := s.store.CounterByDOI(doi)
		if err != nil {
			return nil, fmt.Errorf("loading tracking counters: %w", err)
		}
		if counter != nil {
			metrics.Verified = VerifiedCounters{
				Views:     counter.Views,
				Downloads: counter.Downloads,
				Countries: counter.Countries,
				Source:    counter.Source,
				Tracked:   true,
			}
		}
	}

	attention := &providers.AttentionRecord{}
	if doi != "" && s.attention != nil {
		fetched, err := s.attention.FetchAttention(ctx, doi)
		if err != nil {
			// Degraded, not failed: the estimate proceeds with zero
			// attention signal.
			s.log.Warn().Err(err).Str("doi", doi).Msg("attention provider unavailable")
			methodology = append(methodology, "attention data unavailable")
		} else {
			attention = fetched
		}
	}
	metrics.Attention = AttentionSummary{
		Score:           attention.Score,
		SocialMentions:  attention.SocialMentions,
		MSMMentions:     attention.MSMMentions,
		PolicyCitations: attention.PolicyCitations,
	}

	metrics.Breakdown = ReadershipBreakdown{
		FromCitations:        pub.CitationCount * s.config.CitationReadMultiplier,
		FromSocial:           attention.SocialMentions * s.config.SocialReadMultiplier,
		FromDirect:           metrics.Verified.Views,
		FromReferenceManager: attention.MendeleyReaders,
	}
	metrics.EstimatedReads = metrics.Breakdown.FromCitations +
		metrics.Breakdown.FromSocial +
		metrics.Breakdown.FromDirect +
		metrics.Breakdown.FromReferenceManager

	metrics.Confidence = confidence(metrics.Verified.Tracked, pub.CitationCount, attention.MendeleyReaders)
	metrics.ConfidenceLevel = confidenceLevel(metrics.Confidence)

	if metrics.Breakdown.FromCitations > 0 {
		methodology = append(methodology, fmt.Sprintf("%d reads estimated from %d citations (x%d)",
			metrics.Breakdown.FromCitations, pub.CitationCount, s.config.CitationReadMultiplier))
	}
	if metrics.Breakdown.FromSocial > 0 {
		methodology = append(methodology, fmt.Sprintf("%d reads estimated from %d social mentions (x%d)",
			metrics.Breakdown.FromSocial, attention.SocialMentions, s.config.SocialReadMultiplier))
	}
	if metrics.Breakdown.FromDirect > 0 {
		methodology = append(methodology, fmt.Sprintf("%d verified views from direct tracking", metrics.Breakdown.FromDirect))
	}
	if metrics.Breakdown.FromReferenceManager > 0 {
		methodology = append(methodology, fmt.Sprintf("%d reference-manager readers", metrics.Breakdown.FromReferenceManager))
	}
	if len(methodology) == 0 {
		methodology = append(methodology, "no readership signals available")
	}
	metrics.Methodology = strings.Join(methodology, "; ")

	return metrics, nil
}

// confidence applies the ordered assignment rules; the first matching
// rule wins.
func confidence(tracked bool, citationCount, referenceReaders int) float64 {
	switch {
	case tracked:
		return 0.9
	case citationCount > 10 && referenceReaders > 0:
		return 0.75
	case citationCount > 5:
		return 0.65
	case citationCount > 0:
		return 0.55
	default:
		return 0.5
	}
}

func confidenceLevel(value float64) string {
	switch {
	case value >= 0.9:
		return ConfidenceVeryHigh
	case value >= 0.75:
		return ConfidenceHigh
	case value >= 0.65:
		return ConfidenceGood
	case value >= 0.55:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}
