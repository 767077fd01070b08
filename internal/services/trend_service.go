package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"research_impact_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Trend labels. The ±5% dead-band keeps statistical noise from being
// labeled a trend; the boundary itself is stable.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

const trendDeadBand = 5.0

// PublicationTrend is the growth classification of one publication.
type PublicationTrend struct {
	PublicationID     uint    `json:"publicationId"`
	Title             string  `json:"title"`
	CurrentCount      int     `json:"currentCount"`
	GrowthRatePercent float64 `json:"growthRatePercent"`
	Trend             string  `json:"trend"`
	SnapshotCount     int     `json:"snapshotCount"`
}

// TrendSummary aggregates per-publication trends. AverageGrowth is the
// unweighted mean of individual growth rates: each publication counts
// equally regardless of citation volume.
type TrendSummary struct {
	TotalCitations int                `json:"totalCitations"`
	AverageGrowth  float64            `json:"averageGrowth"`
	Rising         int                `json:"rising"`
	Declining      int                `json:"declining"`
	Stable         int                `json:"stable"`
	Publications   []PublicationTrend `json:"publications"`
}

// TrendService derives growth rates and trend labels from a
// publication's snapshot history.
type TrendService struct {
	store PublicationStoreDB
	log   zerolog.Logger
}

// NewTrendService creates a TrendService.
func NewTrendService(store PublicationStoreDB, log zerolog.Logger) *TrendService {
	return &TrendService{store: store, log: log}
}

// ComputeTrend classifies a publication's citation growth from its
// ordered snapshot history. With two or more snapshots it compares the
// earliest against the latest; with exactly one it compares that
// snapshot against the live count; with none the publication is stable.
func ComputeTrend(currentCount int, orderedSnapshots []models.CitationSnapshot) (float64, string) {
	var earliest, latest int

	switch {
	case len(orderedSnapshots) >= 2:
		earliest = orderedSnapshots[0].CitationCount
		latest = orderedSnapshots[len(orderedSnapshots)-1].CitationCount
	case len(orderedSnapshots) == 1:
		earliest = orderedSnapshots[0].CitationCount
		latest = currentCount
	default:
		return 0, TrendStable
	}

	growth := growthRate(earliest, latest)
	return growth, trendLabel(growth)
}

// growthRate returns the percentage change rounded to one decimal. A
// zero baseline with any growth counts as 100%, never Inf or NaN.
func growthRate(earliest, latest int) float64 {
	var growth float64
	switch {
	case earliest > 0:
		growth = float64(latest-earliest) / float64(earliest) * 100
	case latest > 0:
		growth = 100
	default:
		growth = 0
	}
	return math.Round(growth*10) / 10
}

func trendLabel(growth float64) string {
	switch {
	case growth > trendDeadBand:
		return TrendUp
	case growth < -trendDeadBand:
		return TrendDown
	default:
		return TrendStable
	}
}

// TrendReport computes trends for every publication owned by the
// researcher plus the aggregate summary.
func (s *TrendService) TrendReport(ctx context.Context, researcherID uuid.UUID) (*TrendSummary, error) {
	pubs, err := s.store.PublicationsByResearcher(researcherID)
	if err != nil {
		return nil, fmt.Errorf("loading publications: %w", err)
	}

	summary := &TrendSummary{Publications: make([]PublicationTrend, 0, len(pubs))}
	if len(pubs) == 0 {
		return summary, nil
	}

	ids := make([]uint, len(pubs))
	for i, pub := range pubs {
		ids[i] = pub.ID
	}
	snapshots, err := s.store.ListSnapshots(ids)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}

	// ListSnapshots returns ascending by date; the per-publication
	// grouping preserves that order.
	byPublication := make(map[uint][]models.CitationSnapshot)
	for _, snap := range snapshots {
		byPublication[snap.PublicationID] = append(byPublication[snap.PublicationID], snap)
	}

	var growthTotal float64
	for _, pub := range pubs {
		growth, label := ComputeTrend(pub.CitationCount, byPublication[pub.ID])
		summary.Publications = append(summary.Publications, PublicationTrend{
			PublicationID:     pub.ID,
			Title:             pub.Title,
			CurrentCount:      pub.CitationCount,
			GrowthRatePercent: growth,
			Trend:             label,
			SnapshotCount:     len(byPublication[pub.ID]),
		})

		summary.TotalCitations += pub.CitationCount
		growthTotal += growth
		switch label {
		case TrendUp:
			summary.Rising++
		case TrendDown:
			summary.Declining++
		default:
			summary.Stable++
		}
	}
	summary.AverageGrowth = math.Round(growthTotal/float64(len(pubs))*10) / 10

	return summary, nil
}

// RecordSnapshot writes today's snapshot for one publication. Calling
// it twice on the same day overwrites rather than appends.
func (s *TrendService) RecordSnapshot(ctx context.Context, researcherID uuid.UUID, publicationID uint) error {
	pub, err := s.store.PublicationByID(researcherID, publicationID)
	if err != nil {
		return fmt.Errorf("loading publication: %w", err)
	}
	return s.store.UpsertSnapshot(pub.ID, pub.CitationCount, time.Now().UTC())
}

// RecordAllSnapshots writes today's snapshot for every publication the
// researcher owns. Failures are logged per publication and do not stop
// the sweep.
func (s *TrendService) RecordAllSnapshots(ctx context.Context, researcherID uuid.UUID) (int, error) {
	pubs, err := s.store.PublicationsByResearcher(researcherID)
	if err != nil {
		return 0, fmt.Errorf("loading publications: %w", err)
	}

	recorded := 0
	day := time.Now().UTC()
	for _, pub := range pubs {
		if err := s.store.UpsertSnapshot(pub.ID, pub.CitationCount, day); err != nil {
			s.log.Error().Err(err).Uint("publicationID", pub.ID).Msg("failed to record snapshot")
			continue
		}
		recorded++
	}
	return recorded, nil
}
