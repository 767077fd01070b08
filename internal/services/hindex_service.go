package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"research_impact_go_backend/internal/models"

	"github.com/google/uuid"
)

// HIndexPoint is the cumulative productivity state as of one year
// boundary. FieldBenchmark is an illustrative comparison line, not a
// measured benchmark dataset.
type HIndexPoint struct {
	Year                   int `json:"year"`
	HIndex                 int `json:"hIndex"`
	CumulativePublications int `json:"cumulativePublications"`
	CumulativeCitations    int `json:"cumulativeCitations"`
	FieldBenchmark         int `json:"fieldBenchmark"`
}

// fieldBenchmarkRatio scales the computed h-index into the comparison
// line shown next to it.
const fieldBenchmarkRatio = 0.7

// HIndexService computes the h-index series over a researcher's
// publication history.
type HIndexService struct {
	store PublicationStoreDB
}

// NewHIndexService creates an HIndexService.
func NewHIndexService(store PublicationStoreDB) *HIndexService {
	return &HIndexService{store: store}
}

// ComputeHIndexSeries returns one entry per distinct publication year in
// ascending order. At each year boundary the h-index is recomputed from
// the full multiset of citation counts seen so far, which keeps the
// series trivially correct; publications without a year are excluded.
func ComputeHIndexSeries(pubs []models.Publication) []HIndexPoint {
	byYear := make(map[int][]int)
	for _, pub := range pubs {
		if pub.Year == nil {
			continue
		}
		byYear[*pub.Year] = append(byYear[*pub.Year], pub.CitationCount)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	series := make([]HIndexPoint, 0, len(years))
	var running []int
	cumulativeCitations := 0
	for _, year := range years {
		for _, count := range byYear[year] {
			running = append(running, count)
			cumulativeCitations += count
		}

		h := computeHIndex(running)
		series = append(series, HIndexPoint{
			Year:                   year,
			HIndex:                 h,
			CumulativePublications: len(running),
			CumulativeCitations:    cumulativeCitations,
			FieldBenchmark:         int(math.Round(float64(h) * fieldBenchmarkRatio)),
		})
	}
	return series
}

// computeHIndex finds the largest h such that the h-th ranked citation
// count (descending, 1-indexed) is at least h.
func computeHIndex(counts []int) int {
	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	h := 0
	for i, count := range sorted {
		if count >= i+1 {
			h = i + 1
		} else {
			break
		}
	}
	return h
}

// HIndexSeries computes the series for everything the researcher owns.
func (s *HIndexService) HIndexSeries(ctx context.Context, researcherID uuid.UUID) ([]HIndexPoint, error) {
	pubs, err := s.store.PublicationsByResearcher(researcherID)
	if err != nil {
		return nil, fmt.Errorf("loading publications: %w", err)
	}
	return ComputeHIndexSeries(pubs), nil
}
