package services

import (
	"context"
	"testing"

	"research_impact_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHIndex(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"empty", nil, 0},
		{"all zero", []int{0, 0, 0}, 0},
		{"classic example", []int{10, 8, 5, 4, 3}, 4},
		{"single highly cited paper", []int{100}, 1},
		{"uniform counts", []int{3, 3, 3, 3}, 3},
		{"unsorted input", []int{3, 10, 4, 8, 5}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computeHIndex(tc.counts))
		})
	}
}

func TestComputeHIndexSeries(t *testing.T) {
	pub := func(year int, count int) models.Publication {
		return models.Publication{Title: "p", Year: intPtr(year), CitationCount: count}
	}

	t.Run("one point per distinct year in ascending order", func(t *testing.T) {
		series := ComputeHIndexSeries([]models.Publication{
			pub(2022, 10),
			pub(2020, 4),
			pub(2020, 6),
			pub(2021, 1),
		})

		require.Len(t, series, 3)
		assert.Equal(t, []int{2020, 2021, 2022}, []int{series[0].Year, series[1].Year, series[2].Year})

		// 2020: counts {4,6} -> h=2; 2021: {4,6,1} -> h=2; 2022: {4,6,1,10} -> h=3.
		assert.Equal(t, 2, series[0].HIndex)
		assert.Equal(t, 2, series[1].HIndex)
		assert.Equal(t, 3, series[2].HIndex)

		assert.Equal(t, 2, series[0].CumulativePublications)
		assert.Equal(t, 10, series[0].CumulativeCitations)
		assert.Equal(t, 4, series[2].CumulativePublications)
		assert.Equal(t, 21, series[2].CumulativeCitations)
	})

	t.Run("benchmark is seventy percent of the h-index rounded", func(t *testing.T) {
		series := ComputeHIndexSeries([]models.Publication{
			pub(2020, 5), pub(2020, 5), pub(2020, 5), pub(2020, 5), pub(2020, 5),
		})
		require.Len(t, series, 1)
		assert.Equal(t, 5, series[0].HIndex)
		assert.Equal(t, 4, series[0].FieldBenchmark) // round(5 * 0.7)
	})

	t.Run("publications without a year are excluded", func(t *testing.T) {
		series := ComputeHIndexSeries([]models.Publication{
			{Title: "undated", CitationCount: 50},
			pub(2021, 2),
		})
		require.Len(t, series, 1)
		assert.Equal(t, 1, series[0].CumulativePublications)
		assert.Equal(t, 2, series[0].CumulativeCitations)
	})

	t.Run("empty input yields an empty series", func(t *testing.T) {
		assert.Empty(t, ComputeHIndexSeries(nil))
	})
}

func TestHIndexSeriesFromStore(t *testing.T) {
	researcherID := uuid.New()
	pubA := models.Publication{ResearcherID: researcherID, Title: "A", Year: intPtr(2019), CitationCount: 3}
	pubA.ID = 1
	pubB := models.Publication{ResearcherID: researcherID, Title: "B", Year: intPtr(2020), CitationCount: 8}
	pubB.ID = 2
	other := models.Publication{ResearcherID: uuid.New(), Title: "other", Year: intPtr(2019), CitationCount: 90}
	other.ID = 3

	svc := NewHIndexService(newFakeStore(pubA, pubB, other))
	series, err := svc.HIndexSeries(context.Background(), researcherID)
	require.NoError(t, err)

	require.Len(t, series, 2)
	assert.Equal(t, 1, series[0].HIndex)
	assert.Equal(t, 2, series[1].HIndex)
}
