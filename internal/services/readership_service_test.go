package services

import (
	"context"
	"testing"

	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttention struct {
	record *providers.AttentionRecord
	err    error
}

func (f *fakeAttention) FetchAttention(ctx context.Context, doi string) (*providers.AttentionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func TestEstimateReadership(t *testing.T) {
	researcherID := uuid.New()

	newPub := func(id uint, count int, doi string) models.Publication {
		pub := models.Publication{ResearcherID: researcherID, Title: "Paper", CitationCount: count}
		pub.ID = id
		if doi != "" {
			pub.DOI = &doi
		}
		return pub
	}

	t.Run("citations alone", func(t *testing.T) {
		store := newFakeStore(newPub(1, 20, "10.1/a"))
		svc := NewReadershipService(store, &fakeAttention{record: &providers.AttentionRecord{}}, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)

		assert.Equal(t, 300, metrics.EstimatedReads)
		assert.Equal(t, 300, metrics.Breakdown.FromCitations)
		assert.Equal(t, 0.65, metrics.Confidence)
		assert.Equal(t, ConfidenceGood, metrics.ConfidenceLevel)
		assert.False(t, metrics.Verified.Tracked)
		assert.Contains(t, metrics.Methodology, "300 reads estimated from 20 citations (x15)")
	})

	t.Run("all channels combine", func(t *testing.T) {
		store := newFakeStore(newPub(1, 10, "10.1/a"))
		store.counters["10.1/a"] = models.PublicationCounter{DOI: "10.1/a", Views: 120, Downloads: 30, Countries: 8, Source: "direct"}
		attention := &fakeAttention{record: &providers.AttentionRecord{
			Score:           42.5,
			SocialMentions:  6,
			MendeleyReaders: 25,
			HasData:         true,
		}}
		svc := NewReadershipService(store, attention, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)

		// 10*15 + 6*5 + 120 + 25.
		assert.Equal(t, 325, metrics.EstimatedReads)
		assert.Equal(t, 150, metrics.Breakdown.FromCitations)
		assert.Equal(t, 30, metrics.Breakdown.FromSocial)
		assert.Equal(t, 120, metrics.Breakdown.FromDirect)
		assert.Equal(t, 25, metrics.Breakdown.FromReferenceManager)
		assert.Equal(t, 42.5, metrics.Attention.Score)
		assert.True(t, metrics.Verified.Tracked)
		assert.Equal(t, 120, metrics.Verified.Views)
	})

	t.Run("direct tracking pins confidence at the top", func(t *testing.T) {
		store := newFakeStore(newPub(1, 0, "10.1/a"))
		store.counters["10.1/a"] = models.PublicationCounter{DOI: "10.1/a", Views: 3, Source: "direct"}
		svc := NewReadershipService(store, &fakeAttention{record: &providers.AttentionRecord{}}, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.9, metrics.Confidence)
		assert.Equal(t, ConfidenceVeryHigh, metrics.ConfidenceLevel)
	})

	t.Run("reference readers lift well-cited work to high", func(t *testing.T) {
		store := newFakeStore(newPub(1, 11, "10.1/a"))
		attention := &fakeAttention{record: &providers.AttentionRecord{MendeleyReaders: 4, HasData: true}}
		svc := NewReadershipService(store, attention, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.75, metrics.Confidence)
		assert.Equal(t, ConfidenceHigh, metrics.ConfidenceLevel)
	})

	t.Run("unreachable attention provider degrades the channel", func(t *testing.T) {
		store := newFakeStore(newPub(1, 4, "10.1/a"))
		attention := &fakeAttention{err: providers.ErrProviderUnavailable}
		svc := NewReadershipService(store, attention, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)
		assert.Equal(t, 60, metrics.EstimatedReads)
		assert.Zero(t, metrics.Breakdown.FromSocial)
		assert.Contains(t, metrics.Methodology, "attention data unavailable")
	})

	t.Run("no signals at all", func(t *testing.T) {
		store := newFakeStore(newPub(1, 0, ""))
		svc := NewReadershipService(store, &fakeAttention{record: &providers.AttentionRecord{}}, DefaultReadershipConfig(), zerolog.Nop())

		metrics, err := svc.EstimateReadership(context.Background(), researcherID, 1)
		require.NoError(t, err)
		assert.Zero(t, metrics.EstimatedReads)
		assert.Equal(t, 0.5, metrics.Confidence)
		assert.Equal(t, ConfidenceLow, metrics.ConfidenceLevel)
		assert.Equal(t, "no readership signals available", metrics.Methodology)
	})

	t.Run("unknown publication", func(t *testing.T) {
		svc := NewReadershipService(newFakeStore(), nil, DefaultReadershipConfig(), zerolog.Nop())
		_, err := svc.EstimateReadership(context.Background(), researcherID, 99)
		assert.Error(t, err)
	})
}
