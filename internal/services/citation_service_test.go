package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"
	"research_impact_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeStore is an in-memory PublicationStoreDB shared by the service
// tests in this package.
type fakeStore struct {
	mu           sync.Mutex
	pubs         []models.Publication
	snapshots    map[string]models.CitationSnapshot
	counters     map[string]models.PublicationCounter
	countUpdates map[uint]int
	nextID       uint
}

func newFakeStore(pubs ...models.Publication) *fakeStore {
	s := &fakeStore{
		snapshots:    make(map[string]models.CitationSnapshot),
		counters:     make(map[string]models.PublicationCounter),
		countUpdates: make(map[uint]int),
		nextID:       1,
	}
	for _, pub := range pubs {
		if pub.ID == 0 {
			pub.ID = s.nextID
		}
		if pub.ID >= s.nextID {
			s.nextID = pub.ID + 1
		}
		s.pubs = append(s.pubs, pub)
	}
	return s
}

func (s *fakeStore) PublicationsByResearcher(researcherID uuid.UUID) ([]models.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Publication
	for _, pub := range s.pubs {
		if pub.ResearcherID == researcherID {
			out = append(out, pub)
		}
	}
	return out, nil
}

func (s *fakeStore) PublicationByID(researcherID uuid.UUID, id uint) (*models.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pubs {
		if s.pubs[i].ResearcherID == researcherID && s.pubs[i].ID == id {
			pub := s.pubs[i]
			return &pub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) PublicationByDOI(researcherID uuid.UUID, doi string) (*models.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pubs {
		if s.pubs[i].ResearcherID == researcherID && s.pubs[i].DOI != nil && *s.pubs[i].DOI == doi {
			pub := s.pubs[i]
			return &pub, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) PublicationByTitle(researcherID uuid.UUID, title string) (*models.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pubs {
		if s.pubs[i].ResearcherID == researcherID && s.pubs[i].Title == title {
			pub := s.pubs[i]
			return &pub, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreatePublication(pub *models.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pub.ID = s.nextID
	s.nextID++
	s.pubs = append(s.pubs, *pub)
	return nil
}

func (s *fakeStore) UpdateCitationCount(publicationID uint, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countUpdates[publicationID] = count
	for i := range s.pubs {
		if s.pubs[i].ID == publicationID {
			s.pubs[i].CitationCount = count
		}
	}
	return nil
}

func (s *fakeStore) UpsertSnapshot(publicationID uint, count int, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s", publicationID, day.UTC().Format("2006-01-02"))
	s.snapshots[key] = models.CitationSnapshot{
		PublicationID: publicationID,
		CitationCount: count,
		SnapshotDate:  day.UTC().Truncate(24 * time.Hour),
	}
	return nil
}

func (s *fakeStore) ListSnapshots(publicationIDs []uint) ([]models.CitationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uint]bool, len(publicationIDs))
	for _, id := range publicationIDs {
		wanted[id] = true
	}
	var out []models.CitationSnapshot
	for _, snap := range s.snapshots {
		if wanted[snap.PublicationID] {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.Before(out[j].SnapshotDate) })
	return out, nil
}

func (s *fakeStore) CounterByDOI(doi string) (*models.PublicationCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if counter, ok := s.counters[doi]; ok {
		return &counter, nil
	}
	return nil, nil
}

// stubSource is a scriptable CitationSource.
type stubSource struct {
	name     string
	needsDOI bool
	count    int
	err      error
	fn       func(doi, title string) (*providers.CitationObservation, error)
	calls    int32
}

func (s *stubSource) Name() string      { return s.name }
func (s *stubSource) RequiresDOI() bool { return s.needsDOI }

func (s *stubSource) FetchCitations(ctx context.Context, doi, title string, year int) (*providers.CitationObservation, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fn != nil {
		return s.fn(doi, title)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &providers.CitationObservation{ProviderName: s.name, Count: s.count}, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestCitationService(store PublicationStoreDB, progressBroker *broker.Broker, sources ...providers.CitationSource) *CitationService {
	return NewCitationService(sources, store, progressBroker, zerolog.Nop(), WithBatchDelay(0))
}

func TestReconcileCitations(t *testing.T) {
	pub := &models.Publication{Title: "Test Paper", DOI: strPtr("10.1234/example")}
	pub.ID = 1

	t.Run("highest count wins", func(t *testing.T) {
		svc := newTestCitationService(newFakeStore(), nil,
			&stubSource{name: "a", count: 10},
			&stubSource{name: "b", count: 25},
			&stubSource{name: "c", count: 7},
		)

		reconciled, err := svc.ReconcileCitations(context.Background(), pub)
		require.NoError(t, err)
		require.NotNil(t, reconciled)
		assert.Equal(t, 25, reconciled.Count)
		assert.Equal(t, "b", reconciled.Provider)
	})

	t.Run("ties go to the first-configured source", func(t *testing.T) {
		svc := newTestCitationService(newFakeStore(), nil,
			&stubSource{name: "first", count: 25},
			&stubSource{name: "second", count: 25},
		)

		reconciled, err := svc.ReconcileCitations(context.Background(), pub)
		require.NoError(t, err)
		assert.Equal(t, "first", reconciled.Provider)
	})

	t.Run("DOI-only sources are skipped without a DOI", func(t *testing.T) {
		doiOnly := &stubSource{name: "doi_only", needsDOI: true, count: 99}
		searcher := &stubSource{name: "searcher", count: 3}
		svc := newTestCitationService(newFakeStore(), nil, doiOnly, searcher)

		noDOI := &models.Publication{Title: "Untagged Paper"}
		noDOI.ID = 2
		reconciled, err := svc.ReconcileCitations(context.Background(), noDOI)

		require.NoError(t, err)
		require.NotNil(t, reconciled)
		assert.Equal(t, "searcher", reconciled.Provider)
		assert.Zero(t, atomic.LoadInt32(&doiOnly.calls))
	})

	t.Run("all sources unreachable", func(t *testing.T) {
		svc := newTestCitationService(newFakeStore(), nil,
			&stubSource{name: "a", err: providers.ErrProviderUnavailable},
			&stubSource{name: "b", err: providers.ErrRateLimited},
		)

		reconciled, err := svc.ReconcileCitations(context.Background(), pub)
		assert.Nil(t, reconciled)
		assert.ErrorIs(t, err, providers.ErrProviderUnavailable)
	})

	t.Run("all sources report not found", func(t *testing.T) {
		svc := newTestCitationService(newFakeStore(), nil,
			&stubSource{name: "a", err: providers.ErrNotFound},
			&stubSource{name: "b", err: providers.ErrNotFound},
		)

		reconciled, err := svc.ReconcileCitations(context.Background(), pub)
		assert.Nil(t, reconciled)
		assert.NoError(t, err)
	})

	t.Run("malformed DOI short-circuits before any source call", func(t *testing.T) {
		source := &stubSource{name: "a", count: 5}
		svc := newTestCitationService(newFakeStore(), nil, source)

		bad := &models.Publication{Title: "Bad DOI", DOI: strPtr("not-a-doi")}
		bad.ID = 3
		_, err := svc.ReconcileCitations(context.Background(), bad)

		assert.ErrorIs(t, err, providers.ErrMalformedDOI)
		assert.Zero(t, atomic.LoadInt32(&source.calls))
	})
}

func TestRefreshPublications(t *testing.T) {
	researcherID := uuid.New()

	newPub := func(id uint, title, doi string, count int) models.Publication {
		pub := models.Publication{
			ResearcherID:  researcherID,
			Title:         title,
			CitationCount: count,
		}
		pub.ID = id
		if doi != "" {
			pub.DOI = strPtr(doi)
		}
		return pub
	}

	t.Run("persists reconciled counts and a same-day snapshot", func(t *testing.T) {
		store := newFakeStore(newPub(1, "Paper One", "10.1/one", 10))
		svc := newTestCitationService(store, nil, &stubSource{name: "a", count: 15})

		result, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 15, store.countUpdates[1])
		assert.Len(t, store.snapshots, 1)
		assert.False(t, result.ProvidersUnreachable)
	})

	t.Run("same-day refreshes overwrite the snapshot", func(t *testing.T) {
		store := newFakeStore(newPub(1, "Paper One", "10.1/one", 10))
		svc := newTestCitationService(store, nil, &stubSource{name: "a", count: 15})

		_, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)
		_, err = svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)

		assert.Len(t, store.snapshots, 1)
	})

	t.Run("total failure leaves stored counts untouched", func(t *testing.T) {
		store := newFakeStore(newPub(1, "Paper One", "10.1/one", 10))
		svc := newTestCitationService(store, nil,
			&stubSource{name: "a", err: providers.ErrProviderUnavailable},
		)

		result, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)
		assert.Empty(t, store.countUpdates)
		assert.Empty(t, store.snapshots)
		assert.True(t, result.ProvidersUnreachable)
		assert.Equal(t, StatusFailed, result.Outcomes[0].Status)
	})

	t.Run("one publication failing never aborts the rest", func(t *testing.T) {
		store := newFakeStore(
			newPub(1, "Good Paper", "10.1/good", 0),
			newPub(2, "Bad Paper", "10.1/bad", 3),
		)
		svc := newTestCitationService(store, nil, &stubSource{name: "a", fn: func(doi, title string) (*providers.CitationObservation, error) {
			if doi == "10.1/bad" {
				return nil, providers.ErrProviderUnavailable
			}
			return &providers.CitationObservation{ProviderName: "a", Count: 8}, nil
		}})

		result, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 8, store.countUpdates[1])
		assert.NotContains(t, store.countUpdates, uint(2))
		assert.False(t, result.ProvidersUnreachable)
	})

	t.Run("outcomes stay keyed to their publications across batches", func(t *testing.T) {
		var pubs []models.Publication
		for i := uint(1); i <= 7; i++ {
			pubs = append(pubs, newPub(i, fmt.Sprintf("Paper %d", i), fmt.Sprintf("10.1/p%d", i), 0))
		}
		store := newFakeStore(pubs...)
		svc := NewCitationService(
			[]providers.CitationSource{&stubSource{name: "a", fn: func(doi, title string) (*providers.CitationObservation, error) {
				var n int
				fmt.Sscanf(doi, "10.1/p%d", &n)
				return &providers.CitationObservation{ProviderName: "a", Count: n * 100}, nil
			}}},
			store, nil, zerolog.Nop(),
			WithBatchSize(2), WithBatchDelay(0),
		)

		result, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)
		require.Len(t, result.Outcomes, 7)
		for _, outcome := range result.Outcomes {
			assert.Equal(t, int(outcome.PublicationID)*100, outcome.Count, "outcome for %q", outcome.Title)
		}
	})

	t.Run("publishes one progress event per publication", func(t *testing.T) {
		store := newFakeStore(
			newPub(1, "Paper One", "10.1/one", 0),
			newPub(2, "Paper Two", "10.1/two", 0),
		)
		progressBroker := broker.NewBroker()
		events := progressBroker.Subscribe(RefreshTopic(researcherID))

		svc := newTestCitationService(store, progressBroker, &stubSource{name: "a", count: 5})
		_, err := svc.RefreshPublications(context.Background(), researcherID)
		require.NoError(t, err)

		received := 0
		for i := 0; i < 2; i++ {
			select {
			case evt := <-events:
				received++
				refreshEvt, ok := evt.(RefreshEvent)
				require.True(t, ok)
				assert.Equal(t, 2, refreshEvt.Total)
			default:
			}
		}
		assert.Equal(t, 2, received)
	})
}
