package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"
	"research_impact_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Refresh outcome statuses, one per publication in a batch.
const (
	StatusUpdated      = "updated"
	StatusUnchanged    = "unchanged"
	StatusNoUpdate     = "no_update"
	StatusMalformedDOI = "malformed_doi"
	StatusFailed       = "failed"
)

// ReconciledCount is the single trusted value selected from all
// provider observations, tagged with its provenance.
type ReconciledCount struct {
	Count           int    `json:"count"`
	Provider        string `json:"provider"`
	ExternalPaperID string `json:"externalPaperId,omitempty"`
}

// RefreshOutcome describes what happened to one publication during a
// batch refresh.
type RefreshOutcome struct {
	PublicationID uint   `json:"publicationId"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Count         int    `json:"count"`
	Provider      string `json:"provider,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RefreshResult is the per-batch summary returned to the caller. A
// subset of publications failing never fails the batch; only
// ProvidersUnreachable reports the all-providers-down condition, once.
type RefreshResult struct {
	Outcomes             []RefreshOutcome `json:"outcomes"`
	Updated              int              `json:"updated"`
	Unchanged            int              `json:"unchanged"`
	Failed               int              `json:"failed"`
	ProvidersUnreachable bool             `json:"providersUnreachable"`
}

// RefreshEvent is published on the researcher's refresh topic after
// each publication completes, for UI progress display.
type RefreshEvent struct {
	PublicationID uint   `json:"publicationId"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Count         int    `json:"count"`
	Done          int    `json:"done"`
	Total         int    `json:"total"`
}

// RefreshTopic names the broker topic carrying a researcher's refresh
// progress events.
func RefreshTopic(researcherID uuid.UUID) string {
	return "refresh_" + researcherID.String()
}

// CitationService reconciles citation counts from the configured
// bibliographic sources and persists the results.
type CitationService struct {
	sources    []providers.CitationSource
	store      PublicationStoreDB
	broker     *broker.Broker
	log        zerolog.Logger
	batchSize  int
	batchDelay time.Duration
}

// CitationServiceOption configures a CitationService.
type CitationServiceOption func(*CitationService)

// WithBatchSize overrides the number of publications reconciled
// concurrently per batch.
func WithBatchSize(n int) CitationServiceOption {
	return func(s *CitationService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay overrides the pacing unit between batch starts. The
// gap before batch i is i times this duration, advisory pacing to stay
// under provider per-minute limits.
func WithBatchDelay(d time.Duration) CitationServiceOption {
	return func(s *CitationService) {
		s.batchDelay = d
	}
}

// NewCitationService creates a CitationService. Source order doubles as
// the tie-break priority when two providers report the same count.
func NewCitationService(sources []providers.CitationSource, store PublicationStoreDB, progressBroker *broker.Broker, log zerolog.Logger, opts ...CitationServiceOption) *CitationService {
	s := &CitationService{
		sources:    sources,
		store:      store,
		broker:     progressBroker,
		log:        log,
		batchSize:  5,
		batchDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sourceResult pairs an observation with its slot in the configured
// source order so selection can break ties deterministically.
type sourceResult struct {
	obs *providers.CitationObservation
	err error
}

// errSourceSkipped marks sources that were never queried because the
// publication lacks the identifier they need. A skipped source does not
// count as reachable.
var errSourceSkipped = errors.New("source skipped: no usable identifier")

// ReconcileCitations queries every eligible source concurrently and
// selects the highest successful count, ties going to the
// first-configured source. A nil result with a nil error means no
// source could answer; the caller must leave the stored count as is.
func (s *CitationService) ReconcileCitations(ctx context.Context, pub *models.Publication) (*ReconciledCount, error) {
	doi := ""
	if pub.DOI != nil {
		doi = *pub.DOI
	}
	if doi != "" {
		if err := providers.ValidateDOI(doi); err != nil {
			return nil, err
		}
	}

	year := 0
	if pub.Year != nil {
		year = *pub.Year
	}

	results := make([]sourceResult, len(s.sources))
	var wg sync.WaitGroup
	for i, source := range s.sources {
		if doi == "" && source.RequiresDOI() {
			results[i] = sourceResult{err: errSourceSkipped}
			continue
		}
		wg.Add(1)
		go func(i int, source providers.CitationSource) {
			defer wg.Done()
			obs, err := source.FetchCitations(ctx, doi, pub.Title, year)
			results[i] = sourceResult{obs: obs, err: err}
		}(i, source)
	}
	wg.Wait()

	var best *providers.CitationObservation
	reachable := false
	for i, r := range results {
		if r.err != nil {
			if errors.Is(r.err, errSourceSkipped) {
				continue
			}
			if providers.IsNotFound(r.err) {
				reachable = true
			} else {
				s.log.Warn().Err(r.err).Str("provider", s.sources[i].Name()).
					Str("title", pub.Title).Msg("provider query failed")
			}
			continue
		}
		reachable = true
		if best == nil || r.obs.Count > best.Count {
			best = r.obs
		}
	}

	if best == nil {
		if !reachable && len(s.sources) > 0 {
			return nil, providers.ErrProviderUnavailable
		}
		return nil, nil
	}

	return &ReconciledCount{
		Count:           best.Count,
		Provider:        best.ProviderName,
		ExternalPaperID: best.ExternalPaperID,
	}, nil
}

// RefreshPublications reconciles every publication owned by the given
// researcher in fixed-size batches, persisting reconciled counts and a
// same-day snapshot. Publications inside a batch run concurrently;
// batch starts are spaced out to respect provider rate limits.
func (s *CitationService) RefreshPublications(ctx context.Context, researcherID uuid.UUID) (*RefreshResult, error) {
	pubs, err := s.store.PublicationsByResearcher(researcherID)
	if err != nil {
		return nil, fmt.Errorf("loading publications: %w", err)
	}

	result := &RefreshResult{Outcomes: make([]RefreshOutcome, 0, len(pubs))}
	if len(pubs) == 0 {
		return result, nil
	}

	topic := RefreshTopic(researcherID)
	anyReachable := false
	done := 0

	for batchIndex := 0; batchIndex*s.batchSize < len(pubs); batchIndex++ {
		if batchIndex > 0 {
			gap := time.Duration(batchIndex) * s.batchDelay
			select {
			case <-time.After(gap):
			case <-ctx.Done():
				// Completed outcomes stay valid when the caller walks away.
				return result, ctx.Err()
			}
		}

		start := batchIndex * s.batchSize
		end := start + s.batchSize
		if end > len(pubs) {
			end = len(pubs)
		}
		batch := pubs[start:end]

		outcomes := make([]RefreshOutcome, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = s.refreshOne(ctx, &batch[i])
			}(i)
		}
		wg.Wait()

		for _, outcome := range outcomes {
			done++
			switch outcome.Status {
			case StatusUpdated:
				result.Updated++
				anyReachable = true
			case StatusUnchanged:
				result.Unchanged++
				anyReachable = true
			case StatusNoUpdate:
				anyReachable = true
				result.Failed++
			default:
				result.Failed++
			}
			result.Outcomes = append(result.Outcomes, outcome)

			if s.broker != nil {
				s.broker.Publish(topic, RefreshEvent{
					PublicationID: outcome.PublicationID,
					Title:         outcome.Title,
					Status:        outcome.Status,
					Count:         outcome.Count,
					Done:          done,
					Total:         len(pubs),
				})
			}
		}
	}

	result.ProvidersUnreachable = !anyReachable
	return result, nil
}

// refreshOne reconciles and persists a single publication. Failures are
// captured in the outcome so siblings in the batch are unaffected.
func (s *CitationService) refreshOne(ctx context.Context, pub *models.Publication) RefreshOutcome {
	outcome := RefreshOutcome{
		PublicationID: pub.ID,
		Title:         pub.Title,
		Count:         pub.CitationCount,
	}

	reconciled, err := s.ReconcileCitations(ctx, pub)
	if err != nil {
		if errors.Is(err, providers.ErrMalformedDOI) {
			outcome.Status = StatusMalformedDOI
		} else {
			outcome.Status = StatusFailed
		}
		outcome.Error = err.Error()
		return outcome
	}
	if reconciled == nil {
		// No provider could answer; the stored count stays untouched.
		outcome.Status = StatusNoUpdate
		return outcome
	}

	outcome.Count = reconciled.Count
	outcome.Provider = reconciled.Provider

	if reconciled.Count != pub.CitationCount {
		if err := s.store.UpdateCitationCount(pub.ID, reconciled.Count); err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = StatusUpdated
	} else {
		outcome.Status = StatusUnchanged
	}

	if err := s.store.UpsertSnapshot(pub.ID, reconciled.Count, time.Now().UTC()); err != nil {
		s.log.Error().Err(err).Uint("publicationID", pub.ID).Msg("failed to record snapshot")
	}

	return outcome
}
