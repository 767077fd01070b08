package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"

	"github.com/google/uuid"
	"github.com/nickng/bibtex"
	"github.com/rs/zerolog"
)

// ImportResult summarizes one BibTeX bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

// ImportService creates publications in bulk from a BibTeX file.
type ImportService struct {
	store PublicationStoreDB
	log   zerolog.Logger
}

// NewImportService creates an ImportService.
func NewImportService(store PublicationStoreDB, log zerolog.Logger) *ImportService {
	return &ImportService{store: store, log: log}
}

// ImportBibTeX parses the BibTeX stream and creates one publication per
// usable entry. Entries without a title are skipped, and entries that
// duplicate an existing publication (same DOI, or same exact title) are
// skipped rather than overwritten.
func (s *ImportService) ImportBibTeX(ctx context.Context, researcherID uuid.UUID, r io.Reader) (*ImportResult, error) {
	bib, err := bibtex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing BibTeX: %w", err)
	}

	result := &ImportResult{}
	for _, entry := range bib.Entries {
		pub, warning := s.publicationFromEntry(researcherID, entry)
		if pub == nil {
			result.Skipped++
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
			continue
		}

		duplicate, err := s.findDuplicate(researcherID, pub)
		if err != nil {
			return nil, err
		}
		if duplicate {
			result.Skipped++
			continue
		}

		if err := s.store.CreatePublication(pub); err != nil {
			return nil, fmt.Errorf("creating publication %q: %w", pub.Title, err)
		}
		result.Imported++
	}

	s.log.Info().Str("researcherID", researcherID.String()).
		Int("imported", result.Imported).Int("skipped", result.Skipped).
		Msg("BibTeX import finished")
	return result, nil
}

func (s *ImportService) publicationFromEntry(researcherID uuid.UUID, entry *bibtex.BibEntry) (*models.Publication, string) {
	getField := func(key string) string {
		if field, ok := entry.Fields[key]; ok && field != nil {
			return strings.TrimSpace(field.String())
		}
		return ""
	}

	title := cleanBraces(getField("title"))
	if title == "" {
		return nil, fmt.Sprintf("entry %s has no title", entry.CiteName)
	}

	pub := &models.Publication{
		ResearcherID: researcherID,
		Title:        title,
		Authors:      cleanBraces(getField("author")),
		Journal:      cleanBraces(firstNonEmpty(getField("journal"), getField("booktitle"))),
	}

	if yearField := getField("year"); yearField != "" {
		if year, err := strconv.Atoi(yearField); err == nil {
			pub.Year = &year
		}
	}

	if doi := getField("doi"); doi != "" {
		if err := providers.ValidateDOI(doi); err == nil {
			pub.DOI = &doi
		}
	}

	return pub, ""
}

// findDuplicate checks DOI first, then exact title. Fuzzy matching is
// out of scope; an externally supplied identifier is assumed to be
// sufficient.
func (s *ImportService) findDuplicate(researcherID uuid.UUID, pub *models.Publication) (bool, error) {
	if pub.DOI != nil {
		existing, err := s.store.PublicationByDOI(researcherID, *pub.DOI)
		if err != nil {
			return false, fmt.Errorf("checking DOI duplicate: %w", err)
		}
		if existing != nil {
			return true, nil
		}
	}

	existing, err := s.store.PublicationByTitle(researcherID, pub.Title)
	if err != nil {
		return false, fmt.Errorf("checking title duplicate: %w", err)
	}
	return existing != nil, nil
}

func cleanBraces(value string) string {
	value = strings.ReplaceAll(value, "{", "")
	value = strings.ReplaceAll(value, "}", "")
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
