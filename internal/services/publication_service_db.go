package services

import (
	"errors"
	"time"

	"research_impact_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublicationStoreDB is the persistence surface for publications, their
// citation snapshots and direct-tracking counters. All reads are scoped
// to one owning researcher.
type PublicationStoreDB interface {
	PublicationsByResearcher(researcherID uuid.UUID) ([]models.Publication, error)
	PublicationByID(researcherID uuid.UUID, id uint) (*models.Publication, error)
	PublicationByDOI(researcherID uuid.UUID, doi string) (*models.Publication, error)
	PublicationByTitle(researcherID uuid.UUID, title string) (*models.Publication, error)
	CreatePublication(pub *models.Publication) error
	UpdateCitationCount(publicationID uint, count int) error
	UpsertSnapshot(publicationID uint, count int, day time.Time) error
	ListSnapshots(publicationIDs []uint) ([]models.CitationSnapshot, error)
	CounterByDOI(doi string) (*models.PublicationCounter, error)
}

// DefaultPublicationStore implements PublicationStoreDB on gorm.
type DefaultPublicationStore struct {
	db *gorm.DB
}

// NewPublicationStoreDB creates a new DefaultPublicationStore.
func NewPublicationStoreDB(db *gorm.DB) PublicationStoreDB {
	return &DefaultPublicationStore{db: db}
}

func (s *DefaultPublicationStore) PublicationsByResearcher(researcherID uuid.UUID) ([]models.Publication, error) {
	var pubs []models.Publication
	result := s.db.Where("researcher_id = ?", researcherID).Order("year desc, id asc").Find(&pubs)
	if result.Error != nil {
		return nil, result.Error
	}
	return pubs, nil
}

func (s *DefaultPublicationStore) PublicationByID(researcherID uuid.UUID, id uint) (*models.Publication, error) {
	var pub models.Publication
	result := s.db.Where("researcher_id = ? AND id = ?", researcherID, id).First(&pub)
	if result.Error != nil {
		return nil, result.Error
	}
	return &pub, nil
}

func (s *DefaultPublicationStore) PublicationByDOI(researcherID uuid.UUID, doi string) (*models.Publication, error) {
	var pub models.Publication
	result := s.db.Where("researcher_id = ? AND doi = ?", researcherID, doi).First(&pub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &pub, nil
}

func (s *DefaultPublicationStore) PublicationByTitle(researcherID uuid.UUID, title string) (*models.Publication, error) {
	var pub models.Publication
	result := s.db.Where("researcher_id = ? AND title = ?", researcherID, title).First(&pub)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &pub, nil
}

func (s *DefaultPublicationStore) CreatePublication(pub *models.Publication) error {
	return s.db.Create(pub).Error
}

// UpdateCitationCount writes the reconciled count. Callers only reach
// this with a successful reconciliation, so a failed lookup never
// clobbers stored data.
func (s *DefaultPublicationStore) UpdateCitationCount(publicationID uint, count int) error {
	return s.db.Model(&models.Publication{}).
		Where("id = ?", publicationID).
		Update("citation_count", count).Error
}

// UpsertSnapshot writes the unique (publication, day) snapshot row,
// overwriting the count on a same-day conflict. The unique index is the
// sole correctness mechanism; no read-modify-write is involved.
func (s *DefaultPublicationStore) UpsertSnapshot(publicationID uint, count int, day time.Time) error {
	snapshot := models.CitationSnapshot{
		PublicationID: publicationID,
		CitationCount: count,
		SnapshotDate:  truncateToDay(day),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "publication_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"citation_count", "updated_at"}),
	}).Create(&snapshot).Error
}

// ListSnapshots returns snapshots for the given publications in
// ascending date order, the order the trend engine requires.
func (s *DefaultPublicationStore) ListSnapshots(publicationIDs []uint) ([]models.CitationSnapshot, error) {
	var snapshots []models.CitationSnapshot
	result := s.db.Where("publication_id IN ?", publicationIDs).
		Order("snapshot_date asc").Find(&snapshots)
	if result.Error != nil {
		return nil, result.Error
	}
	return snapshots, nil
}

// CounterByDOI returns the direct-tracking counter for a DOI, or nil
// when the publication is not hosted under direct tracking.
func (s *DefaultPublicationStore) CounterByDOI(doi string) (*models.PublicationCounter, error) {
	var counter models.PublicationCounter
	result := s.db.Where("doi = ?", doi).First(&counter)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &counter, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
