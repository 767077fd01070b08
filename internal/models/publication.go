package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Publication struct {
	gorm.Model
	ResearcherID uuid.UUID `gorm:"type:uuid;index:idx_researcher_year;uniqueIndex:uniq_researcher_doi"`
	Title        string    `gorm:"type:varchar(500);not null"`
	Authors      string
	Journal      string
	// DOI is optional; when present it is unique within one researcher's
	// library so bulk imports can dedupe on it.
	DOI           *string `gorm:"type:varchar(255);uniqueIndex:uniq_researcher_doi"`
	Year          *int    `gorm:"index:idx_researcher_year"`
	CitationCount int     `gorm:"not null;default:0"`
}
