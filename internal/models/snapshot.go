package models

import (
	"time"

	"gorm.io/gorm"
)

// CitationSnapshot records a publication's citation count as observed on
// one calendar day. The composite unique index makes a second write on
// the same day an overwrite rather than a new row.
type CitationSnapshot struct {
	gorm.Model
	PublicationID uint      `gorm:"uniqueIndex:uniq_publication_day;not null"`
	CitationCount int       `gorm:"not null"`
	SnapshotDate  time.Time `gorm:"type:date;uniqueIndex:uniq_publication_day;not null"`
}

// PublicationCounter holds verified direct-tracking totals for a DOI
// hosted under our own tracking. Rows are written by the tracking
// pipeline outside this service; this core only reads them.
type PublicationCounter struct {
	gorm.Model
	DOI       string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Views     int    `gorm:"not null;default:0"`
	Downloads int    `gorm:"not null;default:0"`
	Countries int    `gorm:"not null;default:0"`
	Source    string `gorm:"type:varchar(50)"`
}
