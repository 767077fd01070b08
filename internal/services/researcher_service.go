package services

import (
	"research_impact_go_backend/internal/models"

	"gorm.io/gorm"
)

// ResearcherService resolves the owning researcher for request scoping.
type ResearcherService struct {
	db *gorm.DB
}

func NewResearcherService(db *gorm.DB) *ResearcherService {
	return &ResearcherService{db: db}
}

// CreateOrUpdateResearcher finds the researcher for an identity
// provider subject, creating the row on first sight.
func (s *ResearcherService) CreateOrUpdateResearcher(auth0ID, email, name string) (*models.Researcher, error) {
	researcher := models.Researcher{
		Auth0ID: auth0ID,
		Email:   email,
		Name:    name,
	}
	result := s.db.Where(models.Researcher{Auth0ID: auth0ID}).FirstOrCreate(&researcher)
	if result.Error != nil {
		return nil, result.Error
	}
	return &researcher, nil
}

// ResearcherByAuth0ID looks a researcher up by identity subject.
func (s *ResearcherService) ResearcherByAuth0ID(auth0ID string) (*models.Researcher, error) {
	var researcher models.Researcher
	result := s.db.Where("auth0_id = ?", auth0ID).First(&researcher)
	if result.Error != nil {
		return nil, result.Error
	}
	return &researcher, nil
}
