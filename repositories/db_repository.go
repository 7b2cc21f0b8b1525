package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"youtube-publisher-worker/domain"
	"youtube-publisher-worker/models"
)

type DBRepository interface {
	GetPublisherInfo(ctx context.Context, publisherID string) (*domain.PublisherInfo, error)
	SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error
}

type PostgresDBRepository struct {
	DB *gorm.DB
}

func NewDBRepository(db *gorm.DB) *PostgresDBRepository {
	return &PostgresDBRepository{DB: db}
}

// GetPublisherInfo returns domain.ErrNotFound for an unknown publisher.
func (repo *PostgresDBRepository) GetPublisherInfo(ctx context.Context, publisherID string) (*domain.PublisherInfo, error) {
	var p models.PublisherInfo
	err := repo.DB.WithContext(ctx).First(&p, "id = ?", publisherID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select publisher: %w", err)
	}

	return &domain.PublisherInfo{
		ID:         p.ID,
		Name:       p.Name,
		URL:        p.URL,
		FaviconURL: p.FaviconURL,
		Provider:   p.Provider,
	}, nil
}

// SaveMediaVisit upserts the publisher row from the visit and appends the visit
// in one transaction.
func (repo *PostgresDBRepository) SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error {
	now := time.Now().UTC()

	return repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		publisher := models.PublisherInfo{
			ID:         publisherID,
			Name:       visit.Name,
			URL:        visit.URL,
			FaviconURL: visit.FaviconURL,
			Provider:   visit.Provider,
			UpdatedAt:  now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "url", "favicon_url", "provider", "updated_at"}),
		}).Create(&publisher).Error
		if err != nil {
			return fmt.Errorf("failed to upsert publisher: %w", err)
		}

		mediaVisit := models.MediaVisit{
			PublisherID: publisherID,
			Domain:      visit.Domain,
			URL:         visit.URL,
			Path:        visit.Path,
			Duration:    duration,
			WindowID:    windowID,
			VisitedAt:   now,
		}
		if err := tx.Omit(clause.Associations).Create(&mediaVisit).Error; err != nil {
			return fmt.Errorf("failed to insert media visit: %w", err)
		}
		return nil
	})
}
