package models

import (
	"time"
)

// PublisherInfo represents a publisher known to the ledger
type PublisherInfo struct {
	ID         string    `gorm:"primaryKey;type:text"`
	Name       string    `gorm:"type:text"`
	URL        string    `gorm:"column:url;type:text"`
	FaviconURL string    `gorm:"column:favicon_url;type:text"`
	Provider   string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"type:timestamp with time zone"`
}

// TableName overrides the table name
func (PublisherInfo) TableName() string {
	return "publisher_info"
}

// MediaVisit represents one attributed visit
type MediaVisit struct {
	ID          int       `gorm:"primaryKey;autoIncrement"`
	PublisherID string    `gorm:"type:text;not null;index:idx_media_visits_publisher"`
	Domain      string    `gorm:"type:text"`
	URL         string    `gorm:"column:url;type:text"`
	Path        string    `gorm:"type:text"`
	Duration    uint64    `gorm:"not null;default:0"`
	WindowID    uint64    `gorm:"column:window_id"`
	VisitedAt   time.Time `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP"`

	// Relationships
	Publisher PublisherInfo `gorm:"foreignKey:PublisherID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (MediaVisit) TableName() string {
	return "media_visits"
}
