package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"youtube-publisher-worker/domain"
)

// Consumer-side interfaces
type DBRepository interface {
	GetPublisherInfo(ctx context.Context, publisherID string) (*domain.PublisherInfo, error)
	SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error
}

type MediaKeyCache interface {
	Get(ctx context.Context, mediaKey string) (string, error)
	Set(ctx context.Context, mediaKey string, publisherID string) error
}

type StatsRepository interface {
	IncrementPublisherStats(ctx context.Context, publisherID string, duration uint64) error
}

type PublisherIndex interface {
	IndexPublisher(ctx context.Context, mediaKey string, info domain.PublisherInfo) error
}

// LedgerService keeps the media key mappings and the visit ledger. It is the
// PublisherStore and VisitRecorder of the YouTube resolver.
type LedgerService struct {
	dbRepo        DBRepository
	mediaKeyCache MediaKeyCache
	statsRepo     StatsRepository
	index         PublisherIndex
}

type LedgerOption func(*LedgerService)

func WithDBRepository(r DBRepository) LedgerOption {
	return func(s *LedgerService) { s.dbRepo = r }
}

func WithMediaKeyCache(c MediaKeyCache) LedgerOption {
	return func(s *LedgerService) { s.mediaKeyCache = c }
}

func WithStatsRepository(r StatsRepository) LedgerOption {
	return func(s *LedgerService) { s.statsRepo = r }
}

func WithPublisherIndex(i PublisherIndex) LedgerOption {
	return func(s *LedgerService) { s.index = i }
}

func NewLedgerService(opts ...LedgerOption) *LedgerService {
	s := &LedgerService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMediaPublisherInfo returns domain.ErrNotFound when the media key was never
// mapped or its publisher row is gone.
func (s *LedgerService) GetMediaPublisherInfo(ctx context.Context, mediaKey string) (*domain.PublisherInfo, error) {
	publisherID, err := s.mediaKeyCache.Get(ctx, mediaKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up media key %s: %w", mediaKey, err)
	}

	info, err := s.dbRepo.GetPublisherInfo(ctx, publisherID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load publisher %s: %w", publisherID, err)
	}
	return info, nil
}

func (s *LedgerService) SetMediaPublisherInfo(ctx context.Context, mediaKey string, publisherID string) error {
	if mediaKey == "" || publisherID == "" {
		return fmt.Errorf("media key and publisher id are required")
	}
	if err := s.mediaKeyCache.Set(ctx, mediaKey, publisherID); err != nil {
		return fmt.Errorf("failed to set media key %s: %w", mediaKey, err)
	}

	if s.index != nil {
		info, err := s.dbRepo.GetPublisherInfo(ctx, publisherID)
		if err != nil {
			log.Warn().Err(err).Str("publisher_id", publisherID).Msg("publisher not indexed")
			return nil
		}
		if err := s.index.IndexPublisher(ctx, mediaKey, *info); err != nil {
			log.Warn().Err(err).Str("publisher_id", publisherID).Msg("failed to index publisher")
		}
	}
	return nil
}

func (s *LedgerService) SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error {
	if err := s.dbRepo.SaveMediaVisit(ctx, publisherID, visit, duration, windowID); err != nil {
		return fmt.Errorf("failed to save visit for %s: %w", publisherID, err)
	}

	// Postgres is the source of truth, the DynamoDB totals are best effort.
	if s.statsRepo != nil {
		if err := s.statsRepo.IncrementPublisherStats(ctx, publisherID, duration); err != nil {
			log.Warn().Err(err).Str("publisher_id", publisherID).Msg("failed to update publisher stats")
		}
	}
	return nil
}
