package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"youtube-publisher-worker/domain"
)

// Consumer-side interfaces
type PageFetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResponse, error)
}

type PublisherStore interface {
	GetMediaPublisherInfo(ctx context.Context, mediaKey string) (*domain.PublisherInfo, error)
	SetMediaPublisherInfo(ctx context.Context, mediaKey string, publisherID string) error
}

type VisitRecorder interface {
	SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error
}

type ActivityResolver interface {
	GetPublisherActivityFromURL(ctx context.Context, windowID uint64, visit domain.VisitData, publisherBlob string) error
}

type ResponseLogger interface {
	LogResponse(ctx context.Context, caller string, url string, resp *domain.FetchResponse) error
}

// mediaEvent is the per-event state carried from one fetch to the next.
type mediaEvent struct {
	mediaKey string
	duration uint64
	visit    domain.VisitData
	windowID uint64
}

type YouTubeService struct {
	pageFetcher      PageFetcher
	publisherStore   PublisherStore
	visitRecorder    VisitRecorder
	activityResolver ActivityResolver
	responseLogger   ResponseLogger
}

// Functional Options Pattern
type YouTubeOption func(*YouTubeService)

func WithPageFetcher(f PageFetcher) YouTubeOption {
	return func(s *YouTubeService) { s.pageFetcher = f }
}

func WithPublisherStore(p PublisherStore) YouTubeOption {
	return func(s *YouTubeService) { s.publisherStore = p }
}

func WithVisitRecorder(r VisitRecorder) YouTubeOption {
	return func(s *YouTubeService) { s.visitRecorder = r }
}

func WithActivityResolver(r ActivityResolver) YouTubeOption {
	return func(s *YouTubeService) { s.activityResolver = r }
}

func WithResponseLogger(l ResponseLogger) YouTubeOption {
	return func(s *YouTubeService) { s.responseLogger = l }
}

func NewYouTubeService(opts ...YouTubeOption) *YouTubeService {
	s := &YouTubeService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessMedia attributes one media event to a YouTube channel. Failures are
// logged and end processing of the event; nothing is returned to the caller.
func (s *YouTubeService) ProcessMedia(ctx context.Context, parts domain.MediaParameters, visit domain.VisitData, windowID uint64) {
	mediaID := ExtractMediaID(parts)
	if mediaID == "" {
		return
	}

	ev := mediaEvent{
		mediaKey: MediaKey(mediaID, domain.MediaTypeYouTube),
		duration: ComputeDuration(parts),
		visit:    visit,
		windowID: windowID,
	}

	log.Debug().Str("media_key", ev.mediaKey).Msg("media key")
	log.Debug().Uint64("duration", ev.duration).Msg("media duration")

	info, err := s.publisherStore.GetMediaPublisherInfo(ctx, ev.mediaKey)
	switch {
	case err == nil && info != nil:
		s.onMediaPublisherInfo(ctx, ev, info)
	case err == nil || errors.Is(err, domain.ErrNotFound):
		s.fetchEmbed(ctx, ev, VideoURL(mediaID))
	default:
		log.Error().Err(err).Str("media_key", ev.mediaKey).Msg("failed to get publisher info")
	}
}

func (s *YouTubeService) onMediaPublisherInfo(ctx context.Context, ev mediaEvent, info *domain.PublisherInfo) {
	visit := ev.visit
	visit.Name = info.Name
	visit.URL = info.URL
	visit.Provider = domain.MediaTypeYouTube
	visit.FaviconURL = info.FaviconURL

	s.saveMediaVisit(ctx, info.ID, visit, ev)
}

func (s *YouTubeService) fetchEmbed(ctx context.Context, ev mediaEvent, mediaURL string) {
	resp := s.fetch(ctx, "onEmbedResponse", oEmbedURL(mediaURL))

	switch resp.StatusCode {
	case http.StatusOK:
		publisherURL := JSONValue("author_url", resp.Body)
		publisherName := JSONValue("author_name", resp.Body)
		s.fetchPublisherPage(ctx, ev, publisherURL, publisherURL, publisherName)
	case http.StatusUnauthorized:
		// embedding disabled by the channel owner, scrape the watched page instead
		pageURL := ev.visit.URL
		if pageURL == "" {
			pageURL = mediaURL
		}
		s.fetchPublisherPage(ctx, ev, pageURL, "", "")
	default:
		log.Debug().
			Str("media_key", ev.mediaKey).
			Int("status", resp.StatusCode).
			Msg("oembed lookup gave up")
	}
}

func (s *YouTubeService) fetchPublisherPage(ctx context.Context, ev mediaEvent, pageURL, publisherURL, publisherName string) {
	resp := s.fetch(ctx, "onPublisherPage", pageURL)

	if resp.StatusCode != http.StatusOK {
		if publisherName == "" {
			s.onMediaActivityError(ctx, ev)
		}
		return
	}

	favIcon := FavIconURL(resp.Body)
	channelID := ChannelID(resp.Body)

	if publisherName == "" {
		publisherName = PublisherName(resp.Body)
	}
	if publisherURL == "" {
		publisherURL = ChannelURL(channelID)
	}

	s.savePublisherInfo(ctx, ev, publisherURL, publisherName, favIcon, channelID)
}

func (s *YouTubeService) savePublisherInfo(ctx context.Context, ev mediaEvent, publisherURL, publisherName, favIcon, channelID string) {
	if channelID == "" {
		log.Error().Str("media_key", ev.mediaKey).Msg("channel id is missing")
		return
	}

	publisherID := PublisherID(channelID)

	visit := ev.visit
	if favIcon != "" {
		visit.FaviconURL = favIcon
	}
	visit.Provider = domain.MediaTypeYouTube
	visit.Name = publisherName
	visit.URL = publisherURL + "/videos"

	s.saveMediaVisit(ctx, publisherID, visit, ev)

	if ev.mediaKey != "" {
		if err := s.publisherStore.SetMediaPublisherInfo(ctx, ev.mediaKey, publisherID); err != nil {
			log.Error().
				Err(err).
				Str("media_key", ev.mediaKey).
				Str("publisher_id", publisherID).
				Msg("failed to register media publisher")
		}
	}
}

func (s *YouTubeService) saveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, ev mediaEvent) {
	if publisherID == "" {
		log.Error().Str("media_key", ev.mediaKey).Msg("publisher id is missing")
		return
	}
	if err := s.visitRecorder.SaveMediaVisit(ctx, publisherID, visit, ev.duration, ev.windowID); err != nil {
		log.Error().
			Err(err).
			Str("publisher_id", publisherID).
			Uint64("window_id", ev.windowID).
			Msg("failed to save media visit")
	}
}

// onMediaActivityError attributes the event to youtube.com itself when the
// channel could not be resolved.
func (s *YouTubeService) onMediaActivityError(ctx context.Context, ev mediaEvent) {
	visit := domain.VisitData{
		Domain: domain.YouTubeTLD,
		URL:    "https://" + domain.YouTubeTLD,
		Path:   "/",
		Name:   domain.MediaTypeYouTube,
	}

	if err := s.activityResolver.GetPublisherActivityFromURL(ctx, ev.windowID, visit, ""); err != nil {
		log.Error().
			Err(err).
			Str("media_key", ev.mediaKey).
			Str("url", ev.visit.URL).
			Msg("media activity error")
	}
}

// fetch performs a GET and never fails: a transport error is reported as
// status 0 so every caller goes through its non-200 branch.
func (s *YouTubeService) fetch(ctx context.Context, caller, url string) *domain.FetchResponse {
	resp, err := s.pageFetcher.Fetch(ctx, domain.FetchRequest{URL: url, Method: http.MethodGet})
	if err != nil || resp == nil {
		log.Debug().Err(err).Str("url", url).Msg("fetch failed")
		resp = &domain.FetchResponse{}
	}

	log.Debug().Str("caller", caller).Str("url", url).Int("status", resp.StatusCode).Msg("response")
	if s.responseLogger != nil {
		if err := s.responseLogger.LogResponse(ctx, caller, url, resp); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to archive response")
		}
	}
	return resp
}
