package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"youtube-publisher-worker/domain"
)

// Mocks
type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FetchResponse), args.Error(1)
}

type MockPublisherStore struct {
	mock.Mock
}

func (m *MockPublisherStore) GetMediaPublisherInfo(ctx context.Context, mediaKey string) (*domain.PublisherInfo, error) {
	args := m.Called(ctx, mediaKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PublisherInfo), args.Error(1)
}

func (m *MockPublisherStore) SetMediaPublisherInfo(ctx context.Context, mediaKey string, publisherID string) error {
	args := m.Called(ctx, mediaKey, publisherID)
	return args.Error(0)
}

type MockVisitRecorder struct {
	mock.Mock
}

func (m *MockVisitRecorder) SaveMediaVisit(ctx context.Context, publisherID string, visit domain.VisitData, duration uint64, windowID uint64) error {
	args := m.Called(ctx, publisherID, visit, duration, windowID)
	return args.Error(0)
}

type MockActivityResolver struct {
	mock.Mock
}

func (m *MockActivityResolver) GetPublisherActivityFromURL(ctx context.Context, windowID uint64, visit domain.VisitData, publisherBlob string) error {
	args := m.Called(ctx, windowID, visit, publisherBlob)
	return args.Error(0)
}

type MockResponseLogger struct {
	mock.Mock
}

func (m *MockResponseLogger) LogResponse(ctx context.Context, caller string, url string, resp *domain.FetchResponse) error {
	args := m.Called(ctx, caller, url, resp)
	return args.Error(0)
}

type testMocks struct {
	fetcher  *MockPageFetcher
	store    *MockPublisherStore
	recorder *MockVisitRecorder
	activity *MockActivityResolver
}

func newTestService() (*YouTubeService, testMocks) {
	m := testMocks{
		fetcher:  new(MockPageFetcher),
		store:    new(MockPublisherStore),
		recorder: new(MockVisitRecorder),
		activity: new(MockActivityResolver),
	}
	s := NewYouTubeService(
		WithPageFetcher(m.fetcher),
		WithPublisherStore(m.store),
		WithVisitRecorder(m.recorder),
		WithActivityResolver(m.activity),
	)
	return s, m
}

func (m testMocks) assertAll(t *testing.T) {
	m.fetcher.AssertExpectations(t)
	m.store.AssertExpectations(t)
	m.recorder.AssertExpectations(t)
	m.activity.AssertExpectations(t)
}

func get(url string) domain.FetchRequest {
	return domain.FetchRequest{URL: url, Method: http.MethodGet}
}

const (
	testMediaID  = "abc"
	testMediaKey = "youtube_abc"
	testWatchURL = "https://www.youtube.com/watch?v=abc"
	testAuthor   = "https://www.youtube.com/@foo"
	testWindowID = uint64(7)
)

var (
	testParts = domain.MediaParameters{"docid": testMediaID, "st": "0,50", "et": "10,65"}
	testVisit = domain.VisitData{Domain: "youtube.com", URL: testWatchURL, Path: "/watch?v=abc"}
)

const channelPage = `<html><script>var ytInitialData = {"header":{"c4TabbedHeaderRenderer":{"channelId":"UCxyz",` +
	`"avatar":{"thumbnails":[{"url":"https://yt3.example/foo.jpg"}]}}},"author":"Page Name"}</script></html>`

func TestProcessMedia_EmptyMediaID(t *testing.T) {
	s, m := newTestService()

	s.ProcessMedia(context.Background(), domain.MediaParameters{"st": "0", "et": "10"}, testVisit, testWindowID)

	m.store.AssertNotCalled(t, "GetMediaPublisherInfo", mock.Anything, mock.Anything)
	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestProcessMedia_KnownPublisher(t *testing.T) {
	s, m := newTestService()

	info := &domain.PublisherInfo{
		ID:         "youtube#channel:UCxyz",
		Name:       "Foo",
		URL:        "https://www.youtube.com/channel/UCxyz/videos",
		FaviconURL: "https://yt3.example/foo.jpg",
	}
	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(info, nil)

	expected := testVisit
	expected.Name = "Foo"
	expected.URL = info.URL
	expected.Provider = "youtube"
	expected.FaviconURL = info.FaviconURL
	m.recorder.On("SaveMediaVisit", mock.Anything, info.ID, expected, uint64(25), testWindowID).Return(nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "SetMediaPublisherInfo", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_LookupError(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, errors.New("redis down"))

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	m.recorder.AssertNotCalled(t, "SaveMediaVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_FullChain(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `{"author_url":"` + testAuthor + `","author_name":"Foo","type":"video"}`,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testAuthor)).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       channelPage,
	}, nil)

	expected := testVisit
	expected.Name = "Foo"
	expected.URL = testAuthor + "/videos"
	expected.Provider = "youtube"
	expected.FaviconURL = "https://yt3.example/foo.jpg"
	m.recorder.On("SaveMediaVisit", mock.Anything, "youtube#channel:UCxyz", expected, uint64(25), testWindowID).Return(nil)
	m.store.On("SetMediaPublisherInfo", mock.Anything, testMediaKey, "youtube#channel:UCxyz").Return(nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.activity.AssertNotCalled(t, "GetPublisherActivityFromURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_EmbedUnauthorizedScrapesVideoPage(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusUnauthorized,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testWatchURL)).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       channelPage,
	}, nil)

	expected := testVisit
	expected.Name = "Page Name"
	expected.URL = "https://www.youtube.com/channel/UCxyz/videos"
	expected.Provider = "youtube"
	expected.FaviconURL = "https://yt3.example/foo.jpg"
	m.recorder.On("SaveMediaVisit", mock.Anything, "youtube#channel:UCxyz", expected, uint64(25), testWindowID).Return(nil)
	m.store.On("SetMediaPublisherInfo", mock.Anything, testMediaKey, "youtube#channel:UCxyz").Return(nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
}

func TestProcessMedia_EmbedUnauthorizedWithoutVisitURL(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusUnauthorized,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testWatchURL)).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>no markers</html>`,
	}, nil)

	s.ProcessMedia(context.Background(), testParts, domain.VisitData{}, testWindowID)

	m.assertAll(t)
	m.recorder.AssertNotCalled(t, "SaveMediaVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_EmbedOtherStatusStops(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusNotFound,
	}, nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	m.activity.AssertNotCalled(t, "GetPublisherActivityFromURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_EmbedTransportErrorStops(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(nil, errors.New("dial tcp: timeout"))

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestProcessMedia_MissingChannelIDDropsEvent(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `{"author_url":"` + testAuthor + `","author_name":"Foo"}`,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testAuthor)).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>consent wall</html>`,
	}, nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.recorder.AssertNotCalled(t, "SaveMediaVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "SetMediaPublisherInfo", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_PageErrorWithoutNameFallsBackToActivity(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusUnauthorized,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testWatchURL)).Return(&domain.FetchResponse{
		StatusCode: http.StatusServiceUnavailable,
	}, nil)

	generic := domain.VisitData{
		Domain: "youtube.com",
		URL:    "https://youtube.com",
		Path:   "/",
		Name:   "youtube",
	}
	m.activity.On("GetPublisherActivityFromURL", mock.Anything, testWindowID, generic, "").Return(nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.recorder.AssertNotCalled(t, "SaveMediaVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_PageErrorWithKnownNameStops(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `{"author_url":"` + testAuthor + `","author_name":"Foo"}`,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testAuthor)).Return(&domain.FetchResponse{
		StatusCode: http.StatusForbidden,
	}, nil)

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	m.activity.AssertNotCalled(t, "GetPublisherActivityFromURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.recorder.AssertNotCalled(t, "SaveMediaVisit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMedia_RegisterFailureIsLogged(t *testing.T) {
	s, m := newTestService()

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       `{"author_url":"` + testAuthor + `","author_name":"Foo"}`,
	}, nil)
	m.fetcher.On("Fetch", mock.Anything, get(testAuthor)).Return(&domain.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       channelPage,
	}, nil)
	m.recorder.On("SaveMediaVisit", mock.Anything, "youtube#channel:UCxyz", mock.Anything, uint64(25), testWindowID).
		Return(errors.New("db error"))
	m.store.On("SetMediaPublisherInfo", mock.Anything, testMediaKey, "youtube#channel:UCxyz").
		Return(errors.New("redis error"))

	assert.NotPanics(t, func() {
		s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)
	})
	m.assertAll(t)
}

func TestProcessMedia_ResponsesAreLogged(t *testing.T) {
	s, m := newTestService()
	responses := new(MockResponseLogger)
	WithResponseLogger(responses)(s)

	m.store.On("GetMediaPublisherInfo", mock.Anything, testMediaKey).Return(nil, domain.ErrNotFound)
	embed := &domain.FetchResponse{StatusCode: http.StatusNotFound}
	m.fetcher.On("Fetch", mock.Anything, get(oEmbedURL(testWatchURL))).Return(embed, nil)
	responses.On("LogResponse", mock.Anything, "onEmbedResponse", oEmbedURL(testWatchURL), embed).
		Return(errors.New("s3 unavailable"))

	s.ProcessMedia(context.Background(), testParts, testVisit, testWindowID)

	m.assertAll(t)
	responses.AssertExpectations(t)
}
