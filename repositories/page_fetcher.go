package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"youtube-publisher-worker/domain"
)

// Limit read to 3MB; channel pages embed large ytInitialData blobs.
const maxBodyBytes = 3 << 20

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type PageFetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResponse, error)
}

type HTTPPageFetcher struct {
	client *http.Client
}

func NewPageFetcher(timeout time.Duration) PageFetcher {
	return NewPageFetcherWithClient(&http.Client{
		Timeout: timeout,
	})
}

func NewPageFetcherWithClient(client *http.Client) PageFetcher {
	return &HTTPPageFetcher{client: client}
}

// Fetch returns every HTTP status as a response; only transport failures are
// errors. Bodies are transcoded to UTF-8.
func (pf *HTTPPageFetcher) Fetch(ctx context.Context, fr domain.FetchRequest) (*domain.FetchResponse, error) {
	method := fr.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if fr.Body != "" {
		body = strings.NewReader(fr.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fr.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", fr.URL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range fr.Headers {
		req.Header.Set(k, v)
	}

	resp, err := pf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", fr.URL, err)
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body of %s: %w", fr.URL, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", fr.URL, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &domain.FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Headers:    headers,
	}, nil
}
