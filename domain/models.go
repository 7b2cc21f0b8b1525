package domain

// MediaParameters are the key/value pairs scraped from an embedded player
// (docid, st, et, ...).
type MediaParameters map[string]string

// VisitData describes one browsing visit. It is copied, never shared, while a
// media event moves through the resolution chain.
type VisitData struct {
	Domain     string `json:"domain"`
	URL        string `json:"url"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	FaviconURL string `json:"favicon_url"`
}

// PublisherInfo is what the ledger already knows about a publisher.
type PublisherInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	FaviconURL string `json:"favicon_url"`
	Provider   string `json:"provider"`
}

// MediaEventMessage represents one media event captured by the browser
type MediaEventMessage struct {
	Type     string          `json:"type"` // "media_event"
	Parts    MediaParameters `json:"parts"`
	Visit    VisitData       `json:"visit"`
	WindowID uint64          `json:"window_id"`
}

// ActivityMessage asks the ledger to resolve a visit from its URL alone
type ActivityMessage struct {
	Type          string    `json:"type"` // "publisher_activity"
	WindowID      uint64    `json:"window_id"`
	Visit         VisitData `json:"visit"`
	PublisherBlob string    `json:"publisher_blob,omitempty"`
}

// FetchRequest is a single outgoing HTTP call.
type FetchRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// FetchResponse is what came back. StatusCode is 0 when the transport failed.
type FetchResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}
