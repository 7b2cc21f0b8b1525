package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"youtube-publisher-worker/domain"
)

const publishersIndex = "publishers"

type OpenSearchRepository struct {
	client *opensearch.Client
}

func NewOpenSearchClient(address string) (*opensearch.Client, error) {
	return opensearch.NewClient(opensearch.Config{
		Addresses: []string{address},
	})
}

func NewOpenSearchRepository(client *opensearch.Client) *OpenSearchRepository {
	return &OpenSearchRepository{client: client}
}

// IndexPublisher writes one document per publisher, keyed by publisher id.
func (r *OpenSearchRepository) IndexPublisher(ctx context.Context, mediaKey string, info domain.PublisherInfo) error {
	document := map[string]interface{}{
		"publisher_id": info.ID,
		"name":         info.Name,
		"url":          info.URL,
		"favicon_url":  info.FaviconURL,
		"provider":     info.Provider,
		"media_key":    mediaKey,
		"updated_at":   time.Now().Format(time.RFC3339),
	}

	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      publishersIndex,
		DocumentID: url.PathEscape(info.ID),
		Body:       strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing publisher: %s", res.String())
	}

	return nil
}
