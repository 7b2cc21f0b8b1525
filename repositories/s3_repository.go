package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"youtube-publisher-worker/domain"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ResponseArchive stores every upstream response as a JSON object so a broken
// scrape can be replayed against the extractors.
type ResponseArchive struct {
	client S3API
	bucket string
	now    func() time.Time
}

type archivedResponse struct {
	Caller     string            `json:"caller"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
	FetchedAt  string            `json:"fetched_at"`
}

func NewResponseArchive(client S3API, bucket string) *ResponseArchive {
	return &ResponseArchive{client: client, bucket: bucket, now: time.Now}
}

func (r *ResponseArchive) LogResponse(ctx context.Context, caller string, url string, resp *domain.FetchResponse) error {
	now := r.now().UTC()
	doc := archivedResponse{
		Caller:    caller,
		URL:       url,
		FetchedAt: now.Format(time.RFC3339),
	}
	if resp != nil {
		doc.StatusCode = resp.StatusCode
		doc.Headers = resp.Headers
		doc.Body = resp.Body
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	key := fmt.Sprintf("responses/%s/%s.json", now.Format("2006-01-02"), uuid.New().String())
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload response to s3://%s/%s: %w", r.bucket, key, err)
	}
	return nil
}
