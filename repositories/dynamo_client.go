package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBClient keeps running per-publisher totals keyed by publisher_id.
type DynamoDBClient struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBClient(client DynamoDBAPI, tableName string) *DynamoDBClient {
	return &DynamoDBClient{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBClient) IncrementPublisherStats(ctx context.Context, publisherID string, duration uint64) error {
	if d.tableName == "" {
		log.Debug().Str("publisher_id", publisherID).Msg("DYNAMODB_TABLE not configured, skipping publisher stats")
		return nil
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"publisher_id": &types.AttributeValueMemberS{Value: publisherID},
		},
		UpdateExpression: aws.String("ADD total_duration :d, visits :one SET last_visit_at = :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", duration)},
			":one": &types.AttributeValueMemberN{Value: "1"},
			":at":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to increment publisher stats in DynamoDB for %s: %w", publisherID, err)
	}
	return nil
}
