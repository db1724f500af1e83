package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Compile-time check that DynamoTable implements Table.
var _ Table = (*DynamoTable)(nil)

// DynamoTable is a DynamoDB-backed implementation of Table. The
// conditional write is expressed as a PutItem with a
// ConditionExpression requiring the partition key be absent.
type DynamoTable struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoTable creates a DynamoTable backed by the given table name.
func NewDynamoTable(client *dynamodb.Client, tableName string) *DynamoTable {
	return &DynamoTable{client: client, tableName: tableName}
}

func idempotencyKey(objectKey, objectVersion string) string {
	return objectKey + "|" + objectVersion
}

// Create writes a new record, failing with ErrAlreadyExists if the
// partition key already exists.
func (t *DynamoTable) Create(ctx context.Context, objectKey, objectVersion, jobID string) error {
	now := time.Now()
	_, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item: map[string]types.AttributeValue{
			"upload_key":     &types.AttributeValueMemberS{Value: idempotencyKey(objectKey, objectVersion)},
			"object_key":     &types.AttributeValueMemberS{Value: objectKey},
			"object_version": &types.AttributeValueMemberS{Value: objectVersion},
			"job_id":         &types.AttributeValueMemberS{Value: jobID},
			"created_at":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(upload_key)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("idempotency: put item: %w", err)
	}
	return nil
}

// Get returns the record for a given key, or ErrNotFound.
func (t *DynamoTable) Get(ctx context.Context, objectKey, objectVersion string) (Record, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"upload_key": &types.AttributeValueMemberS{Value: idempotencyKey(objectKey, objectVersion)},
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("idempotency: get item: %w", err)
	}
	if out.Item == nil {
		return Record{}, ErrNotFound
	}

	get := func(key string) string {
		if av, ok := out.Item[key].(*types.AttributeValueMemberS); ok {
			return av.Value
		}
		return ""
	}
	createdAt, err := time.Parse(time.RFC3339Nano, get("created_at"))
	if err != nil {
		return Record{}, fmt.Errorf("idempotency: parse created_at: %w", err)
	}

	return Record{
		ObjectKey:     get("object_key"),
		ObjectVersion: get("object_version"),
		JobID:         get("job_id"),
		CreatedAt:     createdAt,
	}, nil
}
