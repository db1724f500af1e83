package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Compile-time check that DynamoTable implements Table.
var _ Table = (*DynamoTable)(nil)

// objectKeyIndexName is the name of the GSI projecting object_key/object_version
// onto job_id, used by FindByObjectKey.
const objectKeyIndexName = "object-key-index"

// DynamoTable is a DynamoDB-backed implementation of Table.
// CompareAndSwapState is gated by a ConditionExpression against the
// prior state; Save is an unconditional PutItem.
type DynamoTable struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoTable creates a DynamoTable backed by the given table name.
func NewDynamoTable(client *dynamodb.Client, tableName string) *DynamoTable {
	return &DynamoTable{client: client, tableName: tableName}
}

func marshalJob(j *Job) map[string]types.AttributeValue {
	timings := make(map[string]types.AttributeValue, len(j.Timings))
	for k, v := range j.Timings {
		timings[k] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
	}
	return map[string]types.AttributeValue{
		"job_id":               &types.AttributeValueMemberS{Value: j.ID},
		"object_key":           &types.AttributeValueMemberS{Value: j.ObjectKey},
		"object_version":       &types.AttributeValueMemberS{Value: j.ObjectVersion},
		"client_duration_hint": &types.AttributeValueMemberN{Value: strconv.FormatFloat(j.ClientDurationHint, 'f', -1, 64)},
		"state":                &types.AttributeValueMemberS{Value: string(j.Status)},
		"stage":                &types.AttributeValueMemberS{Value: j.Stage},
		"progress":             &types.AttributeValueMemberN{Value: strconv.FormatFloat(j.Progress, 'f', -1, 64)},
		"timings":              &types.AttributeValueMemberM{Value: timings},
		"task_handle":          &types.AttributeValueMemberS{Value: j.TaskHandle},
		"result_key":           &types.AttributeValueMemberS{Value: j.ResultKey},
		"failure_report_key":   &types.AttributeValueMemberS{Value: j.FailureReportKey},
		"error":                &types.AttributeValueMemberS{Value: j.Error},
		"created_at":           &types.AttributeValueMemberS{Value: j.CreatedAt.Format(time.RFC3339Nano)},
		"updated_at":           &types.AttributeValueMemberS{Value: j.UpdatedAt.Format(time.RFC3339Nano)},
	}
}

func unmarshalJob(item map[string]types.AttributeValue) (*Job, error) {
	get := func(key string) string {
		if av, ok := item[key].(*types.AttributeValueMemberS); ok {
			return av.Value
		}
		return ""
	}
	getN := func(key string) float64 {
		if av, ok := item[key].(*types.AttributeValueMemberN); ok {
			f, _ := strconv.ParseFloat(av.Value, 64)
			return f
		}
		return 0
	}

	createdAt, err := time.Parse(time.RFC3339Nano, get("created_at"))
	if err != nil {
		return nil, fmt.Errorf("job: parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, get("updated_at"))
	if err != nil {
		return nil, fmt.Errorf("job: parse updated_at: %w", err)
	}

	timings := make(map[string]float64)
	if m, ok := item["timings"].(*types.AttributeValueMemberM); ok {
		for k, v := range m.Value {
			if n, ok := v.(*types.AttributeValueMemberN); ok {
				f, _ := strconv.ParseFloat(n.Value, 64)
				timings[k] = f
			}
		}
	}

	return &Job{
		ID:                 get("job_id"),
		ObjectKey:          get("object_key"),
		ObjectVersion:      get("object_version"),
		ClientDurationHint: getN("client_duration_hint"),
		Status:             Status(get("state")),
		Stage:              get("stage"),
		Progress:           getN("progress"),
		Timings:            timings,
		TaskHandle:         get("task_handle"),
		ResultKey:          get("result_key"),
		FailureReportKey:   get("failure_report_key"),
		Error:              get("error"),
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

// Save persists a job unconditionally, creating it if it does not already exist.
func (t *DynamoTable) Save(ctx context.Context, j *Job) error {
	_, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      marshalJob(j),
	})
	if err != nil {
		return fmt.Errorf("job: put item: %w", err)
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (t *DynamoTable) FindByID(ctx context.Context, id string) (*Job, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("job: get item: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	return unmarshalJob(out.Item)
}

// FindByObjectKey queries the object-key GSI for the job mapped to this upload.
func (t *DynamoTable) FindByObjectKey(ctx context.Context, objectKey, objectVersion string) (*Job, error) {
	keyCond := expression.Key("object_key").Equal(expression.Value(objectKey)).
		And(expression.Key("object_version").Equal(expression.Value(objectVersion)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("job: build query expression: %w", err)
	}

	out, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(t.tableName),
		IndexName:                 aws.String(objectKeyIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("job: query object-key index: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrJobNotFound
	}
	return unmarshalJob(out.Items[0])
}

// List returns all jobs in the table via a full table scan.
// Acceptable at the core's scale; a production deployment would paginate
// or route through a secondary index for large tables.
func (t *DynamoTable) List(ctx context.Context) ([]*Job, error) {
	out, err := t.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(t.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("job: scan: %w", err)
	}
	jobs := make([]*Job, 0, len(out.Items))
	for _, item := range out.Items {
		j, err := unmarshalJob(item)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CompareAndSwapState writes the job only if the persisted state attribute
// still equals expected, using a DynamoDB ConditionExpression.
func (t *DynamoTable) CompareAndSwapState(ctx context.Context, j *Job, expected Status) error {
	_, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.tableName),
		Item:                marshalJob(j),
		ConditionExpression: aws.String("attribute_exists(job_id) AND #s = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#s": "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrConflict
		}
		return fmt.Errorf("job: conditional put: %w", err)
	}
	return nil
}

// Delete removes a job from storage.
func (t *DynamoTable) Delete(ctx context.Context, id string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(job_id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrJobNotFound
		}
		return fmt.Errorf("job: delete item: %w", err)
	}
	return nil
}
