package dynamo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/migrant-health-api/internal/domain"
)

// HealthRecordRepo provides typed DynamoDB operations for the health records table.
type HealthRecordRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewHealthRecordRepo(client *dynamodb.Client, tableName string) *HealthRecordRepo {
	return &HealthRecordRepo{client: client, tableName: tableName}
}

func (r *HealthRecordRepo) Put(ctx context.Context, rec *domain.HealthRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal health record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *HealthRecordRepo) Get(ctx context.Context, recordID string) (*domain.HealthRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("record_id", recordID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("health record %s: %w", recordID, domain.ErrNotFound)
	}
	var rec domain.HealthRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *HealthRecordRepo) Update(ctx context.Context, recordID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("record_id", recordID),
		UpdateExpression:         aws.String(ue.Expr),
		ExpressionAttributeNames: ue.Names,
	}
	if len(ue.Values) > 0 {
		input.ExpressionAttributeValues = ue.Values
	}
	_, err = r.client.UpdateItem(ctx, input)
	return err
}

func (r *HealthRecordRepo) Delete(ctx context.Context, recordID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("record_id", recordID),
	})
	return err
}

// QueryByUser returns the user's records newest first, optionally filtered by
// checkup type. cursor is an opaque page token from a previous call.
func (r *HealthRecordRepo) QueryByUser(ctx context.Context, userID, checkupType string, limit int32, cursor string) ([]domain.HealthRecord, string, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-checkup_date-index"),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	}
	if checkupType != "" {
		input.FilterExpression = aws.String("checkup_type = :ct")
		input.ExpressionAttributeValues[":ct"] = &types.AttributeValueMemberS{Value: checkupType}
	}
	if cursor != "" {
		startKey, err := decodeRecordCursor(userID, cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = startKey
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var recs []domain.HealthRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, "", err
	}
	return recs, encodeRecordCursor(out.LastEvaluatedKey), nil
}

// Latest returns the user's most recent record, or ErrNotFound when none exist.
func (r *HealthRecordRepo) Latest(ctx context.Context, userID string) (*domain.HealthRecord, error) {
	recs, _, err := r.QueryByUser(ctx, userID, "", 1, "")
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("health records for user %s: %w", userID, domain.ErrNotFound)
	}
	return &recs[0], nil
}

// CountByUser returns the number of records the user has.
func (r *HealthRecordRepo) CountByUser(ctx context.Context, userID string) (int32, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-checkup_date-index"),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
		Select:                    types.SelectCount,
	})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Query pagination over the user_id-checkup_date GSI needs both the index
// range key and the table hash key in the start key. The cursor packs
// checkup_date and record_id together; user_id is re-supplied by the caller.
func encodeRecordCursor(lastKey map[string]types.AttributeValue) string {
	date, ok := lastKey["checkup_date"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	id, ok := lastKey["record_id"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return encodeCursor(date.Value + "|" + id.Value)
}

func decodeRecordCursor(userID, cursor string) (map[string]types.AttributeValue, error) {
	raw, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	date, id, ok := strings.Cut(raw, "|")
	if !ok {
		return nil, fmt.Errorf("malformed cursor")
	}
	return map[string]types.AttributeValue{
		"user_id":      &types.AttributeValueMemberS{Value: userID},
		"checkup_date": &types.AttributeValueMemberS{Value: date},
		"record_id":    &types.AttributeValueMemberS{Value: id},
	}, nil
}
