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

// ReportRepo provides typed DynamoDB operations for the medical reports table.
type ReportRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReportRepo(client *dynamodb.Client, tableName string) *ReportRepo {
	return &ReportRepo{client: client, tableName: tableName}
}

func (r *ReportRepo) Put(ctx context.Context, rep *domain.MedicalReport) error {
	item, err := attributevalue.MarshalMap(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ReportRepo) Get(ctx context.Context, reportID string) (*domain.MedicalReport, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("report_id", reportID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
	}
	var rep domain.MedicalReport
	if err := attributevalue.UnmarshalMap(out.Item, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetByAccessCode resolves a shared report through the access_code GSI.
func (r *ReportRepo) GetByAccessCode(ctx context.Context, code string) (*domain.MedicalReport, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("access_code-index"),
		KeyConditionExpression:    aws.String("access_code = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: code}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("report by access code: %w", domain.ErrNotFound)
	}
	var rep domain.MedicalReport
	if err := attributevalue.UnmarshalMap(out.Items[0], &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepo) Update(ctx context.Context, reportID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("report_id", reportID),
		UpdateExpression:         aws.String(ue.Expr),
		ExpressionAttributeNames: ue.Names,
	}
	if len(ue.Values) > 0 {
		input.ExpressionAttributeValues = ue.Values
	}
	_, err = r.client.UpdateItem(ctx, input)
	return err
}

func (r *ReportRepo) Delete(ctx context.Context, reportID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("report_id", reportID),
	})
	return err
}

// QueryByUser returns a page of the user's reports newest first, optionally
// filtered by report type.
func (r *ReportRepo) QueryByUser(ctx context.Context, userID, reportType string, limit int32, cursor string) ([]domain.MedicalReport, string, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-report_date-index"),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	}
	if reportType != "" {
		input.FilterExpression = aws.String("report_type = :rt")
		input.ExpressionAttributeValues[":rt"] = &types.AttributeValueMemberS{Value: reportType}
	}
	if cursor != "" {
		startKey, err := decodeReportCursor(userID, cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = startKey
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var reps []domain.MedicalReport
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reps); err != nil {
		return nil, "", err
	}
	return reps, encodeReportCursor(out.LastEvaluatedKey), nil
}

// Cursors over the user_id-report_date GSI pack report_date and report_id;
// user_id is re-supplied by the caller.
func encodeReportCursor(lastKey map[string]types.AttributeValue) string {
	date, ok := lastKey["report_date"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	id, ok := lastKey["report_id"].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return encodeCursor(date.Value + "|" + id.Value)
}

func decodeReportCursor(userID, cursor string) (map[string]types.AttributeValue, error) {
	raw, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	date, id, ok := strings.Cut(raw, "|")
	if !ok {
		return nil, fmt.Errorf("malformed cursor")
	}
	return map[string]types.AttributeValue{
		"user_id":     &types.AttributeValueMemberS{Value: userID},
		"report_date": &types.AttributeValueMemberS{Value: date},
		"report_id":   &types.AttributeValueMemberS{Value: id},
	}, nil
}

// CountByUser returns the number of reports the user has.
func (r *ReportRepo) CountByUser(ctx context.Context, userID string) (int32, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-report_date-index"),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
		Select:                    types.SelectCount,
	})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}
