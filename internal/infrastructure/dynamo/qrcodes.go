package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/migrant-health-api/internal/domain"
)

// QRCodeRepo provides typed DynamoDB operations for the QR codes table.
type QRCodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewQRCodeRepo(client *dynamodb.Client, tableName string) *QRCodeRepo {
	return &QRCodeRepo{client: client, tableName: tableName}
}

func (r *QRCodeRepo) Put(ctx context.Context, qr *domain.QRCode) error {
	item, err := attributevalue.MarshalMap(qr)
	if err != nil {
		return fmt.Errorf("marshal qr code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *QRCodeRepo) Get(ctx context.Context, qrID string) (*domain.QRCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("qr_id", qrID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("qr code %s: %w", qrID, domain.ErrNotFound)
	}
	var qr domain.QRCode
	if err := attributevalue.UnmarshalMap(out.Item, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// GetByUser returns the user's active QR code through the user_id GSI.
func (r *QRCodeRepo) GetByUser(ctx context.Context, userID string) (*domain.QRCode, error) {
	return r.queryGSI(ctx, "user_id-index", "user_id", userID)
}

// GetByCode resolves a scanned code value through the code GSI.
func (r *QRCodeRepo) GetByCode(ctx context.Context, code string) (*domain.QRCode, error) {
	return r.queryGSI(ctx, "code-index", "code", code)
}

func (r *QRCodeRepo) Update(ctx context.Context, qrID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("qr_id", qrID),
		UpdateExpression:         aws.String(ue.Expr),
		ExpressionAttributeNames: ue.Names,
	}
	if len(ue.Values) > 0 {
		input.ExpressionAttributeValues = ue.Values
	}
	_, err = r.client.UpdateItem(ctx, input)
	return err
}

// Invalidate marks every QR code belonging to the user as no longer scannable.
func (r *QRCodeRepo) Invalidate(ctx context.Context, qrID string) error {
	return r.Update(ctx, qrID, map[string]interface{}{fieldValid: false})
}

func (r *QRCodeRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.QRCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("qr code lookup by %s: %w", attr, domain.ErrNotFound)
	}
	var qr domain.QRCode
	if err := attributevalue.UnmarshalMap(out.Items[0], &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}
