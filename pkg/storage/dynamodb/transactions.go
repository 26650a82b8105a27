package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// CreateTransaction stores a new PENDING transaction record.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	txAV, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Transactions),
		Item:                txAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create transaction in DynamoDB: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction from DynamoDB by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Transactions),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: txID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var tx models.Transaction
	if err := attributevalue.UnmarshalMap(result.Item, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// ListTransactionsByStatus queries the status index for transactions last updated
// before the cutoff. Timestamps are stored as UTC RFC 3339 strings, so the string
// comparison orders them correctly.
func (s *Store) ListTransactionsByStatus(ctx context.Context, status models.TransactionStatus, updatedBefore time.Time) ([]models.Transaction, error) {
	cutoffAV, err := attributevalue.Marshal(updatedBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cutoff time: %w", err)
	}

	var transactions []models.Transaction
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.Transactions),
			IndexName:              aws.String(transactionStatusIndex),
			KeyConditionExpression: aws.String("#status = :status AND updated_at < :cutoff"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: string(status)},
				":cutoff": cutoffAV,
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query transactions by status: %w", err)
		}

		var page []models.Transaction
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
		}
		transactions = append(transactions, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return transactions, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

// TransitionTransaction atomically moves a transaction from one status to another.
func (s *Store) TransitionTransaction(ctx context.Context, txID string, from, to models.TransactionStatus, reason string, now time.Time) error {
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp for status update: %w", err)
	}

	expr := "SET #status = :to_status, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to_status":   &types.AttributeValueMemberS{Value: string(to)},
		":from_status": &types.AttributeValueMemberS{Value: string(from)},
		":now":         nowAV,
	}
	if reason != "" {
		expr += ", failure_reason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: reason}
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Transactions),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: txID}},
		UpdateExpression:    aws.String(expr),
		ConditionExpression: aws.String("#status = :from_status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrTransitionRejected
		}
		return fmt.Errorf("failed to update transaction status to %s: %w", to, err)
	}
	return nil
}
