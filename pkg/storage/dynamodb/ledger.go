package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
)

// ListLedgerEntries returns the newest entries of a wallet. The ledger table is keyed
// by (wallet_id, sequence).
func (s *Store) ListLedgerEntries(ctx context.Context, walletID string, limit int32) ([]models.LedgerEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Ledger),
		KeyConditionExpression: aws.String("wallet_id = :wallet_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":wallet_id": &types.AttributeValueMemberS{Value: walletID},
		},
		ScanIndexForward: aws.Bool(false), // newest sequence first
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for ledger entries: %w", err)
	}

	var entries []models.LedgerEntry
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger entries: %w", err)
	}
	return entries, nil
}

// ListEntriesByTransaction returns every entry written for a transaction.
func (s *Store) ListEntriesByTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.Ledger),
			IndexName:              aws.String(ledgerTransactionIndex),
			KeyConditionExpression: aws.String("transaction_id = :transaction_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":transaction_id": &types.AttributeValueMemberS{Value: transactionID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query ledger entries by transaction: %w", err)
		}

		var page []models.LedgerEntry
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger entries: %w", err)
		}
		entries = append(entries, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return entries, nil
		}
		startKey = result.LastEvaluatedKey
	}
}
