package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// ownerGuard is stored in the wallets table next to the wallet itself and
// enforces one wallet per (owner, currency).
type ownerGuard struct {
	Id       string `dynamodbav:"id"`
	WalletId string `dynamodbav:"wallet_id"`
}

func ownerGuardID(ownerID, currency string) string {
	return "OWNER#" + ownerID + "#" + currency
}

// CreateWallet writes the wallet and its owner guard in one transaction.
func (s *Store) CreateWallet(ctx context.Context, wallet *models.WalletAccount) error {
	walletAV, err := attributevalue.MarshalMap(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}
	guardAV, err := attributevalue.MarshalMap(ownerGuard{Id: ownerGuardID(wallet.OwnerId, wallet.Currency), WalletId: wallet.Id})
	if err != nil {
		return fmt.Errorf("failed to marshal owner guard: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.Tables.Wallets),
					Item:                walletAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(s.Tables.Wallets),
					Item:                guardAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	}

	if _, err := s.Client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && anyConditionFailed(tce) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create wallet in DynamoDB: %w", err)
	}
	return nil
}

// GetWallet retrieves a wallet by its ID.
func (s *Store) GetWallet(ctx context.Context, walletID string) (*models.WalletAccount, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Wallets),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: walletID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var wallet models.WalletAccount
	if err := attributevalue.UnmarshalMap(result.Item, &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return &wallet, nil
}

// GetWalletByOwner resolves the owner guard and then loads the wallet.
func (s *Store) GetWalletByOwner(ctx context.Context, ownerID, currency string) (*models.WalletAccount, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Wallets),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: ownerGuardID(ownerID, currency)}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get owner guard from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var guard ownerGuard
	if err := attributevalue.UnmarshalMap(result.Item, &guard); err != nil {
		return nil, fmt.Errorf("failed to unmarshal owner guard: %w", err)
	}
	return s.GetWallet(ctx, guard.WalletId)
}

// UpdateWalletStatus changes the wallet status and bumps its version, so a
// concurrent balance commit that read the old status is rejected.
func (s *Store) UpdateWalletStatus(ctx context.Context, walletID string, status models.WalletStatus, expectedVersion int64, now time.Time) error {
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp for status update: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Wallets),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: walletID}},
		UpdateExpression:    aws.String("SET #status = :status, version = version + :inc, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND version = :version"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(status)},
			":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
			":inc":     &types.AttributeValueMemberN{Value: "1"},
			":now":     nowAV,
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("failed to update wallet status in DynamoDB: %w", err)
	}
	return nil
}
