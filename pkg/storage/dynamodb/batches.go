package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// maxItemSize is the DynamoDB item size limit.
const maxItemSize = 400 * 1024

// ErrItemTooLarge is returned when a batch would exceed the DynamoDB item limit.
var ErrItemTooLarge = errors.New("item exceeds the DynamoDB size limit")

func marshalBatch(batch *models.MassPayoutBatch) (map[string]types.AttributeValue, error) {
	batchAV, err := attributevalue.MarshalMap(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	if size := itemSize(batchAV); size > maxItemSize {
		return nil, fmt.Errorf("batch %s is %d bytes: %w", batch.Id, size, ErrItemTooLarge)
	}
	return batchAV, nil
}

// itemSize estimates the stored size of an item, rounding numbers up.
func itemSize(item map[string]types.AttributeValue) int {
	size := 0
	for name, av := range item {
		size += len(name) + attributeSize(av)
	}
	return size
}

func attributeSize(av types.AttributeValue) int {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value)
	case *types.AttributeValueMemberN:
		return len(v.Value) + 1
	case *types.AttributeValueMemberB:
		return len(v.Value)
	case *types.AttributeValueMemberBOOL, *types.AttributeValueMemberNULL:
		return 1
	case *types.AttributeValueMemberL:
		size := 3
		for _, e := range v.Value {
			size += 1 + attributeSize(e)
		}
		return size
	case *types.AttributeValueMemberM:
		size := 3
		for name, e := range v.Value {
			size += len(name) + 1 + attributeSize(e)
		}
		return size
	case *types.AttributeValueMemberSS:
		size := 0
		for _, e := range v.Value {
			size += len(e)
		}
		return size
	case *types.AttributeValueMemberNS:
		size := 0
		for _, e := range v.Value {
			size += len(e) + 1
		}
		return size
	case *types.AttributeValueMemberBS:
		size := 0
		for _, e := range v.Value {
			size += len(e)
		}
		return size
	}
	return 0
}

// CreateBatch stores a new mass payout batch.
func (s *Store) CreateBatch(ctx context.Context, batch *models.MassPayoutBatch) error {
	batchAV, err := marshalBatch(batch)
	if err != nil {
		return err
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Batches),
		Item:                batchAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create batch in DynamoDB: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by its ID.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*models.MassPayoutBatch, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Batches),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: batchID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get batch from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var batch models.MassPayoutBatch
	if err := attributevalue.UnmarshalMap(result.Item, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &batch, nil
}

// SaveBatch replaces the batch if nobody else saved it since it was read.
func (s *Store) SaveBatch(ctx context.Context, batch *models.MassPayoutBatch, expectedVersion int64) error {
	saved := batch.Clone()
	saved.Version = expectedVersion + 1

	batchAV, err := marshalBatch(saved)
	if err != nil {
		return err
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Batches),
		Item:                batchAV,
		ConditionExpression: aws.String("version = :version"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("failed to save batch in DynamoDB: %w", err)
	}

	batch.Version = saved.Version
	return nil
}
