package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/storage/dynamodb/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateTransaction(t *testing.T) {
	tx := &models.Transaction{Id: uuid.NewString(), Type: models.TypeTransfer, Status: models.PENDING, Amount: 100, Currency: "USD"}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

		store := New(mockClient, testTables)
		assert.NoError(t, store.CreateTransaction(context.Background(), tx))
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		store := New(mockClient, testTables)
		assert.ErrorIs(t, store.CreateTransaction(context.Background(), tx), storage.ErrAlreadyExists)
		mockClient.AssertExpectations(t)
	})
}

func TestGetTransaction(t *testing.T) {
	txID := uuid.NewString()
	tx := &models.Transaction{Id: txID, Status: models.PENDING, Amount: 100, Currency: "USD"}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		txAV, _ := attributevalue.MarshalMap(tx)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: txAV}, nil)

		store := New(mockClient, testTables)
		retrieved, err := store.GetTransaction(context.Background(), txID)

		require.NoError(t, err)
		assert.Equal(t, txID, retrieved.Id)
		assert.Equal(t, int64(100), retrieved.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: nil}, nil)

		store := New(mockClient, testTables)
		_, err := store.GetTransaction(context.Background(), txID)

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("some other storage error"))

		store := New(mockClient, testTables)
		_, err := store.GetTransaction(context.Background(), txID)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get transaction from DynamoDB")
		mockClient.AssertExpectations(t)
	})
}

func TestListTransactionsByStatus(t *testing.T) {
	t.Run("Paginates", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		first, _ := attributevalue.MarshalMap(&models.Transaction{Id: "a", Status: models.PROCESSING})
		second, _ := attributevalue.MarshalMap(&models.Transaction{Id: "b", Status: models.PROCESSING})
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{first},
			LastEvaluatedKey: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "a"}},
		}, nil)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{second}}, nil)

		store := New(mockClient, testTables)
		txs, err := store.ListTransactionsByStatus(context.Background(), models.PROCESSING, time.Now())

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "b", txs[1].Id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

		store := New(mockClient, testTables)
		_, err := store.ListTransactionsByStatus(context.Background(), models.PENDING, time.Now())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query transactions by status")
	})
}

func TestTransitionTransaction(t *testing.T) {
	t.Run("Success With Reason", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			_, hasReason := in.ExpressionAttributeValues[":reason"]
			return hasReason
		})).Return(&dynamodb.UpdateItemOutput{}, nil)

		store := New(mockClient, testTables)
		err := store.TransitionTransaction(context.Background(), "tx1", models.PROCESSING, models.FAILED, "insufficient funds", time.Now())

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Rejected", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		store := New(mockClient, testTables)
		err := store.TransitionTransaction(context.Background(), "tx1", models.PENDING, models.PROCESSING, "", time.Now())

		assert.ErrorIs(t, err, storage.ErrTransitionRejected)
	})
}
