package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute(t *testing.T) {
	now := time.Now()

	t.Run("All Pending", func(t *testing.T) {
		b := &MassPayoutBatch{Recipients: []Recipient{{Status: RecipientPending}, {Status: RecipientPending}}}
		b.Recompute(now)
		assert.Equal(t, BatchPending, b.Status)
		assert.Equal(t, 2, b.RecipientCount)
		assert.Zero(t, b.ProcessedCount)
		assert.Zero(t, b.FailedCount)
	})

	t.Run("Partial Failure", func(t *testing.T) {
		b := &MassPayoutBatch{Status: BatchPending, Recipients: []Recipient{
			{Status: RecipientCompleted}, {Status: RecipientFailed}, {Status: RecipientCompleted},
		}}
		b.Recompute(now)
		assert.Equal(t, BatchProcessing, b.Status)
		assert.Equal(t, 2, b.ProcessedCount)
		assert.Equal(t, 1, b.FailedCount)
		assert.Nil(t, b.CompletedAt)
	})

	t.Run("All Completed", func(t *testing.T) {
		b := &MassPayoutBatch{Recipients: []Recipient{{Status: RecipientCompleted}}}
		b.Recompute(now)
		assert.Equal(t, BatchCompleted, b.Status)
		require.NotNil(t, b.CompletedAt)
		assert.Equal(t, now, *b.CompletedAt)
	})

	t.Run("All Failed", func(t *testing.T) {
		b := &MassPayoutBatch{Recipients: []Recipient{{Status: RecipientFailed}, {Status: RecipientFailed}}}
		b.Recompute(now)
		assert.Equal(t, BatchFailed, b.Status)
	})

	t.Run("Failed With Pending Remaining", func(t *testing.T) {
		b := &MassPayoutBatch{Recipients: []Recipient{{Status: RecipientFailed}, {Status: RecipientPending}}}
		b.Recompute(now)
		assert.Equal(t, BatchProcessing, b.Status)
	})
}

func TestWalletConsistent(t *testing.T) {
	assert.True(t, (&WalletAccount{Balance: 100, AvailableBalance: 70, FrozenBalance: 30}).Consistent())
	assert.False(t, (&WalletAccount{Balance: 100, AvailableBalance: 80, FrozenBalance: 30}).Consistent())
	assert.False(t, (&WalletAccount{Balance: -10, AvailableBalance: -10}).Consistent())
}

func TestRateEncoding(t *testing.T) {
	tx := Transaction{Id: "tx1", Type: TypeFXConversion, FxRate: NewRate(decimal.RequireFromString("1.0837"))}

	t.Run("DynamoDB", func(t *testing.T) {
		av, err := attributevalue.MarshalMap(tx)
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1.0837"}, av["fx_rate"])

		var out Transaction
		require.NoError(t, attributevalue.UnmarshalMap(av, &out))
		require.NotNil(t, out.FxRate)
		assert.True(t, out.FxRate.Equal(decimal.RequireFromString("1.0837")))
	})

	t.Run("Omitted When Nil", func(t *testing.T) {
		av, err := attributevalue.MarshalMap(Transaction{Id: "tx2"})
		require.NoError(t, err)
		_, ok := av["fx_rate"]
		assert.False(t, ok)
	})

	t.Run("JSON", func(t *testing.T) {
		b, err := json.Marshal(tx)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"fx_rate":"1.0837"`)
	})
}

func TestRecipientFail(t *testing.T) {
	t.Run("Short Message", func(t *testing.T) {
		r := &Recipient{Status: RecipientPending}
		r.Fail(errors.New("wallet is SUSPENDED"))
		assert.Equal(t, RecipientFailed, r.Status)
		assert.Equal(t, "wallet is SUSPENDED", r.ErrorMessage)
	})

	t.Run("Truncated On Rune Boundary", func(t *testing.T) {
		r := &Recipient{}
		r.Fail(errors.New(strings.Repeat("a", MaxRecipientError-1) + "é and more"))
		assert.Len(t, r.ErrorMessage, MaxRecipientError-1)
		assert.True(t, strings.HasSuffix(r.ErrorMessage, "a"))
	})
}
