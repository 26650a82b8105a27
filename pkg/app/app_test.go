package app

import (
	"context"
	"testing"

	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, config.Config{
		StoreBackend:      config.BackendMemory,
		MetricsNamespace:  "wallet",
		FXFeeBasisPoints:  decimal.Zero,
		RiskFlagThreshold: decimal.NewFromInt(100),
	}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, a.Scheduler)

	from, err := a.Ledger.CreateWallet(ctx, "alice", "USD", audit.System)
	require.NoError(t, err)
	to, err := a.Ledger.CreateWallet(ctx, "bob", "USD", audit.System)
	require.NoError(t, err)
	_, err = a.Ledger.Credit(ctx, from.Id, decimal.NewFromInt(500), "", "seed", "")
	require.NoError(t, err)

	tx, err := a.Settlement.CreateTransaction(ctx, settlement.CreateTransactionRequest{
		Type:         models.TypeTransfer,
		FromWalletID: from.Id,
		ToWalletID:   to.Id,
		Amount:       decimal.NewFromInt(250),
		Currency:     "USD",
		Reference:    "large",
	}, audit.System)
	require.NoError(t, err)

	settled, err := a.Settlement.Settle(ctx, tx.Id)
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, settled.Status)
	a.Close()

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["wallet_ledger_mutations_total"])
	assert.True(t, names["wallet_risk_evaluations_total"])
}
