package mapping

import (
	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/chris/wallet-ledger/pkg/payout"
	"github.com/chris/wallet-ledger/pkg/settlement"
)

// ToApiWallet converts a domain WalletAccount model to an API Wallet model.
func ToApiWallet(w *models.WalletAccount) *api.Wallet {
	return &api.Wallet{
		Id:                w.Id,
		OwnerId:           w.OwnerId,
		Currency:          w.Currency,
		Balance:           money.Format(w.Balance, w.Currency),
		AvailableBalance:  money.Format(w.AvailableBalance, w.Currency),
		FrozenBalance:     money.Format(w.FrozenBalance, w.Currency),
		Status:            string(w.Status),
		Version:           w.Version,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
		LastTransactionAt: w.LastTransactionAt,
	}
}

// ToApiLedgerEntry converts a domain LedgerEntry model to an API LedgerEntry model.
func ToApiLedgerEntry(e *models.LedgerEntry) *api.LedgerEntry {
	return &api.LedgerEntry{
		EntryId:            e.EntryID,
		WalletId:           e.WalletID,
		Sequence:           e.Sequence,
		TransactionId:      e.TransactionID,
		Type:               string(e.Type),
		Amount:             money.Format(e.Amount, e.Currency),
		Currency:           e.Currency,
		ResultingBalance:   money.Format(e.ResultingBalance, e.Currency),
		ResultingAvailable: money.Format(e.ResultingAvailable, e.Currency),
		ResultingFrozen:    money.Format(e.ResultingFrozen, e.Currency),
		Description:        e.Description,
		Reference:          e.Reference,
		CreatedAt:          e.CreatedAt,
	}
}

// ToApiTransaction converts a domain Transaction model to an API Transaction model.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	credited := tx.CreditedCurrency
	if credited == "" {
		credited = tx.Currency
	}
	out := &api.Transaction{
		Id:               tx.Id,
		Type:             string(tx.Type),
		Status:           string(tx.Status),
		FromWalletId:     tx.FromWalletId,
		ToWalletId:       tx.ToWalletId,
		Amount:           money.Format(tx.Amount, tx.Currency),
		Currency:         tx.Currency,
		Fee:              money.Format(tx.Fee, tx.Currency),
		CreditedAmount:   money.Format(tx.CreditedAmount, credited),
		CreditedCurrency: credited,
		Reference:        tx.Reference,
		Description:      tx.Description,
		FailureReason:    tx.FailureReason,
		ReversalOf:       tx.ReversalOf,
		CreatedBy:        tx.CreatedBy,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}
	if tx.FxRate != nil {
		out.FxRate = tx.FxRate.String()
	}
	return out
}

// ToCreateTransactionRequest converts an API NewTransaction model to a settlement request.
func ToCreateTransactionRequest(newTx *api.NewTransaction) settlement.CreateTransactionRequest {
	return settlement.CreateTransactionRequest{
		Type:         models.TransactionType(newTx.Type),
		FromWalletID: newTx.FromWalletId,
		ToWalletID:   newTx.ToWalletId,
		Amount:       newTx.Amount,
		Currency:     newTx.Currency,
		FxRate:       newTx.FxRate,
		Reference:    newTx.Reference,
		Description:  newTx.Description,
	}
}

// ToApiBatch converts a domain MassPayoutBatch model to an API Batch model.
func ToApiBatch(b *models.MassPayoutBatch) *api.Batch {
	recipients := make([]api.Recipient, len(b.Recipients))
	for i, r := range b.Recipients {
		recipients[i] = api.Recipient{
			WalletId:      r.WalletId,
			Amount:        money.Format(r.Amount, b.Currency),
			Status:        string(r.Status),
			ErrorMessage:  r.ErrorMessage,
			Attempts:      r.Attempts,
			LedgerEntryId: r.LedgerEntryId,
		}
	}
	return &api.Batch{
		Id:             b.Id,
		Status:         string(b.Status),
		Currency:       b.Currency,
		Reference:      b.Reference,
		RecipientCount: b.RecipientCount,
		ProcessedCount: b.ProcessedCount,
		FailedCount:    b.FailedCount,
		Recipients:     recipients,
		Version:        b.Version,
		CreatedBy:      b.CreatedBy,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
		CompletedAt:    b.CompletedAt,
	}
}

// ToCreateBatchRequest converts an API NewBatch model to a payout request.
func ToCreateBatchRequest(nb *api.NewBatch) payout.CreateBatchRequest {
	recipients := make([]payout.RecipientRequest, len(nb.Recipients))
	for i, r := range nb.Recipients {
		recipients[i] = payout.RecipientRequest{WalletID: r.WalletId, Amount: r.Amount}
	}
	return payout.CreateBatchRequest{
		Currency:   nb.Currency,
		Reference:  nb.Reference,
		Recipients: recipients,
	}
}
