// Package api holds the request and response bodies of the HTTP API. Amounts are
// decimal strings in major units of their currency.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewWallet is the body of POST /wallets.
type NewWallet struct {
	OwnerId  string `json:"owner_id"`
	Currency string `json:"currency"`
}

// Wallet is a wallet account.
type Wallet struct {
	Id                string     `json:"id"`
	OwnerId           string     `json:"owner_id"`
	Currency          string     `json:"currency"`
	Balance           string     `json:"balance"`
	AvailableBalance  string     `json:"available_balance"`
	FrozenBalance     string     `json:"frozen_balance"`
	Status            string     `json:"status"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
}

// WalletMutation is the body of the credit, debit, freeze and unfreeze endpoints.
type WalletMutation struct {
	Amount        decimal.Decimal `json:"amount"`
	TransactionId string          `json:"transaction_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference,omitempty"`
}

// StatusUpdate is the body of the status endpoints.
type StatusUpdate struct {
	Status string `json:"status"`
}

// LedgerEntry is one committed wallet mutation.
type LedgerEntry struct {
	EntryId            string    `json:"entry_id"`
	WalletId           string    `json:"wallet_id"`
	Sequence           int64     `json:"sequence"`
	TransactionId      string    `json:"transaction_id,omitempty"`
	Type               string    `json:"type"`
	Amount             string    `json:"amount"`
	Currency           string    `json:"currency"`
	ResultingBalance   string    `json:"resulting_balance"`
	ResultingAvailable string    `json:"resulting_available"`
	ResultingFrozen    string    `json:"resulting_frozen"`
	Description        string    `json:"description,omitempty"`
	Reference          string    `json:"reference,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ListLedgerEntriesParams are the query parameters of GET /wallets/{id}/ledger.
type ListLedgerEntriesParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// NewTransaction is the body of POST /transactions.
type NewTransaction struct {
	Type         string           `json:"type"`
	FromWalletId string           `json:"from_wallet_id,omitempty"`
	ToWalletId   string           `json:"to_wallet_id,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	Currency     string           `json:"currency"`
	FxRate       *decimal.Decimal `json:"fx_rate,omitempty"`
	Reference    string           `json:"reference"`
	Description  string           `json:"description,omitempty"`
}

// Transaction is a logical money movement.
type Transaction struct {
	Id               string    `json:"id"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	FromWalletId     string    `json:"from_wallet_id,omitempty"`
	ToWalletId       string    `json:"to_wallet_id,omitempty"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	Fee              string    `json:"fee"`
	FxRate           string    `json:"fx_rate,omitempty"`
	CreditedAmount   string    `json:"credited_amount"`
	CreditedCurrency string    `json:"credited_currency"`
	Reference        string    `json:"reference"`
	Description      string    `json:"description,omitempty"`
	FailureReason    string    `json:"failure_reason,omitempty"`
	ReversalOf       string    `json:"reversal_of,omitempty"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewBatch is the body of POST /payouts.
type NewBatch struct {
	Currency   string         `json:"currency"`
	Reference  string         `json:"reference"`
	Recipients []NewRecipient `json:"recipients"`
}

// NewRecipient is one credit of a new batch.
type NewRecipient struct {
	WalletId string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// Batch is a mass payout batch.
type Batch struct {
	Id             string      `json:"id"`
	Status         string      `json:"status"`
	Currency       string      `json:"currency"`
	Reference      string      `json:"reference"`
	RecipientCount int         `json:"recipient_count"`
	ProcessedCount int         `json:"processed_count"`
	FailedCount    int         `json:"failed_count"`
	Recipients     []Recipient `json:"recipients"`
	Version        int64       `json:"version"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// Recipient is one credit of a batch.
type Recipient struct {
	WalletId      string `json:"wallet_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
	Attempts      int    `json:"attempts"`
	LedgerEntryId string `json:"ledger_entry_id,omitempty"`
}
