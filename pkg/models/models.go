package models

import (
	"time"
	"unicode/utf8"
)

// WalletStatus defines the lifecycle states of a wallet account.
type WalletStatus string

const (
	WalletPending   WalletStatus = "PENDING"
	WalletActive    WalletStatus = "ACTIVE"
	WalletSuspended WalletStatus = "SUSPENDED"
	WalletClosed    WalletStatus = "CLOSED"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletPending, WalletActive, WalletSuspended, WalletClosed:
		return true
	}
	return false
}

// WalletAccount is one balance record per (owner, currency) pair.
// All amounts are integer minor units of Currency.
type WalletAccount struct {
	Id                string       `json:"id" dynamodbav:"id"`
	OwnerId           string       `json:"owner_id" dynamodbav:"owner_id"`
	Currency          string       `json:"currency" dynamodbav:"currency"`
	Balance           int64        `json:"balance" dynamodbav:"balance"`
	AvailableBalance  int64        `json:"available_balance" dynamodbav:"available_balance"`
	FrozenBalance     int64        `json:"frozen_balance" dynamodbav:"frozen_balance"`
	Status            WalletStatus `json:"status" dynamodbav:"status"`
	Version           int64        `json:"version" dynamodbav:"version"`
	CreatedAt         time.Time    `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" dynamodbav:"updated_at"`
	LastTransactionAt *time.Time   `json:"last_transaction_at,omitempty" dynamodbav:"last_transaction_at,omitempty"`
}

// Consistent reports whether the balance invariant holds.
func (w *WalletAccount) Consistent() bool {
	return w.Balance == w.AvailableBalance+w.FrozenBalance &&
		w.Balance >= 0 && w.AvailableBalance >= 0 && w.FrozenBalance >= 0
}

// Clone returns a deep copy of the wallet.
func (w *WalletAccount) Clone() *WalletAccount {
	c := *w
	if w.LastTransactionAt != nil {
		t := *w.LastTransactionAt
		c.LastTransactionAt = &t
	}
	return &c
}

// EntryType defines the kind of balance change a ledger entry records.
type EntryType string

const (
	EntryCredit   EntryType = "CREDIT"
	EntryDebit    EntryType = "DEBIT"
	EntryFreeze   EntryType = "FREEZE"
	EntryUnfreeze EntryType = "UNFREEZE"
)

// LedgerEntry is an immutable record of a single committed wallet mutation.
// Sequence is the wallet version produced by the mutation and totally orders the
// entries of a wallet.
type LedgerEntry struct {
	EntryID            string    `json:"entry_id" dynamodbav:"entry_id"`
	WalletID           string    `json:"wallet_id" dynamodbav:"wallet_id"`
	Sequence           int64     `json:"sequence" dynamodbav:"sequence"`
	TransactionID      string    `json:"transaction_id" dynamodbav:"transaction_id"`
	Type               EntryType `json:"type" dynamodbav:"type"`
	Amount             int64     `json:"amount" dynamodbav:"amount"`
	Currency           string    `json:"currency" dynamodbav:"currency"`
	ResultingBalance   int64     `json:"resulting_balance" dynamodbav:"resulting_balance"`
	ResultingAvailable int64     `json:"resulting_available" dynamodbav:"resulting_available"`
	ResultingFrozen    int64     `json:"resulting_frozen" dynamodbav:"resulting_frozen"`
	Description        string    `json:"description" dynamodbav:"description"`
	Reference          string    `json:"reference,omitempty" dynamodbav:"reference,omitempty"`
	CreatedAt          time.Time `json:"created_at" dynamodbav:"created_at"`
}

// TransactionType defines the kinds of logical money movement.
type TransactionType string

const (
	TypeTransfer     TransactionType = "TRANSFER"
	TypeDeposit      TransactionType = "DEPOSIT"
	TypeWithdrawal   TransactionType = "WITHDRAWAL"
	TypeFXConversion TransactionType = "FX_CONVERSION"
	TypeMassPayout   TransactionType = "MASS_PAYOUT"
	TypeFee          TransactionType = "FEE"
	TypeRefund       TransactionType = "REFUND"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeTransfer, TypeDeposit, TypeWithdrawal, TypeFXConversion, TypeMassPayout, TypeFee, TypeRefund:
		return true
	}
	return false
}

// TransactionStatus defines the possible states of a transaction.
type TransactionStatus string

const (
	PENDING    TransactionStatus = "PENDING"
	PROCESSING TransactionStatus = "PROCESSING"
	COMPLETED  TransactionStatus = "COMPLETED"
	FAILED     TransactionStatus = "FAILED"
	CANCELLED  TransactionStatus = "CANCELLED"
	REVERSED   TransactionStatus = "REVERSED"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case PENDING, PROCESSING, COMPLETED, FAILED, CANCELLED, REVERSED:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible. COMPLETED is
// terminal for the settlement flow; only a reversal moves it to REVERSED.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case COMPLETED, FAILED, CANCELLED, REVERSED:
		return true
	}
	return false
}

// Transaction represents one logical money movement.
// Amount, Fee and CreditedAmount are minor units; CreditedAmount is expressed in
// the destination wallet's currency, which CreditedCurrency names when it differs
// from Currency.
type Transaction struct {
	Id               string            `json:"id" dynamodbav:"id"`
	Type             TransactionType   `json:"type" dynamodbav:"type"`
	Status           TransactionStatus `json:"status" dynamodbav:"status"`
	FromWalletId     string            `json:"from_wallet_id,omitempty" dynamodbav:"from_wallet_id,omitempty"`
	ToWalletId       string            `json:"to_wallet_id,omitempty" dynamodbav:"to_wallet_id,omitempty"`
	Amount           int64             `json:"amount" dynamodbav:"amount"`
	Currency         string            `json:"currency" dynamodbav:"currency"`
	Fee              int64             `json:"fee" dynamodbav:"fee"`
	FxRate           *Rate             `json:"fx_rate,omitempty" dynamodbav:"fx_rate,omitempty"`
	CreditedAmount   int64             `json:"credited_amount" dynamodbav:"credited_amount"`
	CreditedCurrency string            `json:"credited_currency,omitempty" dynamodbav:"credited_currency,omitempty"`
	Reference        string            `json:"reference" dynamodbav:"reference"`
	Description      string            `json:"description,omitempty" dynamodbav:"description,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty" dynamodbav:"failure_reason,omitempty"`
	ReversalOf       string            `json:"reversal_of,omitempty" dynamodbav:"reversal_of,omitempty"`
	CreatedBy        string            `json:"created_by" dynamodbav:"created_by"`
	CreatedAt        time.Time         `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" dynamodbav:"updated_at"`
}

// BatchStatus defines the states of a mass payout batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "PENDING"
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// RecipientStatus defines the per-recipient outcome inside a batch.
type RecipientStatus string

const (
	RecipientPending   RecipientStatus = "PENDING"
	RecipientCompleted RecipientStatus = "COMPLETED"
	RecipientFailed    RecipientStatus = "FAILED"
)

const (
	// MaxBatchRecipients bounds a batch so it fits in one DynamoDB item.
	MaxBatchRecipients = 1000
	// MaxRecipientError bounds Recipient.ErrorMessage in bytes.
	MaxRecipientError = 200
)

// Recipient is one credit inside a mass payout batch. Amount is in minor units of
// the batch currency.
type Recipient struct {
	WalletId      string          `json:"wallet_id" dynamodbav:"wallet_id"`
	Amount        int64           `json:"amount" dynamodbav:"amount"`
	Status        RecipientStatus `json:"status" dynamodbav:"status"`
	ErrorMessage  string          `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	Attempts      int             `json:"attempts" dynamodbav:"attempts"`
	LedgerEntryId string          `json:"ledger_entry_id,omitempty" dynamodbav:"ledger_entry_id,omitempty"`
}

// Fail marks the recipient FAILED with err, truncated to MaxRecipientError bytes
// on a rune boundary.
func (r *Recipient) Fail(err error) {
	msg := err.Error()
	if len(msg) > MaxRecipientError {
		cut := MaxRecipientError
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	r.Status = RecipientFailed
	r.ErrorMessage = msg
}

// MassPayoutBatch fans a single logical payout out to independent recipient credits.
// The counters and Status are derived from Recipients by Recompute.
type MassPayoutBatch struct {
	Id             string      `json:"id" dynamodbav:"id"`
	Status         BatchStatus `json:"status" dynamodbav:"status"`
	Currency       string      `json:"currency" dynamodbav:"currency"`
	Reference      string      `json:"reference" dynamodbav:"reference"`
	RecipientCount int         `json:"recipient_count" dynamodbav:"recipient_count"`
	ProcessedCount int         `json:"processed_count" dynamodbav:"processed_count"`
	FailedCount    int         `json:"failed_count" dynamodbav:"failed_count"`
	Recipients     []Recipient `json:"recipients" dynamodbav:"recipients"`
	Version        int64       `json:"version" dynamodbav:"version"`
	CreatedBy      string      `json:"created_by" dynamodbav:"created_by"`
	CreatedAt      time.Time   `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" dynamodbav:"updated_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

// Recompute derives the counters and batch status from the recipient list.
// A batch is COMPLETED only when every recipient is COMPLETED and FAILED only when
// none succeeded and every attempted recipient failed; anything else that has been
// touched stays PROCESSING.
func (b *MassPayoutBatch) Recompute(now time.Time) {
	var completed, failed, pending int
	for _, r := range b.Recipients {
		switch r.Status {
		case RecipientCompleted:
			completed++
		case RecipientFailed:
			failed++
		default:
			pending++
		}
	}

	b.RecipientCount = len(b.Recipients)
	b.ProcessedCount = completed
	b.FailedCount = failed
	b.UpdatedAt = now

	switch {
	case b.RecipientCount > 0 && completed == b.RecipientCount:
		b.Status = BatchCompleted
		if b.CompletedAt == nil {
			t := now
			b.CompletedAt = &t
		}
	case completed == 0 && pending == 0 && failed > 0:
		b.Status = BatchFailed
	case completed == 0 && failed == 0:
		if b.Status == "" {
			b.Status = BatchPending
		}
	default:
		b.Status = BatchProcessing
	}
}

// Clone returns a deep copy of the batch.
func (b *MassPayoutBatch) Clone() *MassPayoutBatch {
	c := *b
	c.Recipients = append([]Recipient(nil), b.Recipients...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
