package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// Leg is one balance change inside a posting. Amount is in minor units of the
// wallet currency.
type Leg struct {
	WalletID string
	Kind     models.EntryType
	Amount   int64
	// Currency, when set, must equal the wallet currency.
	Currency    string
	Description string
	Reference   string
	// EntryID, when set, is used as the id of the leg's entry.
	EntryID string
}

// Posting is a set of legs committed atomically, optionally together with a
// transaction status change and an idempotency marker.
type Posting struct {
	TransactionID  string
	Legs           []Leg
	Transition     *storage.TransactionTransition
	IdempotencyKey string
	Actor          audit.Actor
}

// PostingResult holds the committed state.
type PostingResult struct {
	// Wallets is keyed by wallet id and holds each touched wallet after the commit.
	Wallets map[string]*models.WalletAccount
	// Entries holds one entry per leg, in leg order.
	Entries []models.LedgerEntry
}

// ErrAlreadyPosted is wrapped by the error returned when a posting's idempotency
// key has been committed before. Nothing was applied by the rejected call.
var ErrAlreadyPosted = storage.ErrDuplicatePosting

// ErrTransitionRejected is wrapped by the error returned when the posting's
// transaction was not in the expected status. Nothing was applied.
var ErrTransitionRejected = storage.ErrTransitionRejected

// Post commits every leg of p in one store transaction. Legs on the same wallet
// are applied in order, each producing its own entry.
func (l *Ledger) Post(ctx context.Context, p Posting) (*PostingResult, error) {
	started := time.Now()
	var result *PostingResult
	var snapshots map[string]*models.WalletAccount

	err := validateLegs(p.Legs)
	if err == nil {
		err = l.retry(ctx, "post", func() error {
			var attemptErr error
			result, snapshots, attemptErr = l.attempt(ctx, p)
			return attemptErr
		})
	}
	l.observe(operationName(p.Legs), started, err)
	if err != nil {
		return nil, err
	}

	for i, leg := range p.Legs {
		l.emit(ctx, audit.Event{
			Actor:      p.Actor,
			Action:     "wallet." + strings.ToLower(string(leg.Kind)),
			Resource:   "wallet",
			ResourceID: leg.WalletID,
			Before:     snapshots[leg.WalletID],
			After:      result.Entries[i],
			At:         result.Entries[i].CreatedAt,
		})
	}
	return result, nil
}

func validateLegs(legs []Leg) error {
	if len(legs) == 0 {
		return apperr.Validation("posting has no legs")
	}
	for _, leg := range legs {
		if leg.WalletID == "" {
			return apperr.Validation("leg wallet id is required")
		}
		if leg.Amount <= 0 {
			return apperr.Validation("amount must be greater than zero")
		}
		switch leg.Kind {
		case models.EntryCredit, models.EntryDebit, models.EntryFreeze, models.EntryUnfreeze:
		default:
			return apperr.Validation("unknown leg kind %q", leg.Kind)
		}
	}
	return nil
}

func operationName(legs []Leg) string {
	if len(legs) == 1 {
		return strings.ToLower(string(legs[0].Kind))
	}
	return "post"
}

// attempt runs one read-compute-commit cycle.
func (l *Ledger) attempt(ctx context.Context, p Posting) (*PostingResult, map[string]*models.WalletAccount, error) {
	wallets := make(map[string]*models.WalletAccount)
	before := make(map[string]*models.WalletAccount)
	var order []string

	for _, leg := range p.Legs {
		if _, seen := wallets[leg.WalletID]; seen {
			continue
		}
		w, err := l.store.GetWallet(ctx, leg.WalletID)
		if err != nil {
			return nil, nil, mapStoreError(err, "wallet", leg.WalletID)
		}
		if w.Status != models.WalletActive {
			return nil, nil, apperr.Wallet("wallet %s is %s", w.Id, w.Status)
		}
		wallets[w.Id] = w
		before[w.Id] = w.Clone()
		order = append(order, w.Id)
	}

	now := l.now()
	entries := make([]models.LedgerEntry, 0, len(p.Legs))
	for _, leg := range p.Legs {
		w := wallets[leg.WalletID]
		if leg.Currency != "" && leg.Currency != w.Currency {
			return nil, nil, apperr.Validation("currency mismatch: wallet %s holds %s, leg is %s", w.Id, w.Currency, leg.Currency)
		}
		if err := apply(w, leg.Kind, leg.Amount); err != nil {
			return nil, nil, err
		}
		w.Version++
		entryID := leg.EntryID
		if entryID == "" {
			entryID = l.newID()
		}
		entries = append(entries, models.LedgerEntry{
			EntryID:            entryID,
			WalletID:           w.Id,
			Sequence:           w.Version,
			TransactionID:      p.TransactionID,
			Type:               leg.Kind,
			Amount:             leg.Amount,
			Currency:           w.Currency,
			ResultingBalance:   w.Balance,
			ResultingAvailable: w.AvailableBalance,
			ResultingFrozen:    w.FrozenBalance,
			Description:        leg.Description,
			Reference:          leg.Reference,
			CreatedAt:          now,
		})
	}

	commit := &storage.Commit{
		Entries:        entries,
		Transition:     p.Transition,
		IdempotencyKey: p.IdempotencyKey,
	}
	for _, id := range order {
		w := wallets[id]
		w.UpdatedAt = now
		t := now
		w.LastTransactionAt = &t
		commit.Wallets = append(commit.Wallets, storage.WalletWrite{Wallet: w, ExpectedVersion: before[id].Version})
	}

	if err := l.store.Commit(ctx, commit); err != nil {
		switch {
		case errors.Is(err, storage.ErrVersionConflict):
			return nil, nil, err
		case errors.Is(err, storage.ErrDuplicatePosting):
			return nil, nil, apperr.Wrap(apperr.KindConflict, err, "posting %s already applied", p.IdempotencyKey)
		case errors.Is(err, storage.ErrTransitionRejected):
			return nil, nil, apperr.Wrap(apperr.KindConflict, err, "transaction %s is no longer %s", p.Transition.TransactionID, p.Transition.From)
		case errors.Is(err, storage.ErrNotFound):
			return nil, nil, apperr.NotFound("wallet", order[0])
		}
		return nil, nil, apperr.Database(err, "failed to commit posting")
	}

	return &PostingResult{Wallets: wallets, Entries: entries}, before, nil
}

// apply mutates w in place for one leg.
func apply(w *models.WalletAccount, kind models.EntryType, amount int64) error {
	switch kind {
	case models.EntryCredit:
		if w.Balance > math.MaxInt64-amount {
			return apperr.Validation("credit would overflow wallet %s", w.Id)
		}
		w.Balance += amount
		w.AvailableBalance += amount
	case models.EntryDebit:
		if w.AvailableBalance < amount {
			return insufficient(w, amount, w.AvailableBalance)
		}
		w.Balance -= amount
		w.AvailableBalance -= amount
	case models.EntryFreeze:
		if w.AvailableBalance < amount {
			return insufficient(w, amount, w.AvailableBalance)
		}
		w.AvailableBalance -= amount
		w.FrozenBalance += amount
	case models.EntryUnfreeze:
		if w.FrozenBalance < amount {
			return insufficient(w, amount, w.FrozenBalance)
		}
		w.FrozenBalance -= amount
		w.AvailableBalance += amount
	}
	return nil
}

func insufficient(w *models.WalletAccount, required, available int64) error {
	return &apperr.InsufficientFundsError{
		WalletID:  w.Id,
		Currency:  w.Currency,
		Required:  money.FromMinor(required, w.Currency),
		Available: money.FromMinor(available, w.Currency),
	}
}
