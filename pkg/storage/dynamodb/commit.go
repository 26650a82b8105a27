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
	"github.com/chris/wallet-ledger/pkg/storage"
)

// itemKind records what each TransactItems slot holds, so cancellation reasons
// (reported by index) can be mapped back to a storage error.
type itemKind int

const (
	itemWallet itemKind = iota
	itemEntry
	itemTransition
	itemIdempotency
)

// idempotencyRecord marks a posting key as used.
type idempotencyRecord struct {
	Key       string    `dynamodbav:"key"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// Commit applies the wallet writes, the ledger entries, the transaction transition
// and the idempotency marker in a single TransactWriteItems call.
func (s *Store) Commit(ctx context.Context, c *storage.Commit) error {
	var items []types.TransactWriteItem
	var kinds []itemKind

	// 1. Wallets: full replace, conditional on the version that was read.
	for _, ww := range c.Wallets {
		walletAV, err := attributevalue.MarshalMap(ww.Wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet %s: %w", ww.Wallet.Id, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Wallets),
				Item:                walletAV,
				ConditionExpression: aws.String("version = :version"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(ww.ExpectedVersion, 10)},
				},
			},
		})
		kinds = append(kinds, itemWallet)
	}

	// 2. Ledger entries: append-only.
	for _, e := range c.Entries {
		entryAV, err := attributevalue.MarshalMap(e)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger entry: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Ledger),
				Item:                entryAV,
				ConditionExpression: aws.String("attribute_not_exists(wallet_id)"),
			},
		})
		kinds = append(kinds, itemEntry)
	}

	// 3. Transaction status.
	if t := c.Transition; t != nil {
		update, err := s.transitionUpdate(t)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Update: update})
		kinds = append(kinds, itemTransition)
	}

	// 4. Idempotency marker.
	if c.IdempotencyKey != "" {
		recordAV, err := attributevalue.MarshalMap(idempotencyRecord{Key: c.IdempotencyKey, CreatedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("failed to marshal idempotency record: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Idempotency),
				Item:                recordAV,
				ConditionExpression: aws.String("attribute_not_exists(#key)"),
				ExpressionAttributeNames: map[string]string{
					"#key": "key",
				},
			},
		})
		kinds = append(kinds, itemIdempotency)
	}

	if len(items) == 0 {
		return nil
	}

	_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if mapped := cancellationError(tce, kinds); mapped != nil {
				return mapped
			}
		}
		return fmt.Errorf("failed to execute commit transaction: %w", err)
	}
	return nil
}

func (s *Store) transitionUpdate(t *storage.TransactionTransition) (*types.Update, error) {
	nowAV, err := attributevalue.Marshal(t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp for status update: %w", err)
	}

	expr := "SET #status = :to_status, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to_status":   &types.AttributeValueMemberS{Value: string(t.To)},
		":from_status": &types.AttributeValueMemberS{Value: string(t.From)},
		":now":         nowAV,
	}
	if t.Fee != nil {
		expr += ", fee = :fee"
		values[":fee"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*t.Fee, 10)}
	}
	if t.CreditedAmount != nil {
		expr += ", credited_amount = :credited"
		values[":credited"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*t.CreditedAmount, 10)}
	}
	if t.CreditedCurrency != "" {
		expr += ", credited_currency = :credited_currency"
		values[":credited_currency"] = &types.AttributeValueMemberS{Value: t.CreditedCurrency}
	}

	return &types.Update{
		TableName:           aws.String(s.Tables.Transactions),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: t.TransactionID}},
		UpdateExpression:    aws.String(expr),
		ConditionExpression: aws.String("#status = :from_status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	}, nil
}

// cancellationError maps the per-item cancellation reasons to a storage sentinel.
// A used idempotency key wins over everything else because it means the posting
// already landed.
func cancellationError(tce *types.TransactionCanceledException, kinds []itemKind) error {
	var duplicate, rejected, conflict bool
	for i, reason := range tce.CancellationReasons {
		code := aws.ToString(reason.Code)
		switch code {
		case "ConditionalCheckFailed":
			if i >= len(kinds) {
				conflict = true
				continue
			}
			switch kinds[i] {
			case itemIdempotency:
				duplicate = true
			case itemTransition:
				rejected = true
			default:
				conflict = true
			}
		case "TransactionConflict":
			conflict = true
		}
	}

	switch {
	case duplicate:
		return storage.ErrDuplicatePosting
	case rejected:
		return storage.ErrTransitionRejected
	case conflict:
		return storage.ErrVersionConflict
	}
	return nil
}

// anyConditionFailed reports whether any item failed its condition.
func anyConditionFailed(tce *types.TransactionCanceledException) bool {
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
