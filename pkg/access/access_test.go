package access

import (
	"context"
	"testing"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/stretchr/testify/assert"
)

func TestCheckPermission(t *testing.T) {
	ctx := context.Background()
	a := NewStaticAuthorizer(nil)

	t.Run("Allowed", func(t *testing.T) {
		assert.NoError(t, a.CheckPermission(ctx, "admin", Reverse, Transaction))
		assert.NoError(t, a.CheckPermission(ctx, "operator", Process, Payout))
		assert.NoError(t, a.CheckPermission(ctx, "user", Create, Transaction))
	})

	t.Run("Denied", func(t *testing.T) {
		err := a.CheckPermission(ctx, "user", Debit, Wallet)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
		assert.True(t, apperr.Is(a.CheckPermission(ctx, "auditor", Settle, Transaction), apperr.KindForbidden))
		assert.True(t, apperr.Is(a.CheckPermission(ctx, "guest", Read, Wallet), apperr.KindForbidden))
	})

	t.Run("Custom Policy", func(t *testing.T) {
		custom := NewStaticAuthorizer(Policy{"treasury": {Payout: {wildcard}}})
		assert.NoError(t, custom.CheckPermission(ctx, "treasury", Retry, Payout))
		assert.Error(t, custom.CheckPermission(ctx, "treasury", Read, Wallet))
	})
}
