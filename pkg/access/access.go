// Package access decides whether a role may perform an action on a resource.
package access

import (
	"context"
	"slices"

	"github.com/chris/wallet-ledger/pkg/apperr"
)

// Resources.
const (
	Wallet      = "wallet"
	Transaction = "transaction"
	Payout      = "payout"
)

// Actions.
const (
	Read     = "read"
	Create   = "create"
	Credit   = "credit"
	Debit    = "debit"
	Freeze   = "freeze"
	Unfreeze = "unfreeze"
	Status   = "status"
	Settle   = "settle"
	Reverse  = "reverse"
	Process  = "process"
	Retry    = "retry"
)

const wildcard = "*"

// Authorizer defines the interface for permission checks.
type Authorizer interface {
	// CheckPermission returns a FORBIDDEN error when role may not perform action
	// on resource.
	CheckPermission(ctx context.Context, role, action, resource string) error
}

// Policy maps a role to the actions it may perform per resource. "*" matches any
// resource or action.
type Policy map[string]map[string][]string

// DefaultPolicy is the built-in role policy.
var DefaultPolicy = Policy{
	"admin":  {wildcard: {wildcard}},
	"system": {wildcard: {wildcard}},
	"operator": {
		Wallet:      {Read, Create, Credit, Debit, Freeze, Unfreeze, Status},
		Transaction: {Read, Create, Settle, Status, Reverse},
		Payout:      {Read, Create, Process, Retry},
	},
	"user": {
		Wallet:      {Read, Create},
		Transaction: {Read, Create},
	},
	"auditor": {
		Wallet:      {Read},
		Transaction: {Read},
		Payout:      {Read},
	},
}

// StaticAuthorizer checks permissions against a fixed Policy.
type StaticAuthorizer struct {
	policy Policy
}

var _ Authorizer = (*StaticAuthorizer)(nil)

// NewStaticAuthorizer creates an authorizer for policy, or DefaultPolicy when nil.
func NewStaticAuthorizer(policy Policy) *StaticAuthorizer {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &StaticAuthorizer{policy: policy}
}

// CheckPermission implements Authorizer.
func (a *StaticAuthorizer) CheckPermission(_ context.Context, role, action, resource string) error {
	resources, ok := a.policy[role]
	if !ok {
		return apperr.Forbidden("role %q is not allowed to %s %s", role, action, resource)
	}
	for _, key := range []string{resource, wildcard} {
		actions := resources[key]
		if slices.Contains(actions, action) || slices.Contains(actions, wildcard) {
			return nil
		}
	}
	return apperr.Forbidden("role %q is not allowed to %s %s", role, action, resource)
}
