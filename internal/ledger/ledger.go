// Package ledger is the escrow/ledger engine. Every operation runs as a
// single database transaction that moves balances, appends to the
// transactions log, and records an audit event, so the books stay consistent
// under concurrent requests.
package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"infrabondx/internal/store"
)

var (
	ErrProjectNotActive   = errors.New("project is not active")
	ErrAmountTooLow       = errors.New("amount buys zero tokens")
	ErrInsufficientTokens = errors.New("not enough tokens")
	ErrListingUnavailable = errors.New("listing not available")
	ErrOwnListing         = errors.New("cannot buy your own listing")
	ErrNotListingOwner    = errors.New("listing belongs to another seller")
	ErrInvalidListing     = errors.New("listing quantity and price must be positive")
	ErrProofRequired      = errors.New("proof url required")
	ErrNotProjectIssuer   = errors.New("project belongs to another issuer")
	ErrMissingFields      = errors.New("title, location and description are required")
	ErrInvalidTerms       = errors.New("funding target and token price must be positive")
)

type Ledger struct {
	store *store.Store
	log   *zap.Logger
}

func New(st *store.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: st, log: log}
}

// InTx runs fn with a ledger and store bound to one database transaction, so
// an idempotency check, the operation it guards and the recorded response
// commit or roll back together.
func (l *Ledger) InTx(ctx context.Context, fn func(lg *Ledger, st *store.Store) error) error {
	return l.store.InTx(ctx, func(st *store.Store) error {
		return fn(&Ledger{store: st, log: l.log}, st)
	})
}

// ensureEscrow returns the project's escrow account, creating an empty one if
// the project predates escrow bookkeeping.
func ensureEscrow(ctx context.Context, tx *store.Store, projectID string) (store.EscrowAccount, error) {
	acct, err := tx.GetEscrowAccount(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		acct = store.EscrowAccount{ProjectID: projectID}
		if err := tx.CreateEscrowAccount(ctx, acct); err != nil {
			return store.EscrowAccount{}, err
		}
		return acct, nil
	}
	return acct, err
}
