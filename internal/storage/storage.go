// Package storage defines the persistence ports for the contract engine.
//
// Multi-entity mutations run through DB.InTx: the callback receives a Stores
// view bound to one atomic transaction, and services re-validate entity
// status inside that scope before mutating (check-then-act).
package storage

import (
	"context"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/wallet"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ContractStore persists contract aggregates (milestones included).
type ContractStore interface {
	Put(ctx context.Context, c contract.Contract) error
	Get(ctx context.Context, id string) (contract.Contract, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]contract.Contract, error)
	// ListGraceExpired returns active contracts whose grace window ended
	// before the given time.
	ListGraceExpired(ctx context.Context, before time.Time) ([]contract.Contract, error)
}

// CancelTicketStore persists cancellation tickets.
type CancelTicketStore interface {
	Put(ctx context.Context, t contract.CancelTicket) error
	Get(ctx context.Context, id string) (contract.CancelTicket, error)
	ListByContract(ctx context.Context, contractID string) ([]contract.CancelTicket, error)
}

// RevisionTicketStore persists revision tickets.
type RevisionTicketStore interface {
	Put(ctx context.Context, t contract.RevisionTicket) error
	Get(ctx context.Context, id string) (contract.RevisionTicket, error)
	ListByContract(ctx context.Context, contractID string) ([]contract.RevisionTicket, error)
}

// ChangeTicketStore persists change tickets.
type ChangeTicketStore interface {
	Put(ctx context.Context, t contract.ChangeTicket) error
	Get(ctx context.Context, id string) (contract.ChangeTicket, error)
	ListByContract(ctx context.Context, contractID string) ([]contract.ChangeTicket, error)
}

// ResolutionTicketStore persists resolution tickets.
type ResolutionTicketStore interface {
	Put(ctx context.Context, t contract.ResolutionTicket) error
	Get(ctx context.Context, id string) (contract.ResolutionTicket, error)
	ListByContract(ctx context.Context, contractID string) ([]contract.ResolutionTicket, error)
}

// UploadStore persists deliverable uploads.
type UploadStore interface {
	Put(ctx context.Context, u contract.Upload) error
	Get(ctx context.Context, id string) (contract.Upload, error)
	ListByContract(ctx context.Context, contractID string) ([]contract.Upload, error)
	// GetSubmittedByScope returns the single submitted upload for a
	// (contract, scope) pair, or ErrNotFound.
	GetSubmittedByScope(ctx context.Context, contractID, scope string) (contract.Upload, error)
	// ListExpired returns submitted uploads whose review window ended
	// before the given time.
	ListExpired(ctx context.Context, before time.Time) ([]contract.Upload, error)
}

// WalletStore persists per-user balances.
type WalletStore interface {
	Put(ctx context.Context, w wallet.Wallet) error
	Get(ctx context.Context, userID string) (wallet.Wallet, error)
}

// LedgerStore is the append-only escrow transaction log.
type LedgerStore interface {
	Append(ctx context.Context, tx ledger.Transaction) error
	ListByContract(ctx context.Context, contractID string) ([]ledger.Transaction, error)
}

// Stores bundles every port; a Stores value handed to an InTx callback is
// bound to that transaction.
type Stores struct {
	Contracts         ContractStore
	CancelTickets     CancelTicketStore
	RevisionTickets   RevisionTicketStore
	ChangeTickets     ChangeTicketStore
	ResolutionTickets ResolutionTicketStore
	Uploads           UploadStore
	Wallets           WalletStore
	Ledger            LedgerStore
}

// DB is the storage entry point.
type DB interface {
	// Stores returns auto-committing stores for single-entity reads.
	Stores() Stores
	// InTx runs fn inside one atomic transaction; any error rolls back
	// every mutation made through the transactional Stores.
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	Close() error
}
