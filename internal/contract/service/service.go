// Package service orchestrates the contract lifecycle: ticket flows, upload
// review, fee payment, settlement, and the time-driven sweeps. Every
// multi-entity mutation runs inside one storage.DB.InTx scope and re-reads
// entity status inside that scope before mutating.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
	"github.com/atelierhq/atelier/internal/storage"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Admin  bool
}

// BlobStore verifies that referenced image keys exist before they are
// attached to a ticket or upload. A failed verification fails the whole
// create.
type BlobStore interface {
	Verify(ctx context.Context, keys []string) error
}

type noopBlobStore struct{}

func (noopBlobStore) Verify(context.Context, []string) error { return nil }

// Service is the contract engine entry point.
type Service struct {
	db          storage.DB
	blobs       BlobStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Option overrides a Service dependency.
type Option func(*Service)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator injects a deterministic id source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.idGenerator = gen }
}

// WithBlobStore injects the image verification backend.
func WithBlobStore(blobs BlobStore) Option {
	return func(s *Service) { s.blobs = blobs }
}

// New creates a Service with default dependencies.
func New(db storage.DB, opts ...Option) *Service {
	s := &Service{
		db:          db,
		blobs:       noopBlobStore{},
		clock:       time.Now,
		idGenerator: id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errForbidden is the uniform rejection for callers outside the contract.
func errForbidden(msg string) error {
	return apperrors.New(apperrors.CodeForbidden, msg)
}

// requireParty resolves the actor's role on the contract. Admins pass with
// RoleAdmin; strangers are rejected.
func requireParty(c *contract.Contract, actor Actor) (contract.Role, error) {
	if actor.Admin {
		return contract.RoleAdmin, nil
	}
	role := c.RoleOf(actor.UserID)
	if role == contract.RoleUnspecified {
		return contract.RoleUnspecified, errForbidden("actor is not a party to this contract")
	}
	return role, nil
}

// requireRole restricts an operation to one contract role (admins pass).
func requireRole(c *contract.Contract, actor Actor, want contract.Role) error {
	if actor.Admin {
		return nil
	}
	if c.RoleOf(actor.UserID) != want {
		return errForbidden(fmt.Sprintf("operation requires the %s role", contract.RoleLabel(want)))
	}
	return nil
}

// activeTicketExists enforces the one-non-terminal-ticket-per-type rule for
// kind. It must be called inside the same transaction as the create.
func activeTicketExists(ctx context.Context, s storage.Stores, contractID string, kind contract.TicketKind) (bool, error) {
	switch kind {
	case contract.TicketKindCancel:
		tickets, err := s.CancelTickets.ListByContract(ctx, contractID)
		if err != nil {
			return false, err
		}
		for i := range tickets {
			if tickets[i].OpenForExclusivity() {
				return true, nil
			}
		}
	case contract.TicketKindRevision:
		tickets, err := s.RevisionTickets.ListByContract(ctx, contractID)
		if err != nil {
			return false, err
		}
		for i := range tickets {
			if tickets[i].OpenForExclusivity() {
				return true, nil
			}
		}
	case contract.TicketKindChange:
		tickets, err := s.ChangeTickets.ListByContract(ctx, contractID)
		if err != nil {
			return false, err
		}
		for i := range tickets {
			if tickets[i].OpenForExclusivity() {
				return true, nil
			}
		}
	case contract.TicketKindResolution:
		tickets, err := s.ResolutionTickets.ListByContract(ctx, contractID)
		if err != nil {
			return false, err
		}
		for i := range tickets {
			if tickets[i].OpenForExclusivity() {
				return true, nil
			}
		}
	}
	return false, nil
}

// errConflictingTicket is the fail-fast rejection for a violated ticket slot.
func errConflictingTicket(kind contract.TicketKind) error {
	return apperrors.WithMetadata(
		apperrors.CodeTicketConflictingActive,
		fmt.Sprintf("an active %s ticket already exists for this contract", contract.TicketKindLabel(kind)),
		map[string]string{"Kind": contract.TicketKindLabel(kind)},
	)
}
