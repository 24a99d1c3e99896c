package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/storage"
)

// CreateChangeTicketInput opens a contract terms change request.
type CreateChangeTicketInput struct {
	ContractID string
	Changes    contract.ChangeSet
	// Submit sends the request immediately instead of saving a draft.
	Submit bool
}

// CreateChangeTicket opens a change request by the client. The change set
// is validated against the frozen changeable-field allowlist.
func (s *Service) CreateChangeTicket(ctx context.Context, actor Actor, in CreateChangeTicketInput) (contract.ChangeTicket, error) {
	if in.Changes.ReferenceImages != nil {
		if err := s.blobs.Verify(ctx, in.Changes.ReferenceImages); err != nil {
			return contract.ChangeTicket{}, fmt.Errorf("verify reference images: %w", err)
		}
	}

	var ticket contract.ChangeTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		c, err := tx.Contracts.Get(ctx, in.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleClient); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpOpenTicket); err != nil {
			return err
		}
		exists, err := activeTicketExists(ctx, tx, c.ID, contract.TicketKindChange)
		if err != nil {
			return err
		}
		if exists {
			return errConflictingTicket(contract.TicketKindChange)
		}

		ticket, err = contract.CreateChangeTicket(c.Snapshot, contract.CreateChangeTicketInput{
			ContractID: c.ID,
			Changes:    in.Changes,
			Submit:     in.Submit,
		}, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.ChangeTickets.Put(ctx, ticket); err != nil {
			return err
		}

		c.ChangeTicketIDs = append(c.ChangeTicketIDs, ticket.ID)
		c.UpdatedAt = s.clock().UTC()
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.ChangeTicket{}, err
	}
	return ticket, nil
}

// SubmitChangeTicket sends a drafted change request to the artist.
func (s *Service) SubmitChangeTicket(ctx context.Context, actor Actor, ticketID string) (contract.ChangeTicket, error) {
	var ticket contract.ChangeTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ChangeTickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleClient); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpOpenTicket); err != nil {
			return err
		}
		if err := ticket.Submit(s.clock().UTC()); err != nil {
			return err
		}
		return tx.ChangeTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ChangeTicket{}, err
	}
	return ticket, nil
}

// ChangeResponse is the artist's answer to a pending change request.
type ChangeResponse int

const (
	// ChangeResponseUnspecified represents an invalid response.
	ChangeResponseUnspecified ChangeResponse = iota
	// ChangeAcceptFree applies the change immediately at no charge.
	ChangeAcceptFree
	// ChangeReject declines the request.
	ChangeReject
	// ChangeProposeFee forwards the request to the client with a price.
	ChangeProposeFee
)

// RespondChangeTicketInput answers a pending change request.
type RespondChangeTicketInput struct {
	TicketID string
	Response ChangeResponse
	Fee      int64
}

// RespondChangeTicket lets the artist accept a change for free (applied on
// the spot), reject it, or attach a fee for the client to decide on.
func (s *Service) RespondChangeTicket(ctx context.Context, actor Actor, in RespondChangeTicketInput) (contract.ChangeTicket, error) {
	var ticket contract.ChangeTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ChangeTickets.Get(ctx, in.TicketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleArtist); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpRespondTicket); err != nil {
			return err
		}

		now := s.clock().UTC()
		switch in.Response {
		case ChangeAcceptFree:
			if err := ticket.AcceptFree(now); err != nil {
				return err
			}
			if err := applyChange(&c, &ticket, now); err != nil {
				return err
			}
			if err := tx.Contracts.Put(ctx, c); err != nil {
				return err
			}
		case ChangeReject:
			if err := ticket.RejectByArtist(now); err != nil {
				return err
			}
		case ChangeProposeFee:
			if err := ticket.ProposeFee(in.Fee, now); err != nil {
				return err
			}
		default:
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "change response is required")
		}
		return tx.ChangeTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ChangeTicket{}, err
	}
	return ticket, nil
}

// ChangeDecision is the client's answer to an artist fee proposal.
type ChangeDecision int

const (
	// ChangeDecisionUnspecified represents an invalid decision.
	ChangeDecisionUnspecified ChangeDecision = iota
	// ChangePayAndApply pays the proposed fee and applies the change.
	ChangePayAndApply
	// ChangeDecline rejects the fee and closes the request.
	ChangeDecline
)

// DecideChangeTicketInput settles a fee-bearing change request.
type DecideChangeTicketInput struct {
	TicketID string
	Decision ChangeDecision
}

// DecideChangeTicket lets the client pay the proposed fee and apply the
// change, or decline. Payment, ledger append, fee accrual, and the terms
// application are one atomic unit.
func (s *Service) DecideChangeTicket(ctx context.Context, actor Actor, in DecideChangeTicketInput) (contract.ChangeTicket, error) {
	var ticket contract.ChangeTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ChangeTickets.Get(ctx, in.TicketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleClient); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpPayFee); err != nil {
			return err
		}

		now := s.clock().UTC()
		switch in.Decision {
		case ChangePayAndApply:
			if err := ticket.AcceptFee(now); err != nil {
				return err
			}
			w, err := tx.Wallets.Get(ctx, c.ClientID)
			if err != nil {
				return err
			}
			if err := w.MoveAvailableToEscrow(ticket.Fee, now); err != nil {
				return err
			}
			if err := tx.Wallets.Put(ctx, w); err != nil {
				return err
			}
			feeTx, err := ledger.NewTransaction(c.ID, ledger.TypeChangeFee, ledger.PartyClient, ledger.PartyEscrow, ticket.Fee, s.clock, s.idGenerator)
			if err != nil {
				return err
			}
			if err := tx.Ledger.Append(ctx, feeTx); err != nil {
				return err
			}
			c.Finance = c.Finance.AddRuntimeFee(ticket.Fee)
			if err := applyChange(&c, &ticket, now); err != nil {
				return err
			}
			if err := tx.Contracts.Put(ctx, c); err != nil {
				return err
			}
		case ChangeDecline:
			if err := ticket.RejectFee(now); err != nil {
				return err
			}
		default:
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "change decision is required")
		}
		return tx.ChangeTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ChangeTicket{}, err
	}
	return ticket, nil
}

// CancelChangeTicket withdraws a draft or pending change request.
func (s *Service) CancelChangeTicket(ctx context.Context, actor Actor, ticketID string) (contract.ChangeTicket, error) {
	var ticket contract.ChangeTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ChangeTickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleClient); err != nil {
			return err
		}
		if err := ticket.Cancel(s.clock().UTC()); err != nil {
			return err
		}
		return tx.ChangeTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ChangeTicket{}, err
	}
	return ticket, nil
}

// applyChange lands an accepted change set on the contract and marks the
// ticket applied.
func applyChange(c *contract.Contract, ticket *contract.ChangeTicket, now time.Time) error {
	if err := contract.ValidateOperation(c.Status, contract.OpApplyChange); err != nil {
		return err
	}
	c.ApplyChangeSet(ticket.Changes, now)
	return ticket.MarkApplied(now)
}

// ListChangeTickets returns the change ticket history for one contract.
func (s *Service) ListChangeTickets(ctx context.Context, actor Actor, contractID string) ([]contract.ChangeTicket, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.ChangeTickets.ListByContract(ctx, contractID)
}
