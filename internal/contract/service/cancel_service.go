package service

import (
	"context"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/storage"
)

// CreateCancelTicketInput opens a cancellation negotiation.
type CreateCancelTicketInput struct {
	ContractID string
	Reason     string
}

// CreateCancelTicket opens a pending cancellation request by either party.
// The cancel slot is exclusive: one non-terminal cancel ticket per contract.
func (s *Service) CreateCancelTicket(ctx context.Context, actor Actor, in CreateCancelTicketInput) (contract.CancelTicket, error) {
	var ticket contract.CancelTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		c, err := tx.Contracts.Get(ctx, in.ContractID)
		if err != nil {
			return err
		}
		role, err := requireParty(&c, actor)
		if err != nil {
			return err
		}
		if role == contract.RoleAdmin {
			return errForbidden("staff cannot request cancellation on behalf of a party")
		}
		if err := contract.ValidateOperation(c.Status, contract.OpOpenTicket); err != nil {
			return err
		}
		exists, err := activeTicketExists(ctx, tx, c.ID, contract.TicketKindCancel)
		if err != nil {
			return err
		}
		if exists {
			return errConflictingTicket(contract.TicketKindCancel)
		}

		ticket, err = contract.CreateCancelTicket(contract.CreateCancelTicketInput{
			ContractID:  c.ID,
			RequestedBy: role,
			Reason:      in.Reason,
		}, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.CancelTickets.Put(ctx, ticket); err != nil {
			return err
		}

		c.CancelTicketIDs = append(c.CancelTicketIDs, ticket.ID)
		c.UpdatedAt = s.clock().UTC()
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.CancelTicket{}, err
	}
	return ticket, nil
}

// CancelResponse is the counterparty's answer to a pending cancel ticket.
type CancelResponse int

const (
	// CancelResponseUnspecified represents an invalid response.
	CancelResponseUnspecified CancelResponse = iota
	// CancelAccept agrees to cancel at the given work percentage.
	CancelAccept
	// CancelReject declines the request.
	CancelReject
	// CancelEscalate hands the request to dispute resolution.
	CancelEscalate
)

// RespondCancelTicketInput answers a pending cancel ticket.
type RespondCancelTicketInput struct {
	TicketID string
	Response CancelResponse
	// AgreedWorkPercentage authorizes a partial final delivery on accept.
	AgreedWorkPercentage int
}

// RespondCancelTicket lets the counterparty (or staff) accept, reject, or
// escalate a pending cancellation. Acceptance does not finish the contract;
// it authorizes a final upload with workProgress below 100, and the review
// of that upload drives the terminal transition.
func (s *Service) RespondCancelTicket(ctx context.Context, actor Actor, in RespondCancelTicketInput) (contract.CancelTicket, error) {
	var ticket contract.CancelTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.CancelTickets.Get(ctx, in.TicketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}
		role, err := requireParty(&c, actor)
		if err != nil {
			return err
		}
		if role != contract.RoleAdmin && role == ticket.RequestedBy {
			return errForbidden("the requesting party cannot answer its own cancellation")
		}
		if err := contract.ValidateOperation(c.Status, contract.OpRespondTicket); err != nil {
			return err
		}

		now := s.clock().UTC()
		switch in.Response {
		case CancelAccept:
			if err := ticket.Accept(in.AgreedWorkPercentage, now); err != nil {
				return err
			}
		case CancelReject:
			if err := ticket.Reject(now); err != nil {
				return err
			}
		case CancelEscalate:
			if err := ticket.Escalate(now); err != nil {
				return err
			}
		default:
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "cancel response is required")
		}
		return tx.CancelTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.CancelTicket{}, err
	}
	return ticket, nil
}

// ListCancelTickets returns the cancel ticket history for one contract.
func (s *Service) ListCancelTickets(ctx context.Context, actor Actor, contractID string) ([]contract.CancelTicket, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.CancelTickets.ListByContract(ctx, contractID)
}
