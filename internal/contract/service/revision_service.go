package service

import (
	"context"
	"fmt"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/storage"
)

// CreateRevisionTicketInput opens a rework request.
type CreateRevisionTicketInput struct {
	ContractID      string
	MilestoneIndex  *int
	Description     string
	ReferenceImages []string
}

// CreateRevisionTicket opens a revision request by the client. The contract
// revision policy gates creation: a policy of none rejects outright, and a
// hard cap (limited with no extra fee) rejects once the counter is spent.
func (s *Service) CreateRevisionTicket(ctx context.Context, actor Actor, in CreateRevisionTicketInput) (contract.RevisionTicket, error) {
	if err := s.blobs.Verify(ctx, in.ReferenceImages); err != nil {
		return contract.RevisionTicket{}, fmt.Errorf("verify reference images: %w", err)
	}

	var ticket contract.RevisionTicket
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
		if err := validateRevisionPolicy(&c, in.MilestoneIndex); err != nil {
			return err
		}
		exists, err := activeTicketExists(ctx, tx, c.ID, contract.TicketKindRevision)
		if err != nil {
			return err
		}
		if exists {
			return errConflictingTicket(contract.TicketKindRevision)
		}

		ticket, err = contract.CreateRevisionTicket(contract.CreateRevisionTicketInput{
			ContractID:      c.ID,
			MilestoneIndex:  in.MilestoneIndex,
			Description:     in.Description,
			ReferenceImages: in.ReferenceImages,
		}, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.RevisionTickets.Put(ctx, ticket); err != nil {
			return err
		}

		c.RevisionTicketIDs = append(c.RevisionTicketIDs, ticket.ID)
		c.UpdatedAt = s.clock().UTC()
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.RevisionTicket{}, err
	}
	return ticket, nil
}

// validateRevisionPolicy applies the frozen policy to a new request. For
// milestone-flow contracts the counter lives on the targeted milestone.
func validateRevisionPolicy(c *contract.Contract, milestoneIndex *int) error {
	policy := c.Snapshot.RevisionPolicy
	switch policy.Kind {
	case contract.RevisionPolicyNone:
		return apperrors.New(apperrors.CodeTicketRevisionPolicyNone, "this contract does not include revisions")
	case contract.RevisionPolicyUnlimited:
		return nil
	}

	used := c.RevisionsUsed
	if milestoneIndex != nil {
		m, err := c.MilestoneAt(*milestoneIndex)
		if err != nil {
			return err
		}
		used = m.RevisionsUsed
	}
	if used >= policy.Included && policy.ExtraFee == 0 {
		return apperrors.WithMetadata(
			apperrors.CodeTicketRevisionCapExhausted,
			fmt.Sprintf("all %d included revisions are used", policy.Included),
			map[string]string{"Included": fmt.Sprintf("%d", policy.Included)},
		)
	}
	return nil
}

// RevisionResponse is the artist's answer to a revision request.
type RevisionResponse int

const (
	// RevisionResponseUnspecified represents an invalid response.
	RevisionResponseUnspecified RevisionResponse = iota
	// RevisionAccept takes the work on, optionally for a fee.
	RevisionAccept
	// RevisionReject declines with a mandatory reason.
	RevisionReject
	// RevisionRejectOutOfScope declines as outside the commissioned scope.
	RevisionRejectOutOfScope
)

// RespondRevisionTicketInput answers a revision request.
type RespondRevisionTicketInput struct {
	TicketID string
	Response RevisionResponse
	// Fee above zero routes the ticket through payment before work starts.
	Fee          int64
	RejectReason string
}

// RespondRevisionTicket lets the artist accept or reject a revision
// request. Beyond the included free revisions the artist quotes the frozen
// extra fee; a mismatching quote is rejected.
func (s *Service) RespondRevisionTicket(ctx context.Context, actor Actor, in RespondRevisionTicketInput) (contract.RevisionTicket, error) {
	var ticket contract.RevisionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.RevisionTickets.Get(ctx, in.TicketID)
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
		case RevisionAccept:
			if in.Fee > 0 {
				if err := validateRevisionFee(&c, &ticket, in.Fee); err != nil {
					return err
				}
			}
			if err := ticket.Accept(in.Fee, now); err != nil {
				return err
			}
		case RevisionReject:
			if err := ticket.Reject(in.RejectReason, false, now); err != nil {
				return err
			}
		case RevisionRejectOutOfScope:
			if err := ticket.Reject(in.RejectReason, true, now); err != nil {
				return err
			}
		default:
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "revision response is required")
		}
		return tx.RevisionTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.RevisionTicket{}, err
	}
	return ticket, nil
}

// validateRevisionFee checks the quoted fee against the frozen policy: free
// while the included count lasts, exactly the extra fee afterwards.
func validateRevisionFee(c *contract.Contract, ticket *contract.RevisionTicket, fee int64) error {
	policy := c.Snapshot.RevisionPolicy
	used := c.RevisionsUsed
	if ticket.MilestoneIndex != nil {
		m, err := c.MilestoneAt(*ticket.MilestoneIndex)
		if err != nil {
			return err
		}
		used = m.RevisionsUsed
	}
	var want int64
	if policy.Kind == contract.RevisionPolicyLimited && used >= policy.Included {
		want = policy.ExtraFee
	}
	if fee != want {
		return apperrors.WithMetadata(
			apperrors.CodeTicketFeeMismatch,
			fmt.Sprintf("quoted fee %d does not match the contract policy fee %d", fee, want),
			map[string]string{"Want": fmt.Sprintf("%d", want)},
		)
	}
	return nil
}

// PayRevisionFee debits the client, moves the fee into escrow, and grows
// the contract total by the fee, all in one transaction. The ticket then
// moves to artist revising.
func (s *Service) PayRevisionFee(ctx context.Context, actor Actor, ticketID string) (contract.RevisionTicket, error) {
	var ticket contract.RevisionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.RevisionTickets.Get(ctx, ticketID)
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
		if ticket.Status != contract.RevisionStatusAwaitingPayment {
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
				fmt.Sprintf("revision ticket is %s, not awaiting payment", contract.RevisionStatusLabel(ticket.Status)))
		}

		now := s.clock().UTC()
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

		feeTx, err := ledger.NewTransaction(c.ID, ledger.TypeRevisionFee, ledger.PartyClient, ledger.PartyEscrow, ticket.Fee, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.Ledger.Append(ctx, feeTx); err != nil {
			return err
		}

		c.Finance = c.Finance.AddRuntimeFee(ticket.Fee)
		c.UpdatedAt = now
		if err := tx.Contracts.Put(ctx, c); err != nil {
			return err
		}

		if err := ticket.MarkPaid(now); err != nil {
			return err
		}
		return tx.RevisionTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.RevisionTicket{}, err
	}
	return ticket, nil
}

// ListRevisionTickets returns the revision ticket history for one contract.
func (s *Service) ListRevisionTickets(ctx context.Context, actor Actor, contractID string) ([]contract.RevisionTicket, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.RevisionTickets.ListByContract(ctx, contractID)
}
