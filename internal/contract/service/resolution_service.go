package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/storage"
)

// OpenResolutionTicketInput escalates a dispute to staff.
type OpenResolutionTicketInput struct {
	ContractID  string
	TargetKind  contract.ResolutionTargetKind
	TargetID    string
	ProofImages []string
	Description string
}

// OpenResolutionTicket opens a dispute over a cancel ticket, revision
// ticket, or upload. The target is frozen under the dispute: submitted
// uploads stop auto-accepting and revision tickets leave their normal flow.
func (s *Service) OpenResolutionTicket(ctx context.Context, actor Actor, in OpenResolutionTicketInput) (contract.ResolutionTicket, error) {
	if err := s.blobs.Verify(ctx, in.ProofImages); err != nil {
		return contract.ResolutionTicket{}, fmt.Errorf("verify proof images: %w", err)
	}

	var ticket contract.ResolutionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		c, err := tx.Contracts.Get(ctx, in.ContractID)
		if err != nil {
			return err
		}
		role, err := requireParty(&c, actor)
		if err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpOpenTicket); err != nil {
			return err
		}
		exists, err := activeTicketExists(ctx, tx, c.ID, contract.TicketKindResolution)
		if err != nil {
			return err
		}
		if exists {
			return errConflictingTicket(contract.TicketKindResolution)
		}

		now := s.clock().UTC()
		if err := freezeDisputeTarget(ctx, tx, &c, in.TargetKind, in.TargetID, now); err != nil {
			return err
		}

		ticket, err = contract.CreateResolutionTicket(contract.CreateResolutionTicketInput{
			ContractID:  c.ID,
			OpenedBy:    role,
			TargetKind:  in.TargetKind,
			TargetID:    in.TargetID,
			ProofImages: in.ProofImages,
			Description: in.Description,
		}, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.ResolutionTickets.Put(ctx, ticket); err != nil {
			return err
		}

		c.ResolutionTicketIDs = append(c.ResolutionTicketIDs, ticket.ID)
		c.UpdatedAt = now
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.ResolutionTicket{}, err
	}
	return ticket, nil
}

// freezeDisputeTarget validates the target reference and moves it into its
// disputed state where one exists.
func freezeDisputeTarget(ctx context.Context, tx storage.Stores, c *contract.Contract, kind contract.ResolutionTargetKind, targetID string, now time.Time) error {
	switch kind {
	case contract.ResolutionTargetCancelTicket:
		target, err := tx.CancelTickets.Get(ctx, targetID)
		if err != nil {
			return err
		}
		if target.ContractID != c.ID {
			return storage.ErrNotFound
		}
		if target.Status != contract.CancelStatusEscalated {
			return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
				"cancel ticket must be escalated before it can be disputed")
		}
	case contract.ResolutionTargetRevisionTicket:
		target, err := tx.RevisionTickets.Get(ctx, targetID)
		if err != nil {
			return err
		}
		if target.ContractID != c.ID {
			return storage.ErrNotFound
		}
		if err := target.Dispute(now); err != nil {
			return err
		}
		return tx.RevisionTickets.Put(ctx, target)
	case contract.ResolutionTargetFinalUpload, contract.ResolutionTargetMilestoneUpload:
		target, err := tx.Uploads.Get(ctx, targetID)
		if err != nil {
			return err
		}
		if target.ContractID != c.ID {
			return storage.ErrNotFound
		}
		if err := target.MarkDisputed(now); err != nil {
			return err
		}
		return tx.Uploads.Put(ctx, target)
	default:
		return apperrors.New(apperrors.CodeTicketProofRequired, "dispute target is required")
	}
	return nil
}

// SubmitCounterproof attaches the non-opening party's evidence within the
// fixed counterproof window.
func (s *Service) SubmitCounterproof(ctx context.Context, actor Actor, ticketID string, images []string) (contract.ResolutionTicket, error) {
	if err := s.blobs.Verify(ctx, images); err != nil {
		return contract.ResolutionTicket{}, fmt.Errorf("verify counterproof images: %w", err)
	}

	var ticket contract.ResolutionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ResolutionTickets.Get(ctx, ticketID)
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
		if role == ticket.OpenedBy {
			return errForbidden("the opening party cannot submit counterproof")
		}
		if err := ticket.SubmitCounterproof(images, s.clock().UTC()); err != nil {
			return err
		}
		return tx.ResolutionTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ResolutionTicket{}, err
	}
	return ticket, nil
}

// BeginResolutionReview moves an open dispute to staff evaluation. From
// under_review on, counterproof submissions are rejected, so staff can
// evaluate a fixed evidence set.
func (s *Service) BeginResolutionReview(ctx context.Context, actor Actor, ticketID string) (contract.ResolutionTicket, error) {
	if !actor.Admin {
		return contract.ResolutionTicket{}, errForbidden("only staff may review disputes")
	}

	var ticket contract.ResolutionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ResolutionTickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := ticket.BeginReview(s.clock().UTC()); err != nil {
			return err
		}
		return tx.ResolutionTickets.Put(ctx, ticket)
	})
	if err != nil {
		return contract.ResolutionTicket{}, err
	}
	return ticket, nil
}

// ResolveResolutionTicketInput is the binding staff decision.
type ResolveResolutionTicketInput struct {
	TicketID string
	Decision contract.ResolutionDecision
	Action   contract.ResolutionAction
	Note     string
}

// ResolveResolutionTicket applies a staff decision. The monetary action
// runs through the same mutation paths as the normal flows: release_funds
// force-accepts the disputed upload, full_refund expires the contract with
// a full refund, partial_refund cancels at the current work percentage
// with the fee charged to the losing party, no_action only closes the
// dispute.
func (s *Service) ResolveResolutionTicket(ctx context.Context, actor Actor, in ResolveResolutionTicketInput) (contract.ResolutionTicket, error) {
	if !actor.Admin {
		return contract.ResolutionTicket{}, errForbidden("only staff may resolve disputes")
	}

	var ticket contract.ResolutionTicket
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		ticket, err = tx.ResolutionTickets.Get(ctx, in.TicketID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, ticket.ContractID)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		if ticket.Status == contract.ResolutionStatusOpen {
			if err := ticket.BeginReview(now); err != nil {
				return err
			}
		}
		if err := ticket.Resolve(in.Decision, in.Action, in.Note, now); err != nil {
			return err
		}
		if err := tx.ResolutionTickets.Put(ctx, ticket); err != nil {
			return err
		}
		if err := s.applyResolutionAction(ctx, tx, &c, &ticket, now); err != nil {
			return err
		}
		c.UpdatedAt = now
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.ResolutionTicket{}, err
	}
	return ticket, nil
}

// applyResolutionAction executes the monetary half of a staff decision.
func (s *Service) applyResolutionAction(ctx context.Context, tx storage.Stores, c *contract.Contract, ticket *contract.ResolutionTicket, now time.Time) error {
	if err := s.closeDisputeTarget(ctx, tx, c, ticket, now); err != nil {
		return err
	}

	switch ticket.Action {
	case contract.ActionNoAction:
		return nil
	case contract.ActionReleaseFunds:
		switch ticket.TargetKind {
		case contract.ResolutionTargetFinalUpload, contract.ResolutionTargetMilestoneUpload:
			upload, err := tx.Uploads.Get(ctx, ticket.TargetID)
			if err != nil {
				return err
			}
			_, err = s.acceptUpload(ctx, tx, c, upload, true, now)
			return err
		}
		// Releasing without a delivery target completes the contract as-is.
		if err := c.Transition(contract.StatusCompleted, "released by staff decision", now); err != nil {
			return err
		}
		c.WorkPercentage = 100
		_, err := s.settle(ctx, tx, c, now)
		return err
	case contract.ActionFullRefund:
		if err := c.Transition(contract.StatusNotCompleted, "fully refunded by staff decision", now); err != nil {
			return err
		}
		_, err := s.settle(ctx, tx, c, now)
		return err
	case contract.ActionPartialRefund:
		status := contract.StatusCancelledArtist
		if ticket.Decision == contract.DecisionFavorArtist {
			status = contract.StatusCancelledClient
		}
		if err := c.Transition(status, "partially refunded by staff decision", now); err != nil {
			return err
		}
		payout, err := s.settle(ctx, tx, c, now)
		if err != nil {
			return err
		}
		c.CancelSummary = &contract.CancelSummary{
			RequestedBy:    ticket.OpenedBy,
			WorkPercentage: c.WorkPercentage,
			Fee:            c.Snapshot.CancellationFee.Amount(c.Finance.Total),
			ArtistPayout:   payout.Artist,
			ClientPayout:   payout.Client,
			DecidedAt:      now,
		}
		return nil
	}
	return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "a resolution action is required")
}

// closeDisputeTarget settles the disputed entity's own state machine.
func (s *Service) closeDisputeTarget(ctx context.Context, tx storage.Stores, c *contract.Contract, ticket *contract.ResolutionTicket, now time.Time) error {
	switch ticket.TargetKind {
	case contract.ResolutionTargetCancelTicket:
		target, err := tx.CancelTickets.Get(ctx, ticket.TargetID)
		if err != nil {
			return err
		}
		if err := target.Resolve(now); err != nil {
			return err
		}
		return tx.CancelTickets.Put(ctx, target)
	case contract.ResolutionTargetRevisionTicket:
		target, err := tx.RevisionTickets.Get(ctx, ticket.TargetID)
		if err != nil {
			return err
		}
		if err := target.CloseByStaff(now); err != nil {
			return err
		}
		return tx.RevisionTickets.Put(ctx, target)
	case contract.ResolutionTargetFinalUpload, contract.ResolutionTargetMilestoneUpload:
		if ticket.Action == contract.ActionReleaseFunds {
			// The accept path below settles the upload itself.
			return nil
		}
		target, err := tx.Uploads.Get(ctx, ticket.TargetID)
		if err != nil {
			return err
		}
		if target.Status != contract.UploadStatusDisputed {
			return nil
		}
		// Reject through the shared path so the gated work reopens:
		// the milestone returns to in-progress, a revision ticket
		// reopens, and the artist can resubmit.
		return s.rejectUpload(ctx, tx, c, &target, now)
	}
	return nil
}

// ListResolutionTickets returns the dispute history for one contract.
func (s *Service) ListResolutionTickets(ctx context.Context, actor Actor, contractID string) ([]contract.ResolutionTicket, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.ResolutionTickets.ListByContract(ctx, contractID)
}
