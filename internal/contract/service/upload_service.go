package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/storage"
)

// CreateUploadInput submits a deliverable for client review.
type CreateUploadInput struct {
	ContractID       string
	Kind             contract.UploadKind
	Images           []string
	Description      string
	MilestoneIndex   *int
	RevisionTicketID string
	CancelTicketID   string
	WorkProgress     int
}

// CreateUpload submits a deliverable by the artist. At most one submitted
// upload may exist per review scope; violations fail fast. Milestone
// uploads require the targeted milestone to be in progress, revision
// uploads an actively revising ticket, and partial finals an accepted
// cancellation covering the claimed work progress.
func (s *Service) CreateUpload(ctx context.Context, actor Actor, in CreateUploadInput) (contract.Upload, error) {
	if err := s.blobs.Verify(ctx, in.Images); err != nil {
		return contract.Upload{}, fmt.Errorf("verify upload images: %w", err)
	}

	var upload contract.Upload
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		c, err := tx.Contracts.Get(ctx, in.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleArtist); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpSubmitUpload); err != nil {
			return err
		}

		now := s.clock().UTC()
		upload, err = contract.CreateUpload(contract.CreateUploadInput{
			ContractID:       c.ID,
			Kind:             in.Kind,
			Images:           in.Images,
			Description:      in.Description,
			MilestoneIndex:   in.MilestoneIndex,
			RevisionTicketID: in.RevisionTicketID,
			CancelTicketID:   in.CancelTicketID,
			WorkProgress:     in.WorkProgress,
		}, s.clock, s.idGenerator)
		if err != nil {
			return err
		}

		if _, err := tx.Uploads.GetSubmittedByScope(ctx, c.ID, upload.Scope()); err == nil {
			return apperrors.WithMetadata(
				apperrors.CodeUploadPendingExists,
				fmt.Sprintf("a submitted upload already awaits review in scope %s", upload.Scope()),
				map[string]string{"Scope": upload.Scope()},
			)
		} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return err
		}

		switch upload.Kind {
		case contract.UploadKindProgressMilestone:
			m, err := c.MilestoneAt(*upload.MilestoneIndex)
			if err != nil {
				return err
			}
			if m.Status != contract.MilestoneStatusInProgress {
				return apperrors.WithMetadata(
					apperrors.CodeMilestoneNotInProgress,
					fmt.Sprintf("milestone %d is not in progress", m.Index),
					map[string]string{"Index": fmt.Sprintf("%d", m.Index)},
				)
			}
			m.Status = contract.MilestoneStatusSubmitted
			submitted := now
			m.SubmittedAt = &submitted
			c.MilestoneUploadIDs = append(c.MilestoneUploadIDs, upload.ID)
		case contract.UploadKindRevision:
			ticket, err := tx.RevisionTickets.Get(ctx, upload.RevisionTicketID)
			if err != nil {
				return err
			}
			if ticket.ContractID != c.ID {
				return storage.ErrNotFound
			}
			if err := ticket.MarkDelivered(now); err != nil {
				return err
			}
			if err := tx.RevisionTickets.Put(ctx, ticket); err != nil {
				return err
			}
			c.RevisionUploadIDs = append(c.RevisionUploadIDs, upload.ID)
		case contract.UploadKindFinal:
			// Any cancel link is validated, full-progress deliveries
			// included: once a cancellation is agreed the artist cannot
			// claim more work than the agreed percentage.
			if upload.CancelTicketID != "" {
				ticket, err := tx.CancelTickets.Get(ctx, upload.CancelTicketID)
				if err != nil {
					return err
				}
				if ticket.ContractID != c.ID || ticket.Status != contract.CancelStatusAccepted {
					return apperrors.New(apperrors.CodeUploadCancelNotAuthorized,
						"partial final delivery requires an accepted cancellation")
				}
				if upload.WorkProgress > ticket.AgreedWorkPercentage {
					return apperrors.WithMetadata(
						apperrors.CodeUploadInvalidWorkProgress,
						fmt.Sprintf("work progress %d exceeds the agreed %d", upload.WorkProgress, ticket.AgreedWorkPercentage),
						map[string]string{"Agreed": fmt.Sprintf("%d", ticket.AgreedWorkPercentage)},
					)
				}
			}
			c.FinalUploadIDs = append(c.FinalUploadIDs, upload.ID)
		default:
			c.ProgressUploadIDs = append(c.ProgressUploadIDs, upload.ID)
		}

		if err := tx.Uploads.Put(ctx, upload); err != nil {
			return err
		}
		c.UpdatedAt = now
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.Upload{}, err
	}
	return upload, nil
}

// ReviewUploadInput answers a submitted upload.
type ReviewUploadInput struct {
	UploadID string
	Accept   bool
}

// ReviewUpload lets the client accept or reject a submitted delivery. The
// accept path fans out by upload kind and may drive the contract to a
// terminal status with settlement.
func (s *Service) ReviewUpload(ctx context.Context, actor Actor, in ReviewUploadInput) (contract.Upload, error) {
	var upload contract.Upload
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		var err error
		upload, err = tx.Uploads.Get(ctx, in.UploadID)
		if err != nil {
			return err
		}
		c, err := tx.Contracts.Get(ctx, upload.ContractID)
		if err != nil {
			return err
		}
		if err := requireRole(&c, actor, contract.RoleClient); err != nil {
			return err
		}
		if err := contract.ValidateOperation(c.Status, contract.OpReviewUpload); err != nil {
			return err
		}

		now := s.clock().UTC()
		if in.Accept {
			upload, err = s.acceptUpload(ctx, tx, &c, upload, false, now)
			return err
		}
		return s.rejectUpload(ctx, tx, &c, &upload, now)
	})
	if err != nil {
		return contract.Upload{}, err
	}
	return upload, nil
}

// acceptUpload is the single accept path shared by manual review, the
// auto-accept sweep, and staff force-accept. It re-checks the submitted
// status so late or repeated calls no-op cleanly.
func (s *Service) acceptUpload(ctx context.Context, tx storage.Stores, c *contract.Contract, upload contract.Upload, forced bool, now time.Time) (contract.Upload, error) {
	if upload.Status != contract.UploadStatusSubmitted {
		// Staff may force-accept a frozen disputed delivery; everything
		// else already left review and the call no-ops.
		if !forced || upload.Status != contract.UploadStatusDisputed {
			return upload, nil
		}
	}
	if forced {
		if err := upload.ForceAccept(now); err != nil {
			return upload, err
		}
	} else {
		if err := upload.Accept(now); err != nil {
			return upload, err
		}
	}
	if err := tx.Uploads.Put(ctx, upload); err != nil {
		return upload, err
	}

	switch upload.Kind {
	case contract.UploadKindProgressStandard:
		// Record only.
	case contract.UploadKindProgressMilestone:
		if err := c.AcceptMilestone(*upload.MilestoneIndex, now); err != nil {
			return upload, err
		}
	case contract.UploadKindRevision:
		if err := s.closeRevision(ctx, tx, c, upload.RevisionTicketID, now); err != nil {
			return upload, err
		}
	case contract.UploadKindFinal:
		if err := s.finalizeContract(ctx, tx, c, &upload, now); err != nil {
			return upload, err
		}
	}

	c.UpdatedAt = now
	if err := tx.Contracts.Put(ctx, *c); err != nil {
		return upload, err
	}
	return upload, nil
}

// rejectUpload declines a delivery, reopening whatever the upload gated.
func (s *Service) rejectUpload(ctx context.Context, tx storage.Stores, c *contract.Contract, upload *contract.Upload, now time.Time) error {
	if err := upload.Reject(now); err != nil {
		return err
	}
	if err := tx.Uploads.Put(ctx, *upload); err != nil {
		return err
	}

	switch upload.Kind {
	case contract.UploadKindProgressMilestone:
		if err := c.RejectMilestone(*upload.MilestoneIndex, now); err != nil {
			return err
		}
	case contract.UploadKindRevision:
		ticket, err := tx.RevisionTickets.Get(ctx, upload.RevisionTicketID)
		if err != nil {
			return err
		}
		if err := ticket.Reopen(now); err != nil {
			return err
		}
		if err := tx.RevisionTickets.Put(ctx, ticket); err != nil {
			return err
		}
	}

	c.UpdatedAt = now
	return tx.Contracts.Put(ctx, *c)
}

// closeRevision closes the ticket behind an accepted revision delivery and
// charges the relevant revision counter.
func (s *Service) closeRevision(ctx context.Context, tx storage.Stores, c *contract.Contract, ticketID string, now time.Time) error {
	ticket, err := tx.RevisionTickets.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := ticket.CloseSuccess(now); err != nil {
		return err
	}
	if err := tx.RevisionTickets.Put(ctx, ticket); err != nil {
		return err
	}
	if ticket.MilestoneIndex != nil {
		m, err := c.MilestoneAt(*ticket.MilestoneIndex)
		if err != nil {
			return err
		}
		m.RevisionsUsed++
		return nil
	}
	c.RevisionsUsed++
	return nil
}

// finalizeContract drives the terminal transition for an accepted final
// delivery: completion for full-progress uploads, a cancellation variant
// for uploads linked to an accepted cancel ticket. Settlement runs in the
// same transaction and the payout split is frozen onto the contract.
func (s *Service) finalizeContract(ctx context.Context, tx storage.Stores, c *contract.Contract, upload *contract.Upload, now time.Time) error {
	late := c.Late(now)

	if upload.CancelTicketID == "" {
		c.WorkPercentage = 100
		status := contract.StatusCompleted
		if late {
			status = contract.StatusCompletedLate
		}
		if err := c.Transition(status, "final delivery accepted", now); err != nil {
			return err
		}
		payout, err := s.settle(ctx, tx, c, now)
		if err != nil {
			return err
		}
		c.Completion = &contract.Completion{
			ArtistPayout: payout.Artist,
			ClientPayout: payout.Client,
			Late:         late,
			CompletedAt:  now,
		}
		return nil
	}

	ticket, err := tx.CancelTickets.Get(ctx, upload.CancelTicketID)
	if err != nil {
		return err
	}
	c.WorkPercentage = upload.WorkProgress

	var status contract.Status
	switch {
	case ticket.RequestedBy == contract.RoleClient && late:
		status = contract.StatusCancelledClientLate
	case ticket.RequestedBy == contract.RoleClient:
		status = contract.StatusCancelledClient
	case late:
		status = contract.StatusCancelledArtistLate
	default:
		status = contract.StatusCancelledArtist
	}
	if err := c.Transition(status, "cancellation delivery accepted", now); err != nil {
		return err
	}
	payout, err := s.settle(ctx, tx, c, now)
	if err != nil {
		return err
	}

	fee := c.Snapshot.CancellationFee.Amount(c.Finance.Total)
	if status == contract.StatusCancelledClientLate {
		fee = 0
	}
	var penalty int64
	if late {
		penalty = c.Finance.Total * int64(c.Snapshot.LatePenaltyPercent) / 100
	}
	c.CancelSummary = &contract.CancelSummary{
		RequestedBy:    ticket.RequestedBy,
		WorkPercentage: c.WorkPercentage,
		Fee:            fee,
		LatePenalty:    penalty,
		ArtistPayout:   payout.Artist,
		ClientPayout:   payout.Client,
		DecidedAt:      now,
	}

	if err := ticket.Resolve(now); err != nil {
		return err
	}
	return tx.CancelTickets.Put(ctx, ticket)
}

// ListUploads returns the upload history for one contract.
func (s *Service) ListUploads(ctx context.Context, actor Actor, contractID string) ([]contract.Upload, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.Uploads.ListByContract(ctx, contractID)
}
