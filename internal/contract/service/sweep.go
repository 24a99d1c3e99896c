package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/storage"
)

// SweepResult reports what one sweep pass touched.
type SweepResult struct {
	Processed int
	Skipped   int
}

// SweepExpiredUploads auto-accepts every submitted upload whose review
// window has closed. Each upload is processed in its own transaction
// through the same accept path as a manual review, so a concurrent manual
// decision makes the sweep no-op for that upload.
func (s *Service) SweepExpiredUploads(ctx context.Context, now time.Time) (SweepResult, error) {
	expired, err := s.db.Stores().Uploads.ListExpired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expired uploads: %w", err)
	}

	var result SweepResult
	for _, candidate := range expired {
		err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
			upload, err := tx.Uploads.Get(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if upload.Status != contract.UploadStatusSubmitted || !upload.Expired(now) {
				result.Skipped++
				return nil
			}
			c, err := tx.Contracts.Get(ctx, upload.ContractID)
			if err != nil {
				return err
			}
			if _, err := s.acceptUpload(ctx, tx, &c, upload, false, now.UTC()); err != nil {
				return err
			}
			result.Processed++
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("auto-accept upload %s: %w", candidate.ID, err)
		}
	}
	return result, nil
}

// SweepExpiredContracts expires active contracts whose grace window has
// passed with no accepted cancellation and no final delivery under review.
// Expiry is notCompleted with a full refund.
func (s *Service) SweepExpiredContracts(ctx context.Context, now time.Time) (SweepResult, error) {
	candidates, err := s.db.Stores().Contracts.ListGraceExpired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list grace-expired contracts: %w", err)
	}

	var result SweepResult
	for _, candidate := range candidates {
		err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
			c, err := tx.Contracts.Get(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if c.Status != contract.StatusActive || c.GraceEndsAt.After(now) {
				result.Skipped++
				return nil
			}

			hold, err := contractOnHold(ctx, tx, &c)
			if err != nil {
				return err
			}
			if hold {
				result.Skipped++
				return nil
			}

			at := now.UTC()
			if err := c.Transition(contract.StatusNotCompleted, "grace window expired", at); err != nil {
				return err
			}
			if _, err := s.settle(ctx, tx, &c, at); err != nil {
				return err
			}
			c.UpdatedAt = at
			if err := tx.Contracts.Put(ctx, c); err != nil {
				return err
			}
			result.Processed++
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("expire contract %s: %w", candidate.ID, err)
		}
	}
	return result, nil
}

// contractOnHold reports whether an accepted cancellation or a pending
// final delivery should keep the expiry sweep away from this contract.
func contractOnHold(ctx context.Context, tx storage.Stores, c *contract.Contract) (bool, error) {
	cancels, err := tx.CancelTickets.ListByContract(ctx, c.ID)
	if err != nil {
		return false, err
	}
	for i := range cancels {
		if cancels[i].Status == contract.CancelStatusAccepted || cancels[i].Status == contract.CancelStatusEscalated {
			return true, nil
		}
	}

	uploads, err := tx.Uploads.ListByContract(ctx, c.ID)
	if err != nil {
		return false, err
	}
	for i := range uploads {
		if uploads[i].Kind != contract.UploadKindFinal {
			continue
		}
		if uploads[i].Status == contract.UploadStatusSubmitted || uploads[i].Status == contract.UploadStatusDisputed {
			return true, nil
		}
	}
	return false, nil
}
