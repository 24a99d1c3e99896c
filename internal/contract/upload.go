package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// UploadKind discriminates the four deliverable families.
type UploadKind int

const (
	// UploadKindUnspecified represents an invalid upload kind.
	UploadKindUnspecified UploadKind = iota
	// UploadKindProgressStandard is a work-in-progress update on a standard-flow contract.
	UploadKindProgressStandard
	// UploadKindProgressMilestone is the finishing delivery of one milestone.
	UploadKindProgressMilestone
	// UploadKindRevision answers an accepted revision ticket.
	UploadKindRevision
	// UploadKindFinal is the contract-terminating delivery.
	UploadKindFinal
)

// UploadStatus describes the review state of a deliverable.
type UploadStatus int

const (
	// UploadStatusUnspecified represents an invalid upload status.
	UploadStatusUnspecified UploadStatus = iota
	// UploadStatusSubmitted awaits client review.
	UploadStatusSubmitted
	// UploadStatusAccepted was approved by the client or the auto-accept sweep.
	UploadStatusAccepted
	// UploadStatusRejected was declined by the client.
	UploadStatusRejected
	// UploadStatusForcedAccepted was approved by a staff decision.
	UploadStatusForcedAccepted
	// UploadStatusDisputed is frozen under an open resolution ticket.
	UploadStatusDisputed
)

// ReviewWindow is how long a submitted upload waits before the external
// scheduler may accept it on the client's behalf.
const ReviewWindow = 24 * time.Hour

// uploadTransitions is the review transition table. Review happens once;
// every edge out of submitted is terminal except the dispute freeze.
var uploadTransitions = map[UploadStatus][]UploadStatus{
	UploadStatusSubmitted: {UploadStatusAccepted, UploadStatusRejected, UploadStatusForcedAccepted, UploadStatusDisputed},
	UploadStatusDisputed:  {UploadStatusAccepted, UploadStatusRejected, UploadStatusForcedAccepted},
}

// Upload is an immutable artifact record except for its status and
// resolution timestamp.
type Upload struct {
	ID         string
	ContractID string
	Kind       UploadKind

	Images      []string
	Description string

	// MilestoneIndex scopes milestone progress deliveries.
	MilestoneIndex *int
	// RevisionTicketID scopes revision deliveries.
	RevisionTicketID string
	// CancelTicketID links a partial final delivery to its accepted
	// cancellation.
	CancelTicketID string
	// WorkProgress is the claimed completion percentage of a final delivery.
	WorkProgress int

	Status     UploadStatus
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Scope returns the exclusivity key for the pending-review gate: at most one
// submitted upload may exist per (contract, scope).
func (u *Upload) Scope() string {
	switch u.Kind {
	case UploadKindProgressMilestone:
		if u.MilestoneIndex != nil {
			return fmt.Sprintf("milestone:%d", *u.MilestoneIndex)
		}
		return "milestone"
	case UploadKindRevision:
		return "revision:" + u.RevisionTicketID
	case UploadKindFinal:
		return "final"
	default:
		return "progress"
	}
}

// CreateUploadInput describes a new deliverable submission.
type CreateUploadInput struct {
	ContractID       string
	Kind             UploadKind
	Images           []string
	Description      string
	MilestoneIndex   *int
	RevisionTicketID string
	CancelTicketID   string
	WorkProgress     int
}

// CreateUpload creates a submitted upload with its auto-accept deadline.
func CreateUpload(input CreateUploadInput, now func() time.Time, idGenerator func() (string, error)) (Upload, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if len(input.Images) == 0 {
		return Upload{}, apperrors.New(apperrors.CodeUploadEmptyImages, "at least one image is required")
	}

	switch input.Kind {
	case UploadKindProgressStandard:
	case UploadKindProgressMilestone:
		if input.MilestoneIndex == nil {
			return Upload{}, apperrors.New(apperrors.CodeMilestoneOutOfRange, "milestone index is required")
		}
	case UploadKindRevision:
		if strings.TrimSpace(input.RevisionTicketID) == "" {
			return Upload{}, apperrors.New(apperrors.CodeNotFound, "revision ticket id is required")
		}
	case UploadKindFinal:
		if input.WorkProgress < 0 || input.WorkProgress > 100 {
			return Upload{}, apperrors.New(apperrors.CodeUploadInvalidWorkProgress, "work progress must be between 0 and 100")
		}
		if input.WorkProgress < 100 && strings.TrimSpace(input.CancelTicketID) == "" {
			return Upload{}, apperrors.New(apperrors.CodeUploadCancelNotAuthorized, "partial final delivery requires an accepted cancellation")
		}
	default:
		return Upload{}, apperrors.New(apperrors.CodeUploadInvalidStatusTransition, "upload kind is required")
	}

	uploadID, err := idGenerator()
	if err != nil {
		return Upload{}, fmt.Errorf("generate upload id: %w", err)
	}
	createdAt := now().UTC()
	return Upload{
		ID:               uploadID,
		ContractID:       input.ContractID,
		Kind:             input.Kind,
		Images:           input.Images,
		Description:      strings.TrimSpace(input.Description),
		MilestoneIndex:   input.MilestoneIndex,
		RevisionTicketID: strings.TrimSpace(input.RevisionTicketID),
		CancelTicketID:   strings.TrimSpace(input.CancelTicketID),
		WorkProgress:     input.WorkProgress,
		Status:           UploadStatusSubmitted,
		ExpiresAt:        createdAt.Add(ReviewWindow),
		CreatedAt:        createdAt,
	}, nil
}

// transition validates and applies one edge of the review table.
func (u *Upload) transition(to UploadStatus, now time.Time) error {
	for _, next := range uploadTransitions[u.Status] {
		if next == to {
			u.Status = to
			if to != UploadStatusDisputed {
				resolved := now.UTC()
				u.ResolvedAt = &resolved
			}
			return nil
		}
	}
	return apperrors.New(apperrors.CodeUploadInvalidStatusTransition,
		fmt.Sprintf("upload cannot move from %s", UploadStatusLabel(u.Status)))
}

// Accept approves the delivery. The auto-accept sweep calls the identical
// path; callers must re-check Status == submitted inside their transaction
// to keep the sweep idempotent.
func (u *Upload) Accept(now time.Time) error {
	return u.transition(UploadStatusAccepted, now)
}

// Reject declines the delivery.
func (u *Upload) Reject(now time.Time) error {
	return u.transition(UploadStatusRejected, now)
}

// ForceAccept approves the delivery by staff decision.
func (u *Upload) ForceAccept(now time.Time) error {
	return u.transition(UploadStatusForcedAccepted, now)
}

// MarkDisputed freezes the delivery under an open resolution ticket.
func (u *Upload) MarkDisputed(now time.Time) error {
	return u.transition(UploadStatusDisputed, now)
}

// AcceptedStatus reports whether the status counts as an approval.
func (s UploadStatus) AcceptedStatus() bool {
	return s == UploadStatusAccepted || s == UploadStatusForcedAccepted
}

// Expired reports whether the review window elapsed at the given time.
func (u *Upload) Expired(at time.Time) bool {
	return at.After(u.ExpiresAt)
}

// UploadKindLabel returns the canonical string form of an upload kind.
func UploadKindLabel(k UploadKind) string {
	switch k {
	case UploadKindProgressStandard:
		return "PROGRESS_STANDARD"
	case UploadKindProgressMilestone:
		return "PROGRESS_MILESTONE"
	case UploadKindRevision:
		return "REVISION"
	case UploadKindFinal:
		return "FINAL"
	default:
		return "UNSPECIFIED"
	}
}

// UploadStatusLabel returns the canonical string form of an upload status.
func UploadStatusLabel(s UploadStatus) string {
	switch s {
	case UploadStatusSubmitted:
		return "SUBMITTED"
	case UploadStatusAccepted:
		return "ACCEPTED"
	case UploadStatusRejected:
		return "REJECTED"
	case UploadStatusForcedAccepted:
		return "FORCED_ACCEPTED"
	case UploadStatusDisputed:
		return "DISPUTED"
	default:
		return "UNSPECIFIED"
	}
}
