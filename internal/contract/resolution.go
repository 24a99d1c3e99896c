package contract

import (
	"fmt"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// ResolutionStatus describes the dispute lifecycle.
type ResolutionStatus int

const (
	// ResolutionStatusUnspecified represents an invalid resolution status.
	ResolutionStatusUnspecified ResolutionStatus = iota
	// ResolutionStatusOpen is collecting proof and counterproof.
	ResolutionStatusOpen
	// ResolutionStatusUnderReview awaits the staff decision.
	ResolutionStatusUnderReview
	// ResolutionStatusResolved carries a binding decision.
	ResolutionStatusResolved
)

// ResolutionTargetKind names the entity a dispute is opened against.
type ResolutionTargetKind int

const (
	// ResolutionTargetUnspecified represents an invalid target kind.
	ResolutionTargetUnspecified ResolutionTargetKind = iota
	// ResolutionTargetCancelTicket disputes a cancellation request.
	ResolutionTargetCancelTicket
	// ResolutionTargetRevisionTicket disputes a revision outcome.
	ResolutionTargetRevisionTicket
	// ResolutionTargetFinalUpload disputes a final delivery review.
	ResolutionTargetFinalUpload
	// ResolutionTargetMilestoneUpload disputes a milestone delivery review.
	ResolutionTargetMilestoneUpload
)

// ResolutionDecision records which party a staff decision favors.
type ResolutionDecision int

const (
	// DecisionUnspecified represents an undecided dispute.
	DecisionUnspecified ResolutionDecision = iota
	// DecisionFavorClient rules for the client.
	DecisionFavorClient
	// DecisionFavorArtist rules for the artist.
	DecisionFavorArtist
)

// ResolutionAction is the settlement action attached to a decision.
type ResolutionAction int

const (
	// ActionUnspecified represents no recorded action.
	ActionUnspecified ResolutionAction = iota
	// ActionFullRefund refunds the full escrow balance to the client.
	ActionFullRefund
	// ActionPartialRefund splits escrow by the current work percentage.
	ActionPartialRefund
	// ActionReleaseFunds releases the disputed amount to the artist.
	ActionReleaseFunds
	// ActionNoAction leaves the target entity to its normal flow.
	ActionNoAction
)

// CounterproofWindow is how long the non-opening party has to answer.
const CounterproofWindow = 72 * time.Hour

// ResolutionTicket escalates a dispute over a specific entity to staff.
type ResolutionTicket struct {
	ID         string
	ContractID string

	OpenedBy   Role
	TargetKind ResolutionTargetKind
	TargetID   string

	ProofImages        []string
	Description        string
	CounterproofImages []string
	CounterproofBy     *time.Time

	Decision ResolutionDecision
	Action   ResolutionAction
	Note     string

	Status     ResolutionStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TicketID implements Ticket.
func (t *ResolutionTicket) TicketID() string { return t.ID }

// ContractRef implements Ticket.
func (t *ResolutionTicket) ContractRef() string { return t.ContractID }

// OpenForExclusivity implements Ticket.
func (t *ResolutionTicket) OpenForExclusivity() bool {
	return t.Status == ResolutionStatusOpen || t.Status == ResolutionStatusUnderReview
}

// CreateResolutionTicketInput describes a new dispute.
type CreateResolutionTicketInput struct {
	ContractID  string
	OpenedBy    Role
	TargetKind  ResolutionTargetKind
	TargetID    string
	ProofImages []string
	Description string
}

// CreateResolutionTicket opens a dispute with mandatory proof images and a
// fixed counterproof window for the other party.
func CreateResolutionTicket(input CreateResolutionTicketInput, now func() time.Time, idGenerator func() (string, error)) (ResolutionTicket, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if len(input.ProofImages) == 0 {
		return ResolutionTicket{}, apperrors.New(apperrors.CodeTicketProofRequired, "proof images are required")
	}
	if input.TargetKind == ResolutionTargetUnspecified || input.TargetID == "" {
		return ResolutionTicket{}, apperrors.New(apperrors.CodeTicketProofRequired, "dispute target is required")
	}

	ticketID, err := idGenerator()
	if err != nil {
		return ResolutionTicket{}, fmt.Errorf("generate ticket id: %w", err)
	}
	createdAt := now().UTC()
	windowEnd := createdAt.Add(CounterproofWindow)
	return ResolutionTicket{
		ID:             ticketID,
		ContractID:     input.ContractID,
		OpenedBy:       input.OpenedBy,
		TargetKind:     input.TargetKind,
		TargetID:       input.TargetID,
		ProofImages:    input.ProofImages,
		Description:    input.Description,
		CounterproofBy: &windowEnd,
		Status:         ResolutionStatusOpen,
		CreatedAt:      createdAt,
	}, nil
}

// SubmitCounterproof attaches the non-opening party's evidence. The window
// is fixed; late submissions are rejected.
func (t *ResolutionTicket) SubmitCounterproof(images []string, now time.Time) error {
	if t.Status != ResolutionStatusOpen {
		return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
			fmt.Sprintf("resolution ticket is %s, not open", ResolutionStatusLabel(t.Status)))
	}
	if t.CounterproofBy != nil && now.UTC().After(*t.CounterproofBy) {
		return apperrors.New(apperrors.CodeTicketCounterproofWindowClosed, "counterproof window has closed")
	}
	if len(images) == 0 {
		return apperrors.New(apperrors.CodeTicketProofRequired, "counterproof images are required")
	}
	t.CounterproofImages = append(t.CounterproofImages, images...)
	return nil
}

// BeginReview moves the dispute to staff evaluation once the window passed
// or both sides have submitted.
func (t *ResolutionTicket) BeginReview(now time.Time) error {
	if t.Status != ResolutionStatusOpen {
		return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
			fmt.Sprintf("resolution ticket is %s, not open", ResolutionStatusLabel(t.Status)))
	}
	t.Status = ResolutionStatusUnderReview
	return nil
}

// Resolve records the binding staff decision and action.
func (t *ResolutionTicket) Resolve(decision ResolutionDecision, action ResolutionAction, note string, now time.Time) error {
	if t.Status != ResolutionStatusOpen && t.Status != ResolutionStatusUnderReview {
		return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
			fmt.Sprintf("resolution ticket is already %s", ResolutionStatusLabel(t.Status)))
	}
	if decision == DecisionUnspecified || action == ActionUnspecified {
		return apperrors.New(apperrors.CodeTicketInvalidStatusTransition, "a decision and an action are required")
	}
	resolved := now.UTC()
	t.Decision = decision
	t.Action = action
	t.Note = note
	t.Status = ResolutionStatusResolved
	t.ResolvedAt = &resolved
	return nil
}

// ResolutionStatusLabel returns the canonical string form of a resolution status.
func ResolutionStatusLabel(s ResolutionStatus) string {
	switch s {
	case ResolutionStatusOpen:
		return "OPEN"
	case ResolutionStatusUnderReview:
		return "UNDER_REVIEW"
	case ResolutionStatusResolved:
		return "RESOLVED"
	default:
		return "UNSPECIFIED"
	}
}
