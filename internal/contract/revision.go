package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// RevisionTicketStatus describes the revision negotiation state.
type RevisionTicketStatus int

const (
	// RevisionStatusUnspecified represents an invalid revision ticket status.
	RevisionStatusUnspecified RevisionTicketStatus = iota
	// RevisionStatusAwaitingArtist awaits the artist response.
	RevisionStatusAwaitingArtist
	// RevisionStatusArtistRevising indicates the artist accepted and is reworking.
	RevisionStatusArtistRevising
	// RevisionStatusClientReview indicates a revision delivery awaits review.
	RevisionStatusClientReview
	// RevisionStatusAwaitingPayment awaits the client fee payment.
	RevisionStatusAwaitingPayment
	// RevisionStatusClosedSuccess closed with the revision delivery accepted.
	RevisionStatusClosedSuccess
	// RevisionStatusClosedRejected closed by artist rejection.
	RevisionStatusClosedRejected
	// RevisionStatusClosedOutOfScope closed as out of the contract's scope.
	RevisionStatusClosedOutOfScope
	// RevisionStatusClosedCancelled closed by the requesting client.
	RevisionStatusClosedCancelled
	// RevisionStatusDisputed handed to a resolution ticket.
	RevisionStatusDisputed
	// RevisionStatusClosedByStaff closed by a staff decision.
	RevisionStatusClosedByStaff
)

// revisionTransitions is the revision ticket transition table.
var revisionTransitions = map[RevisionTicketStatus][]RevisionTicketStatus{
	RevisionStatusAwaitingArtist: {
		RevisionStatusArtistRevising,
		RevisionStatusAwaitingPayment,
		RevisionStatusClosedRejected,
		RevisionStatusClosedOutOfScope,
		RevisionStatusClosedCancelled,
		RevisionStatusDisputed,
	},
	RevisionStatusAwaitingPayment: {
		RevisionStatusArtistRevising,
		RevisionStatusClosedCancelled,
	},
	RevisionStatusArtistRevising: {
		RevisionStatusClientReview,
		RevisionStatusDisputed,
	},
	RevisionStatusClientReview: {
		RevisionStatusClosedSuccess,
		RevisionStatusArtistRevising,
		RevisionStatusDisputed,
	},
	RevisionStatusDisputed: {
		RevisionStatusClosedByStaff,
		RevisionStatusClosedSuccess,
		RevisionStatusClosedRejected,
	},
}

// RevisionTicket is a client request for rework of a delivery.
type RevisionTicket struct {
	ID         string
	ContractID string

	// MilestoneIndex scopes the revision for milestone-flow contracts.
	MilestoneIndex  *int
	Description     string
	ReferenceImages []string

	// Fee is the amount resolved by the artist response; zero means free.
	Fee    int64
	PaidAt *time.Time

	// RejectReason is required when the artist rejects.
	RejectReason string

	Status     RevisionTicketStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TicketID implements Ticket.
func (t *RevisionTicket) TicketID() string { return t.ID }

// ContractRef implements Ticket.
func (t *RevisionTicket) ContractRef() string { return t.ContractID }

// OpenForExclusivity implements Ticket.
func (t *RevisionTicket) OpenForExclusivity() bool {
	switch t.Status {
	case RevisionStatusAwaitingArtist, RevisionStatusArtistRevising,
		RevisionStatusClientReview, RevisionStatusAwaitingPayment,
		RevisionStatusDisputed:
		return true
	}
	return false
}

// CreateRevisionTicketInput describes a new revision request.
type CreateRevisionTicketInput struct {
	ContractID      string
	MilestoneIndex  *int
	Description     string
	ReferenceImages []string
}

// CreateRevisionTicket creates a revision request awaiting the artist.
func CreateRevisionTicket(input CreateRevisionTicketInput, now func() time.Time, idGenerator func() (string, error)) (RevisionTicket, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if strings.TrimSpace(input.Description) == "" {
		return RevisionTicket{}, apperrors.New(apperrors.CodeTicketEmptyReason, "revision description is required")
	}

	ticketID, err := idGenerator()
	if err != nil {
		return RevisionTicket{}, fmt.Errorf("generate ticket id: %w", err)
	}
	return RevisionTicket{
		ID:              ticketID,
		ContractID:      input.ContractID,
		MilestoneIndex:  input.MilestoneIndex,
		Description:     strings.TrimSpace(input.Description),
		ReferenceImages: input.ReferenceImages,
		Status:          RevisionStatusAwaitingArtist,
		CreatedAt:       now().UTC(),
	}, nil
}

// transition validates and applies one edge of the revision table.
func (t *RevisionTicket) transition(to RevisionTicketStatus, now time.Time) error {
	for _, next := range revisionTransitions[t.Status] {
		if next == to {
			t.Status = to
			switch to {
			case RevisionStatusClosedSuccess, RevisionStatusClosedRejected,
				RevisionStatusClosedOutOfScope, RevisionStatusClosedCancelled,
				RevisionStatusClosedByStaff:
				resolved := now.UTC()
				t.ResolvedAt = &resolved
			}
			return nil
		}
	}
	return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
		fmt.Sprintf("revision ticket cannot move from %s", RevisionStatusLabel(t.Status)))
}

// Accept records the artist acceptance. A positive fee routes the ticket
// through payment first.
func (t *RevisionTicket) Accept(fee int64, now time.Time) error {
	if fee < 0 {
		return apperrors.New(apperrors.CodeWalletInvalidAmount, "revision fee cannot be negative")
	}
	t.Fee = fee
	if fee > 0 {
		return t.transition(RevisionStatusAwaitingPayment, now)
	}
	return t.transition(RevisionStatusArtistRevising, now)
}

// Reject closes the request; a reason is mandatory.
func (t *RevisionTicket) Reject(reason string, outOfScope bool, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return apperrors.New(apperrors.CodeTicketEmptyReason, "rejection reason is required")
	}
	t.RejectReason = strings.TrimSpace(reason)
	if outOfScope {
		return t.transition(RevisionStatusClosedOutOfScope, now)
	}
	return t.transition(RevisionStatusClosedRejected, now)
}

// MarkPaid moves the ticket out of awaiting payment.
func (t *RevisionTicket) MarkPaid(now time.Time) error {
	if err := t.transition(RevisionStatusArtistRevising, now); err != nil {
		return err
	}
	paid := now.UTC()
	t.PaidAt = &paid
	return nil
}

// MarkDelivered records a submitted revision delivery.
func (t *RevisionTicket) MarkDelivered(now time.Time) error {
	return t.transition(RevisionStatusClientReview, now)
}

// CloseSuccess closes the ticket after the revision delivery was accepted.
func (t *RevisionTicket) CloseSuccess(now time.Time) error {
	return t.transition(RevisionStatusClosedSuccess, now)
}

// Reopen sends the ticket back to the artist after a rejected delivery.
func (t *RevisionTicket) Reopen(now time.Time) error {
	return t.transition(RevisionStatusArtistRevising, now)
}

// Cancel closes the ticket at the requesting client's initiative.
func (t *RevisionTicket) Cancel(now time.Time) error {
	return t.transition(RevisionStatusClosedCancelled, now)
}

// Dispute hands the ticket to a resolution ticket.
func (t *RevisionTicket) Dispute(now time.Time) error {
	return t.transition(RevisionStatusDisputed, now)
}

// CloseByStaff applies a staff decision to a disputed ticket.
func (t *RevisionTicket) CloseByStaff(now time.Time) error {
	return t.transition(RevisionStatusClosedByStaff, now)
}

// RevisionStatusLabel returns the canonical string form of a revision ticket status.
func RevisionStatusLabel(s RevisionTicketStatus) string {
	switch s {
	case RevisionStatusAwaitingArtist:
		return "AWAITING_ARTIST"
	case RevisionStatusArtistRevising:
		return "ARTIST_REVISING"
	case RevisionStatusClientReview:
		return "CLIENT_REVIEW"
	case RevisionStatusAwaitingPayment:
		return "AWAITING_PAYMENT"
	case RevisionStatusClosedSuccess:
		return "CLOSED_SUCCESS"
	case RevisionStatusClosedRejected:
		return "CLOSED_REJECTED"
	case RevisionStatusClosedOutOfScope:
		return "CLOSED_OUT_OF_SCOPE"
	case RevisionStatusClosedCancelled:
		return "CLOSED_CANCELLED"
	case RevisionStatusDisputed:
		return "DISPUTED"
	case RevisionStatusClosedByStaff:
		return "CLOSED_BY_STAFF"
	default:
		return "UNSPECIFIED"
	}
}
