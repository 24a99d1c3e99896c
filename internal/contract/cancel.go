package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// CancelTicketStatus describes the cancellation negotiation state.
type CancelTicketStatus int

const (
	// CancelStatusUnspecified represents an invalid cancel ticket status.
	CancelStatusUnspecified CancelTicketStatus = iota
	// CancelStatusPending awaits the counterparty response.
	CancelStatusPending
	// CancelStatusAccepted authorizes a partial final delivery.
	CancelStatusAccepted
	// CancelStatusRejected closed the request without effect.
	CancelStatusRejected
	// CancelStatusEscalated handed the request to a resolution ticket.
	CancelStatusEscalated
	// CancelStatusResolved finished the cancellation (final delivery accepted
	// or a staff decision applied).
	CancelStatusResolved
)

// cancelTransitions is the cancel ticket transition table.
var cancelTransitions = map[CancelTicketStatus][]CancelTicketStatus{
	CancelStatusPending:   {CancelStatusAccepted, CancelStatusRejected, CancelStatusEscalated},
	CancelStatusAccepted:  {CancelStatusResolved},
	CancelStatusEscalated: {CancelStatusAccepted, CancelStatusRejected, CancelStatusResolved},
}

// CancelTicket is a request by either party to terminate the contract early.
// Acceptance does not itself terminate the contract: it authorizes the artist
// to submit a final delivery with work progress below 100, whose acceptance
// finalizes the cancellation.
type CancelTicket struct {
	ID         string
	ContractID string

	RequestedBy Role
	Reason      string

	// AgreedWorkPercentage is set by the accepting response and caps the
	// work progress of the authorized final delivery.
	AgreedWorkPercentage int

	Status     CancelTicketStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TicketID implements Ticket.
func (t *CancelTicket) TicketID() string { return t.ID }

// ContractRef implements Ticket.
func (t *CancelTicket) ContractRef() string { return t.ContractID }

// OpenForExclusivity implements Ticket. An accepted cancellation keeps
// blocking new tickets until the finalizing delivery is reviewed.
func (t *CancelTicket) OpenForExclusivity() bool {
	switch t.Status {
	case CancelStatusPending, CancelStatusAccepted, CancelStatusEscalated:
		return true
	}
	return false
}

// CreateCancelTicketInput describes a new cancellation request.
type CreateCancelTicketInput struct {
	ContractID  string
	RequestedBy Role
	Reason      string
}

// CreateCancelTicket creates a pending cancellation request.
func CreateCancelTicket(input CreateCancelTicketInput, now func() time.Time, idGenerator func() (string, error)) (CancelTicket, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if strings.TrimSpace(input.Reason) == "" {
		return CancelTicket{}, apperrors.New(apperrors.CodeTicketEmptyReason, "cancellation reason is required")
	}
	if input.RequestedBy != RoleClient && input.RequestedBy != RoleArtist {
		return CancelTicket{}, apperrors.New(apperrors.CodeForbidden, "only a contract party may request cancellation")
	}

	ticketID, err := idGenerator()
	if err != nil {
		return CancelTicket{}, fmt.Errorf("generate ticket id: %w", err)
	}
	return CancelTicket{
		ID:          ticketID,
		ContractID:  input.ContractID,
		RequestedBy: input.RequestedBy,
		Reason:      strings.TrimSpace(input.Reason),
		Status:      CancelStatusPending,
		CreatedAt:   now().UTC(),
	}, nil
}

// transitionCancel validates and applies one edge of the cancel table.
func (t *CancelTicket) transition(to CancelTicketStatus, now time.Time) error {
	for _, next := range cancelTransitions[t.Status] {
		if next == to {
			t.Status = to
			if to == CancelStatusRejected || to == CancelStatusResolved {
				resolved := now.UTC()
				t.ResolvedAt = &resolved
			}
			return nil
		}
	}
	return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
		fmt.Sprintf("cancel ticket cannot move from %s", CancelStatusLabel(t.Status)))
}

// Accept authorizes a final delivery at the agreed work percentage.
func (t *CancelTicket) Accept(agreedWorkPercentage int, now time.Time) error {
	if agreedWorkPercentage < 0 || agreedWorkPercentage >= 100 {
		return apperrors.New(apperrors.CodeUploadInvalidWorkProgress, "agreed work percentage must be below 100")
	}
	if err := t.transition(CancelStatusAccepted, now); err != nil {
		return err
	}
	t.AgreedWorkPercentage = agreedWorkPercentage
	return nil
}

// Reject closes the request without effect.
func (t *CancelTicket) Reject(now time.Time) error {
	return t.transition(CancelStatusRejected, now)
}

// Escalate hands the request to a resolution ticket.
func (t *CancelTicket) Escalate(now time.Time) error {
	return t.transition(CancelStatusEscalated, now)
}

// Resolve finishes the cancellation once the finalizing delivery is accepted.
func (t *CancelTicket) Resolve(now time.Time) error {
	return t.transition(CancelStatusResolved, now)
}

// CancelStatusLabel returns the canonical string form of a cancel ticket status.
func CancelStatusLabel(s CancelTicketStatus) string {
	switch s {
	case CancelStatusPending:
		return "PENDING"
	case CancelStatusAccepted:
		return "ACCEPTED"
	case CancelStatusRejected:
		return "REJECTED"
	case CancelStatusEscalated:
		return "ESCALATED"
	case CancelStatusResolved:
		return "RESOLVED"
	default:
		return "UNSPECIFIED"
	}
}
