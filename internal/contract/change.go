package contract

import (
	"fmt"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// ChangeTicketStatus describes the contract-change negotiation state.
type ChangeTicketStatus int

const (
	// ChangeStatusUnspecified represents an invalid change ticket status.
	ChangeStatusUnspecified ChangeTicketStatus = iota
	// ChangeStatusDraft is an unsent change request.
	ChangeStatusDraft
	// ChangeStatusPending awaits the artist response.
	ChangeStatusPending
	// ChangeStatusAcceptedArtist indicates the artist accepted free of charge.
	ChangeStatusAcceptedArtist
	// ChangeStatusRejectedArtist indicates the artist rejected the change.
	ChangeStatusRejectedArtist
	// ChangeStatusPendingClient awaits the client decision on a proposed fee.
	ChangeStatusPendingClient
	// ChangeStatusAccepted indicates the client accepted the fee.
	ChangeStatusAccepted
	// ChangeStatusRejected indicates the client rejected the fee.
	ChangeStatusRejected
	// ChangeStatusApplied indicates the change set was applied to the contract.
	ChangeStatusApplied
	// ChangeStatusCancelled indicates the client withdrew the request.
	ChangeStatusCancelled
)

// changeTransitions is the change ticket transition table. Forced admin
// variants travel the same edges.
var changeTransitions = map[ChangeTicketStatus][]ChangeTicketStatus{
	ChangeStatusDraft:          {ChangeStatusPending, ChangeStatusCancelled},
	ChangeStatusPending:        {ChangeStatusAcceptedArtist, ChangeStatusRejectedArtist, ChangeStatusPendingClient, ChangeStatusCancelled},
	ChangeStatusAcceptedArtist: {ChangeStatusApplied},
	ChangeStatusPendingClient:  {ChangeStatusAccepted, ChangeStatusRejected, ChangeStatusCancelled},
	ChangeStatusAccepted:       {ChangeStatusApplied},
}

// ChangeSet carries the requested term changes. Nil fields are untouched.
type ChangeSet struct {
	Deadline        *time.Time
	Description     *string
	ReferenceImages []string
	GeneralOptions  map[string]string
	SubjectOptions  map[string]string
}

// Fields lists the changeable fields the set touches.
func (cs ChangeSet) Fields() []ChangeableField {
	var fields []ChangeableField
	if cs.Deadline != nil {
		fields = append(fields, FieldDeadline)
	}
	if cs.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if cs.ReferenceImages != nil {
		fields = append(fields, FieldReferenceImages)
	}
	if cs.GeneralOptions != nil {
		fields = append(fields, FieldGeneralOptions)
	}
	if cs.SubjectOptions != nil {
		fields = append(fields, FieldSubjectOptions)
	}
	return fields
}

// ChangeTicket is a client request to amend the contract terms.
type ChangeTicket struct {
	ID         string
	ContractID string

	Changes ChangeSet

	// Fee is the artist-proposed charge; zero means the change is free.
	Fee    int64
	PaidAt *time.Time

	Status     ChangeTicketStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// TicketID implements Ticket.
func (t *ChangeTicket) TicketID() string { return t.ID }

// ContractRef implements Ticket.
func (t *ChangeTicket) ContractRef() string { return t.ContractID }

// OpenForExclusivity implements Ticket. Drafts do not block the slot.
func (t *ChangeTicket) OpenForExclusivity() bool {
	switch t.Status {
	case ChangeStatusPending, ChangeStatusAcceptedArtist,
		ChangeStatusPendingClient, ChangeStatusAccepted:
		return true
	}
	return false
}

// CreateChangeTicketInput describes a new change request.
type CreateChangeTicketInput struct {
	ContractID string
	Changes    ChangeSet
	// Submit skips the draft stage and sends the request immediately.
	Submit bool
}

// CreateChangeTicket creates a change request, validating the change set
// against the contract's changeable field allowlist.
func CreateChangeTicket(snapshot ProposalSnapshot, input CreateChangeTicketInput, now func() time.Time, idGenerator func() (string, error)) (ChangeTicket, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if !snapshot.AllowContractChange {
		return ChangeTicket{}, apperrors.New(apperrors.CodeTicketChangeNotAllowed, "contract does not allow changes")
	}
	fields := input.Changes.Fields()
	if len(fields) == 0 {
		return ChangeTicket{}, apperrors.New(apperrors.CodeTicketEmptyReason, "change set is empty")
	}
	for _, field := range fields {
		if !snapshot.AllowsChange(field) {
			return ChangeTicket{}, apperrors.WithMetadata(
				apperrors.CodeTicketChangeFieldNotChangeable,
				fmt.Sprintf("field %s is not changeable on this contract", field),
				map[string]string{"Field": string(field)},
			)
		}
	}

	ticketID, err := idGenerator()
	if err != nil {
		return ChangeTicket{}, fmt.Errorf("generate ticket id: %w", err)
	}
	status := ChangeStatusDraft
	if input.Submit {
		status = ChangeStatusPending
	}
	return ChangeTicket{
		ID:         ticketID,
		ContractID: input.ContractID,
		Changes:    input.Changes,
		Status:     status,
		CreatedAt:  now().UTC(),
	}, nil
}

// transition validates and applies one edge of the change table.
func (t *ChangeTicket) transition(to ChangeTicketStatus, now time.Time) error {
	for _, next := range changeTransitions[t.Status] {
		if next == to {
			t.Status = to
			switch to {
			case ChangeStatusRejectedArtist, ChangeStatusRejected,
				ChangeStatusApplied, ChangeStatusCancelled:
				resolved := now.UTC()
				t.ResolvedAt = &resolved
			}
			return nil
		}
	}
	return apperrors.New(apperrors.CodeTicketInvalidStatusTransition,
		fmt.Sprintf("change ticket cannot move from %s", ChangeStatusLabel(t.Status)))
}

// Submit sends a drafted request to the artist.
func (t *ChangeTicket) Submit(now time.Time) error {
	return t.transition(ChangeStatusPending, now)
}

// AcceptFree records an artist acceptance with no fee; the change set is
// applied immediately by the caller.
func (t *ChangeTicket) AcceptFree(now time.Time) error {
	return t.transition(ChangeStatusAcceptedArtist, now)
}

// RejectByArtist closes the request at the artist's initiative.
func (t *ChangeTicket) RejectByArtist(now time.Time) error {
	return t.transition(ChangeStatusRejectedArtist, now)
}

// ProposeFee forwards the request to the client with a price tag.
func (t *ChangeTicket) ProposeFee(fee int64, now time.Time) error {
	if fee <= 0 {
		return apperrors.New(apperrors.CodeWalletInvalidAmount, "proposed fee must be greater than zero")
	}
	if err := t.transition(ChangeStatusPendingClient, now); err != nil {
		return err
	}
	t.Fee = fee
	return nil
}

// AcceptFee records the client accepting the proposed fee; the change is
// applied only after payment succeeds.
func (t *ChangeTicket) AcceptFee(now time.Time) error {
	return t.transition(ChangeStatusAccepted, now)
}

// RejectFee closes the request at the client's initiative.
func (t *ChangeTicket) RejectFee(now time.Time) error {
	return t.transition(ChangeStatusRejected, now)
}

// Cancel withdraws the request.
func (t *ChangeTicket) Cancel(now time.Time) error {
	return t.transition(ChangeStatusCancelled, now)
}

// MarkApplied records that the change set landed on the contract.
func (t *ChangeTicket) MarkApplied(now time.Time) error {
	if err := t.transition(ChangeStatusApplied, now); err != nil {
		return err
	}
	if t.Fee > 0 {
		paid := now.UTC()
		t.PaidAt = &paid
	}
	return nil
}

// ApplyChangeSet appends a new terms version built from the ticket's change
// set and bumps the contract version. Deadline changes also shift the grace
// window by the same amount and are logged as late extensions.
func (c *Contract) ApplyChangeSet(cs ChangeSet, now time.Time) {
	now = now.UTC()
	current := c.CurrentTerms()
	next := TermsVersion{
		Version:         current.Version + 1,
		Description:     current.Description,
		ReferenceImages: current.ReferenceImages,
		GeneralOptions:  current.GeneralOptions,
		SubjectOptions:  current.SubjectOptions,
		CreatedAt:       now,
	}
	if cs.Description != nil {
		next.Description = *cs.Description
	}
	if cs.ReferenceImages != nil {
		next.ReferenceImages = cs.ReferenceImages
	}
	if cs.GeneralOptions != nil {
		next.GeneralOptions = cs.GeneralOptions
	}
	if cs.SubjectOptions != nil {
		next.SubjectOptions = cs.SubjectOptions
	}
	c.Terms = append(c.Terms, next)
	c.Version = next.Version

	if cs.Deadline != nil {
		grace := c.GraceEndsAt.Sub(c.DeadlineAt)
		c.LateExtensions = append(c.LateExtensions, LateExtension{
			OldDeadline: c.DeadlineAt,
			NewDeadline: cs.Deadline.UTC(),
			GrantedAt:   now,
		})
		c.DeadlineAt = cs.Deadline.UTC()
		c.GraceEndsAt = c.DeadlineAt.Add(grace)
	}
	c.UpdatedAt = now
}

// ChangeStatusLabel returns the canonical string form of a change ticket status.
func ChangeStatusLabel(s ChangeTicketStatus) string {
	switch s {
	case ChangeStatusDraft:
		return "DRAFT"
	case ChangeStatusPending:
		return "PENDING"
	case ChangeStatusAcceptedArtist:
		return "ACCEPTED_ARTIST"
	case ChangeStatusRejectedArtist:
		return "REJECTED_ARTIST"
	case ChangeStatusPendingClient:
		return "PENDING_CLIENT"
	case ChangeStatusAccepted:
		return "ACCEPTED"
	case ChangeStatusRejected:
		return "REJECTED"
	case ChangeStatusApplied:
		return "APPLIED"
	case ChangeStatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}
