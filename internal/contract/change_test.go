package contract

import (
	"testing"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

func changeableSnapshot() ProposalSnapshot {
	return ProposalSnapshot{
		AllowContractChange: true,
		Changeable:          []ChangeableField{FieldDeadline, FieldDescription},
	}
}

func TestCreateChangeTicketGating(t *testing.T) {
	description := "new description"

	t.Run("changes disallowed", func(t *testing.T) {
		_, err := CreateChangeTicket(ProposalSnapshot{}, CreateChangeTicketInput{
			ContractID: "contract-1",
			Changes:    ChangeSet{Description: &description},
		}, nil, nil)
		if !apperrors.IsCode(err, apperrors.CodeTicketChangeNotAllowed) {
			t.Fatalf("got %v, want change not allowed", err)
		}
	})

	t.Run("empty change set", func(t *testing.T) {
		_, err := CreateChangeTicket(changeableSnapshot(), CreateChangeTicketInput{
			ContractID: "contract-1",
		}, nil, nil)
		if !apperrors.IsCode(err, apperrors.CodeTicketEmptyReason) {
			t.Fatalf("got %v, want empty change set", err)
		}
	})

	t.Run("field outside the allowlist", func(t *testing.T) {
		_, err := CreateChangeTicket(changeableSnapshot(), CreateChangeTicketInput{
			ContractID: "contract-1",
			Changes:    ChangeSet{GeneralOptions: map[string]string{"size": "A3"}},
		}, nil, nil)
		if !apperrors.IsCode(err, apperrors.CodeTicketChangeFieldNotChangeable) {
			t.Fatalf("got %v, want field not changeable", err)
		}
	})

	t.Run("draft and submitted", func(t *testing.T) {
		draft, err := CreateChangeTicket(changeableSnapshot(), CreateChangeTicketInput{
			ContractID: "contract-1",
			Changes:    ChangeSet{Description: &description},
		}, fixedClock(testCreatedAt), staticID("change-1"))
		if err != nil {
			t.Fatalf("CreateChangeTicket: %v", err)
		}
		if draft.Status != ChangeStatusDraft || draft.OpenForExclusivity() {
			t.Fatalf("got %+v, want an unsent draft outside the slot", draft)
		}

		sent, err := CreateChangeTicket(changeableSnapshot(), CreateChangeTicketInput{
			ContractID: "contract-1",
			Changes:    ChangeSet{Description: &description},
			Submit:     true,
		}, fixedClock(testCreatedAt), staticID("change-2"))
		if err != nil {
			t.Fatalf("CreateChangeTicket: %v", err)
		}
		if sent.Status != ChangeStatusPending || !sent.OpenForExclusivity() {
			t.Fatalf("got %+v, want pending and blocking", sent)
		}
	})
}

func TestChangeTicketFeeNegotiation(t *testing.T) {
	at := testCreatedAt.Add(time.Hour)
	description := "two characters"
	ticket, err := CreateChangeTicket(changeableSnapshot(), CreateChangeTicketInput{
		ContractID: "contract-1",
		Changes:    ChangeSet{Description: &description},
		Submit:     true,
	}, fixedClock(testCreatedAt), staticID("change-1"))
	if err != nil {
		t.Fatalf("CreateChangeTicket: %v", err)
	}

	if err := ticket.ProposeFee(0, at); !apperrors.IsCode(err, apperrors.CodeWalletInvalidAmount) {
		t.Fatalf("got %v, want invalid amount for zero fee", err)
	}
	if err := ticket.ProposeFee(20_000, at); err != nil {
		t.Fatalf("ProposeFee: %v", err)
	}
	if err := ticket.AcceptFee(at.Add(time.Hour)); err != nil {
		t.Fatalf("AcceptFee: %v", err)
	}
	if err := ticket.MarkApplied(at.Add(time.Hour)); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}
	if ticket.Status != ChangeStatusApplied || ticket.PaidAt == nil {
		t.Fatalf("got %+v, want applied and paid", ticket)
	}
	if err := ticket.Cancel(at.Add(2 * time.Hour)); !apperrors.IsCode(err, apperrors.CodeTicketInvalidStatusTransition) {
		t.Fatalf("got %v, want applied to reject every edge", err)
	}
}

func TestApplyChangeSetVersionsTermsAndShiftsGrace(t *testing.T) {
	input := validInput()
	input.Snapshot.AllowContractChange = true
	input.Snapshot.Changeable = []ChangeableField{FieldDeadline, FieldDescription}
	c, err := CreateContract(input, fixedClock(testCreatedAt), staticID("contract-1"))
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	oldDeadline := c.DeadlineAt
	grace := c.GraceEndsAt.Sub(c.DeadlineAt)

	newDeadline := c.DeadlineAt.Add(15 * 24 * time.Hour)
	description := "updated brief"
	at := testCreatedAt.Add(48 * time.Hour)
	c.ApplyChangeSet(ChangeSet{Deadline: &newDeadline, Description: &description}, at)

	if c.Version != 2 || len(c.Terms) != 2 {
		t.Fatalf("got version %d with %d terms, want a new version", c.Version, len(c.Terms))
	}
	if c.CurrentTerms().Description != description {
		t.Fatalf("got description %q", c.CurrentTerms().Description)
	}
	if !c.DeadlineAt.Equal(newDeadline) {
		t.Fatalf("got deadline %v, want %v", c.DeadlineAt, newDeadline)
	}
	if !c.GraceEndsAt.Equal(newDeadline.Add(grace)) {
		t.Fatalf("got grace end %v, want the span preserved", c.GraceEndsAt)
	}
	if len(c.LateExtensions) != 1 || !c.LateExtensions[0].OldDeadline.Equal(oldDeadline) {
		t.Fatalf("got extensions %+v, want the shift logged", c.LateExtensions)
	}
}
