package service

import (
	"context"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/wallet"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var (
	clientActor = Actor{UserID: "client-1"}
	artistActor = Actor{UserID: "artist-1"}
	adminActor  = Actor{UserID: "staff-1", Admin: true}
)

func newTestService(t *testing.T) (*Service, *memDB, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	db := newMemDB()
	db.wallets["client-1"] = wallet.Wallet{UserID: "client-1", Available: 500_000, UpdatedAt: clock.now}
	db.wallets["artist-1"] = wallet.Wallet{UserID: "artist-1", UpdatedAt: clock.now}
	svc := New(db, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	return svc, db, clock
}

func standardSnapshot(basePrice int64) contract.ProposalSnapshot {
	return contract.ProposalSnapshot{
		ListingID:           "listing-1",
		ProposalID:          "proposal-1",
		Flow:                contract.FlowStandard,
		BasePrice:           basePrice,
		RevisionPolicy:      contract.RevisionPolicy{Kind: contract.RevisionPolicyLimited, Included: 1, ExtraFee: 50_000},
		CancellationFee:     contract.CancellationFeePolicy{Percent: 10},
		LatePenaltyPercent:  10,
		AllowContractChange: true,
		Changeable:          []contract.ChangeableField{contract.FieldDeadline, contract.FieldDescription},
		Description:         "one character illustration",
	}
}

func milestoneSnapshot(basePrice int64) contract.ProposalSnapshot {
	snapshot := standardSnapshot(basePrice)
	snapshot.Flow = contract.FlowMilestone
	snapshot.MilestoneTemplate = []contract.MilestoneSpec{
		{Title: "Sketch", Percent: 25},
		{Title: "Lines", Percent: 25},
		{Title: "Colors", Percent: 25},
		{Title: "Polish", Percent: 25},
	}
	return snapshot
}

func fundContract(t *testing.T, svc *Service, clock *testClock, snapshot contract.ProposalSnapshot) contract.Contract {
	t.Helper()
	c, err := svc.CreateContract(context.Background(), clientActor, CreateContractInput{
		ClientID:   "client-1",
		ArtistID:   "artist-1",
		Snapshot:   snapshot,
		DeadlineAt: clock.now.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	return c
}

func escrowBalance(t *testing.T, db *memDB, contractID string) int64 {
	t.Helper()
	transactions, err := db.Stores().Ledger.ListByContract(context.Background(), contractID)
	if err != nil {
		t.Fatalf("ListByContract: %v", err)
	}
	return ledger.EscrowBalance(transactions)
}

func TestCreateContractHoldsEscrow(t *testing.T) {
	svc, db, clock := newTestService(t)
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	if c.Status != contract.StatusActive {
		t.Fatalf("got status %v, want active", c.Status)
	}
	w := db.wallets["client-1"]
	if w.Available != 400_000 || w.Escrowed != 100_000 {
		t.Fatalf("got wallet %+v, want 400000 available / 100000 escrowed", w)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 100_000 {
		t.Fatalf("got escrow balance %d, want 100000", balance)
	}
}

func TestCreateContractInsufficientFundsRollsBack(t *testing.T) {
	svc, db, clock := newTestService(t)
	_, err := svc.CreateContract(context.Background(), clientActor, CreateContractInput{
		ClientID:   "client-1",
		ArtistID:   "artist-1",
		Snapshot:   standardSnapshot(900_000),
		DeadlineAt: clock.now.Add(30 * 24 * time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeWalletInsufficientFunds) {
		t.Fatalf("got %v, want insufficient funds", err)
	}
	if len(db.contracts) != 0 || len(db.ledger) != 0 {
		t.Fatal("insufficient funds must persist nothing")
	}
	if w := db.wallets["client-1"]; w.Available != 500_000 {
		t.Fatalf("got available %d, want untouched 500000", w.Available)
	}
}

func TestCreateContractForbiddenForStranger(t *testing.T) {
	svc, _, clock := newTestService(t)
	_, err := svc.CreateContract(context.Background(), Actor{UserID: "stranger"}, CreateContractInput{
		ClientID:   "client-1",
		ArtistID:   "artist-1",
		Snapshot:   standardSnapshot(100_000),
		DeadlineAt: clock.now.Add(24 * time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestFinalAcceptCompletesAndSettles(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusCompleted {
		t.Fatalf("got status %v, want completed", got.Status)
	}
	if got.Completion == nil || got.Completion.ArtistPayout != 100_000 || got.Completion.ClientPayout != 0 {
		t.Fatalf("got completion %+v, want artist 100000", got.Completion)
	}
	if w := db.wallets["artist-1"]; w.Available != 100_000 {
		t.Fatalf("got artist available %d, want 100000", w.Available)
	}
	if w := db.wallets["client-1"]; w.Escrowed != 0 {
		t.Fatalf("got client escrowed %d, want 0", w.Escrowed)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 0 {
		t.Fatalf("got escrow balance %d, want exactly 0", balance)
	}
}

// Late acceptance with total 200000 and a 10% late penalty pays the artist
// 180000 and refunds the client 20000.
func TestLateFinalAcceptAppliesPenalty(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(200_000))

	// Past the deadline but inside the grace window.
	clock.Advance(31 * 24 * time.Hour)
	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusCompletedLate {
		t.Fatalf("got status %v, want completedLate", got.Status)
	}
	if w := db.wallets["artist-1"]; w.Available != 180_000 {
		t.Fatalf("got artist available %d, want 180000", w.Available)
	}
	if w := db.wallets["client-1"]; w.Available != 320_000 {
		t.Fatalf("got client available %d, want 300000 + 20000 refund", w.Available)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 0 {
		t.Fatalf("got escrow balance %d, want 0", balance)
	}
}

// Client-requested cancellation at 40% agreed work on a 100000 contract with
// a 10% cancellation fee splits the escrow 50000/50000.
func TestCancelFlowSettlesAtAgreedPercentage(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	ticket, err := svc.CreateCancelTicket(ctx, clientActor, CreateCancelTicketInput{
		ContractID: c.ID,
		Reason:     "project direction changed",
	})
	if err != nil {
		t.Fatalf("CreateCancelTicket: %v", err)
	}
	if _, err := svc.RespondCancelTicket(ctx, artistActor, RespondCancelTicketInput{
		TicketID:             ticket.ID,
		Response:             CancelAccept,
		AgreedWorkPercentage: 40,
	}); err != nil {
		t.Fatalf("RespondCancelTicket: %v", err)
	}

	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindFinal,
		Images:         []string{"blob-partial"},
		WorkProgress:   40,
		CancelTicketID: ticket.ID,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusCancelledClient {
		t.Fatalf("got status %v, want cancelledClient", got.Status)
	}
	if got.CancelSummary == nil {
		t.Fatal("expected a frozen cancel summary")
	}
	if got.CancelSummary.ArtistPayout != 50_000 || got.CancelSummary.ClientPayout != 50_000 {
		t.Fatalf("got summary %+v, want 50000/50000", got.CancelSummary)
	}
	if w := db.wallets["artist-1"]; w.Available != 50_000 {
		t.Fatalf("got artist available %d, want 50000", w.Available)
	}
	if resolved := db.cancels[ticket.ID]; resolved.Status != contract.CancelStatusResolved {
		t.Fatalf("got ticket status %v, want resolved", resolved.Status)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 0 {
		t.Fatalf("got escrow balance %d, want 0", balance)
	}
}

// A final delivery linked to an accepted cancellation is held to the agreed
// percentage even at full progress: the artist cannot settle a 30% agreement
// as 100% finished work.
func TestFullProgressFinalHonorsCancelAgreement(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	ticket, err := svc.CreateCancelTicket(ctx, clientActor, CreateCancelTicketInput{
		ContractID: c.ID,
		Reason:     "scope no longer needed",
	})
	if err != nil {
		t.Fatalf("CreateCancelTicket: %v", err)
	}
	if _, err := svc.RespondCancelTicket(ctx, artistActor, RespondCancelTicketInput{
		TicketID:             ticket.ID,
		Response:             CancelAccept,
		AgreedWorkPercentage: 30,
	}); err != nil {
		t.Fatalf("RespondCancelTicket: %v", err)
	}

	_, err = svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindFinal,
		Images:         []string{"blob-final"},
		WorkProgress:   100,
		CancelTicketID: ticket.ID,
	})
	if !apperrors.IsCode(err, apperrors.CodeUploadInvalidWorkProgress) {
		t.Fatalf("got %v, want work progress capped at the agreed 30", err)
	}

	_, err = svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindFinal,
		Images:         []string{"blob-final"},
		WorkProgress:   100,
		CancelTicketID: "no-such-ticket",
	})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("got %v, want a dangling cancel link rejected at creation", err)
	}
}

// Accepting milestone deliveries advances work percentage by the frozen
// shares: two of four 25% milestones leave the contract at 50%.
func TestMilestoneAcceptanceAdvancesWorkPercentage(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, milestoneSnapshot(100_000))

	for i := 0; i < 2; i++ {
		index := i
		upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
			ContractID:     c.ID,
			Kind:           contract.UploadKindProgressMilestone,
			Images:         []string{"blob-milestone"},
			MilestoneIndex: &index,
		})
		if err != nil {
			t.Fatalf("CreateUpload milestone %d: %v", i, err)
		}
		if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
			t.Fatalf("ReviewUpload milestone %d: %v", i, err)
		}
	}

	got := db.contracts[c.ID]
	if got.WorkPercentage != 50 {
		t.Fatalf("got work percentage %d, want 50", got.WorkPercentage)
	}
	if got.Milestones[2].Status != contract.MilestoneStatusInProgress {
		t.Fatalf("got milestone 2 status %v, want inProgress", got.Milestones[2].Status)
	}
	if got.Status != contract.StatusActive {
		t.Fatalf("got status %v, want still active", got.Status)
	}
}

func TestMilestoneRejectionResetsMilestone(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, milestoneSnapshot(100_000))

	index := 0
	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindProgressMilestone,
		Images:         []string{"blob-milestone"},
		MilestoneIndex: &index,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Milestones[0].Status != contract.MilestoneStatusInProgress {
		t.Fatalf("got milestone 0 status %v, want back to inProgress", got.Milestones[0].Status)
	}
	if got.WorkPercentage != 0 {
		t.Fatalf("got work percentage %d, want 0", got.WorkPercentage)
	}
}

// Paid revision beyond the included count: the 50000 fee lands in escrow,
// grows the contract total to 150000, and the final settlement releases
// everything to the artist.
func TestPaidRevisionGrowsTotalAndSettles(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	// The single included revision is already spent.
	seeded := db.contracts[c.ID]
	seeded.RevisionsUsed = 1
	db.contracts[c.ID] = seeded

	ticket, err := svc.CreateRevisionTicket(ctx, clientActor, CreateRevisionTicketInput{
		ContractID:  c.ID,
		Description: "adjust the background palette",
	})
	if err != nil {
		t.Fatalf("CreateRevisionTicket: %v", err)
	}
	if _, err := svc.RespondRevisionTicket(ctx, artistActor, RespondRevisionTicketInput{
		TicketID: ticket.ID,
		Response: RevisionAccept,
		Fee:      50_000,
	}); err != nil {
		t.Fatalf("RespondRevisionTicket: %v", err)
	}
	if got := db.revisions[ticket.ID]; got.Status != contract.RevisionStatusAwaitingPayment {
		t.Fatalf("got ticket status %v, want awaitingPayment", got.Status)
	}

	if _, err := svc.PayRevisionFee(ctx, clientActor, ticket.ID); err != nil {
		t.Fatalf("PayRevisionFee: %v", err)
	}
	got := db.contracts[c.ID]
	if got.Finance.RuntimeFees != 50_000 || got.Finance.Total != 150_000 {
		t.Fatalf("got finance %+v, want runtime fees 50000 and total 150000", got.Finance)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 150_000 {
		t.Fatalf("got escrow balance %d, want 150000", balance)
	}

	revisionUpload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:       c.ID,
		Kind:             contract.UploadKindRevision,
		Images:           []string{"blob-revision"},
		RevisionTicketID: ticket.ID,
	})
	if err != nil {
		t.Fatalf("CreateUpload revision: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: revisionUpload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload revision: %v", err)
	}
	if got := db.revisions[ticket.ID]; got.Status != contract.RevisionStatusClosedSuccess {
		t.Fatalf("got ticket status %v, want closedSuccess", got.Status)
	}
	if got := db.contracts[c.ID]; got.RevisionsUsed != 2 {
		t.Fatalf("got revisions used %d, want 2", got.RevisionsUsed)
	}

	finalUpload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload final: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: finalUpload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload final: %v", err)
	}
	if w := db.wallets["artist-1"]; w.Available != 150_000 {
		t.Fatalf("got artist available %d, want 150000", w.Available)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 0 {
		t.Fatalf("got escrow balance %d, want 0", balance)
	}
}

func TestRevisionCapExhaustedRejectsCreation(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	snapshot := standardSnapshot(100_000)
	snapshot.RevisionPolicy = contract.RevisionPolicy{Kind: contract.RevisionPolicyLimited, Included: 1}
	c := fundContract(t, svc, clock, snapshot)

	seeded := db.contracts[c.ID]
	seeded.RevisionsUsed = 1
	db.contracts[c.ID] = seeded

	_, err := svc.CreateRevisionTicket(ctx, clientActor, CreateRevisionTicketInput{
		ContractID:  c.ID,
		Description: "one more pass",
	})
	if !apperrors.IsCode(err, apperrors.CodeTicketRevisionCapExhausted) {
		t.Fatalf("got %v, want revision cap exhausted", err)
	}
}

func TestRevisionFeeMismatchRejected(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	seeded := db.contracts[c.ID]
	seeded.RevisionsUsed = 1
	db.contracts[c.ID] = seeded

	ticket, err := svc.CreateRevisionTicket(ctx, clientActor, CreateRevisionTicketInput{
		ContractID:  c.ID,
		Description: "adjust colors",
	})
	if err != nil {
		t.Fatalf("CreateRevisionTicket: %v", err)
	}
	_, err = svc.RespondRevisionTicket(ctx, artistActor, RespondRevisionTicketInput{
		TicketID: ticket.ID,
		Response: RevisionAccept,
		Fee:      99_000,
	})
	if !apperrors.IsCode(err, apperrors.CodeTicketFeeMismatch) {
		t.Fatalf("got %v, want fee mismatch", err)
	}
}

func TestTicketExclusivityFailsFast(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	if _, err := svc.CreateCancelTicket(ctx, clientActor, CreateCancelTicketInput{
		ContractID: c.ID,
		Reason:     "first request",
	}); err != nil {
		t.Fatalf("CreateCancelTicket: %v", err)
	}
	_, err := svc.CreateCancelTicket(ctx, artistActor, CreateCancelTicketInput{
		ContractID: c.ID,
		Reason:     "second request",
	})
	if !apperrors.IsCode(err, apperrors.CodeTicketConflictingActive) {
		t.Fatalf("got %v, want conflicting active ticket", err)
	}
}

func TestUploadScopeGateFailsFast(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	if _, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-1"},
		WorkProgress: 100,
	}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	_, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-2"},
		WorkProgress: 100,
	})
	if !apperrors.IsCode(err, apperrors.CodeUploadPendingExists) {
		t.Fatalf("got %v, want pending upload exists", err)
	}
}

func TestChangeTicketFieldGating(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	_, err := svc.CreateChangeTicket(ctx, clientActor, CreateChangeTicketInput{
		ContractID: c.ID,
		Changes:    contract.ChangeSet{GeneralOptions: map[string]string{"size": "A3"}},
		Submit:     true,
	})
	if !apperrors.IsCode(err, apperrors.CodeTicketChangeFieldNotChangeable) {
		t.Fatalf("got %v, want field not changeable", err)
	}
}

func TestChangeFeeFlowAppliesTerms(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))
	newDeadline := clock.now.Add(45 * 24 * time.Hour)
	newDescription := "two characters instead of one"

	ticket, err := svc.CreateChangeTicket(ctx, clientActor, CreateChangeTicketInput{
		ContractID: c.ID,
		Changes: contract.ChangeSet{
			Deadline:    &newDeadline,
			Description: &newDescription,
		},
		Submit: true,
	})
	if err != nil {
		t.Fatalf("CreateChangeTicket: %v", err)
	}
	if _, err := svc.RespondChangeTicket(ctx, artistActor, RespondChangeTicketInput{
		TicketID: ticket.ID,
		Response: ChangeProposeFee,
		Fee:      20_000,
	}); err != nil {
		t.Fatalf("RespondChangeTicket: %v", err)
	}
	if _, err := svc.DecideChangeTicket(ctx, clientActor, DecideChangeTicketInput{
		TicketID: ticket.ID,
		Decision: ChangePayAndApply,
	}); err != nil {
		t.Fatalf("DecideChangeTicket: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Version != 2 {
		t.Fatalf("got version %d, want 2", got.Version)
	}
	if got.CurrentTerms().Description != newDescription {
		t.Fatalf("got description %q, want the applied change", got.CurrentTerms().Description)
	}
	if !got.DeadlineAt.Equal(newDeadline.UTC()) {
		t.Fatalf("got deadline %v, want %v", got.DeadlineAt, newDeadline)
	}
	if got.Finance.Total != 120_000 {
		t.Fatalf("got total %d, want 120000", got.Finance.Total)
	}
	if len(got.LateExtensions) != 1 {
		t.Fatalf("got %d late extensions, want 1", len(got.LateExtensions))
	}
	if gotTicket := db.changes[ticket.ID]; gotTicket.Status != contract.ChangeStatusApplied || gotTicket.PaidAt == nil {
		t.Fatalf("got ticket %+v, want applied and paid", gotTicket)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 120_000 {
		t.Fatalf("got escrow balance %d, want 120000", balance)
	}
}

func TestChangeFreeAcceptAppliesImmediately(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))
	newDescription := "small palette tweak"

	ticket, err := svc.CreateChangeTicket(ctx, clientActor, CreateChangeTicketInput{
		ContractID: c.ID,
		Changes:    contract.ChangeSet{Description: &newDescription},
		Submit:     true,
	})
	if err != nil {
		t.Fatalf("CreateChangeTicket: %v", err)
	}
	if _, err := svc.RespondChangeTicket(ctx, artistActor, RespondChangeTicketInput{
		TicketID: ticket.ID,
		Response: ChangeAcceptFree,
	}); err != nil {
		t.Fatalf("RespondChangeTicket: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Version != 2 || got.CurrentTerms().Description != newDescription {
		t.Fatalf("got version %d description %q, want the free change applied", got.Version, got.CurrentTerms().Description)
	}
	if got.Finance.Total != 100_000 {
		t.Fatalf("got total %d, want unchanged 100000", got.Finance.Total)
	}
}

func TestSweepExpiredUploadsIsIdempotent(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	if _, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	clock.Advance(contract.ReviewWindow + time.Hour)
	result, err := svc.SweepExpiredUploads(ctx, clock.now)
	if err != nil {
		t.Fatalf("SweepExpiredUploads: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("got %d processed, want 1", result.Processed)
	}
	got := db.contracts[c.ID]
	if got.Status != contract.StatusCompleted {
		t.Fatalf("got status %v, want completed via auto-accept", got.Status)
	}

	// A second pass finds nothing left to do.
	result, err = svc.SweepExpiredUploads(ctx, clock.now)
	if err != nil {
		t.Fatalf("SweepExpiredUploads again: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("got %d processed on second pass, want 0", result.Processed)
	}
}

// Grace expiry with no delivery: full refund, artist gets nothing.
func TestSweepExpiredContractsFullRefund(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	clock.Advance(50 * 24 * time.Hour)
	result, err := svc.SweepExpiredContracts(ctx, clock.now)
	if err != nil {
		t.Fatalf("SweepExpiredContracts: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("got %d processed, want 1", result.Processed)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusNotCompleted {
		t.Fatalf("got status %v, want notCompleted", got.Status)
	}
	if w := db.wallets["client-1"]; w.Available != 500_000 || w.Escrowed != 0 {
		t.Fatalf("got client wallet %+v, want the full hold refunded", w)
	}
	if w := db.wallets["artist-1"]; w.Available != 0 {
		t.Fatalf("got artist available %d, want 0", w.Available)
	}
	if balance := escrowBalance(t, db, c.ID); balance != 0 {
		t.Fatalf("got escrow balance %d, want 0", balance)
	}
}

// Expiry freezes the contract as an audit record: work percentage earned
// through accepted milestones stays on it even though the payout is a full
// refund.
func TestSweepExpiredContractsKeepsWorkPercentage(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, milestoneSnapshot(100_000))

	index := 0
	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindProgressMilestone,
		Images:         []string{"blob-milestone"},
		MilestoneIndex: &index,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}

	clock.Advance(50 * 24 * time.Hour)
	if _, err := svc.SweepExpiredContracts(ctx, clock.now); err != nil {
		t.Fatalf("SweepExpiredContracts: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusNotCompleted {
		t.Fatalf("got status %v, want notCompleted", got.Status)
	}
	if got.WorkPercentage != 25 {
		t.Fatalf("got work percentage %d, want the accepted 25 preserved", got.WorkPercentage)
	}
	if w := db.wallets["client-1"]; w.Available != 500_000 || w.Escrowed != 0 {
		t.Fatalf("got client wallet %+v, want the full hold refunded", w)
	}
}

func TestSweepExpiredContractsSkipsPendingFinal(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	// Submit a final delivery just before the grace window closes.
	clock.Advance(44*24*time.Hour - time.Hour)
	if _, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	}); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	clock.Advance(2 * time.Hour)
	result, err := svc.SweepExpiredContracts(ctx, clock.now)
	if err != nil {
		t.Fatalf("SweepExpiredContracts: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 1 {
		t.Fatalf("got %+v, want the contract skipped", result)
	}
	if got := db.contracts[c.ID]; got.Status != contract.StatusActive {
		t.Fatalf("got status %v, want still active", got.Status)
	}
}

func TestResolutionForceAcceptReleasesFunds(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	ticket, err := svc.OpenResolutionTicket(ctx, artistActor, OpenResolutionTicketInput{
		ContractID:  c.ID,
		TargetKind:  contract.ResolutionTargetFinalUpload,
		TargetID:    upload.ID,
		ProofImages: []string{"blob-proof"},
		Description: "client is unresponsive",
	})
	if err != nil {
		t.Fatalf("OpenResolutionTicket: %v", err)
	}
	if got := db.uploads[upload.ID]; got.Status != contract.UploadStatusDisputed {
		t.Fatalf("got upload status %v, want disputed", got.Status)
	}

	if _, err := svc.ResolveResolutionTicket(ctx, adminActor, ResolveResolutionTicketInput{
		TicketID: ticket.ID,
		Decision: contract.DecisionFavorArtist,
		Action:   contract.ActionReleaseFunds,
		Note:     "delivery matches the brief",
	}); err != nil {
		t.Fatalf("ResolveResolutionTicket: %v", err)
	}

	got := db.contracts[c.ID]
	if got.Status != contract.StatusCompleted {
		t.Fatalf("got status %v, want completed", got.Status)
	}
	if gotUpload := db.uploads[upload.ID]; gotUpload.Status != contract.UploadStatusForcedAccepted {
		t.Fatalf("got upload status %v, want forcedAccepted", gotUpload.Status)
	}
	if w := db.wallets["artist-1"]; w.Available != 100_000 {
		t.Fatalf("got artist available %d, want 100000", w.Available)
	}
}

// Closing a dispute without releasing funds rejects the disputed delivery
// through the normal path: the milestone returns to in-progress and the
// artist can resubmit instead of the contract stranding until expiry.
func TestResolutionNoActionReopensDisputedMilestone(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, milestoneSnapshot(100_000))

	index := 0
	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindProgressMilestone,
		Images:         []string{"blob-milestone"},
		MilestoneIndex: &index,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	ticket, err := svc.OpenResolutionTicket(ctx, clientActor, OpenResolutionTicketInput{
		ContractID:  c.ID,
		TargetKind:  contract.ResolutionTargetMilestoneUpload,
		TargetID:    upload.ID,
		ProofImages: []string{"blob-proof"},
		Description: "sketch does not match the brief",
	})
	if err != nil {
		t.Fatalf("OpenResolutionTicket: %v", err)
	}

	if _, err := svc.ResolveResolutionTicket(ctx, adminActor, ResolveResolutionTicketInput{
		TicketID: ticket.ID,
		Decision: contract.DecisionFavorClient,
		Action:   contract.ActionNoAction,
		Note:     "parties should retry the milestone",
	}); err != nil {
		t.Fatalf("ResolveResolutionTicket: %v", err)
	}

	if got := db.uploads[upload.ID]; got.Status != contract.UploadStatusRejected {
		t.Fatalf("got upload status %v, want rejected", got.Status)
	}
	got := db.contracts[c.ID]
	if got.Status != contract.StatusActive {
		t.Fatalf("got status %v, want still active", got.Status)
	}
	if got.Milestones[0].Status != contract.MilestoneStatusInProgress {
		t.Fatalf("got milestone 0 status %v, want back to inProgress", got.Milestones[0].Status)
	}

	if _, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:     c.ID,
		Kind:           contract.UploadKindProgressMilestone,
		Images:         []string{"blob-milestone-2"},
		MilestoneIndex: &index,
	}); err != nil {
		t.Fatalf("resubmit after dispute close: %v", err)
	}
}

// Staff review fixes the evidence set: once a dispute is under review,
// counterproof submissions are rejected, and the decision still lands.
func TestResolutionReviewLocksCounterproof(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	ticket, err := svc.OpenResolutionTicket(ctx, artistActor, OpenResolutionTicketInput{
		ContractID:  c.ID,
		TargetKind:  contract.ResolutionTargetFinalUpload,
		TargetID:    upload.ID,
		ProofImages: []string{"blob-proof"},
		Description: "client went silent after delivery",
	})
	if err != nil {
		t.Fatalf("OpenResolutionTicket: %v", err)
	}

	if _, err := svc.BeginResolutionReview(ctx, clientActor, ticket.ID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("got %v, want forbidden for non-staff", err)
	}
	if _, err := svc.BeginResolutionReview(ctx, adminActor, ticket.ID); err != nil {
		t.Fatalf("BeginResolutionReview: %v", err)
	}
	if got := db.resolutions[ticket.ID]; got.Status != contract.ResolutionStatusUnderReview {
		t.Fatalf("got ticket status %v, want underReview", got.Status)
	}

	_, err = svc.SubmitCounterproof(ctx, clientActor, ticket.ID, []string{"blob-counter"})
	if !apperrors.IsCode(err, apperrors.CodeTicketInvalidStatusTransition) {
		t.Fatalf("got %v, want counterproof rejected under review", err)
	}

	if _, err := svc.ResolveResolutionTicket(ctx, adminActor, ResolveResolutionTicketInput{
		TicketID: ticket.ID,
		Decision: contract.DecisionFavorArtist,
		Action:   contract.ActionReleaseFunds,
		Note:     "delivery matches the brief",
	}); err != nil {
		t.Fatalf("ResolveResolutionTicket: %v", err)
	}
	if got := db.resolutions[ticket.ID]; got.Status != contract.ResolutionStatusResolved {
		t.Fatalf("got ticket status %v, want resolved", got.Status)
	}
}

func TestResolutionRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ResolveResolutionTicket(context.Background(), clientActor, ResolveResolutionTicketInput{
		TicketID: "whatever",
		Decision: contract.DecisionFavorClient,
		Action:   contract.ActionNoAction,
	})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestSnapshotReportsTicketSlots(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	if _, err := svc.CreateCancelTicket(ctx, clientActor, CreateCancelTicketInput{
		ContractID: c.ID,
		Reason:     "thinking about it",
	}); err != nil {
		t.Fatalf("CreateCancelTicket: %v", err)
	}

	snapshot, err := svc.GetSnapshot(ctx, clientActor, c.ID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snapshot.Role != contract.RoleClient {
		t.Fatalf("got role %v, want client", snapshot.Role)
	}
	if !snapshot.Allowed["SUBMIT_UPLOAD"] {
		t.Fatal("active contract must allow uploads")
	}
	if snapshot.OpenTicketSlots["CANCEL"] {
		t.Fatal("cancel slot must be blocked by the open ticket")
	}
	if !snapshot.OpenTicketSlots["REVISION"] {
		t.Fatal("revision slot must still be open")
	}
	if snapshot.EscrowBalance != 100_000 {
		t.Fatalf("got escrow balance %d, want 100000", snapshot.EscrowBalance)
	}
}

func TestOperationsRejectedAfterTerminal(t *testing.T) {
	svc, db, clock := newTestService(t)
	ctx := context.Background()
	c := fundContract(t, svc, clock, standardSnapshot(100_000))

	upload, err := svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID:   c.ID,
		Kind:         contract.UploadKindFinal,
		Images:       []string{"blob-final"},
		WorkProgress: 100,
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if _, err := svc.ReviewUpload(ctx, clientActor, ReviewUploadInput{UploadID: upload.ID, Accept: true}); err != nil {
		t.Fatalf("ReviewUpload: %v", err)
	}
	if got := db.contracts[c.ID]; got.Status != contract.StatusCompleted {
		t.Fatalf("got status %v, want completed", got.Status)
	}

	_, err = svc.CreateUpload(ctx, artistActor, CreateUploadInput{
		ContractID: c.ID,
		Kind:       contract.UploadKindProgressStandard,
		Images:     []string{"blob-late"},
	})
	if !apperrors.IsCode(err, apperrors.CodeContractStatusDisallowsOp) {
		t.Fatalf("got %v, want status disallows operation", err)
	}
}
