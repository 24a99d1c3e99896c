package http

import (
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/contract/service"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/wallet"
)

// Wire enums use the canonical SCREAMING_SNAKE labels of the domain
// status/kind label functions.

type financeDTO struct {
	BasePrice   int64 `json:"base_price"`
	OptionFees  int64 `json:"option_fees"`
	Addons      int64 `json:"addons"`
	RushFee     int64 `json:"rush_fee"`
	Discount    int64 `json:"discount"`
	Surcharge   int64 `json:"surcharge"`
	RuntimeFees int64 `json:"runtime_fees"`
	Total       int64 `json:"total"`
}

type milestoneDTO struct {
	Index         int        `json:"index"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Percent       int        `json:"percent"`
	RevisionsUsed int        `json:"revisions_used"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type completionDTO struct {
	ArtistPayout int64     `json:"artist_payout"`
	ClientPayout int64     `json:"client_payout"`
	Late         bool      `json:"late"`
	CompletedAt  time.Time `json:"completed_at"`
}

type cancelSummaryDTO struct {
	RequestedBy    string    `json:"requested_by"`
	WorkPercentage int       `json:"work_percentage"`
	Fee            int64     `json:"fee"`
	LatePenalty    int64     `json:"late_penalty"`
	ArtistPayout   int64     `json:"artist_payout"`
	ClientPayout   int64     `json:"client_payout"`
	DecidedAt      time.Time `json:"decided_at"`
}

type contractDTO struct {
	ID             string            `json:"id"`
	ClientID       string            `json:"client_id"`
	ArtistID       string            `json:"artist_id"`
	ListingID      string            `json:"listing_id,omitempty"`
	ProposalID     string            `json:"proposal_id,omitempty"`
	Status         string            `json:"status"`
	Flow           string            `json:"flow"`
	Version        int               `json:"version"`
	WorkPercentage int               `json:"work_percentage"`
	RevisionsUsed  int               `json:"revisions_used"`
	Finance        financeDTO        `json:"finance"`
	DeadlineAt     time.Time         `json:"deadline_at"`
	GraceEndsAt    time.Time         `json:"grace_ends_at"`
	Milestones     []milestoneDTO    `json:"milestones,omitempty"`
	Completion     *completionDTO    `json:"completion,omitempty"`
	CancelSummary  *cancelSummaryDTO `json:"cancel_summary,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ClosedAt       *time.Time        `json:"closed_at,omitempty"`
}

func toContractDTO(c contract.Contract) contractDTO {
	dto := contractDTO{
		ID:             c.ID,
		ClientID:       c.ClientID,
		ArtistID:       c.ArtistID,
		ListingID:      c.ListingID,
		ProposalID:     c.ProposalID,
		Status:         contract.StatusLabel(c.Status),
		Flow:           flowLabel(c.Snapshot.Flow),
		Version:        c.Version,
		WorkPercentage: c.WorkPercentage,
		RevisionsUsed:  c.RevisionsUsed,
		Finance: financeDTO{
			BasePrice:   c.Finance.BasePrice,
			OptionFees:  c.Finance.OptionFees,
			Addons:      c.Finance.Addons,
			RushFee:     c.Finance.RushFee,
			Discount:    c.Finance.Discount,
			Surcharge:   c.Finance.Surcharge,
			RuntimeFees: c.Finance.RuntimeFees,
			Total:       c.Finance.Total,
		},
		DeadlineAt:  c.DeadlineAt,
		GraceEndsAt: c.GraceEndsAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		ClosedAt:    c.ClosedAt,
	}
	for _, m := range c.Milestones {
		dto.Milestones = append(dto.Milestones, milestoneDTO{
			Index:         m.Index,
			Title:         m.Title,
			Status:        contract.MilestoneStatusLabel(m.Status),
			Percent:       m.Percent,
			RevisionsUsed: m.RevisionsUsed,
			SubmittedAt:   m.SubmittedAt,
			CompletedAt:   m.CompletedAt,
		})
	}
	if c.Completion != nil {
		dto.Completion = &completionDTO{
			ArtistPayout: c.Completion.ArtistPayout,
			ClientPayout: c.Completion.ClientPayout,
			Late:         c.Completion.Late,
			CompletedAt:  c.Completion.CompletedAt,
		}
	}
	if c.CancelSummary != nil {
		dto.CancelSummary = &cancelSummaryDTO{
			RequestedBy:    contract.RoleLabel(c.CancelSummary.RequestedBy),
			WorkPercentage: c.CancelSummary.WorkPercentage,
			Fee:            c.CancelSummary.Fee,
			LatePenalty:    c.CancelSummary.LatePenalty,
			ArtistPayout:   c.CancelSummary.ArtistPayout,
			ClientPayout:   c.CancelSummary.ClientPayout,
			DecidedAt:      c.CancelSummary.DecidedAt,
		}
	}
	return dto
}

type snapshotDTO struct {
	Contract        contractDTO     `json:"contract"`
	Role            string          `json:"role"`
	EscrowBalance   int64           `json:"escrow_balance"`
	Allowed         map[string]bool `json:"allowed"`
	OpenTicketSlots map[string]bool `json:"open_ticket_slots"`
}

func toSnapshotDTO(s service.Snapshot) snapshotDTO {
	return snapshotDTO{
		Contract:        toContractDTO(s.Contract),
		Role:            contract.RoleLabel(s.Role),
		EscrowBalance:   s.EscrowBalance,
		Allowed:         s.Allowed,
		OpenTicketSlots: s.OpenTicketSlots,
	}
}

type cancelTicketDTO struct {
	ID                   string     `json:"id"`
	ContractID           string     `json:"contract_id"`
	RequestedBy          string     `json:"requested_by"`
	Reason               string     `json:"reason"`
	AgreedWorkPercentage int        `json:"agreed_work_percentage"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
}

func toCancelTicketDTO(t contract.CancelTicket) cancelTicketDTO {
	return cancelTicketDTO{
		ID:                   t.ID,
		ContractID:           t.ContractID,
		RequestedBy:          contract.RoleLabel(t.RequestedBy),
		Reason:               t.Reason,
		AgreedWorkPercentage: t.AgreedWorkPercentage,
		Status:               contract.CancelStatusLabel(t.Status),
		CreatedAt:            t.CreatedAt,
		ResolvedAt:           t.ResolvedAt,
	}
}

type revisionTicketDTO struct {
	ID              string     `json:"id"`
	ContractID      string     `json:"contract_id"`
	MilestoneIndex  *int       `json:"milestone_index,omitempty"`
	Description     string     `json:"description"`
	ReferenceImages []string   `json:"reference_images,omitempty"`
	Fee             int64      `json:"fee"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	RejectReason    string     `json:"reject_reason,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func toRevisionTicketDTO(t contract.RevisionTicket) revisionTicketDTO {
	return revisionTicketDTO{
		ID:              t.ID,
		ContractID:      t.ContractID,
		MilestoneIndex:  t.MilestoneIndex,
		Description:     t.Description,
		ReferenceImages: t.ReferenceImages,
		Fee:             t.Fee,
		PaidAt:          t.PaidAt,
		RejectReason:    t.RejectReason,
		Status:          contract.RevisionStatusLabel(t.Status),
		CreatedAt:       t.CreatedAt,
		ResolvedAt:      t.ResolvedAt,
	}
}

type changeSetDTO struct {
	Deadline        *time.Time        `json:"deadline,omitempty"`
	Description     *string           `json:"description,omitempty"`
	ReferenceImages []string          `json:"reference_images,omitempty"`
	GeneralOptions  map[string]string `json:"general_options,omitempty"`
	SubjectOptions  map[string]string `json:"subject_options,omitempty"`
}

func (d changeSetDTO) toDomain() contract.ChangeSet {
	return contract.ChangeSet{
		Deadline:        d.Deadline,
		Description:     d.Description,
		ReferenceImages: d.ReferenceImages,
		GeneralOptions:  d.GeneralOptions,
		SubjectOptions:  d.SubjectOptions,
	}
}

type changeTicketDTO struct {
	ID         string       `json:"id"`
	ContractID string       `json:"contract_id"`
	Changes    changeSetDTO `json:"changes"`
	Fee        int64        `json:"fee"`
	PaidAt     *time.Time   `json:"paid_at,omitempty"`
	Status     string       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

func toChangeTicketDTO(t contract.ChangeTicket) changeTicketDTO {
	return changeTicketDTO{
		ID:         t.ID,
		ContractID: t.ContractID,
		Changes: changeSetDTO{
			Deadline:        t.Changes.Deadline,
			Description:     t.Changes.Description,
			ReferenceImages: t.Changes.ReferenceImages,
			GeneralOptions:  t.Changes.GeneralOptions,
			SubjectOptions:  t.Changes.SubjectOptions,
		},
		Fee:        t.Fee,
		PaidAt:     t.PaidAt,
		Status:     contract.ChangeStatusLabel(t.Status),
		CreatedAt:  t.CreatedAt,
		ResolvedAt: t.ResolvedAt,
	}
}

type resolutionTicketDTO struct {
	ID                 string     `json:"id"`
	ContractID         string     `json:"contract_id"`
	OpenedBy           string     `json:"opened_by"`
	TargetKind         string     `json:"target_kind"`
	TargetID           string     `json:"target_id"`
	ProofImages        []string   `json:"proof_images"`
	Description        string     `json:"description,omitempty"`
	CounterproofImages []string   `json:"counterproof_images,omitempty"`
	CounterproofBy     *time.Time `json:"counterproof_by,omitempty"`
	Decision           string     `json:"decision,omitempty"`
	Action             string     `json:"action,omitempty"`
	Note               string     `json:"note,omitempty"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
}

func toResolutionTicketDTO(t contract.ResolutionTicket) resolutionTicketDTO {
	dto := resolutionTicketDTO{
		ID:                 t.ID,
		ContractID:         t.ContractID,
		OpenedBy:           contract.RoleLabel(t.OpenedBy),
		TargetKind:         targetKindLabel(t.TargetKind),
		TargetID:           t.TargetID,
		ProofImages:        t.ProofImages,
		Description:        t.Description,
		CounterproofImages: t.CounterproofImages,
		CounterproofBy:     t.CounterproofBy,
		Note:               t.Note,
		Status:             contract.ResolutionStatusLabel(t.Status),
		CreatedAt:          t.CreatedAt,
		ResolvedAt:         t.ResolvedAt,
	}
	if t.Decision != contract.DecisionUnspecified {
		dto.Decision = decisionLabel(t.Decision)
	}
	if t.Action != contract.ActionUnspecified {
		dto.Action = actionLabel(t.Action)
	}
	return dto
}

type uploadDTO struct {
	ID               string     `json:"id"`
	ContractID       string     `json:"contract_id"`
	Kind             string     `json:"kind"`
	Images           []string   `json:"images"`
	Description      string     `json:"description,omitempty"`
	MilestoneIndex   *int       `json:"milestone_index,omitempty"`
	RevisionTicketID string     `json:"revision_ticket_id,omitempty"`
	CancelTicketID   string     `json:"cancel_ticket_id,omitempty"`
	WorkProgress     int        `json:"work_progress"`
	Status           string     `json:"status"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

func toUploadDTO(u contract.Upload) uploadDTO {
	return uploadDTO{
		ID:               u.ID,
		ContractID:       u.ContractID,
		Kind:             contract.UploadKindLabel(u.Kind),
		Images:           u.Images,
		Description:      u.Description,
		MilestoneIndex:   u.MilestoneIndex,
		RevisionTicketID: u.RevisionTicketID,
		CancelTicketID:   u.CancelTicketID,
		WorkProgress:     u.WorkProgress,
		Status:           contract.UploadStatusLabel(u.Status),
		ExpiresAt:        u.ExpiresAt,
		CreatedAt:        u.CreatedAt,
		ResolvedAt:       u.ResolvedAt,
	}
}

type walletDTO struct {
	UserID    string    `json:"user_id"`
	Available int64     `json:"available"`
	Escrowed  int64     `json:"escrowed"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletDTO(w wallet.Wallet) walletDTO {
	return walletDTO{UserID: w.UserID, Available: w.Available, Escrowed: w.Escrowed, UpdatedAt: w.UpdatedAt}
}

type transactionDTO struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Type       string    `json:"type"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTransactionDTO(tx ledger.Transaction) transactionDTO {
	return transactionDTO{
		ID:         tx.ID,
		ContractID: tx.ContractID,
		Type:       string(tx.Type),
		From:       string(tx.From),
		To:         string(tx.To),
		Amount:     tx.Amount,
		CreatedAt:  tx.CreatedAt,
	}
}

func flowLabel(f contract.Flow) string {
	switch f {
	case contract.FlowStandard:
		return "STANDARD"
	case contract.FlowMilestone:
		return "MILESTONE"
	default:
		return "UNSPECIFIED"
	}
}

func parseFlow(s string) (contract.Flow, error) {
	switch s {
	case "STANDARD":
		return contract.FlowStandard, nil
	case "MILESTONE":
		return contract.FlowMilestone, nil
	default:
		return contract.FlowUnspecified, fmt.Errorf("unknown flow %q", s)
	}
}

func parseRevisionPolicyKind(s string) (contract.RevisionPolicyKind, error) {
	switch s {
	case "NONE", "":
		return contract.RevisionPolicyNone, nil
	case "LIMITED":
		return contract.RevisionPolicyLimited, nil
	case "UNLIMITED":
		return contract.RevisionPolicyUnlimited, nil
	default:
		return contract.RevisionPolicyNone, fmt.Errorf("unknown revision policy %q", s)
	}
}

func parseUploadKind(s string) (contract.UploadKind, error) {
	switch s {
	case "PROGRESS_STANDARD":
		return contract.UploadKindProgressStandard, nil
	case "PROGRESS_MILESTONE":
		return contract.UploadKindProgressMilestone, nil
	case "REVISION":
		return contract.UploadKindRevision, nil
	case "FINAL":
		return contract.UploadKindFinal, nil
	default:
		return contract.UploadKindUnspecified, fmt.Errorf("unknown upload kind %q", s)
	}
}

func parseCancelResponse(s string) (service.CancelResponse, error) {
	switch s {
	case "ACCEPT":
		return service.CancelAccept, nil
	case "REJECT":
		return service.CancelReject, nil
	case "ESCALATE":
		return service.CancelEscalate, nil
	default:
		return 0, fmt.Errorf("unknown cancel response %q", s)
	}
}

func parseRevisionResponse(s string) (service.RevisionResponse, error) {
	switch s {
	case "ACCEPT":
		return service.RevisionAccept, nil
	case "REJECT":
		return service.RevisionReject, nil
	case "REJECT_OUT_OF_SCOPE":
		return service.RevisionRejectOutOfScope, nil
	default:
		return 0, fmt.Errorf("unknown revision response %q", s)
	}
}

func parseChangeResponse(s string) (service.ChangeResponse, error) {
	switch s {
	case "ACCEPT_FREE":
		return service.ChangeAcceptFree, nil
	case "REJECT":
		return service.ChangeReject, nil
	case "PROPOSE_FEE":
		return service.ChangeProposeFee, nil
	default:
		return 0, fmt.Errorf("unknown change response %q", s)
	}
}

func parseChangeDecision(s string) (service.ChangeDecision, error) {
	switch s {
	case "PAY_AND_APPLY":
		return service.ChangePayAndApply, nil
	case "DECLINE":
		return service.ChangeDecline, nil
	default:
		return 0, fmt.Errorf("unknown change decision %q", s)
	}
}

func targetKindLabel(k contract.ResolutionTargetKind) string {
	switch k {
	case contract.ResolutionTargetCancelTicket:
		return "CANCEL_TICKET"
	case contract.ResolutionTargetRevisionTicket:
		return "REVISION_TICKET"
	case contract.ResolutionTargetFinalUpload:
		return "FINAL_UPLOAD"
	case contract.ResolutionTargetMilestoneUpload:
		return "MILESTONE_UPLOAD"
	default:
		return "UNSPECIFIED"
	}
}

func parseTargetKind(s string) (contract.ResolutionTargetKind, error) {
	switch s {
	case "CANCEL_TICKET":
		return contract.ResolutionTargetCancelTicket, nil
	case "REVISION_TICKET":
		return contract.ResolutionTargetRevisionTicket, nil
	case "FINAL_UPLOAD":
		return contract.ResolutionTargetFinalUpload, nil
	case "MILESTONE_UPLOAD":
		return contract.ResolutionTargetMilestoneUpload, nil
	default:
		return contract.ResolutionTargetUnspecified, fmt.Errorf("unknown dispute target %q", s)
	}
}

func decisionLabel(d contract.ResolutionDecision) string {
	switch d {
	case contract.DecisionFavorClient:
		return "FAVOR_CLIENT"
	case contract.DecisionFavorArtist:
		return "FAVOR_ARTIST"
	default:
		return "UNSPECIFIED"
	}
}

func parseDecision(s string) (contract.ResolutionDecision, error) {
	switch s {
	case "FAVOR_CLIENT":
		return contract.DecisionFavorClient, nil
	case "FAVOR_ARTIST":
		return contract.DecisionFavorArtist, nil
	default:
		return contract.DecisionUnspecified, fmt.Errorf("unknown decision %q", s)
	}
}

func actionLabel(a contract.ResolutionAction) string {
	switch a {
	case contract.ActionFullRefund:
		return "FULL_REFUND"
	case contract.ActionPartialRefund:
		return "PARTIAL_REFUND"
	case contract.ActionReleaseFunds:
		return "RELEASE_FUNDS"
	case contract.ActionNoAction:
		return "NO_ACTION"
	default:
		return "UNSPECIFIED"
	}
}

func parseAction(s string) (contract.ResolutionAction, error) {
	switch s {
	case "FULL_REFUND":
		return contract.ActionFullRefund, nil
	case "PARTIAL_REFUND":
		return contract.ActionPartialRefund, nil
	case "RELEASE_FUNDS":
		return contract.ActionReleaseFunds, nil
	case "NO_ACTION":
		return contract.ActionNoAction, nil
	default:
		return contract.ActionUnspecified, fmt.Errorf("unknown action %q", s)
	}
}
