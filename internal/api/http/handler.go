// Package http is the JSON transport for the contract engine. Handlers
// decode requests, delegate to the service layer, and map domain errors to
// localized wire responses; no business rules live here.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/contract/service"
)

// Handler carries the service dependency for all endpoints.
type Handler struct {
	service *service.Service
}

// NewHandler builds the endpoint set over the contract service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

type revisionPolicyRequest struct {
	Kind     string `json:"kind"`
	Included int    `json:"included"`
	ExtraFee int64  `json:"extra_fee"`
}

type cancellationFeeRequest struct {
	Flat    int64 `json:"flat"`
	Percent int   `json:"percent"`
}

type milestoneSpecRequest struct {
	Title   string `json:"title"`
	Percent int    `json:"percent"`
}

type proposalSnapshotRequest struct {
	ListingID           string                 `json:"listing_id"`
	ProposalID          string                 `json:"proposal_id"`
	Flow                string                 `json:"flow"`
	BasePrice           int64                  `json:"base_price"`
	OptionFees          int64                  `json:"option_fees"`
	Addons              int64                  `json:"addons"`
	RushFee             int64                  `json:"rush_fee"`
	Discount            int64                  `json:"discount"`
	Surcharge           int64                  `json:"surcharge"`
	RevisionPolicy      revisionPolicyRequest  `json:"revision_policy"`
	CancellationFee     cancellationFeeRequest `json:"cancellation_fee"`
	LatePenaltyPercent  int                    `json:"late_penalty_percent"`
	AllowContractChange bool                   `json:"allow_contract_change"`
	Changeable          []string               `json:"changeable"`
	MilestoneTemplate   []milestoneSpecRequest `json:"milestone_template"`
	Description         string                 `json:"description"`
	ReferenceImages     []string               `json:"reference_images"`
	GeneralOptions      map[string]string      `json:"general_options"`
	SubjectOptions      map[string]string      `json:"subject_options"`
}

func (r proposalSnapshotRequest) toDomain() (contract.ProposalSnapshot, error) {
	flow, err := parseFlow(r.Flow)
	if err != nil {
		return contract.ProposalSnapshot{}, err
	}
	policyKind, err := parseRevisionPolicyKind(r.RevisionPolicy.Kind)
	if err != nil {
		return contract.ProposalSnapshot{}, err
	}
	snapshot := contract.ProposalSnapshot{
		ListingID:  r.ListingID,
		ProposalID: r.ProposalID,
		Flow:       flow,
		BasePrice:  r.BasePrice,
		OptionFees: r.OptionFees,
		Addons:     r.Addons,
		RushFee:    r.RushFee,
		Discount:   r.Discount,
		Surcharge:  r.Surcharge,
		RevisionPolicy: contract.RevisionPolicy{
			Kind:     policyKind,
			Included: r.RevisionPolicy.Included,
			ExtraFee: r.RevisionPolicy.ExtraFee,
		},
		CancellationFee: contract.CancellationFeePolicy{
			Flat:    r.CancellationFee.Flat,
			Percent: r.CancellationFee.Percent,
		},
		LatePenaltyPercent:  r.LatePenaltyPercent,
		AllowContractChange: r.AllowContractChange,
		Description:         r.Description,
		ReferenceImages:     r.ReferenceImages,
		GeneralOptions:      r.GeneralOptions,
		SubjectOptions:      r.SubjectOptions,
	}
	for _, field := range r.Changeable {
		snapshot.Changeable = append(snapshot.Changeable, contract.ChangeableField(field))
	}
	for _, spec := range r.MilestoneTemplate {
		snapshot.MilestoneTemplate = append(snapshot.MilestoneTemplate, contract.MilestoneSpec{
			Title:   spec.Title,
			Percent: spec.Percent,
		})
	}
	return snapshot, nil
}

type createContractRequest struct {
	ClientID        string                  `json:"client_id"`
	ArtistID        string                  `json:"artist_id"`
	Snapshot        proposalSnapshotRequest `json:"snapshot"`
	DeadlineAt      time.Time               `json:"deadline_at"`
	GracePeriodDays int                     `json:"grace_period_days"`
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	snapshot, err := req.Snapshot.toDomain()
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	c, err := h.service.CreateContract(r.Context(), actorFromContext(r.Context()), service.CreateContractInput{
		ClientID:    req.ClientID,
		ArtistID:    req.ArtistID,
		Snapshot:    snapshot,
		DeadlineAt:  req.DeadlineAt,
		GracePeriod: time.Duration(req.GracePeriodDays) * 24 * time.Hour,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetContract(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	contracts, err := h.service.ListContracts(r.Context(), actorFromContext(r.Context()), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]contractDTO, 0, len(contracts))
	for _, c := range contracts {
		dtos = append(dtos, toContractDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snapshot))
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.ListLedger(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]transactionDTO, 0, len(transactions))
	for _, tx := range transactions {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wlt, err := h.service.GetWallet(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wlt))
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	wlt, err := h.service.Deposit(r.Context(), actorFromContext(r.Context()), req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wlt))
}
