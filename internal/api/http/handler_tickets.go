package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/atelier/internal/contract/service"
)

type createCancelTicketRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) createCancelTicket(w http.ResponseWriter, r *http.Request) {
	var req createCancelTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	ticket, err := h.service.CreateCancelTicket(r.Context(), actorFromContext(r.Context()), service.CreateCancelTicketInput{
		ContractID: chi.URLParam(r, "contract_id"),
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCancelTicketDTO(ticket))
}

type respondCancelTicketRequest struct {
	Response             string `json:"response"`
	AgreedWorkPercentage int    `json:"agreed_work_percentage"`
}

func (h *Handler) respondCancelTicket(w http.ResponseWriter, r *http.Request) {
	var req respondCancelTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	response, err := parseCancelResponse(req.Response)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.RespondCancelTicket(r.Context(), actorFromContext(r.Context()), service.RespondCancelTicketInput{
		TicketID:             chi.URLParam(r, "ticket_id"),
		Response:             response,
		AgreedWorkPercentage: req.AgreedWorkPercentage,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelTicketDTO(ticket))
}

func (h *Handler) listCancelTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListCancelTickets(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]cancelTicketDTO, 0, len(tickets))
	for _, t := range tickets {
		dtos = append(dtos, toCancelTicketDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

type createRevisionTicketRequest struct {
	MilestoneIndex  *int     `json:"milestone_index"`
	Description     string   `json:"description"`
	ReferenceImages []string `json:"reference_images"`
}

func (h *Handler) createRevisionTicket(w http.ResponseWriter, r *http.Request) {
	var req createRevisionTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	ticket, err := h.service.CreateRevisionTicket(r.Context(), actorFromContext(r.Context()), service.CreateRevisionTicketInput{
		ContractID:      chi.URLParam(r, "contract_id"),
		MilestoneIndex:  req.MilestoneIndex,
		Description:     req.Description,
		ReferenceImages: req.ReferenceImages,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevisionTicketDTO(ticket))
}

type respondRevisionTicketRequest struct {
	Response     string `json:"response"`
	Fee          int64  `json:"fee"`
	RejectReason string `json:"reject_reason"`
}

func (h *Handler) respondRevisionTicket(w http.ResponseWriter, r *http.Request) {
	var req respondRevisionTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	response, err := parseRevisionResponse(req.Response)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.RespondRevisionTicket(r.Context(), actorFromContext(r.Context()), service.RespondRevisionTicketInput{
		TicketID:     chi.URLParam(r, "ticket_id"),
		Response:     response,
		Fee:          req.Fee,
		RejectReason: req.RejectReason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionTicketDTO(ticket))
}

func (h *Handler) payRevisionFee(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.PayRevisionFee(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "ticket_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionTicketDTO(ticket))
}

func (h *Handler) listRevisionTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListRevisionTickets(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]revisionTicketDTO, 0, len(tickets))
	for _, t := range tickets {
		dtos = append(dtos, toRevisionTicketDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

type createChangeTicketRequest struct {
	Changes changeSetDTO `json:"changes"`
	Submit  bool         `json:"submit"`
}

func (h *Handler) createChangeTicket(w http.ResponseWriter, r *http.Request) {
	var req createChangeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	ticket, err := h.service.CreateChangeTicket(r.Context(), actorFromContext(r.Context()), service.CreateChangeTicketInput{
		ContractID: chi.URLParam(r, "contract_id"),
		Changes:    req.Changes.toDomain(),
		Submit:     req.Submit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChangeTicketDTO(ticket))
}

func (h *Handler) submitChangeTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.SubmitChangeTicket(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "ticket_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeTicketDTO(ticket))
}

type respondChangeTicketRequest struct {
	Response string `json:"response"`
	Fee      int64  `json:"fee"`
}

func (h *Handler) respondChangeTicket(w http.ResponseWriter, r *http.Request) {
	var req respondChangeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	response, err := parseChangeResponse(req.Response)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.RespondChangeTicket(r.Context(), actorFromContext(r.Context()), service.RespondChangeTicketInput{
		TicketID: chi.URLParam(r, "ticket_id"),
		Response: response,
		Fee:      req.Fee,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeTicketDTO(ticket))
}

type decideChangeTicketRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) decideChangeTicket(w http.ResponseWriter, r *http.Request) {
	var req decideChangeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	decision, err := parseChangeDecision(req.Decision)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.DecideChangeTicket(r.Context(), actorFromContext(r.Context()), service.DecideChangeTicketInput{
		TicketID: chi.URLParam(r, "ticket_id"),
		Decision: decision,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeTicketDTO(ticket))
}

func (h *Handler) cancelChangeTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.CancelChangeTicket(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "ticket_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChangeTicketDTO(ticket))
}

func (h *Handler) listChangeTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListChangeTickets(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]changeTicketDTO, 0, len(tickets))
	for _, t := range tickets {
		dtos = append(dtos, toChangeTicketDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

type openResolutionTicketRequest struct {
	TargetKind  string   `json:"target_kind"`
	TargetID    string   `json:"target_id"`
	ProofImages []string `json:"proof_images"`
	Description string   `json:"description"`
}

func (h *Handler) openResolutionTicket(w http.ResponseWriter, r *http.Request) {
	var req openResolutionTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	targetKind, err := parseTargetKind(req.TargetKind)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.OpenResolutionTicket(r.Context(), actorFromContext(r.Context()), service.OpenResolutionTicketInput{
		ContractID:  chi.URLParam(r, "contract_id"),
		TargetKind:  targetKind,
		TargetID:    req.TargetID,
		ProofImages: req.ProofImages,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResolutionTicketDTO(ticket))
}

type counterproofRequest struct {
	Images []string `json:"images"`
}

func (h *Handler) submitCounterproof(w http.ResponseWriter, r *http.Request) {
	var req counterproofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	ticket, err := h.service.SubmitCounterproof(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "ticket_id"), req.Images)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionTicketDTO(ticket))
}

func (h *Handler) beginResolutionReview(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.BeginResolutionReview(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "ticket_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionTicketDTO(ticket))
}

type resolveResolutionTicketRequest struct {
	Decision string `json:"decision"`
	Action   string `json:"action"`
	Note     string `json:"note"`
}

func (h *Handler) resolveResolutionTicket(w http.ResponseWriter, r *http.Request) {
	var req resolveResolutionTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	decision, err := parseDecision(req.Decision)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	action, err := parseAction(req.Action)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	ticket, err := h.service.ResolveResolutionTicket(r.Context(), actorFromContext(r.Context()), service.ResolveResolutionTicketInput{
		TicketID: chi.URLParam(r, "ticket_id"),
		Decision: decision,
		Action:   action,
		Note:     req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionTicketDTO(ticket))
}

func (h *Handler) listResolutionTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.ListResolutionTickets(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]resolutionTicketDTO, 0, len(tickets))
	for _, t := range tickets {
		dtos = append(dtos, toResolutionTicketDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}
