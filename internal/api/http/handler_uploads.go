package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelierhq/atelier/internal/contract/service"
)

type createUploadRequest struct {
	Kind             string   `json:"kind"`
	Images           []string `json:"images"`
	Description      string   `json:"description"`
	MilestoneIndex   *int     `json:"milestone_index"`
	RevisionTicketID string   `json:"revision_ticket_id"`
	CancelTicketID   string   `json:"cancel_ticket_id"`
	WorkProgress     int      `json:"work_progress"`
}

func (h *Handler) createUpload(w http.ResponseWriter, r *http.Request) {
	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	kind, err := parseUploadKind(req.Kind)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	upload, err := h.service.CreateUpload(r.Context(), actorFromContext(r.Context()), service.CreateUploadInput{
		ContractID:       chi.URLParam(r, "contract_id"),
		Kind:             kind,
		Images:           req.Images,
		Description:      req.Description,
		MilestoneIndex:   req.MilestoneIndex,
		RevisionTicketID: req.RevisionTicketID,
		CancelTicketID:   req.CancelTicketID,
		WorkProgress:     req.WorkProgress,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUploadDTO(upload))
}

type reviewUploadRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) reviewUpload(w http.ResponseWriter, r *http.Request) {
	var req reviewUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid json: "+err.Error())
		return
	}
	upload, err := h.service.ReviewUpload(r.Context(), actorFromContext(r.Context()), service.ReviewUploadInput{
		UploadID: chi.URLParam(r, "upload_id"),
		Accept:   req.Accept,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUploadDTO(upload))
}

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.service.ListUploads(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "contract_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]uploadDTO, 0, len(uploads))
	for _, u := range uploads {
		dtos = append(dtos, toUploadDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}
