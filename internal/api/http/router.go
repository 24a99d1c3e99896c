package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires middleware and routes. Everything under /v1 requires a
// verified bearer token.
func NewRouter(handler *Handler, verifier *TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(verifier))

		r.Post("/contracts", handler.createContract)
		r.Get("/contracts", handler.listContracts)
		r.Get("/contracts/{contract_id}", handler.getContract)
		r.Get("/contracts/{contract_id}/snapshot", handler.getSnapshot)
		r.Get("/contracts/{contract_id}/ledger", handler.listLedger)

		r.Post("/contracts/{contract_id}/cancel-tickets", handler.createCancelTicket)
		r.Get("/contracts/{contract_id}/cancel-tickets", handler.listCancelTickets)
		r.Post("/cancel-tickets/{ticket_id}/respond", handler.respondCancelTicket)

		r.Post("/contracts/{contract_id}/revision-tickets", handler.createRevisionTicket)
		r.Get("/contracts/{contract_id}/revision-tickets", handler.listRevisionTickets)
		r.Post("/revision-tickets/{ticket_id}/respond", handler.respondRevisionTicket)
		r.Post("/revision-tickets/{ticket_id}/pay", handler.payRevisionFee)

		r.Post("/contracts/{contract_id}/change-tickets", handler.createChangeTicket)
		r.Get("/contracts/{contract_id}/change-tickets", handler.listChangeTickets)
		r.Post("/change-tickets/{ticket_id}/submit", handler.submitChangeTicket)
		r.Post("/change-tickets/{ticket_id}/respond", handler.respondChangeTicket)
		r.Post("/change-tickets/{ticket_id}/decide", handler.decideChangeTicket)
		r.Post("/change-tickets/{ticket_id}/cancel", handler.cancelChangeTicket)

		r.Post("/contracts/{contract_id}/resolution-tickets", handler.openResolutionTicket)
		r.Get("/contracts/{contract_id}/resolution-tickets", handler.listResolutionTickets)
		r.Post("/resolution-tickets/{ticket_id}/counterproof", handler.submitCounterproof)
		r.Post("/resolution-tickets/{ticket_id}/review", handler.beginResolutionReview)
		r.Post("/resolution-tickets/{ticket_id}/resolve", handler.resolveResolutionTicket)

		r.Post("/contracts/{contract_id}/uploads", handler.createUpload)
		r.Get("/contracts/{contract_id}/uploads", handler.listUploads)
		r.Post("/uploads/{upload_id}/review", handler.reviewUpload)

		r.Get("/wallet", handler.getWallet)
		r.Post("/wallet/deposits", handler.deposit)
	})

	return r
}
