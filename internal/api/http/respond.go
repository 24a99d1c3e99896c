package http

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps a service error to its HTTP status and localized
// wire body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apperrors.HandleError(err, requestLocale(r))
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, apperrors.HTTPResponse{
		Code:    "INVALID_REQUEST",
		Message: message,
		Locale:  requestLocale(r),
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, apperrors.HTTPResponse{
		Code:    "UNAUTHORIZED",
		Message: "invalid or missing credentials",
		Locale:  requestLocale(r),
	})
}

func writeInternalError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, apperrors.HTTPResponse{
		Code:    string(apperrors.CodeUnknown),
		Message: "an unexpected error occurred",
		Locale:  requestLocale(r),
	})
}

// requestLocale picks the first Accept-Language entry, defaulting to the
// catalog default.
func requestLocale(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return apperrors.DefaultLocale
	}
	locale := strings.TrimSpace(strings.Split(header, ",")[0])
	if idx := strings.Index(locale, ";"); idx >= 0 {
		locale = locale[:idx]
	}
	if locale == "" {
		return apperrors.DefaultLocale
	}
	return locale
}
