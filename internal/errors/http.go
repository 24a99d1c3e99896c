package errors

import (
	"errors"
	"net/http"

	"github.com/atelierhq/atelier/internal/errors/i18n"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = "en-US"

// HTTPResponse is the wire shape of a handled domain error.
type HTTPResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Locale   string            `json:"locale"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HandleError converts domain errors to an HTTP status and response body.
// It formats the user-facing message using the i18n catalog for the given
// locale, defaulting to en-US if the locale is empty.
func HandleError(err error, locale string) (int, HTTPResponse) {
	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		return appErr.Code.HTTPStatus(), HTTPResponse{
			Code:     string(appErr.Code),
			Message:  catalog.Format(string(appErr.Code), appErr.Metadata),
			Locale:   catalog.Locale(),
			Metadata: appErr.Metadata,
		}
	}

	// Unknown error - return internal with generic message
	return http.StatusInternalServerError, HTTPResponse{
		Code:    string(CodeUnknown),
		Message: "an unexpected error occurred",
		Locale:  locale,
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
