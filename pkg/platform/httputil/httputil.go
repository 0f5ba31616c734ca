// Package httputil holds the JSON response helpers shared by all HTTP
// handlers: one success encoder and one domain error translator, so every
// endpoint speaks the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "custodian/pkg/domain-errors"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into an HTTP response. Internal
// and configuration failures omit the description so store details never
// reach callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeConfiguration {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			body["error_description"] = domainErr.Message
		}
	}
	WriteJSON(w, StatusFor(code), body)
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads the request body into T. Malformed JSON surfaces as a
// validation error ready for WriteError.
func Decode[T any](r *http.Request) (T, error) {
	var req T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body")
	}
	return req, nil
}
