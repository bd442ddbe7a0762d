// Package httputil writes JSON responses and the shared error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "skillproof/pkg/domain-errors"
)

// DefaultMaxBodyBytes caps request bodies decoded with DecodeJSON.
const DefaultMaxBodyBytes int64 = 64 << 10

type errorResponse struct {
	Error            string `json:"error"`
	ErrorNumber      int    `json:"error_number,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK writes the acknowledgement returned by mutations.
func WriteOK(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// WriteError translates err into the error envelope. Uncoded errors and
// internal failures never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	resp := errorResponse{
		Error:       string(code),
		ErrorNumber: code.Number(),
	}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, resp)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotAuthorized, dErrors.CodeNotRegistered, dErrors.CodeInsufficientReputation,
		dErrors.CodeSelfValidation, dErrors.CodeCategoryMismatch, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeAlreadyRegistered, dErrors.CodeAlreadyValidator, dErrors.CodeDuplicateValidation,
		dErrors.CodeSkillAlreadyValidated, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeSkillNotFound, dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidParameter, dErrors.CodeInvalidDateRange, dErrors.CodeBadRequest,
		dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a single JSON object from the request body, rejecting
// unknown fields and bodies over maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body too large")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
