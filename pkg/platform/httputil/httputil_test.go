package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "skillproof/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("connection reset"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if strings.Contains(w.Body.String(), "connection reset") {
			t.Fatalf("expected cause to stay out of the response")
		}
	})

	t.Run("ledger error carries its wire number", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeDuplicateValidation, "validator already endorsed this skill"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "duplicate_validation" {
			t.Fatalf("expected error code duplicate_validation, got %q", body["error"])
		}
		if body["error_number"] != float64(8) {
			t.Fatalf("expected error_number 8, got %v", body["error_number"])
		}
		if body["error_description"] != "validator already endorsed this skill" {
			t.Fatalf("expected error_description to be returned")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if _, ok := body["error_number"]; ok {
			t.Fatalf("expected error_number to be omitted for unnumbered codes")
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeNotAuthorized:          http.StatusForbidden,
		dErrors.CodeAlreadyRegistered:      http.StatusConflict,
		dErrors.CodeNotRegistered:          http.StatusForbidden,
		dErrors.CodeSkillNotFound:          http.StatusNotFound,
		dErrors.CodeSkillAlreadyValidated:  http.StatusConflict,
		dErrors.CodeSelfValidation:         http.StatusForbidden,
		dErrors.CodeCategoryMismatch:       http.StatusForbidden,
		dErrors.CodeDuplicateValidation:    http.StatusConflict,
		dErrors.CodeAlreadyValidator:       http.StatusConflict,
		dErrors.CodeInsufficientReputation: http.StatusForbidden,
		dErrors.CodeInvalidParameter:       http.StatusBadRequest,
		dErrors.CodeInvalidDateRange:       http.StatusBadRequest,
		dErrors.CodeUnauthorized:           http.StatusUnauthorized,
		dErrors.CodeRateLimited:            http.StatusTooManyRequests,
		dErrors.CodeTimeout:                http.StatusGatewayTimeout,
		dErrors.CodeUnavailable:            http.StatusServiceUnavailable,
		dErrors.CodeInvariantViolation:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Alice"}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, 0, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Name != "Alice" {
		t.Fatalf("expected Alice, got %q", dst.Name)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nme":"Alice"}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, 0, &dst); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request for unknown field, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, 16, &dst); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request for oversized body, got %v", err)
	}
}
