package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		name       string
		err        *ServiceError
		wantCode   ErrorCode
		wantStatus int
	}{
		{"credential missing", CredentialMissing(""), CodeCredentialMissing, http.StatusUnauthorized},
		{"credential invalid", CredentialInvalid(fmt.Errorf("bad")), CodeCredentialInvalid, http.StatusUnauthorized},
		{"forbidden", Forbidden(""), CodeInsufficientPrivilege, http.StatusForbidden},
		{"validation", Validation("bad input"), CodeValidationError, http.StatusBadRequest},
		{"not found", NotFound("order", "o1"), CodeNotFound, http.StatusNotFound},
		{"internal", Internal("", fmt.Errorf("boom")), CodeBackendError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.wantCode {
				t.Fatalf("code = %s, want %s", tc.err.Code, tc.wantCode)
			}
			if tc.err.HTTPStatus != tc.wantStatus {
				t.Fatalf("status = %d, want %d", tc.err.HTTPStatus, tc.wantStatus)
			}
			if tc.err.Message == "" {
				t.Fatal("empty message")
			}
		})
	}
}

func TestGetServiceError_Wrapped(t *testing.T) {
	inner := Forbidden("no")
	wrapped := fmt.Errorf("gate: %w", inner)

	got := GetServiceError(wrapped)
	if got == nil || got.Code != CodeInsufficientPrivilege {
		t.Fatalf("got %+v", got)
	}
}

func TestGetServiceError_Plain(t *testing.T) {
	if got := GetServiceError(fmt.Errorf("plain")); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("app", "a1"))
	if !Is(err, CodeNotFound) {
		t.Fatal("Is did not match wrapped code")
	}
	if Is(err, CodeValidationError) {
		t.Fatal("Is matched wrong code")
	}
}

func TestWithDetails(t *testing.T) {
	err := Validation("bad").WithDetails("field", "status")
	if err.Details["field"] != "status" {
		t.Fatalf("details = %+v", err.Details)
	}
}

func TestNotFound_CarriesResource(t *testing.T) {
	err := NotFound("order", "o1")
	if err.Details["resource"] != "order" || err.Details["id"] != "o1" {
		t.Fatalf("details = %+v", err.Details)
	}
}
