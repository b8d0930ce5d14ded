package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("ReadAllWithLimit: %v", err)
	}
	if truncated || string(data) != "hello" {
		t.Fatalf("data = %q truncated = %v", data, truncated)
	}

	data, truncated, err = ReadAllWithLimit(strings.NewReader("hello world"), 5)
	if err != nil {
		t.Fatalf("ReadAllWithLimit: %v", err)
	}
	if !truncated || string(data) != "hello" {
		t.Fatalf("data = %q truncated = %v", data, truncated)
	}
}

func TestReadAllStrict_OverLimit(t *testing.T) {
	if _, err := ReadAllStrict(strings.NewReader("hello world"), 5); err == nil {
		t.Fatal("expected error past the limit")
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	newReq := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}

	var p payload
	if err := DecodeJSONBody(newReq(`{"id":"a1","status":"shipped"}`), &p); err != nil {
		t.Fatalf("DecodeJSONBody: %v", err)
	}
	if p.ID != "a1" || p.Status != "shipped" {
		t.Fatalf("unexpected payload %+v", p)
	}

	// Extra fields a client happens to send are dropped, not rejected.
	p = payload{}
	if err := DecodeJSONBody(newReq(`{"id":"a1","status":"shipped","total":250}`), &p); err != nil {
		t.Fatalf("unknown field should be ignored, got %v", err)
	}
	if p.ID != "a1" {
		t.Fatalf("unexpected payload %+v", p)
	}

	if err := DecodeJSONBody(newReq(""), &p); err == nil {
		t.Fatal("expected error for empty body")
	}
	if err := DecodeJSONBody(newReq(`{"id":`), &p); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
