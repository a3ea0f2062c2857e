package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDKeepsCallerID(t *testing.T) {
	const callerID = "trace-4711"
	var seenInContext string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = RequestIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	req.Header.Set("X-Request-Id", callerID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenInContext != callerID {
		t.Fatalf("context id = %q, want %q", seenInContext, callerID)
	}
	if got := rec.Header().Get("X-Request-Id"); got != callerID {
		t.Fatalf("response header = %q, want %q", got, callerID)
	}
}

func TestWithRequestIDGeneratesID(t *testing.T) {
	var seenInContext string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = RequestIDFromRequest(r)
	}))

	// a blank header counts as missing
	req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	req.Header.Set("X-Request-Id", "   ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenInContext == "" {
		t.Fatal("expected a generated request id in context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seenInContext {
		t.Fatalf("response header %q does not match context id %q", got, seenInContext)
	}
}
