package httpmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func runRequestID(t *testing.T, inbound string) (ctxID, respID string) {
	t.Helper()
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if inbound != "" {
		req.Header.Set("X-Request-Id", inbound)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get("X-Request-Id")
}

func TestRequestID_Generated(t *testing.T) {
	ctxID, respID := runRequestID(t, "")
	if _, err := uuid.Parse(ctxID); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", ctxID, err)
	}
	if respID != ctxID {
		t.Fatalf("response header %q != context id %q", respID, ctxID)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	ctxID, respID := runRequestID(t, "edge-1234.abc")
	if ctxID != "edge-1234.abc" || respID != ctxID {
		t.Fatalf("ctx=%q resp=%q, want inbound id", ctxID, respID)
	}
}

func TestRequestID_RejectsMalformed(t *testing.T) {
	for _, bad := range []string{"has space", "new\nline", strings.Repeat("a", 200), "<script>"} {
		ctxID, _ := runRequestID(t, bad)
		if ctxID == bad {
			t.Fatalf("malformed id %q should be replaced", bad)
		}
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if got := RequestIDFromContext(req.Context()); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
