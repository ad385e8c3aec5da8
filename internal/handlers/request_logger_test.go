package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paydesk/reconciler/internal/logging"
)

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newTestHandlers(t, nil, nil, nil)
	h.logger = slog.New(slog.NewTextHandler(&buf, nil))

	var seenID string
	next := h.MetricsContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = r.Header.Get("X-Request-ID")
		logging.FromContext(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/fedapay", nil)
	rec := httptest.NewRecorder()
	h.RequestLogger(next).ServeHTTP(rec, req)

	requestID := rec.Header().Get("X-Request-ID")
	if requestID == "" || requestID != seenID {
		t.Fatalf("expected one request id end to end, got response %q handler %q", requestID, seenID)
	}

	out := buf.String()
	if !strings.Contains(out, "msg=\"inside handler\"") || !strings.Contains(out, "request_id="+requestID) {
		t.Fatalf("handler log missing request scope:\n%s", out)
	}
	if !strings.Contains(out, "status=202") {
		t.Fatalf("completion log missing status:\n%s", out)
	}
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-from-proxy")
	rec := httptest.NewRecorder()

	h.RequestLogger(http.HandlerFunc(h.Health)).ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-from-proxy" {
		t.Fatalf("expected incoming request id, got %q", got)
	}
}
