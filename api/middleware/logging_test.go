package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestLoggingRecordsHandlerStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("info"), Output: &buf})

	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("busy"))
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items/shirt", nil))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 passed through got %d", resp.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "request.complete") || !strings.Contains(out, `"status":409`) {
		t.Fatalf("expected completion log with status, got %s", out)
	}
	if !strings.Contains(out, `"bytes":4`) {
		t.Fatalf("expected body size in log, got %s", out)
	}
}

func TestLoggingDefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.status != http.StatusOK || rec.bytes != 2 {
		t.Fatalf("expected 200/2 got %d/%d", rec.status, rec.bytes)
	}
}

func TestLoggingWithoutLoggerPassesThrough(t *testing.T) {
	resp := httptest.NewRecorder()
	Logging(nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
