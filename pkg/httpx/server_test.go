package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
	dttls "github.com/HatiCode/dtsociety/pkg/tls"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.Validation("bad"), http.StatusBadRequest},
		{"frequency mismatch", errs.FrequencyMismatch([]string{"MS", "AS-JAN"}), http.StatusBadRequest},
		{"unresolvable geo", errs.UnresolvableGeo("geo"), http.StatusBadRequest},
		{"unsupported frequency", errs.UnsupportedFrequency("D"), http.StatusBadRequest},
		{"not found", errs.NotFound("dataset"), http.StatusNotFound},
		{"unauthorized", errs.Unauthorized("no session"), http.StatusUnauthorized},
		{"model fit", errs.ModelFit("var", errors.New("singular")), http.StatusUnprocessableEntity},
		{"wrapped", fmt.Errorf("stage: %w", errs.NotFound("x")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFromError(tt.err); got != tt.want {
				t.Errorf("StatusFromError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, quietLogger(), errs.FrequencyMismatch([]string{"MS", "AS-JAN"}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != string(errs.KindFrequencyMismatch) {
		t.Errorf("code = %q", resp.Code)
	}
	if len(resp.Frequencies) != 2 {
		t.Errorf("frequencies = %v, want both tokens", resp.Frequencies)
	}

	rec = httptest.NewRecorder()
	WriteDomainError(rec, quietLogger(), errors.New("database password leaked"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != "internal server error" {
		t.Errorf("internal errors must not leak, got %q", resp.Error)
	}
}

func TestHealthHandlerWithCheck(t *testing.T) {
	ok := HealthHandlerWithCheck(func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthy check = %d %q", rec.Code, rec.Body.String())
	}

	failing := HealthHandlerWithCheck(func(context.Context) error { return errors.New("redis down") })
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing check status = %d, want 503", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	h := LoggingMiddleware(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(dttls.Config{}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", c.Timeout)
	}

	if _, err := NewClient(dttls.Config{Enabled: true, CAFile: "/nonexistent/ca.pem"}, time.Second); err == nil {
		t.Error("expected error for missing CA file")
	}
}
