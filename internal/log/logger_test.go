package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: "worker", JSON: true, Output: &buf})

	logger.Info("Bill reconciled", FieldBillID, "bill-1")
	logger.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec[FieldComponent] != "worker" {
		t.Errorf("component = %v, want worker", rec[FieldComponent])
	}
	if rec[FieldBillID] != "bill-1" {
		t.Errorf("bill_id = %v, want bill-1", rec[FieldBillID])
	}
}

func TestWithComponentReplacesTag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "api", Output: &buf}).WithComponent(ComponentWebhook)

	logger.Warn("Rejected")
	if strings.Count(buf.String(), "component=") != 1 {
		t.Errorf("expected a single component attribute, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "component="+ComponentWebhook) {
		t.Errorf("expected webhook component, got %q", buf.String())
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "api", Output: &buf})

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatal("expected the middleware logger in the request context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a fallback logger")
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: "api", JSON: true, Output: &buf}))

	sl.LogError(context.Background(), "Campaign onboarding failed", errors.New("boom"),
		ComponentCampaign, OpCreate, NewFields().WithCampaign("CAMP-1", "", "", ""))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec[FieldComponent] != ComponentCampaign {
		t.Errorf("component = %v, want %s", rec[FieldComponent], ComponentCampaign)
	}
	if rec[FieldError] != "boom" {
		t.Errorf("error = %v, want boom", rec[FieldError])
	}
	if rec[FieldCampaignRef] != "CAMP-1" {
		t.Errorf("campaign_ref = %v, want CAMP-1", rec[FieldCampaignRef])
	}
}
