package receiver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/receiver"
)

func newTestService(t *testing.T) (*receiver.Service, *chi.Mux) {
	t.Helper()
	dir := t.TempDir()
	events := eventlog.New(dir, zerolog.Nop())
	metrics := metricsx.NewStore(metricsx.NewRegistry())
	dispatcher := alert.New(alert.Config{Method: "none"}, events, metrics)

	svc := &receiver.Service{
		Blocklist: nil, // unreachable in the two branches exercised here
		Alerts:    dispatcher,
		Events:    events,
		Metrics:   metrics,
	}
	r := chi.NewRouter()
	svc.Routes(r)
	return svc, r
}

func postAnalyze(t *testing.T, r *chi.Mux, body map[string]any) map[string]any {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleAnalyzeSkipsBlocklistingForUnmappedReason(t *testing.T) {
	_, r := newTestService(t)
	out := postAnalyze(t, r, map[string]any{
		"reason":  "just a routine check",
		"details": map[string]any{"ip": "203.0.113.20"},
	})
	assert.Equal(t, "blocklist_skipped_criteria_not_met", out["action_taken"])
}

func TestHandleAnalyzeSkipsBlocklistingForUnknownIP(t *testing.T) {
	_, r := newTestService(t)
	out := postAnalyze(t, r, map[string]any{
		"reason": "High Combined Score (0.950)",
	})
	assert.Equal(t, "blocklist_skipped_unknown_ip", out["action_taken"])
	assert.Equal(t, "unknown", out["ip_processed"])
}

func TestHandleAnalyzeDefaultsReasonWhenMissing(t *testing.T) {
	_, r := newTestService(t)
	out := postAnalyze(t, r, map[string]any{
		"details": map[string]any{"ip": "203.0.113.21"},
	})
	assert.Equal(t, "blocklist_skipped_criteria_not_met", out["action_taken"])
}

func TestHandleAnalyzeAppendsAlertSuffixWhenAlertingIsEnabled(t *testing.T) {
	dir := t.TempDir()
	events := eventlog.New(dir, zerolog.Nop())
	metrics := metricsx.NewStore(metricsx.NewRegistry())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dispatcher := alert.New(alert.Config{Method: "webhook", GenericWebhookURL: srv.URL}, events, metrics)
	svc := &receiver.Service{
		Blocklist: nil,
		Alerts:    dispatcher,
		Events:    events,
		Metrics:   metrics,
	}
	r := chi.NewRouter()
	svc.Routes(r)

	out := postAnalyze(t, r, map[string]any{
		"reason":  "just a routine check",
		"details": map[string]any{"ip": "203.0.113.22"},
	})
	assert.Equal(t, "blocklist_skipped_criteria_not_met_alert_checked", out["action_taken"])
}

func TestHandleAnalyzeRejectsInvalidJSON(t *testing.T) {
	_, r := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
