package alert_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func newDispatcher(t *testing.T, cfg alert.Config) (*alert.Dispatcher, *metricsx.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cfg.LogDir = dir
	metrics := metricsx.NewStore(metricsx.NewRegistry())
	events := eventlog.New(dir, zerolog.Nop())
	return alert.New(cfg, events, metrics), metrics, dir
}

func TestDispatchSendsGenericWebhookWhenSeverityClearsMinimum(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, metrics, _ := newDispatcher(t, alert.Config{Method: "webhook", GenericWebhookURL: srv.URL, MinReasonSeverity: "Local LLM"})
	d.Dispatch(context.Background(), "203.0.113.10", "Local LLM Detection", map[string]model.Value{
		"user_agent": model.StringValue("ScraperBot/1.0"),
	})

	assert.Equal(t, "AI_DEFENSE_BLOCK", payload["alert_type"])
	assert.Equal(t, "203.0.113.10", payload["ip_address"])
	assert.EqualValues(t, 1, metrics.Snapshot()[metricsx.AlertsSent])
}

func TestDispatchSkipsWhenReasonSeverityBelowMinimum(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	d, metrics, _ := newDispatcher(t, alert.Config{Method: "webhook", GenericWebhookURL: srv.URL, MinReasonSeverity: "External API"})
	d.Dispatch(context.Background(), "203.0.113.11", "High Combined Score (0.600)", nil)

	assert.False(t, hit)
	assert.NotContains(t, metrics.Snapshot(), metricsx.AlertsSent)
}

func TestDispatchSendsSlackPayloadWithReasonAndIP(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	d, metrics, _ := newDispatcher(t, alert.Config{Method: "slack", SlackWebhookURL: srv.URL, MinReasonSeverity: "Local LLM"})
	d.Dispatch(context.Background(), "203.0.113.12", "Local LLM Detection", nil)

	assert.Contains(t, payload["text"], "203.0.113.12")
	assert.EqualValues(t, 1, metrics.Snapshot()[metricsx.AlertsSent])
}

func TestDispatchNoneMethodSendsNothing(t *testing.T) {
	d, metrics, _ := newDispatcher(t, alert.Config{Method: "none", MinReasonSeverity: "Local LLM"})
	d.Dispatch(context.Background(), "203.0.113.13", "Local LLM Detection", nil)
	assert.NotContains(t, metrics.Snapshot(), metricsx.AlertsSent)
}

func TestDispatchCountsErrorOnWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, metrics, dir := newDispatcher(t, alert.Config{Method: "webhook", GenericWebhookURL: srv.URL, MinReasonSeverity: "Local LLM"})
	d.Dispatch(context.Background(), "203.0.113.14", "Local LLM Detection", nil)

	assert.EqualValues(t, 1, metrics.Snapshot()[metricsx.AlertErrors])
	assert.FileExists(t, filepath.Join(dir, eventlog.ErrorLog))
}
