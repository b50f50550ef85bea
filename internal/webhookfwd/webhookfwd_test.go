package webhookfwd_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/webhookfwd"
)

func TestForwardPostsEnvelopeToReceiver(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	metrics := metricsx.NewStore(metricsx.NewRegistry())
	f := webhookfwd.NewForwarder(srv.URL, metrics)

	f.Forward(context.Background(), map[string]model.Value{"ip": model.StringValue("203.0.113.4")}, "High Combined Score (0.950)")

	assert.Equal(t, "suspicious_activity_detected", received["event_type"])
	assert.Equal(t, "High Combined Score (0.950)", received["reason"])
	assert.EqualValues(t, 1, metrics.Snapshot()[metricsx.WebhooksSent])
}

func TestForwardIsANoOpWhenURLIsBlank(t *testing.T) {
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
	}))
	defer srv.Close()

	f := webhookfwd.NewForwarder("", nil)
	f.Forward(context.Background(), nil, "reason")
	assert.Zero(t, atomic.LoadInt32(&hit))
}

func TestForwardCountsErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	metrics := metricsx.NewStore(metricsx.NewRegistry())
	f := webhookfwd.NewForwarder(srv.URL, metrics)
	f.Forward(context.Background(), nil, "reason")

	assert.EqualValues(t, 1, metrics.Snapshot()[metricsx.WebhookErrors])
}
