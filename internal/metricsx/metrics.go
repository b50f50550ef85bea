// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metricsx provides the process-local counter store used by the
// escalation, receiver, and tarpit services for their custom metrics
// snapshot, plus a Prometheus registry and HTTP middleware for ambient
// request observability.
package metricsx

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Named counter keys shared across services, mirroring the original
// service's predefined metric keys.
const (
	EscalationRequests       = "escalation_requests_received"
	HeuristicChecks          = "heuristic_checks_run"
	LocalLLMChecks           = "local_llm_checks_run"
	ExternalAPIChecks        = "external_api_checks_run"
	BotsDetectedHeuristic    = "bots_detected_heuristic"
	BotsDetectedLocalLLM     = "bots_detected_local_llm"
	BotsDetectedExternalAPI  = "bots_detected_external_api"
	HumansDetectedLocalLLM   = "humans_detected_local_llm"
	HumansDetectedExternalAPI = "humans_detected_external_api"
	WebhooksSent             = "webhooks_sent"
	WebhookErrors            = "webhook_errors_request"
	LLMErrors                = "local_llm_errors_unexpected"

	TarpitHits  = "tarpit_hits"
	IPFlagged   = "tarpit_ips_flagged"
	BlocklistAdditions = "blocklist_additions"
	AlertsSent  = "alerts_sent"
	AlertErrors = "alert_errors"
)

// Store is a thread-safe counter map with a fixed start time, mirroring the
// original service's Counter + lock + start_time snapshot contract.
type Store struct {
	mu        sync.Mutex
	counters  map[string]int64
	startTime time.Time

	reqTotal    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

// NewStore creates a Store and registers its Prometheus collectors on reg.
func NewStore(reg *prometheus.Registry) *Store {
	s := &Store{
		counters:  make(map[string]int64),
		startTime: time.Now().UTC(),
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	if reg != nil {
		reg.MustRegister(s.reqTotal)
		reg.MustRegister(s.reqDuration)
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return s
}

// NewRegistry builds an empty Prometheus registry for a service to hand to NewStore.
func NewRegistry() *prometheus.Registry { return prometheus.NewRegistry() }

// Increment adds value to the named counter.
func (s *Store) Increment(key string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += value
}

// Inc is shorthand for Increment(key, 1).
func (s *Store) Inc(key string) { s.Increment(key, 1) }

// Snapshot returns a copy of every counter plus uptime and a timestamp, in
// the same shape the original service's get_metrics() returns.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.counters)+2)
	for k, v := range s.counters {
		out[k] = v
	}
	out["service_uptime_seconds"] = roundTwo(time.Since(s.startTime).Seconds())
	out["last_updated_utc"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

// Reset clears every counter and restarts the uptime clock. Test-only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int64)
	s.startTime = time.Now().UTC()
}

func roundTwo(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// Handler serves the Prometheus exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request count and duration per method/path/status.
func (s *Store) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &statusWriter{w, http.StatusOK}
		next.ServeHTTP(lw, r)

		duration := time.Since(start).Seconds()
		s.reqTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(lw.status)).Inc()
		s.reqDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
