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

// Package receiver implements the Webhook Receiver HTTP service: POST
// /analyze accepts escalation verdicts, decides whether to blocklist the
// flagged IP, and dispatches an alert; GET /health reports Redis
// reachability.
package receiver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/kv"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

const blocklistKey = "blocklist:ip"

// autoBlockReasons lists the reason substrings that trigger blocklisting;
// a verdict reason matches if it contains any of these as a substring.
var autoBlockReasons = []string{
	"High Combined Score",
	"Local LLM Classification",
	"External API Classification",
	"High Heuristic Score",
	"Honeypot_Hit",
}

// Service is the Webhook Receiver's dependency bundle.
type Service struct {
	Blocklist  *kv.Client
	Alerts     *alert.Dispatcher
	Events     *eventlog.Logger
	Metrics    *metricsx.Store
	MetricsReg http.Handler
}

type analyzeRequest struct {
	EventType    string                  `json:"event_type"`
	Reason       string                  `json:"reason"`
	TimestampUTC string                  `json:"timestamp_utc"`
	Details      map[string]model.Value  `json:"details"`
}

type analyzeResponse struct {
	Status      string `json:"status"`
	ActionTaken string `json:"action_taken"`
	IPProcessed string `json:"ip_processed"`
}

// Routes mounts the service's handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/health", s.handleHealth)
	if s.MetricsReg != nil {
		r.Get("/metrics", s.MetricsReg.ServeHTTP)
	}
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	flaggedIP := "unknown"
	if req.Details != nil {
		if v, ok := req.Details["ip"]; ok {
			if s := v.String(); s != "" {
				flaggedIP = s
			}
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "Unknown Reason"
	}

	actionTaken := s.decideAndBlock(r.Context(), flaggedIP, reason, req.Details)

	if err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = errFromRecover(rec)
			}
		}()
		s.Alerts.Dispatch(r.Context(), flaggedIP, reason, req.Details)
		return nil
	}(); err != nil {
		s.Events.LogError("error during alert processing for IP "+flaggedIP, err)
		if s.Alerts.Method() != "none" {
			actionTaken += "_alert_error"
		}
	} else if s.Alerts.Method() != "none" {
		actionTaken += "_alert_checked"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(analyzeResponse{
		Status:      "processed",
		ActionTaken: actionTaken,
		IPProcessed: flaggedIP,
	})
}

func (s *Service) decideAndBlock(ctx context.Context, ip, reason string, details map[string]model.Value) string {
	matched := false
	for _, term := range autoBlockReasons {
		if strings.Contains(reason, term) {
			matched = true
			break
		}
	}
	if !matched {
		return "blocklist_skipped_criteria_not_met"
	}
	if ip == "unknown" || ip == "" {
		return "blocklist_skipped_unknown_ip"
	}

	if s.addToBlocklist(ctx, ip, reason, details) {
		return "ip_blocklisted"
	}
	return "blocklist_failed"
}

// addToBlocklist adds ip to the Redis blocklist set. Per the original
// service, an IP already present in the set is still a success.
func (s *Service) addToBlocklist(ctx context.Context, ip, reason string, details map[string]model.Value) bool {
	added, err := s.Blocklist.SAdd(ctx, blocklistKey, ip)
	if err != nil {
		s.Events.LogError("redis error adding IP "+ip+" to blocklist", err)
		s.Metrics.Inc("blocklist_redis_errors")
		return false
	}
	s.Metrics.Inc(metricsx.BlocklistAdditions)
	if added > 0 {
		s.Events.LogBlock(ip, reason, details)
	}
	return true
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	redisOK := s.Blocklist.Ping(ctx)

	status := http.StatusOK
	if !redisOK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"redis_ok":  redisOK,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type recoveredPanic struct{ v any }

func (p recoveredPanic) Error() string { return "panic during alert dispatch" }

func errFromRecover(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return recoveredPanic{v: v}
}
