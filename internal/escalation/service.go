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

// Package escalation implements the Escalation Engine HTTP service:
// POST /escalate orchestrates frequency read, scoring, optional gateway
// consultation, and webhook forwarding; GET /metrics exposes the process
// counter snapshot.
package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/classifier"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/frequency"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/scorer"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/webhookfwd"
)

// Thresholds holds the decision boundaries from configuration.
type Thresholds struct {
	Low    float64
	Medium float64
	High   float64
}

// Service is the Escalation Engine's dependency bundle, assembled once at
// process start and passed to handlers via the Service receiver rather than
// package-level singletons.
type Service struct {
	Frequency  *frequency.Tracker
	Scorer     *scorer.Scorer
	Gateway    *classifier.Gateway
	Forwarder  *webhookfwd.Forwarder
	Metrics    *metricsx.Store
	MetricsReg http.Handler
	Thresholds Thresholds
	Logger     zerolog.Logger
}

// escalateRequest is the POST /escalate payload. IP and SourceLabel are
// mandatory; everything else is optional.
type escalateRequest struct {
	Timestamp   string            `json:"timestamp"`
	IP          string            `json:"ip"`
	UserAgent   string            `json:"user_agent"`
	Referer     string            `json:"referer"`
	Path        string            `json:"path"`
	Headers     map[string]string `json:"headers"`
	SourceLabel string            `json:"source"`
}

type escalateResponse struct {
	Status        string  `json:"status"`
	Action        string  `json:"action"`
	IsBotDecision *bool   `json:"is_bot_decision"`
	Score         float64 `json:"score"`
}

// Routes mounts the service's handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/escalate", s.handleEscalate)
	r.Get("/metrics", s.handleMetrics)
}

func (s *Service) handleEscalate(w http.ResponseWriter, r *http.Request) {
	s.Metrics.Inc(metricsx.EscalationRequests)

	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if req.IP == "" || req.SourceLabel == "" {
		http.Error(w, "invalid payload: ip and source are required", http.StatusUnprocessableEntity)
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	meta := model.RequestMetadata{
		Timestamp:     ts,
		SourceAddress: req.IP,
		UserAgent:     req.UserAgent,
		Referer:       req.Referer,
		Path:          req.Path,
		Headers:       req.Headers,
		SourceLabel:   req.SourceLabel,
	}

	verdict := s.analyze(r.Context(), meta)

	resp := escalateResponse{
		Status:        "ok",
		Action:        verdict.ActionTaken,
		IsBotDecision: verdict.IsBotDecision,
		Score:         round3(verdict.Score),
	}

	status := http.StatusOK
	if verdict.Score == -1.0 {
		status = http.StatusInternalServerError
		resp.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// analyze runs the full decision pipeline described in spec §4.8: frequency
// read, composite scoring, threshold gating, and gateway escalation for
// inconclusive medium scores. The webhook forward runs synchronously before
// analyze returns, so the response waits for it (bounded by the forwarder's
// 10 s client timeout); a failed forward does not change the verdict.
func (s *Service) analyze(ctx context.Context, meta model.RequestMetadata) model.Verdict {
	freq := s.Frequency.RecordAndQuery(ctx, meta.NormalizedSource())
	score := s.Scorer.Score(meta, freq)

	if score >= s.Thresholds.High {
		reason := model.FormatScoreReason("High Combined Score", score)
		s.forward(ctx, meta, reason)
		return model.Verdict{
			Reason: reason, Score: score, IsBotDecision: model.BoolPtr(true),
			ActionTaken: "webhook_triggered_high_score",
		}
	}

	if score < s.Thresholds.Low {
		return model.Verdict{
			Score: score, IsBotDecision: model.BoolPtr(false),
			ActionTaken: "classified_human_low_score",
		}
	}

	// Medium range: neither clearly bot nor clearly human by the
	// heuristic alone, so consult the configured gateway sinks in order.
	if s.Gateway != nil && s.Gateway.HasLocalLLM() {
		switch s.Gateway.ConsultLocalLLM(ctx, meta) {
		case classifier.Bot:
			reason := "Local LLM Classification"
			s.forward(ctx, meta, reason)
			return model.Verdict{
				Reason: reason, Score: score, IsBotDecision: model.BoolPtr(true),
				ActionTaken: "webhook_triggered_local_llm",
			}
		case classifier.Benign:
			return model.Verdict{
				Score: score, IsBotDecision: model.BoolPtr(false),
				ActionTaken: "classified_human_local_llm",
			}
		}
	}

	if s.Gateway != nil && s.Gateway.HasExternalAPI() {
		switch s.Gateway.ConsultExternalAPI(ctx, meta) {
		case classifier.Bot:
			reason := "External API Classification"
			s.forward(ctx, meta, reason)
			return model.Verdict{
				Reason: reason, Score: score, IsBotDecision: model.BoolPtr(true),
				ActionTaken: "webhook_triggered_external_api",
			}
		case classifier.Benign:
			return model.Verdict{
				Score: score, IsBotDecision: model.BoolPtr(false),
				ActionTaken: "classified_human_external_api",
			}
		}
		return model.Verdict{Score: score, ActionTaken: "external_api_inconclusive"}
	}

	return model.Verdict{Score: score, ActionTaken: "local_llm_inconclusive"}
}

func (s *Service) forward(ctx context.Context, meta model.RequestMetadata, reason string) {
	s.Forwarder.Forward(ctx, meta.Details(), reason)
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.MetricsReg != nil {
		s.MetricsReg.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Metrics.Snapshot())
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
