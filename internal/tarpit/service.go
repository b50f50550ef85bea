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

package tarpit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/kv"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

// Service is the Tarpit Responder's dependency bundle.
type Service struct {
	Hops      *kv.Client
	Flags     *kv.Client
	Blocklist *kv.Client
	Events    *eventlog.Logger
	Metrics   *metricsx.Store
	Generator *Generator
	Strategy  string // "markov" | "labyrinth"

	EscalationURL   string
	MaxHops         int64
	HopLimitEnabled bool
	Window          time.Duration
	FlagTTL         time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration

	HTTPClient *http.Client
}

// Routes mounts the service's handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/tarpit", s.handleTarpit)
	r.Get("/tarpit/*", s.handleTarpit)
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "Tarpit API is running"})
}

func (s *Service) handleTarpit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	source := clientIP(r)
	ua := r.Header.Get("User-Agent")
	referer := r.Header.Get("Referer")
	headers := flattenHeaders(r.Header)

	s.Metrics.Inc(metricsx.TarpitHits)

	// Step 2: hop counter.
	hopKey := "tarpit_hop_count:" + source
	hops, err := s.Hops.Incr(ctx, hopKey, s.Window)
	if err != nil {
		s.Events.LogError("redis error incrementing hop counter for "+source, err)
	}
	if s.HopLimitEnabled && err == nil && hops > s.MaxHops {
		s.Metrics.Inc(metricsx.IPFlagged)
		s.requestBlocklisting(ctx, source)
		http.Error(w, "Access Denied", http.StatusForbidden)
		return
	}

	meta := model.RequestMetadata{
		Timestamp:     time.Now().UTC(),
		SourceAddress: source,
		UserAgent:     ua,
		Referer:       referer,
		Path:          r.URL.Path,
		Headers:       headers,
		SourceLabel:   "tarpit_api",
	}

	// Step 3: honeypot log.
	s.Events.LogHoneypotHit(meta, int(hops))

	// Step 4: tarpit flag.
	flagKey := "tarpit_flag:" + source
	if err := s.Flags.SetEx(ctx, flagKey, meta.Timestamp.Format(time.RFC3339Nano), s.FlagTTL); err != nil {
		s.Events.LogError("redis error flagging IP "+source, err)
	}

	// Step 5: re-escalate; errors logged, not fatal.
	s.escalate(ctx, meta)

	// Step 6: content generation.
	seed := source + meta.Timestamp.Format(time.RFC3339Nano)
	var content string
	if s.Strategy == "labyrinth" {
		content = s.Generator.GenerateLabyrinthPage(seed, 5)
	} else {
		content = s.Generator.GenerateMarkovPage(seed)
	}

	// Step 7: slow streaming.
	s.streamSlowly(w, content)
}

func (s *Service) requestBlocklisting(ctx context.Context, ip string) {
	if _, err := s.Blocklist.SAdd(ctx, "blocklist:ip", ip); err != nil {
		s.Events.LogError("failed to blocklist IP "+ip+" after hop limit exceeded", err)
	}
}

func (s *Service) escalate(ctx context.Context, meta model.RequestMetadata) {
	if s.EscalationURL == "" {
		return
	}
	payload := map[string]any{
		"timestamp":  meta.Timestamp.Format(time.RFC3339Nano),
		"ip":         meta.SourceAddress,
		"user_agent": meta.UserAgent,
		"referer":    meta.Referer,
		"path":       meta.Path,
		"headers":    meta.Headers,
		"source":     meta.SourceLabel,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.Events.LogError("failed to marshal escalation payload for "+meta.SourceAddress, err)
		return
	}

	escCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(escCtx, http.MethodPost, s.EscalationURL, bytes.NewReader(body))
	if err != nil {
		s.Events.LogError("failed to build escalation request for "+meta.SourceAddress, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		s.Events.LogError("error escalating request for IP "+meta.SourceAddress+" to "+s.EscalationURL, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.Events.LogError(fmt.Sprintf("escalation request for IP %s failed with status %d", meta.SourceAddress, resp.StatusCode), nil)
	}
}

func (s *Service) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

// streamSlowly writes content line by line with a randomized delay between
// lines, flushing after each write so the client receives it immediately.
func (s *Service) streamSlowly(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	minDelay := s.MinDelay
	maxDelay := s.MaxDelay
	if maxDelay <= minDelay {
		maxDelay = minDelay + time.Millisecond
	}
	spread := maxDelay - minDelay

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		delay := minDelay + time.Duration(rand.Int63n(int64(spread)))
		time.Sleep(delay)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	hopsOK := s.Hops.Ping(ctx)
	blocklistOK := s.Blocklist.Ping(ctx)
	generatorOK := s.Generator != nil

	status := "ok"
	code := http.StatusOK
	if !hopsOK || !blocklistOK || !generatorOK {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":                     status,
		"redis_hops_connected":       hopsOK,
		"redis_blocklist_connected":  blocklistOK,
		"markov_generator_available": generatorOK,
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
