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

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

// Verdict is the tri-state outcome of a gateway sink consultation.
type Verdict int

const (
	Inconclusive Verdict = iota
	Bot
	Benign
)

// Gateway consults the configured sinks in order: Local LLM first, then
// the external API if the LLM was inconclusive.
type Gateway struct {
	localLLM    *localLLMSink
	externalAPI *externalAPISink
	metrics     *metricsx.Store
}

// GatewayConfig configures both sinks; a sink is disabled when its URL is
// empty.
type GatewayConfig struct {
	LocalLLMURL      string
	LocalLLMModel    string
	LocalLLMTimeout  time.Duration
	ExternalAPIURL   string
	ExternalAPIKey   string
	ExternalAPITimeout time.Duration
}

// NewGateway builds a Gateway from config.
func NewGateway(cfg GatewayConfig, metrics *metricsx.Store) *Gateway {
	g := &Gateway{metrics: metrics}
	if cfg.LocalLLMURL != "" && cfg.LocalLLMModel != "" {
		g.localLLM = &localLLMSink{
			url:     cfg.LocalLLMURL,
			model:   cfg.LocalLLMModel,
			client:  &http.Client{Timeout: cfg.LocalLLMTimeout},
			metrics: metrics,
		}
	}
	if cfg.ExternalAPIURL != "" {
		g.externalAPI = &externalAPISink{
			url:     cfg.ExternalAPIURL,
			apiKey:  cfg.ExternalAPIKey,
			client:  &http.Client{Timeout: cfg.ExternalAPITimeout},
			metrics: metrics,
		}
	}
	return g
}

// HasLocalLLM reports whether the local LLM sink is configured.
func (g *Gateway) HasLocalLLM() bool { return g.localLLM != nil }

// HasExternalAPI reports whether the external API sink is configured.
func (g *Gateway) HasExternalAPI() bool { return g.externalAPI != nil }

// ConsultLocalLLM classifies meta via the local LLM sink. Returns
// Inconclusive if the sink is not configured.
func (g *Gateway) ConsultLocalLLM(ctx context.Context, meta model.RequestMetadata) Verdict {
	if g.localLLM == nil {
		return Inconclusive
	}
	return g.localLLM.classify(ctx, meta)
}

// ConsultExternalAPI classifies meta via the external API sink. Returns
// Inconclusive if the sink is not configured.
func (g *Gateway) ConsultExternalAPI(ctx context.Context, meta model.RequestMetadata) Verdict {
	if g.externalAPI == nil {
		return Inconclusive
	}
	return g.externalAPI.classify(ctx, meta)
}

// --- Local LLM sink ---

type localLLMSink struct {
	url     string
	model   string
	client  *http.Client
	metrics *metricsx.Store
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var curatedHeaders = []string{
	"accept", "accept-language", "connection", "host",
	"sec-ch-ua", "sec-fetch-site", "sec-fetch-mode", "sec-fetch-user", "sec-fetch-dest",
}

func (s *localLLMSink) classify(ctx context.Context, meta model.RequestMetadata) Verdict {
	if s.metrics != nil {
		s.metrics.Inc(metricsx.LocalLLMChecks)
	}

	selected := make(map[string]string)
	for _, h := range curatedHeaders {
		if v, ok := meta.Header(h); ok {
			selected[h] = v
		}
	}
	headersJSON, _ := json.Marshal(selected)

	prompt := fmt.Sprintf(`Analyze the following request metadata to classify the origin as MALICIOUS_BOT, BENIGN_CRAWLER, or HUMAN. Focus on detecting automated threats, not just any automation.

**Request Details:**
* **IP Address:** %s
* **User-Agent:** %s
* **Requested Path:** %s
* **Referer:** %s
* **Timestamp:** %s
* **Selected Headers:** %s

**Instructions:** Respond ONLY with 'MALICIOUS_BOT', 'BENIGN_CRAWLER', or 'HUMAN'.`,
		meta.NormalizedSource(), orNA(meta.UserAgent), orNA(meta.Path), orNA(meta.Referer),
		meta.Timestamp.UTC().Format(time.RFC3339), string(headersJSON))

	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a security analysis assistant specializing in bot detection. Respond ONLY with 'MALICIOUS_BOT', 'BENIGN_CRAWLER', or 'HUMAN'."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		Stream:      false,
	}

	content, err := s.post(ctx, reqBody)
	if err != nil {
		if s.metrics != nil {
			s.metrics.Inc(metricsx.LLMErrors)
		}
		return Inconclusive
	}

	upper := strings.ToUpper(strings.TrimSpace(content))
	switch {
	case strings.Contains(upper, "MALICIOUS_BOT"):
		return Bot
	case strings.Contains(upper, "HUMAN"), strings.Contains(upper, "BENIGN_CRAWLER"):
		return Benign
	default:
		if s.metrics != nil {
			s.metrics.Inc("local_llm_errors_unexpected_response")
		}
		return Inconclusive
	}
}

func (s *localLLMSink) post(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("local llm api returned status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("local llm api returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// --- External API sink ---

type externalAPISink struct {
	url     string
	apiKey  string
	client  *http.Client
	metrics *metricsx.Store
}

type externalAPIRequest struct {
	IPAddress   string            `json:"ipAddress"`
	UserAgent   string            `json:"userAgent"`
	Referer     string            `json:"referer"`
	RequestPath string            `json:"requestPath"`
	Headers     map[string]string `json:"headers"`
}

type externalAPIResponse struct {
	IsBot *bool `json:"is_bot"`
}

func (s *externalAPISink) classify(ctx context.Context, meta model.RequestMetadata) Verdict {
	if s.metrics != nil {
		s.metrics.Inc(metricsx.ExternalAPIChecks)
	}

	payload, err := json.Marshal(externalAPIRequest{
		IPAddress:   meta.NormalizedSource(),
		UserAgent:   meta.UserAgent,
		Referer:     meta.Referer,
		RequestPath: meta.Path,
		Headers:     meta.Headers,
	})
	if err != nil {
		return Inconclusive
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return Inconclusive
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.Inc("external_api_errors_request")
		}
		return Inconclusive
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		if s.metrics != nil {
			s.metrics.Inc("external_api_errors_request")
		}
		return Inconclusive
	}

	var out externalAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if s.metrics != nil {
			s.metrics.Inc("external_api_errors_response_decode")
		}
		return Inconclusive
	}
	if out.IsBot == nil {
		if s.metrics != nil {
			s.metrics.Inc("external_api_errors_unexpected_response")
		}
		return Inconclusive
	}
	if s.metrics != nil {
		s.metrics.Inc("external_api_success")
	}
	if *out.IsBot {
		return Bot
	}
	return Benign
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
