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

// Package webhookfwd forwards verdicts from the Escalation Engine to the
// Webhook Receiver. Forwarding is fire-and-forget: no retry on failure,
// since the next offending request re-triggers escalation anyway.
package webhookfwd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

const forwardTimeout = 10 * time.Second

// Forwarder posts verdict envelopes to the configured receiver URL.
type Forwarder struct {
	url     string
	client  *http.Client
	metrics *metricsx.Store
}

// NewForwarder builds a Forwarder. A blank url disables forwarding.
func NewForwarder(url string, metrics *metricsx.Store) *Forwarder {
	return &Forwarder{
		url:     url,
		client:  &http.Client{Timeout: forwardTimeout},
		metrics: metrics,
	}
}

type envelope struct {
	EventType    string                  `json:"event_type"`
	Reason       string                  `json:"reason"`
	TimestampUTC string                  `json:"timestamp_utc"`
	Details      map[string]model.Value  `json:"details"`
}

// Forward posts details under reason to the receiver. It never returns an
// error to the caller: failures are logged via a metrics counter only.
func (f *Forwarder) Forward(ctx context.Context, details map[string]model.Value, reason string) {
	if f.url == "" {
		return
	}
	if f.metrics != nil {
		f.metrics.Inc(metricsx.WebhooksSent)
	}

	env := envelope{
		EventType:    "suspicious_activity_detected",
		Reason:       reason,
		TimestampUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Details:      details,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		if f.metrics != nil {
			f.metrics.Inc(metricsx.WebhookErrors)
		}
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		if f.metrics != nil {
			f.metrics.Inc(metricsx.WebhookErrors)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if f.metrics != nil {
			f.metrics.Inc(metricsx.WebhookErrors)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		if f.metrics != nil {
			f.metrics.Inc(metricsx.WebhookErrors)
		}
	}
}
