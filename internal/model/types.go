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

package model

import (
	"fmt"
	"strings"
	"time"
)

// RequestMetadata is the immutable record describing a single inbound
// request, as produced by the fronting proxy or the tarpit and consumed by
// the Escalation Engine. It is never mutated after construction.
type RequestMetadata struct {
	Timestamp     time.Time         `json:"timestamp"`
	SourceAddress string            `json:"ip"`
	UserAgent     string            `json:"user_agent"`
	Referer       string            `json:"referer"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers"`
	SourceLabel   string            `json:"source"`

	// DetailsExtra carries any additional JSON fields the caller sent that
	// aren't part of the fixed shape above, so nothing is silently dropped
	// on the way to the webhook envelope's "details" field.
	DetailsExtra map[string]Value `json:"-"`
}

// Header performs a case-insensitive header lookup.
func (m RequestMetadata) Header(name string) (string, bool) {
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// NormalizedSource returns the source address, or the "unknown" sentinel if
// it is empty.
func (m RequestMetadata) NormalizedSource() string {
	if m.SourceAddress == "" {
		return "unknown"
	}
	return m.SourceAddress
}

// Details renders the metadata as a map suitable for the webhook envelope's
// "details" field and for alert-sink payloads; request headers are nested
// as a map under the "headers" key.
func (m RequestMetadata) Details() map[string]Value {
	headers := make(map[string]Value, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = StringValue(v)
	}
	out := map[string]Value{
		"ip":         StringValue(m.NormalizedSource()),
		"user_agent": StringValue(m.UserAgent),
		"referer":    StringValue(m.Referer),
		"path":       StringValue(m.Path),
		"timestamp":  StringValue(m.Timestamp.UTC().Format(time.RFC3339Nano)),
		"source":     StringValue(m.SourceLabel),
		"headers":    MapValue(headers),
	}
	for k, v := range m.DetailsExtra {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// FrequencyRecord is the per-source sliding-window frequency snapshot
// returned by the frequency tracker (spec §4.4). Count excludes the request
// that produced it; TimeSinceLastSec is -1 when there was no prior request
// in the window.
type FrequencyRecord struct {
	Count            int
	TimeSinceLastSec float64
}

// FeatureMap is the fixed-key-set feature vector extracted from a single
// RequestMetadata + FrequencyRecord pair (spec §4.3). Every key listed in
// the spec is always present.
type FeatureMap map[string]Value

// Decision is the tri-state outcome of an analysis step.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionHuman
	DecisionBot
)

// Verdict is the record the Escalation Engine emits and forwards to the
// Webhook Receiver (spec §4.8, §4.7). Score is -1 to signal an internal
// error per spec §3.
type Verdict struct {
	Reason        string
	Score         float64
	IsBotDecision *bool
	ActionTaken   string
	Details       map[string]Value
}

// ErrorVerdict returns the sentinel verdict used when analysis failed
// internally: score -1, no decision, no forward.
func ErrorVerdict(action string, details map[string]Value) Verdict {
	return Verdict{Reason: "", Score: -1.0, IsBotDecision: nil, ActionTaken: action, Details: details}
}

// BoolPtr is a small convenience constructor used throughout the escalation
// pipeline to populate Verdict.IsBotDecision.
func BoolPtr(b bool) *bool { return &b }

// FormatScoreReason renders the "High Combined Score (0.950)" style reason
// string; the 3-decimal precision matches the original service's f-string.
func FormatScoreReason(prefix string, score float64) string {
	return fmt.Sprintf("%s (%.3f)", prefix, score)
}
