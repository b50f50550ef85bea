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

// Package frequency tracks per-source request rate using a Redis sorted
// set: one atomic pipeline prunes the window, records the current
// request, and reads back the window count and inter-arrival gap.
package frequency

import (
	"context"
	"fmt"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/kv"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

const keyPrefix = "freq:"

// Tracker is the frequency tracker over a single KV namespace client.
type Tracker struct {
	client  *kv.Client
	metrics *metricsx.Store
	window  time.Duration
}

// NewTracker builds a Tracker bound to the frequency namespace client.
func NewTracker(client *kv.Client, metrics *metricsx.Store, window time.Duration) *Tracker {
	return &Tracker{client: client, metrics: metrics, window: window}
}

// RecordAndQuery performs the atomic sliding-window update for source and
// returns the window count *excluding* the current request along with the
// inter-arrival gap since the previous request, or -1 if there was none.
// On any KV error it returns a zeroed record and increments a frequency
// error counter, never failing the caller.
func (t *Tracker) RecordAndQuery(ctx context.Context, source string) model.FrequencyRecord {
	if source == "" {
		return model.FrequencyRecord{Count: 0, TimeSinceLastSec: -1.0}
	}

	now := float64(time.Now().UnixNano()) / 1e9
	windowStart := now - t.window.Seconds()
	key := keyPrefix + source
	member := fmt.Sprintf("%.6f", now)
	ttl := t.window + 60*time.Second

	result, err := t.client.RecordAndQuery(ctx, key, member, now, windowStart, ttl)
	if err != nil {
		if t.metrics != nil {
			t.metrics.Inc("redis_errors_frequency")
		}
		return model.FrequencyRecord{Count: 0, TimeSinceLastSec: -1.0}
	}

	count := result.CountInWindow - 1
	if count < 0 {
		count = 0
	}

	timeSince := -1.0
	if len(result.LastTwo) > 1 {
		prev := result.LastTwo[0].Score
		timeSince = roundMillis(now - prev)
	}

	return model.FrequencyRecord{Count: int(count), TimeSinceLastSec: timeSince}
}

func roundMillis(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}
