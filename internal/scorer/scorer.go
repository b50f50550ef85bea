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

// Package scorer combines the rule-based heuristic score with the
// optional model probability into the composite score the escalation
// pipeline thresholds against.
package scorer

import (
	"strings"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/classifier"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/features"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/useragent"
)

// Scorer holds the long-lived, load-once-read-many dependencies the
// scoring function needs: the robots rule set, UA lists, and the optional
// model.
type Scorer struct {
	Rules         *robots.Rules
	UALists       *useragent.Lists
	Model         classifier.Model
	WindowSeconds int
	Metrics       *metricsx.Store
}

// Score computes the rule score, consults the model if loaded, and folds
// them per the documented weights.
func (s *Scorer) Score(meta model.RequestMetadata, freq model.FrequencyRecord) float64 {
	if s.Metrics != nil {
		s.Metrics.Inc(metricsx.HeuristicChecks)
	}

	ruleScore := s.ruleScore(meta, freq)

	if s.Model == nil {
		return ruleScore
	}

	feats := features.Extract(meta, freq, s.WindowSeconds, s.Rules, s.UALists)
	modelScore, err := s.Model.PredictProbability(feats)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.Inc("rf_model_errors")
		}
		return ruleScore
	}
	if s.Metrics != nil {
		s.Metrics.Inc("rf_model_predictions")
	}

	final := 0.3*ruleScore + 0.7*modelScore
	return clamp01(final)
}

func (s *Scorer) ruleScore(meta model.RequestMetadata, freq model.FrequencyRecord) float64 {
	ua := strings.ToLower(meta.UserAgent)
	path := meta.Path

	isKnownBenign := s.UALists.IsKnownBenignCrawler(ua)
	isKnownBad := s.UALists.IsKnownBad(ua)

	score := 0.0
	if isKnownBad && !isKnownBenign {
		score += 0.7
	}
	if meta.UserAgent == "" {
		score += 0.5
	}
	if s.Rules.IsDisallowed(path) && !isKnownBenign {
		score += 0.6
	}
	switch {
	case freq.Count > 60:
		score += 0.3
	case freq.Count > 30:
		score += 0.1
	}
	if freq.TimeSinceLastSec != -1.0 && freq.TimeSinceLastSec < 0.3 {
		score += 0.2
	}
	if isKnownBenign {
		score -= 0.5
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
