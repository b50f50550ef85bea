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

// Package classifier loads the trained bot/human classifier and consults
// the optional LLM and external-API gateways for medium-confidence scores.
//
// The classifier artifact is a portable JSON weights file rather than a
// serialized scikit-learn pipeline: a pure-Go logistic regression over the
// same feature map keeps model inference in-process without an
// out-of-process Python runtime.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

// Model exposes the bot-probability contract the scorer depends on.
type Model interface {
	PredictProbability(features model.FeatureMap) (float64, error)
}

// LinearModel is a logistic regression over named feature-map keys:
// Weights holds one weight per numeric feature key, and CategoricalLevels
// holds, per categorical feature key, one weight for each known level.
type LinearModel struct {
	Bias             float64            `json:"bias"`
	Weights          map[string]float64 `json:"weights"`
	CategoricalLevels map[string]map[string]float64 `json:"categorical_levels"`
}

// LoadLinearModel reads and validates a JSON weights file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model artifact %s has no weights", path)
	}
	return &m, nil
}

// PredictProbability computes the sigmoid of the weighted feature sum. Any
// feature named in Weights but absent or non-numeric in features
// contributes zero, matching a missing-indicator convention rather than
// failing the call.
func (m *LinearModel) PredictProbability(features model.FeatureMap) (float64, error) {
	z := m.Bias
	for name, w := range m.Weights {
		v, ok := features[name]
		if !ok || v.Kind != model.KindNumber {
			continue
		}
		z += w * v.Num
	}
	for name, levels := range m.CategoricalLevels {
		v, ok := features[name]
		if !ok || v.Kind != model.KindString {
			continue
		}
		if w, ok := levels[v.Str]; ok {
			z += w
		}
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
