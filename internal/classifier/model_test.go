package classifier_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/classifier"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func writeArtifact(t *testing.T, payload any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadLinearModelRejectsEmptyWeights(t *testing.T) {
	path := writeArtifact(t, map[string]any{"bias": 0.0, "weights": map[string]float64{}})
	_, err := classifier.LoadLinearModel(path)
	assert.Error(t, err)
}

func TestLoadLinearModelRejectsMissingFile(t *testing.T) {
	_, err := classifier.LoadLinearModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPredictProbabilityCombinesNumericAndCategoricalWeights(t *testing.T) {
	path := writeArtifact(t, map[string]any{
		"bias": 0.0,
		"weights": map[string]float64{
			"ua_length": 1.0,
		},
		"categorical_levels": map[string]map[string]float64{
			"ua_browser_family": {"Unknown": 0.0},
		},
	})
	m, err := classifier.LoadLinearModel(path)
	require.NoError(t, err)

	p, err := m.PredictProbability(model.FeatureMap{
		"ua_length":         model.NumberValue(0),
		"ua_browser_family": model.StringValue("Unknown"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9) // sigmoid(0) == 0.5

	pHigh, err := m.PredictProbability(model.FeatureMap{"ua_length": model.NumberValue(50)})
	require.NoError(t, err)
	assert.Greater(t, pHigh, 0.5)
}

func TestPredictProbabilityIgnoresMissingOrWrongKindFeatures(t *testing.T) {
	path := writeArtifact(t, map[string]any{
		"bias":    0.0,
		"weights": map[string]float64{"missing_feature": 10.0, "wrong_kind": 10.0},
	})
	m, err := classifier.LoadLinearModel(path)
	require.NoError(t, err)

	p, err := m.PredictProbability(model.FeatureMap{"wrong_kind": model.StringValue("oops")})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
}
