package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func TestRequestMetadataHeaderLookupIsCaseInsensitive(t *testing.T) {
	meta := model.RequestMetadata{Headers: map[string]string{"User-Agent": "curl/8.0"}}
	v, ok := meta.Header("user-agent")
	assert.True(t, ok)
	assert.Equal(t, "curl/8.0", v)

	_, ok = meta.Header("x-missing")
	assert.False(t, ok)
}

func TestRequestMetadataNormalizedSourceDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", model.RequestMetadata{}.NormalizedSource())
	assert.Equal(t, "198.51.100.2", model.RequestMetadata{SourceAddress: "198.51.100.2"}.NormalizedSource())
}

func TestRequestMetadataDetailsIncludesExtraWithoutOverridingFixedFields(t *testing.T) {
	meta := model.RequestMetadata{
		SourceAddress: "203.0.113.1",
		UserAgent:     "TestBot/1.0",
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		DetailsExtra: map[string]model.Value{
			"ip":    model.StringValue("should-not-override"),
			"extra": model.StringValue("kept"),
		},
	}
	details := meta.Details()
	assert.Equal(t, "203.0.113.1", details["ip"].Str)
	assert.Equal(t, "kept", details["extra"].Str)
	assert.Equal(t, "2026-01-02T03:04:05Z", details["timestamp"].Str)
}

func TestFormatScoreReasonUsesThreeDecimals(t *testing.T) {
	assert.Equal(t, "High Combined Score (0.950)", model.FormatScoreReason("High Combined Score", 0.95))
}

func TestErrorVerdictSignalsFailureWithNegativeScore(t *testing.T) {
	v := model.ErrorVerdict("some_action", nil)
	assert.Equal(t, -1.0, v.Score)
	assert.Nil(t, v.IsBotDecision)
	assert.Equal(t, "some_action", v.ActionTaken)
}
