package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/logging"
)

func TestInitWritesJSONLinesAtTheConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Init("warn", &buf)

	logger.Info().Msg("should be dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("should be kept")
	assert.Contains(t, buf.String(), "should be kept")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestInitFallsBackToInfoOnInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logging.Init("not-a-real-level", &buf)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestFromContextReturnsEmbeddedLogger(t *testing.T) {
	var buf bytes.Buffer
	embedded := zerolog.New(&buf).With().Str("component", "test").Logger()
	ctx := embedded.WithContext(context.Background())

	got := logging.FromContext(ctx)
	got.Info().Msg("via embedded logger")
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestFromContextFallsBackToDefaultWhenContextHasNoLogger(t *testing.T) {
	var buf bytes.Buffer
	logging.Init("info", &buf)

	got := logging.FromContext(context.Background())
	got.Info().Msg("via default context logger")
	assert.Contains(t, buf.String(), "via default context logger")
}
