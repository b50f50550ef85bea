package eventlog_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestNewCreatesMissingLogDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	eventlog.New(dir, zerolog.Nop())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLogBlockNestsDetailsUnderDetailsKey(t *testing.T) {
	dir := t.TempDir()
	l := eventlog.New(dir, zerolog.Nop())

	l.LogBlock("203.0.113.9", "High Combined Score (0.950)", map[string]model.Value{
		"path": model.StringValue("/wp-login.php"),
	})

	lines := readLines(t, filepath.Join(dir, eventlog.BlockLog))
	require.Len(t, lines, 1)
	assert.Equal(t, "BLOCKLIST_ADD", lines[0]["event_type"])
	assert.Equal(t, "203.0.113.9", lines[0]["ip_address"])
	details, ok := lines[0]["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/wp-login.php", details["path"])
}

func TestLogHoneypotHitFlattensMetadataWithoutDetailsNesting(t *testing.T) {
	dir := t.TempDir()
	l := eventlog.New(dir, zerolog.Nop())

	l.LogHoneypotHit(model.RequestMetadata{SourceAddress: "198.51.100.2", Path: "/tarpit/abc"}, 3)

	lines := readLines(t, filepath.Join(dir, eventlog.HoneypotLog))
	require.Len(t, lines, 1)
	assert.Equal(t, "HONEYPOT_HIT", lines[0]["event_type"])
	assert.Equal(t, "198.51.100.2", lines[0]["ip_address"])
	assert.EqualValues(t, 3, lines[0]["hop_count"])
	_, hasDetails := lines[0]["details"]
	assert.False(t, hasDetails)
}

func TestLogAlertPrefixesEventTypeWithChannel(t *testing.T) {
	dir := t.TempDir()
	l := eventlog.New(dir, zerolog.Nop())

	l.LogAlert("slack", "Local LLM Detection", "203.0.113.5", map[string]any{"severity": 2})

	lines := readLines(t, filepath.Join(dir, eventlog.AlertLog))
	require.Len(t, lines, 1)
	assert.Equal(t, "ALERT_SENT_slack", lines[0]["event_type"])
	assert.EqualValues(t, 2, lines[0]["severity"])
}

func TestLogErrorAppendsToErrorFileAndNeverPanics(t *testing.T) {
	dir := t.TempDir()
	l := eventlog.New(dir, zerolog.Nop())

	assert.NotPanics(t, func() {
		l.LogError("something failed", errors.New("boom"))
	})

	data, err := os.ReadFile(filepath.Join(dir, eventlog.ErrorLog))
	require.NoError(t, err)
	assert.Contains(t, string(data), "something failed")
	assert.Contains(t, string(data), "boom")
}
