package robots_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
)

func TestLoadParsesWildcardDisallowRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robots.txt")
	content := "User-agent: *\nDisallow: /admin\nDisallow: /private\n\nUser-agent: Googlebot\nDisallow: /only-for-googlebot\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := robots.Load(path)
	require.NoError(t, err)

	assert.True(t, rules.IsDisallowed("/admin/users"))
	assert.True(t, rules.IsDisallowed("/private"))
	assert.False(t, rules.IsDisallowed("/only-for-googlebot"))
	assert.False(t, rules.IsDisallowed("/public"))
}

func TestLoadIgnoresBareSlashDisallow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robots.txt")
	require.NoError(t, os.WriteFile(path, []byte("User-agent: *\nDisallow: /\n"), 0o644))

	rules, err := robots.Load(path)
	require.NoError(t, err)
	assert.False(t, rules.IsDisallowed("/anything"))
}

func TestLoadMissingFileYieldsEmptyRules(t *testing.T) {
	rules, err := robots.Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.NoError(t, err)
	assert.False(t, rules.IsDisallowed("/anything"))
}

func TestLoadBlankPathYieldsEmptyRules(t *testing.T) {
	rules, err := robots.Load("")
	require.NoError(t, err)
	assert.False(t, rules.IsDisallowed("/anything"))
}
