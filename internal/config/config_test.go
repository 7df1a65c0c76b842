package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := Path(dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesSourcesAndViews(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: gh
    provider: github
    base_url: https://api.github.com
  - name: tracker
    provider: jira
    base_url: https://example.atlassian.net

views:
  - path: issues
    query: "type=issue"
    render:
      - path_template: "{id}.md"
        type: issue
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)
	require.Equal(t, "gh", cfg.Sources[0].Name)
	require.Equal(t, "github", cfg.Sources[0].Provider)
	require.Equal(t, "https://api.github.com", cfg.Sources[0].Extra["base_url"])

	require.Len(t, cfg.Views, 1)
	require.Equal(t, "issues", cfg.Views[0].Path)
	require.Len(t, cfg.Views[0].Render, 1)
	require.Equal(t, "{id}.md", cfg.Views[0].Render[0].PathTemplate)

	require.Equal(t, DefaultOperationTimeout, cfg.OperationTimeout)
}

func TestLoadOperationTimeoutFromFile(t *testing.T) {
	path := writeConfig(t, `
operation-timeout: 10s
sources: []
views:
  - path: issues
    query: "type=issue"
    render:
      - path_template: "{id}.md"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.OperationTimeout)
}

func TestLoadOperationTimeoutEnvOverride(t *testing.T) {
	path := writeConfig(t, `
operation-timeout: 10s
sources: []
views:
  - path: issues
    query: "type=issue"
    render:
      - path_template: "{id}.md"
`)

	t.Setenv("HARDCOPY_OPERATION_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsSourceWithoutProvider(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: gh
views: []
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateSourceNames(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: gh
    provider: github
  - name: gh
    provider: jira
views: []
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsViewWithoutRender(t *testing.T) {
	path := writeConfig(t, `
sources: []
views:
  - path: issues
    query: "type=issue"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestMePrefersHardcopyMeOverGithubUser(t *testing.T) {
	t.Setenv("HARDCOPY_ME", "alice")
	t.Setenv("GITHUB_USER", "bob")
	require.Equal(t, "alice", Me())
}

func TestMeFallsBackToGithubUser(t *testing.T) {
	t.Setenv("HARDCOPY_ME", "")
	t.Setenv("GITHUB_USER", "bob")
	require.Equal(t, "bob", Me())
}
