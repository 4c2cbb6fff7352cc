package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.TokenEnv, "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Type, cfg.Type)
	assert.Equal(t, bundle.DefaultFileName, cfg.Output)
	assert.Equal(t, config.DefaultRequestTimeout.Value(), cfg.RequestTimeout.Value())
	assert.Zero(t, cfg.Concurrency)
	assert.False(t, cfg.FailOnUnresolved)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
type: config.licenses.software/v1
githubToken: file-token
requestTimeout: 5s
concurrency: 4
output: THIRD-PARTY
failOnUnresolved: true
ignore:
  - example.com/internal/tool
copyLicense:
  example.com/fork: example.com/upstream
overrides:
  example.com/vanity:
    repository: https://github.com/real/home
  example.com/declared:
    license: MIT OR Apache-2.0
  example.com/pinned:
    texts:
      - full license text
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.GitHubToken)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout.Value())
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "THIRD-PARTY", cfg.Output)
	assert.True(t, cfg.FailOnUnresolved)
	assert.Equal(t, []string{"example.com/internal/tool"}, cfg.Ignore)
	assert.Equal(t, "example.com/upstream", cfg.CopyLicense["example.com/fork"])
	assert.Equal(t, "https://github.com/real/home", cfg.Overrides["example.com/vanity"].Repository)
	assert.Equal(t, "MIT OR Apache-2.0", cfg.Overrides["example.com/declared"].License)
	assert.Equal(t, []string{"full license text"}, cfg.Overrides["example.com/pinned"].Texts)
}

func TestLoadKeepsDefaultsForUnsetFields(t *testing.T) {
	path := writeConfig(t, "type: config.licenses.software/v1\nconcurrency: 2\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, bundle.DefaultFileName, cfg.Output)
	assert.Equal(t, config.DefaultRequestTimeout.Value(), cfg.RequestTimeout.Value())
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv(config.TokenEnv, "env-token")
	path := writeConfig(t, "type: config.licenses.software/v1\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.GitHubToken)
}

func TestLoadFileTokenWinsOverEnvironment(t *testing.T) {
	t.Setenv(config.TokenEnv, "env-token")
	path := writeConfig(t, "type: config.licenses.software/v1\ngithubToken: file-token\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.GitHubToken)
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not yaml", content: "{{"},
		{name: "wrong kind", content: "type: something.else/v1\n"},
		{name: "empty type", content: "type: \"\"\n"},
		{name: "unsupported major version", content: "type: config.licenses.software/v2\n"},
		{name: "malformed version", content: "type: config.licenses.software/canary\n"},
		{name: "negative concurrency", content: "type: config.licenses.software/v1\nconcurrency: -1\n"},
		{name: "negative timeout", content: "type: config.licenses.software/v1\nrequestTimeout: -5s\n"},
		{
			name: "override forces texts and strategy",
			content: `
type: config.licenses.software/v1
overrides:
  example.com/pkg:
    strategy: spdx
    texts:
      - some text
`,
		},
		{
			name:    "copyLicense with empty target",
			content: "type: config.licenses.software/v1\ncopyLicense:\n  example.com/fork: \"\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadReadsNewerMinorVersion(t *testing.T) {
	path := writeConfig(t, "type: config.licenses.software/v1.2\n")

	_, err := config.Load(path)
	require.NoError(t, err)
}

func TestTimeoutRoundTrip(t *testing.T) {
	timeout := config.NewTimeout(90 * time.Second)
	data, err := timeout.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var decoded config.Timeout
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, 90*time.Second, decoded.Value())
}

func TestTimeoutUnmarshalNanoseconds(t *testing.T) {
	var decoded config.Timeout
	require.NoError(t, decoded.UnmarshalJSON([]byte("1500000000")))
	assert.Equal(t, 1500*time.Millisecond, decoded.Value())
}
