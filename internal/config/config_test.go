package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "audienced")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8480", cfg.Server.Addr())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.False(t, cfg.Selection.PruneEmptyAncestors)
	assert.True(t, cfg.Selection.RepairOnSave)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `
server:
  http_port: 9191
  shutdown_timeout: 3s
  api_token: s3cret
taxonomy:
  path: /srv/audience/tree.json
  watch: false
selection:
  prune_empty_ancestors: true
storage:
  driver: sqlite
  path: /var/lib/audienced/selections.db
logging:
  level: debug
  format: console
  fields:
    region: eu
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "s3cret", cfg.Server.APIToken.Value())
	assert.Equal(t, "/srv/audience/tree.json", cfg.Taxonomy.Path)
	assert.False(t, cfg.Taxonomy.Watch)
	assert.True(t, cfg.Selection.PruneEmptyAncestors)
	assert.True(t, cfg.Selection.RepairOnSave)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"region": "eu"}, cfg.Logging.Fields)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9191\n", 0600)

	t.Setenv("AUDIENCED_SERVER_HTTP_PORT", "9292")
	t.Setenv("AUDIENCED_SELECTION_PRUNE_EMPTY_ANCESTORS", "true")
	t.Setenv("AUDIENCED_EVENTS_SUBJECT_PREFIX", "aud")
	t.Setenv("AUDIENCED_TAXONOMY_DEBOUNCE", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9292, cfg.Server.Port)
	assert.True(t, cfg.Selection.PruneEmptyAncestors)
	assert.Equal(t, "aud", cfg.Events.SubjectPrefix)
	assert.Equal(t, time.Second, cfg.Taxonomy.Debounce.Duration())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string) string
		wantErr string
	}{
		{
			name: "path outside allowed dirs",
			setup: func(t *testing.T, _ string) string {
				return filepath.Join(t.TempDir(), "config.yaml")
			},
			wantErr: "must be in",
		},
		{
			name: "sibling dir with shared prefix",
			setup: func(t *testing.T, dir string) string {
				evil := dir + "-evil"
				require.NoError(t, os.MkdirAll(evil, 0700))
				return filepath.Join(evil, "config.yaml")
			},
			wantErr: "must be in",
		},
		{
			name: "invalid values",
			setup: func(t *testing.T, dir string) string {
				return writeConfig(t, dir, "server:\n  http_port: 70000\nstorage:\n  driver: sqlite\n", 0600)
			},
			wantErr: "invalid server port",
		},
		{
			name: "malformed yaml",
			setup: func(t *testing.T, dir string) string {
				return writeConfig(t, dir, "server: [unclosed\n", 0600)
			},
			wantErr: "failed to load config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			_, err := Load(tt.setup(t, dir))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9191\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate limit"},
		{"burst without room", func(c *Config) { c.Server.RateBurst = 0 }, "rate burst"},
		{"bad tree extension", func(c *Config) { c.Taxonomy.Path = "tree.yaml" }, ".json or .toml"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver"},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = DriverSQLite }, "storage path"},
		{"wildcard subject", func(c *Config) { c.Events.Enabled = true; c.Events.SubjectPrefix = "aud.>" }, "subject prefix"},
		{"bad protocol", func(c *Config) { c.Observability.EnableTelemetry = true; c.Observability.Protocol = "udp" }, "protocol"},
		{"sample rate", func(c *Config) { c.Observability.SampleRate = 2 }, "sample rate"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("AUDIENCED_SERVER_HTTP_PORT"))
	assert.Equal(t, "storage.driver", envKey("AUDIENCED_STORAGE_DRIVER"))
	assert.Equal(t, "debug", envKey("AUDIENCED_DEBUG"))
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")

	data, err := json.Marshal(struct{ Token Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	assert.True(t, s.IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
