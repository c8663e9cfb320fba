package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment does
// not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ELICIT_API_ENDPOINT", "VITE_MULTISOURCE_SERVICE_API_ENDPOINT",
		"ELICIT_AI_STORY_LIMIT", "VITE_AI_STORY_GENERATION_LIMIT",
		"ELICIT_CONCURRENCY", "ELICIT_DATA_DIR", "ELICIT_GRAPH_PATH",
		"ELICIT_LISTEN_ADDR", "ELICIT_NATS_URL", "ELICIT_NATS_SUBJECT",
		"ELICIT_S3_ENDPOINT", "ELICIT_S3_ACCESS_KEY", "ELICIT_S3_SECRET_KEY",
		"ELICIT_S3_BUCKET", "ELICIT_S3_USE_SSL", "ELICIT_API_TIMEOUT",
		"ELICIT_SCHEDULE_INTERVAL", "ELICIT_SCHEDULE_PROJECTS",
	} {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func TestLoad_NoFiles(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultAPITimeout, cfg.API.Timeout)
	assert.Equal(t, 70, cfg.AIStoryLimit)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, ".elicit", cfg.DataDir)
	assert.Equal(t, filepath.Join(".elicit", "graph"), cfg.GraphPath)
	assert.Equal(t, filepath.Join(".elicit", "elicit.db"), cfg.DatabasePath())
	assert.Equal(t, "elicit.progress", cfg.NATS.Subject)
	assert.Equal(t, "ai", cfg.Schedule.Pipeline)
	assert.Error(t, cfg.Validate(), "endpoint is required")
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := `api:
  endpoint: http://localhost:5000
  timeout: 10s
aiStoryLimit: 25
concurrency: 4
nats:
  url: nats://localhost:4222
schedule:
  interval: 15m
  projects: [p1, p2]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elicit.yml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.API.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 25, cfg.AIStoryLimit)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, []string{"p1", "p2"}, cfg.Schedule.Projects)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elicit.yaml"), []byte("api: [unclosed"), 0o644))
	_, err := Load(dir)
	assert.ErrorContains(t, err, "config: parse elicit.yaml")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elicit.yml"), []byte("aiStoryLimit: 25\n"), 0o644))

	t.Setenv("VITE_MULTISOURCE_SERVICE_API_ENDPOINT", "http://vite:5000")
	t.Setenv("VITE_AI_STORY_GENERATION_LIMIT", "40")
	t.Setenv("ELICIT_SCHEDULE_PROJECTS", "a, b,,c")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://vite:5000", cfg.API.Endpoint)
	assert.Equal(t, 40, cfg.AIStoryLimit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Schedule.Projects)

	t.Setenv("ELICIT_API_ENDPOINT", "http://elicit:5000")
	t.Setenv("ELICIT_AI_STORY_LIMIT", "10")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://elicit:5000", cfg.API.Endpoint, "ELICIT_ wins over VITE_")
	assert.Equal(t, 10, cfg.AIStoryLimit)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ELICIT_CONCURRENCY=6\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ELICIT_CONCURRENCY") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Concurrency)
}

func TestLoad_BadEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ELICIT_CONCURRENCY", "many"},
		{"ELICIT_API_TIMEOUT", "soon"},
		{"ELICIT_S3_USE_SSL", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(t.TempDir())
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{API: APIConfig{Endpoint: "https://api.example.com"}}, ""},
		{"not http", Config{API: APIConfig{Endpoint: "ftp://x"}}, "must be an http(s) URL"},
		{"concurrency", Config{API: APIConfig{Endpoint: "http://x"}, Concurrency: 100}, "exceeds 64"},
		{"bucket", Config{API: APIConfig{Endpoint: "http://x"}, ObjectStore: ObjectStoreConfig{Endpoint: "s3:9000"}}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
