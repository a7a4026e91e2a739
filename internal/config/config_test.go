package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "json"},
		Upstream: UpstreamConfig{BaseURL: "http://upstream.test/entries", Limit: 5},
		Store:    StoreConfig{Driver: StoreDriverBolt, BoltPath: "x.db", Collection: "articles"},
		Article:  ArticleConfig{Timezone: "Europe/Madrid"},
		Schedule: ScheduleConfig{Hour: 8, Timezone: "Europe/Madrid"},
		Repair:   RepairConfig{BatchSize: 400},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreDriverBolt, cfg.Store.Driver)
	assert.Equal(t, "articles", cfg.Store.Collection)
	assert.Equal(t, 5, cfg.Upstream.Limit)
	assert.Equal(t, 0, cfg.Upstream.Offset)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 400, cfg.Repair.BatchSize)
	assert.Equal(t, 8, cfg.Schedule.Hour)
	assert.Equal(t, "MIT TR US", cfg.Article.Source)
	assert.Equal(t, "MIT Technology Review", cfg.Article.DefaultAuthor)
	assert.Equal(t, "Europe/Madrid", cfg.ScheduleLocation().String())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mgz.yaml")
	content := `
log:
  level: debug
upstream:
  limit: 10
  timeout: 5s
store:
  collection: articulos
repair:
  batch_size: 200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("MGZ_STORE_DRIVER", "firestore")
	t.Setenv("MGZ_STORE_FIRESTORE_PROJECT", "techreview-test")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Upstream.Limit)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "articulos", cfg.Store.Collection)
	assert.Equal(t, 200, cfg.Repair.BatchSize)
	assert.Equal(t, StoreDriverFirestore, cfg.Store.Driver)
	assert.Equal(t, "techreview-test", cfg.Store.FirestoreProject)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.NotContains(t, cfg.String(), "secret")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: ErrUnknownStoreDriver},
		{name: "bolt without path", mutate: func(c *Config) { c.Store.BoltPath = "" }, wantErr: ErrMissingBoltPath},
		{name: "firestore without project", mutate: func(c *Config) { c.Store.Driver = StoreDriverFirestore }, wantErr: ErrMissingFirestoreProj},
		{name: "no upstream", mutate: func(c *Config) { c.Upstream.BaseURL = "" }, wantErr: ErrMissingUpstreamURL},
		{name: "zero limit", mutate: func(c *Config) { c.Upstream.Limit = 0 }, wantErr: ErrInvalidLimit},
		{name: "negative offset", mutate: func(c *Config) { c.Upstream.Offset = -1 }, wantErr: ErrInvalidOffset},
		{name: "batch too large", mutate: func(c *Config) { c.Repair.BatchSize = 501 }, wantErr: ErrInvalidBatchSize},
		{name: "batch zero", mutate: func(c *Config) { c.Repair.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "hour out of range", mutate: func(c *Config) { c.Schedule.Hour = 24 }, wantErr: ErrInvalidScheduleHour},
		{name: "minute out of range", mutate: func(c *Config) { c.Schedule.Minute = 60 }, wantErr: ErrInvalidScheduleMin},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
