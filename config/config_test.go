package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterline/rosterline/config"
)

func TestLoad_Defaults(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "rosterline.db", cfg.Database.Path)
	assert.Equal(t, "config.csv", cfg.Ingest.RuleFile)
	assert.Equal(t, "uploads", cfg.Ingest.UploadDir)
	assert.False(t, cfg.Ingest.Watch)
	assert.Equal(t, 1, cfg.Worker.Workers)
	assert.Equal(t, 5, cfg.Worker.PollIntervalSeconds)
	assert.False(t, cfg.Log.JSON)

	require.NoError(t, cfg.Validate())
}

func TestLoad_Cached(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	first, err := config.Load()
	require.NoError(t, err)
	second, err := config.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadFromFile(t *testing.T) {
	content := `[database]
path = "/tmp/test-rosterline.db"

[ingest]
rule_file = "/etc/rosterline/rules.csv"
upload_dir = "/var/lib/rosterline/uploads"
watch = true

[worker]
workers = 3
poll_interval_seconds = 2

[log]
json = true
`
	path := filepath.Join(t.TempDir(), "rosterline.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-rosterline.db", cfg.Database.Path)
	assert.Equal(t, "/etc/rosterline/rules.csv", cfg.Ingest.RuleFile)
	assert.True(t, cfg.Ingest.Watch)
	assert.Equal(t, 3, cfg.Worker.Workers)
	assert.Equal(t, 2, cfg.Worker.PollIntervalSeconds)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Database: config.DatabaseConfig{Path: "x.db"},
			Ingest:   config.IngestConfig{RuleFile: "rules.csv", UploadDir: "uploads"},
			Worker:   config.WorkerConfig{Workers: 1, PollIntervalSeconds: 5},
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Database.Path = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Ingest.RuleFile = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Ingest.UploadDir = ""
	assert.Error(t, c.Validate())

	c = valid()
	c.Worker.Workers = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Worker.PollIntervalSeconds = 0
	assert.Error(t, c.Validate())
}
