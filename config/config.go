// Package config loads and represents the rosterline configuration.
package config

// Config represents the core rosterline configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// IngestConfig configures the ingestion pipeline inputs
type IngestConfig struct {
	// RuleFile is the path to the transformation rule file (CSV).
	RuleFile string `mapstructure:"rule_file"`
	// UploadDir is the staging area for uploaded workbooks. Files are
	// deleted from here after a successful ingestion run.
	UploadDir string `mapstructure:"upload_dir"`
	// Watch enables the staging-directory watcher: workbooks dropped into
	// UploadDir are enqueued automatically.
	Watch bool `mapstructure:"watch"`
}

// WorkerConfig configures the ingestion worker pool
type WorkerConfig struct {
	// Workers is the number of concurrent job workers (default: 1).
	// Each worker materializes one whole workbook in memory.
	Workers int `mapstructure:"workers"`
	// PollIntervalSeconds is how often workers check for pending jobs.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}
