package config

import (
	"github.com/rosterline/rosterline/errors"
)

// Validate checks the configuration for values that would prevent the
// pipeline from running at all. Rule-file existence is checked per job run,
// not here, since the file may legitimately appear later.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Ingest.RuleFile == "" {
		return errors.New("ingest.rule_file must not be empty")
	}
	if c.Ingest.UploadDir == "" {
		return errors.New("ingest.upload_dir must not be empty")
	}
	if c.Worker.Workers < 1 {
		return errors.Newf("worker.workers must be at least 1, got %d", c.Worker.Workers)
	}
	if c.Worker.PollIntervalSeconds < 1 {
		return errors.Newf("worker.poll_interval_seconds must be at least 1, got %d", c.Worker.PollIntervalSeconds)
	}
	return nil
}
