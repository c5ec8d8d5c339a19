package config

import (
	"github.com/spf13/viper"
)

// SetDefaults registers default values for all configuration keys
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "rosterline.db")

	v.SetDefault("ingest.rule_file", "config.csv")
	v.SetDefault("ingest.upload_dir", "uploads")
	v.SetDefault("ingest.watch", false)

	v.SetDefault("worker.workers", 1)
	v.SetDefault("worker.poll_interval_seconds", 5)

	v.SetDefault("log.json", false)
}
