package commands

import (
	"database/sql"

	"github.com/rosterline/rosterline/config"
	"github.com/rosterline/rosterline/db"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/logger"
)

// openDatabase opens and migrates the database at the configured path.
// An explicit dbPath overrides the config.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.Database.Path
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}
