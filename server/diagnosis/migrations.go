package diagnosis

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Open or create the DB
func openDB(log logs.Log, config dbh.DBConfig) (*gorm.DB, error) {
	log.Infof("Opening diagnosis DB (%v)", config.LogSafeDescription())
	return dbh.OpenDB(log, config, migrations(log), 0)
}

func migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE diagnosis(
			id INTEGER PRIMARY KEY,
			image_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			scores TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX idx_diagnosis_image_id ON diagnosis(image_id);
		CREATE INDEX idx_diagnosis_created_at ON diagnosis(created_at);
	`))

	return migs
}
