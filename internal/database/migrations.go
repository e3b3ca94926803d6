package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillMainPhoto = "2026-08-12_backfill_missing_main_photo"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillMainPhoto, apply: backfillMissingMainPhoto},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillMissingMainPhoto repairs rows written before the main-photo
// invariant was enforced: any user owning photos but no main photo gets its
// oldest photo promoted.
func backfillMissingMainPhoto(db *gorm.DB) error {
	const stmt = `
UPDATE photos SET is_main = 1 WHERE rowid IN (
	SELECT MIN(rowid) FROM photos GROUP BY user_id HAVING MAX(is_main) = 0
);`
	return db.Exec(stmt).Error
}
