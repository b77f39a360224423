package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Article{},
		&Impact{},
		&Evidence{},
		&AnalysisHistory{},
		&AnalysisAttempt{},
	)
}
