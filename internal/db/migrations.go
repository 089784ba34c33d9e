package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Book{}); err != nil {
		return err
	}

	if err := createIndexes(db.DB); err != nil {
		return err
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Statements must stay valid on both sqlite and PostgreSQL
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_books_date_published ON books(date_published)`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
