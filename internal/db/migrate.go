package db

import (
	"fifopnl/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.TradeRecord{},
		&models.SymbolPrecision{},
		&models.FifoAllocation{},
		&models.ComputationLog{},
		&models.ManualReviewItem{},
	)
}
