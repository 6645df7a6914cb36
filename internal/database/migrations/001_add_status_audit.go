package migrations

import (
	"github.com/patricklo/ipo-allocation-api/internal/status"
	"gorm.io/gorm"
)

// AddStatusAudit creates the status audit table and required indexes
func AddStatusAudit(db *gorm.DB) error {
	if err := db.AutoMigrate(&status.StatusAudit{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for per-order audit trail reads in insertion order
		`CREATE INDEX IF NOT EXISTS idx_status_audits_order_id
		 ON status_audits(client_order_id, id)`,

		// Index for time-based queries across orders
		`CREATE INDEX IF NOT EXISTS idx_status_audits_changed_at
		 ON status_audits(changed_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
