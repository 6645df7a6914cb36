package migrations

import (
	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"gorm.io/gorm"
)

// AddAmendmentLog creates the amendment log table and required indexes
func AddAmendmentLog(db *gorm.DB) error {
	if err := db.AutoMigrate(&allocation.AmendmentLog{}); err != nil {
		return err
	}

	indexes := []string{
		// Composite index for latest-revision lookups per ref id
		`CREATE INDEX IF NOT EXISTS idx_amendment_logs_ref_revision
		 ON amendment_logs(ref_id, revision)`,

		// Index for pending-approval sweeps
		`CREATE INDEX IF NOT EXISTS idx_amendment_logs_action
		 ON amendment_logs(action)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
