package database

import (
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"github.com/patricklo/ipo-allocation-api/internal/database/migrations"
	"github.com/patricklo/ipo-allocation-api/internal/execution"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "ipo_allocation.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddStatusAudit(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddAmendmentLog(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.SubOrder{},
		&allocation.RegionalAllocation{},
		&allocation.RegionalBreakdown{},
		&allocation.ClientBreakdown{},
		&allocation.FinalPricedBreakdown{},
		&allocation.FinalRegionalAllocation{},
		&execution.ExecutionDetail{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
