package status

import (
	"errors"
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) withTx(tx *gorm.DB) *Database {
	return &Database{db: tx}
}

// GetOrder retrieves an order by its client order id
func (d *Database) GetOrder(clientOrderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("client_order_id = ?", clientOrderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trader order not found for id %s: %w", clientOrderID, types.ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) SaveOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) CreateAudit(entry *StatusAudit) error {
	return d.db.Create(entry).Error
}

// GetAuditTrail retrieves all transitions for an order, oldest first
func (d *Database) GetAuditTrail(clientOrderID string) ([]StatusAudit, error) {
	var entries []StatusAudit
	if err := d.db.Where("client_order_id = ?", clientOrderID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch status audit trail: %w", err)
	}
	return entries, nil
}
