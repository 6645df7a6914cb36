package execution

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

// FindChildren returns every member order whose parent reference points at
// the given group order.
func (d *Database) FindChildren(groupOrderID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("original_client_order_id = ?", groupOrderID).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch member orders: %w", err)
	}
	return orders, nil
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) SaveOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) SaveOrders(orders []types.Order) error {
	return d.db.Save(&orders).Error
}

// LatestDetail returns the most recent execution detail for an order, or
// nil when none has been recorded.
func (d *Database) LatestDetail(clientOrderID string) (*ExecutionDetail, error) {
	var detail ExecutionDetail
	if err := d.db.Where("client_order_id = ?", clientOrderID).
		Order("id DESC").
		First(&detail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch execution detail: %w", err)
	}
	return &detail, nil
}

func (d *Database) CreateDetail(detail *ExecutionDetail) error {
	return d.db.Create(detail).Error
}

func (d *Database) DetailsFor(clientOrderID string) ([]ExecutionDetail, error) {
	var details []ExecutionDetail
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&details).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch execution details: %w", err)
	}
	return details, nil
}
