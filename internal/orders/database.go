package orders

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

func (d *Database) FindByClientOrderIDs(clientOrderIDs []string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("client_order_id IN ?", clientOrderIDs).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

func (d *Database) FindByStatus(status types.OrderStatus) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("status = ?", status).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders by status: %w", err)
	}
	return orders, nil
}

func (d *Database) FindByStatusAndSubStatus(status types.OrderStatus, subStatus types.OrderSubStatus) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("status = ? AND sub_status = ?", status, subStatus).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders by status: %w", err)
	}
	return orders, nil
}

// FindIPOBlotter returns every NEW/NONE order carrying at least one sub
// order flagged as an IPO issue.
func (d *Database) FindIPOBlotter() ([]types.Order, error) {
	sub := d.db.Model(&types.SubOrder{}).
		Select("client_order_id").
		Where("issue_ipo_flag = ?", true)

	var orders []types.Order
	if err := d.db.
		Where("status = ? AND sub_status = ?", types.StatusNew, types.SubStatusNone).
		Where("client_order_id IN (?)", sub).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch order collection blotter: %w", err)
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

func (d *Database) SubOrders(clientOrderID string) ([]types.SubOrder, error) {
	var subOrders []types.SubOrder
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&subOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sub orders: %w", err)
	}
	return subOrders, nil
}
