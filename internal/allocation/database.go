package allocation

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

func (d *Database) FindOrdersByStatus(status types.OrderStatus) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("status = ?", status).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders by status: %w", err)
	}
	return orders, nil
}

func (d *Database) FindOrdersByStatusAndSubStatus(status types.OrderStatus, subStatus types.OrderSubStatus) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("status = ? AND sub_status = ?", status, subStatus).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders by status: %w", err)
	}
	return orders, nil
}

// GetRegionalAllocation returns nil without error when no allocation has
// been saved for the order yet.
func (d *Database) GetRegionalAllocation(clientOrderID string) (*RegionalAllocation, error) {
	var allocation RegionalAllocation
	if err := d.db.Where("client_order_id = ?", clientOrderID).First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allocation, nil
}

func (d *Database) SaveRegionalAllocation(allocation *RegionalAllocation) error {
	return d.db.Save(allocation).Error
}

func (d *Database) RegionalBreakdowns(clientOrderID string) ([]RegionalBreakdown, error) {
	return listBreakdowns[RegionalBreakdown](d.db, clientOrderID)
}

func (d *Database) ClientBreakdowns(clientOrderID string) ([]ClientBreakdown, error) {
	return listBreakdowns[ClientBreakdown](d.db, clientOrderID)
}

// SetRegionalBreakdownStatus bulk-updates every regional breakdown row of an
// order to the given status.
func (d *Database) SetRegionalBreakdownStatus(clientOrderID string, status BreakdownStatus) error {
	return setBreakdownStatus[RegionalBreakdown](d.db, clientOrderID, status)
}

// SetClientBreakdownStatus bulk-updates every client breakdown row of an
// order to the given status.
func (d *Database) SetClientBreakdownStatus(clientOrderID string, status BreakdownStatus) error {
	return setBreakdownStatus[ClientBreakdown](d.db, clientOrderID, status)
}

// ReplaceClientBreakdowns drops every client breakdown row for the order and
// recreates the set from the given items with the given status. Used by the
// draft save (full replace, no reconciliation) and by approval when the
// approved snapshot is applied.
func (d *Database) ReplaceClientBreakdowns(clientOrderID string, items []types.BreakdownItem, status BreakdownStatus) ([]ClientBreakdown, error) {
	if err := d.db.Where("client_order_id = ?", clientOrderID).Delete(&ClientBreakdown{}).Error; err != nil {
		return nil, fmt.Errorf("failed to clear client breakdowns: %w", err)
	}

	rows := make([]ClientBreakdown, 0, len(items))
	for _, item := range items {
		var row ClientBreakdown
		row.apply(clientOrderID, item)
		row.Status = status
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return rows, nil
	}
	if err := d.db.Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to save client breakdowns: %w", err)
	}
	return rows, nil
}

// UpsertFinalPricedBreakdowns reconciles the final priced rows for an order
// against the requested set, keyed by country code.
func (d *Database) UpsertFinalPricedBreakdowns(clientOrderID string, items []types.FinalPricedItem) error {
	var existing []FinalPricedBreakdown
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to fetch final priced breakdowns: %w", err)
	}

	byCountry := make(map[string]*FinalPricedBreakdown, len(existing))
	for i := range existing {
		byCountry[existing[i].CountryCode] = &existing[i]
	}

	requested := make(map[string]struct{}, len(items))
	for _, item := range items {
		requested[item.CountryCode] = struct{}{}
		row, ok := byCountry[item.CountryCode]
		if !ok {
			row = &FinalPricedBreakdown{ClientOrderID: clientOrderID, CountryCode: item.CountryCode}
		}
		row.LimitType = item.LimitType
		row.FinalPrice = item.FinalPrice
		if err := d.db.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save final priced breakdown for %s: %w", item.CountryCode, err)
		}
	}

	for country, row := range byCountry {
		if _, ok := requested[country]; !ok {
			if err := d.db.Delete(row).Error; err != nil {
				return fmt.Errorf("failed to delete final priced breakdown for %s: %w", country, err)
			}
		}
	}
	return nil
}

// UpsertFinalRegionalAllocations reconciles the final regional rows for an
// order against the requested set, keyed by market.
func (d *Database) UpsertFinalRegionalAllocations(clientOrderID string, items []types.FinalRegionalItem) error {
	var existing []FinalRegionalAllocation
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to fetch final regional allocations: %w", err)
	}

	byMarket := make(map[string]*FinalRegionalAllocation, len(existing))
	for i := range existing {
		byMarket[existing[i].Market] = &existing[i]
	}

	requested := make(map[string]struct{}, len(items))
	for _, item := range items {
		requested[item.Market] = struct{}{}
		row, ok := byMarket[item.Market]
		if !ok {
			row = &FinalRegionalAllocation{ClientOrderID: clientOrderID, Market: item.Market}
		}
		row.AsiaAllocation = item.AsiaAllocation
		row.Allocation = item.Allocation
		row.EffectiveOrder = item.EffectiveOrder
		row.ProRata = item.ProRata
		row.AllocationAmount = item.AllocationAmount
		if err := d.db.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save final regional allocation for %s: %w", item.Market, err)
		}
	}

	for market, row := range byMarket {
		if _, ok := requested[market]; !ok {
			if err := d.db.Delete(row).Error; err != nil {
				return fmt.Errorf("failed to delete final regional allocation for %s: %w", market, err)
			}
		}
	}
	return nil
}

func (d *Database) FinalPricedBreakdowns(clientOrderID string) ([]FinalPricedBreakdown, error) {
	var rows []FinalPricedBreakdown
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch final priced breakdowns: %w", err)
	}
	return rows, nil
}

func (d *Database) FinalRegionalAllocations(clientOrderID string) ([]FinalRegionalAllocation, error) {
	var rows []FinalRegionalAllocation
	if err := d.db.Where("client_order_id = ?", clientOrderID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch final regional allocations: %w", err)
	}
	return rows, nil
}

// LatestAmendment returns the highest-revision log entry for a ref id, or
// nil when none exists.
func (d *Database) LatestAmendment(refID string) (*AmendmentLog, error) {
	var entry AmendmentLog
	if err := d.db.Where("ref_id = ?", refID).
		Order("revision DESC").
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest amendment: %w", err)
	}
	return &entry, nil
}

func (d *Database) CreateAmendment(entry *AmendmentLog) error {
	return d.db.Create(entry).Error
}

func (d *Database) SaveAmendment(entry *AmendmentLog) error {
	return d.db.Save(entry).Error
}
