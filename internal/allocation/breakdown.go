package allocation

import (
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"gorm.io/gorm"
)

// The regional and client breakdown collections share one reconciliation
// algorithm, parameterized over the row type. Rows are addressed by the
// (country code, account number) composite; "|" is not expected to appear in
// either field.

type breakdownRow interface {
	key() string
	apply(clientOrderID string, item types.BreakdownItem)
	setStatus(s BreakdownStatus)
}

func breakdownKey(countryCode, accountNumber string) string {
	return countryCode + "|" + accountNumber
}

func (b *RegionalBreakdown) key() string { return breakdownKey(b.CountryCode, b.AccountNumber) }

func (b *RegionalBreakdown) apply(clientOrderID string, item types.BreakdownItem) {
	b.ClientOrderID = clientOrderID
	b.CountryCode = item.CountryCode
	b.AccountNumber = item.AccountNumber
	b.OrderQuantity = item.OrderQuantity
	b.FinalAllocation = item.FinalAllocation
	b.AllocationPercentage = item.AllocationPercentage
	b.EstimatedOrderSize = item.EstimatedOrderSize
	b.YieldLimit = item.YieldLimit
	b.SpreadLimit = item.SpreadLimit
	b.SizeLimit = item.SizeLimit
}

func (b *RegionalBreakdown) setStatus(s BreakdownStatus) { b.Status = s }

func (b *ClientBreakdown) key() string { return breakdownKey(b.CountryCode, b.AccountNumber) }

func (b *ClientBreakdown) apply(clientOrderID string, item types.BreakdownItem) {
	b.ClientOrderID = clientOrderID
	b.CountryCode = item.CountryCode
	b.AccountNumber = item.AccountNumber
	b.OrderQuantity = item.OrderQuantity
	b.FinalAllocation = item.FinalAllocation
	b.AllocationPercentage = item.AllocationPercentage
	b.EstimatedOrderSize = item.EstimatedOrderSize
	b.YieldLimit = item.YieldLimit
	b.SpreadLimit = item.SpreadLimit
	b.SizeLimit = item.SizeLimit
}

func (b *ClientBreakdown) setStatus(s BreakdownStatus) { b.Status = s }

// reconcileBreakdowns makes the persisted row set for an order equal the
// requested set by composite key: matching rows are updated in place and
// forced to NEW, missing rows are created as NEW, and rows whose key is
// absent from the request are deleted.
func reconcileBreakdowns[T any, PT interface {
	*T
	breakdownRow
}](tx *gorm.DB, clientOrderID string, items []types.BreakdownItem) error {
	var existing []T
	if err := tx.Where("client_order_id = ?", clientOrderID).Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to fetch breakdowns for reconciliation: %w", err)
	}

	byKey := make(map[string]PT, len(existing))
	for i := range existing {
		row := PT(&existing[i])
		byKey[row.key()] = row
	}

	requested := make(map[string]struct{}, len(items))
	for _, item := range items {
		k := breakdownKey(item.CountryCode, item.AccountNumber)
		requested[k] = struct{}{}

		if row, ok := byKey[k]; ok {
			row.apply(clientOrderID, item)
			row.setStatus(BreakdownNew)
			if err := tx.Save(row).Error; err != nil {
				return fmt.Errorf("failed to update breakdown %s: %w", k, err)
			}
			continue
		}

		var fresh T
		row := PT(&fresh)
		row.apply(clientOrderID, item)
		row.setStatus(BreakdownNew)
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create breakdown %s: %w", k, err)
		}
	}

	for k, row := range byKey {
		if _, ok := requested[k]; !ok {
			if err := tx.Delete(row).Error; err != nil {
				return fmt.Errorf("failed to delete stale breakdown %s: %w", k, err)
			}
		}
	}

	return nil
}

// setBreakdownStatus bulk-updates the status of every row for an order.
func setBreakdownStatus[T any](tx *gorm.DB, clientOrderID string, s BreakdownStatus) error {
	var model T
	return tx.Model(&model).
		Where("client_order_id = ?", clientOrderID).
		Update("status", s).Error
}

func listBreakdowns[T any](db *gorm.DB, clientOrderID string) ([]T, error) {
	var rows []T
	if err := db.Where("client_order_id = ?", clientOrderID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch breakdowns: %w", err)
	}
	return rows, nil
}
