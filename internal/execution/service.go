package execution

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service performs regional split execution of group orders: carving a group
// order into per-country synthetic orders, re-parenting the matching members
// and deducting the carved quantity from the original group.
type Service struct {
	db  *Database
	raw *gorm.DB
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		raw: gormDB,
	}
}

// ExecutionResult is the outcome of one split execution call.
type ExecutionResult struct {
	GroupOrder     *types.Order    `json:"group_order"`
	RegionalOrders []types.Order   `json:"regional_orders"`
	DeductedTotal  decimal.Decimal `json:"deducted_total"`
}

func (s *Service) GetDetails(clientOrderID string) ([]ExecutionDetail, error) {
	return s.db.DetailsFor(clientOrderID)
}

// ExecuteIPOOrder splits a group order across the requested regions. For
// each region with matching member orders a new synthetic group order is
// created with the regional quantity sum, the members are re-parented to it
// and the group's execution detail is cloned with the request's overrides.
// The summed carve-outs are deducted from the original group order.
func (s *Service) ExecuteIPOOrder(groupOrderID string, req types.IPOExecRequest, createdBy string) (*ExecutionResult, error) {
	logger := log.With().
		Str("group_order_id", groupOrderID).
		Str("service", "execution").
		Logger()

	var result *ExecutionResult
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		group, err := db.GetOrder(groupOrderID)
		if err != nil {
			return err
		}
		if group.OriginalClientOrderID != "" {
			return fmt.Errorf("order %s is not a group order: %w", groupOrderID, types.ErrInvalidState)
		}

		children, err := db.FindChildren(groupOrderID)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			return fmt.Errorf("group order %s has no member orders: %w", groupOrderID, types.ErrInvalidState)
		}

		sourceDetail, err := db.LatestDetail(groupOrderID)
		if err != nil {
			return err
		}

		deducted := decimal.Zero
		var regionalOrders []types.Order

		for _, regional := range req.RegionalExecutions {
			var matched []types.Order
			for _, child := range children {
				if child.CountryCode == regional.CountryCode {
					matched = append(matched, child)
				}
			}
			if len(matched) == 0 {
				logger.Warn().
					Str("country_code", regional.CountryCode).
					Msg("no member orders for requested region, skipping")
				continue
			}

			regionalSum := decimal.Zero
			for _, child := range matched {
				regionalSum = regionalSum.Add(child.OrderQuantity)
			}

			regionalOrder := cloneOrder(group, uuid.New().String(), regional.CountryCode, regionalSum)
			if err := db.CreateOrder(regionalOrder); err != nil {
				return fmt.Errorf("failed to create regional group order: %w", err)
			}

			for i := range matched {
				matched[i].OriginalClientOrderID = regionalOrder.ClientOrderID
			}
			if err := db.SaveOrders(matched); err != nil {
				return fmt.Errorf("failed to re-parent member orders: %w", err)
			}

			if sourceDetail == nil {
				logger.Warn().
					Str("regional_order_id", regionalOrder.ClientOrderID).
					Msg("group order has no execution detail, none recorded for carve-out")
			} else {
				detail := cloneDetail(sourceDetail, regionalOrder, req.BookingCenter, regional.CounterpartyID)
				if err := db.CreateDetail(detail); err != nil {
					return fmt.Errorf("failed to record execution detail: %w", err)
				}
			}

			deducted = deducted.Add(regionalSum)
			regionalOrders = append(regionalOrders, *regionalOrder)
		}

		remaining := group.OrderQuantity.Sub(deducted)
		if remaining.IsNegative() {
			return fmt.Errorf("split execution would drive group order quantity negative: %w", types.ErrInvalidState)
		}
		group.OrderQuantity = remaining
		if err := db.SaveOrder(group); err != nil {
			return fmt.Errorf("failed to deduct executed quantity: %w", err)
		}

		result = &ExecutionResult{
			GroupOrder:     group,
			RegionalOrders: regionalOrders,
			DeductedTotal:  deducted,
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("split execution failed")
		return nil, err
	}

	logger.Info().
		Int("regional_orders", len(result.RegionalOrders)).
		Str("deducted", result.DeductedTotal.String()).
		Str("created_by", createdBy).
		Msg("group order split executed")
	return result, nil
}

// cloneOrder copies the scalar fields of a source order onto a fresh record
// with the given identity, country and quantity. The parent reference and
// the database identity are never carried over.
func cloneOrder(source *types.Order, clientOrderID, countryCode string, quantity decimal.Decimal) *types.Order {
	return &types.Order{
		ClientOrderID: clientOrderID,
		TradeDate:     source.TradeDate,
		CountryCode:   countryCode,
		Status:        source.Status,
		SubStatus:     source.SubStatus,
		SecurityID:    source.SecurityID,
		OrderQuantity: quantity,
		CleanPrice:    source.CleanPrice,
	}
}

// cloneDetail derives the execution detail for a regional carve-out from the
// group's detail. Booking center and counterparty overrides from the request
// win over the cloned values.
func cloneDetail(source *ExecutionDetail, order *types.Order, bookingCenter, counterpartyID string) *ExecutionDetail {
	detail := &ExecutionDetail{
		ExecutionID:      uuid.New().String(),
		ClientOrderID:    order.ClientOrderID,
		SecurityID:       order.SecurityID,
		ExecutedSize:     order.OrderQuantity,
		BookingCenter:    source.BookingCenter,
		PlaceMethod:      source.PlaceMethod,
		BrokerCode:       source.BrokerCode,
		CounterpartyCode: source.CounterpartyCode,
		Side:             source.Side,
		Currency:         source.Currency,
		ExecutedPrice:    source.ExecutedPrice,
	}
	if bookingCenter != "" {
		detail.BookingCenter = bookingCenter
	}
	if counterpartyID != "" {
		detail.CounterpartyCode = counterpartyID
	}
	return detail
}
