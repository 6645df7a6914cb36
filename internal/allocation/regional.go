package allocation

import (
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegionalService orchestrates the regional allocation stage: splitting a
// group order's quantity across the HK and SG markets and walking it through
// the submit/approve/reject cycle.
type RegionalService struct {
	db     *Database
	raw    *gorm.DB
	status *status.Service
}

func NewRegionalService(gormDB *gorm.DB, statusService *status.Service) *RegionalService {
	return &RegionalService{
		db:     NewDatabase(gormDB),
		raw:    gormDB,
		status: statusService,
	}
}

// FetchRegionalAllocationOrders lists every order currently in the regional
// allocation stage, any sub-status.
func (s *RegionalService) FetchRegionalAllocationOrders() ([]types.Order, error) {
	return s.db.FindOrdersByStatus(types.StatusRegionalAllocation)
}

func (s *RegionalService) GetRegionalAllocation(clientOrderID string) (*RegionalAllocation, error) {
	return s.db.GetRegionalAllocation(clientOrderID)
}

func (s *RegionalService) GetBreakdowns(clientOrderID string) ([]RegionalBreakdown, error) {
	return s.db.RegionalBreakdowns(clientOrderID)
}

// UpsertAllocation creates or updates the HK/SG split for an order. The two
// quantities may sum to at most the order quantity; equal is allowed.
func (s *RegionalService) UpsertAllocation(clientOrderID string, hkQuantity, sgQuantity, limitValue decimal.Decimal, limitType string, sizeLimit decimal.Decimal) (*RegionalAllocation, error) {
	var result *RegionalAllocation
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}

		if err := validateRegionalSplit(order.OrderQuantity, hkQuantity, sgQuantity); err != nil {
			return err
		}

		allocation, err := db.GetRegionalAllocation(clientOrderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			allocation = &RegionalAllocation{ClientOrderID: clientOrderID}
		}

		allocation.OrderQuantity = order.OrderQuantity
		allocation.HKOrderQuantity = hkQuantity
		allocation.SGOrderQuantity = sgQuantity
		allocation.LimitValue = limitValue
		allocation.LimitType = limitType
		allocation.SizeLimit = sizeLimit

		if err := db.SaveRegionalAllocation(allocation); err != nil {
			return fmt.Errorf("failed to save regional allocation: %w", err)
		}
		result = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitForApproval reconciles the regional breakdowns against the request,
// upserts the final priced and final regional sets, and moves the order to
// pending approval. The regional allocation must have been saved first.
func (s *RegionalService) SubmitForApproval(clientOrderID string, breakdowns []types.BreakdownItem, pricedBreakdowns []types.FinalPricedItem, finalRegionals []types.FinalRegionalItem, changedBy, note string) (*types.Order, error) {
	logger := log.With().
		Str("client_order_id", clientOrderID).
		Str("service", "regional_allocation").
		Logger()

	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		allocation, err := db.GetRegionalAllocation(clientOrderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return fmt.Errorf("regional allocation must be saved before submission: %w", types.ErrInvalidState)
		}

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusRegionalAllocation || order.SubStatus != types.SubStatusPendingRegionalAllocation {
			return fmt.Errorf("order is not in pending regional allocation status: %w", types.ErrInvalidState)
		}

		if err := reconcileBreakdowns[RegionalBreakdown](tx, clientOrderID, breakdowns); err != nil {
			return err
		}
		if err := db.UpsertFinalPricedBreakdowns(clientOrderID, pricedBreakdowns); err != nil {
			return err
		}
		if err := db.UpsertFinalRegionalAllocations(clientOrderID, finalRegionals); err != nil {
			return err
		}

		updated, err = s.status.UpdateStatusTx(tx, clientOrderID,
			types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval,
			changedBy, note)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("regional allocation submission failed")
		return nil, err
	}

	logger.Info().
		Int("breakdowns", len(breakdowns)).
		Str("changed_by", changedBy).
		Msg("regional allocation submitted for approval")
	return updated, nil
}

// Approve marks every regional breakdown ACCEPTED and advances the order to
// the client allocation stage.
func (s *RegionalService) Approve(clientOrderID, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		allocation, err := db.GetRegionalAllocation(clientOrderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return fmt.Errorf("regional allocation must exist before approval: %w", types.ErrInvalidState)
		}

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusRegionalAllocation || order.SubStatus != types.SubStatusPendingRegionalAllocationApproval {
			return fmt.Errorf("order is not pending regional allocation approval: %w", types.ErrInvalidState)
		}

		if err := db.SetRegionalBreakdownStatus(clientOrderID, BreakdownAccepted); err != nil {
			return err
		}

		updated, err = s.status.UpdateStatusTx(tx, clientOrderID,
			types.StatusClientAllocation, types.SubStatusPendingClientAllocation,
			changedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_order_id", clientOrderID).
		Str("changed_by", changedBy).
		Msg("regional allocation approved")
	return updated, nil
}

// Reject reverts the order to pending regional allocation. Breakdown rows
// keep their NEW status; only the order's sub-status moves back.
func (s *RegionalService) Reject(clientOrderID, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		allocation, err := db.GetRegionalAllocation(clientOrderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return fmt.Errorf("regional allocation must exist before rejection: %w", types.ErrInvalidState)
		}

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusRegionalAllocation || order.SubStatus != types.SubStatusPendingRegionalAllocationApproval {
			return fmt.Errorf("order is not pending regional allocation approval: %w", types.ErrInvalidState)
		}

		updated, err = s.status.UpdateStatusTx(tx, clientOrderID,
			types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation,
			changedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_order_id", clientOrderID).
		Str("changed_by", changedBy).
		Msg("regional allocation rejected")
	return updated, nil
}

func validateRegionalSplit(orderQuantity, hkQuantity, sgQuantity decimal.Decimal) error {
	if hkQuantity.IsNegative() || sgQuantity.IsNegative() {
		return fmt.Errorf("HK and SG order quantities must be non-negative: %w", types.ErrInvalidArgument)
	}
	if hkQuantity.Add(sgQuantity).GreaterThan(orderQuantity) {
		return fmt.Errorf("regional allocation exceeds order quantity: %w", types.ErrInvalidArgument)
	}
	return nil
}
