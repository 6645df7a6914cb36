package orders

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles order collection, grouping and ungrouping. Group orders
// are synthetic: they carry the summed quantity of their members, and the
// members point back at the group through their parent reference.
type Service struct {
	db     *Database
	raw    *gorm.DB
	status *status.Service
}

func NewService(gormDB *gorm.DB, statusService *status.Service) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		raw:    gormDB,
		status: statusService,
	}
}

func (s *Service) GetOrder(clientOrderID string) (*types.Order, error) {
	return s.db.GetOrder(clientOrderID)
}

// FetchOrderCollectionBlotter lists the NEW/NONE orders eligible for
// grouping. Only orders with an IPO-flagged sub order appear.
func (s *Service) FetchOrderCollectionBlotter() ([]types.Order, error) {
	return s.db.FindIPOBlotter()
}

// FetchByStatus lists orders by status, optionally narrowed by sub-status.
func (s *Service) FetchByStatus(orderStatus types.OrderStatus, subStatus *types.OrderSubStatus) ([]types.Order, error) {
	if subStatus != nil {
		return s.db.FindByStatusAndSubStatus(orderStatus, *subStatus)
	}
	return s.db.FindByStatus(orderStatus)
}

// GroupOrders combines two or more NEW/NONE orders into a synthetic group
// order. Members must share trade date and security id; the group quantity
// is the exact decimal sum of the member quantities.
func (s *Service) GroupOrders(clientOrderIDs []string, createdBy string) (*types.Order, error) {
	if len(clientOrderIDs) < 2 {
		return nil, fmt.Errorf("at least two orders are required to form a group: %w", types.ErrInvalidArgument)
	}

	var group *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		members, err := db.FindByClientOrderIDs(clientOrderIDs)
		if err != nil {
			return err
		}
		if len(members) != len(clientOrderIDs) {
			return fmt.Errorf("one or more order ids do not resolve to an existing order: %w", types.ErrInvalidArgument)
		}

		first := members[0]
		total := decimal.Zero
		for _, member := range members {
			if !member.TradeDate.Equal(first.TradeDate) ||
				member.SecurityID != first.SecurityID ||
				member.Status != types.StatusNew ||
				member.SubStatus != types.SubStatusNone {
				return fmt.Errorf("orders must share trade date, security id, status NEW and sub status NONE to be grouped: %w", types.ErrInvalidState)
			}
			total = total.Add(member.OrderQuantity)
		}

		group = &types.Order{
			ClientOrderID: uuid.New().String(),
			TradeDate:     first.TradeDate,
			CountryCode:   first.CountryCode,
			Status:        types.StatusNew,
			SubStatus:     types.SubStatusNone,
			SecurityID:    first.SecurityID,
			OrderQuantity: total,
			CleanPrice:    first.CleanPrice,
		}
		if err := db.CreateOrder(group); err != nil {
			return fmt.Errorf("failed to create group order: %w", err)
		}

		for i := range members {
			members[i].OriginalClientOrderID = group.ClientOrderID
		}
		if err := db.SaveOrders(members); err != nil {
			return fmt.Errorf("failed to re-parent member orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("group_order_id", group.ClientOrderID).
		Int("members", len(clientOrderIDs)).
		Str("quantity", group.OrderQuantity.String()).
		Str("created_by", createdBy).
		Msg("orders grouped")
	return group, nil
}

// ProceedToRegionalAllocation moves a collected order into the regional
// allocation stage.
func (s *Service) ProceedToRegionalAllocation(clientOrderID, changedBy, note string) (*types.Order, error) {
	return s.status.UpdateStatus(clientOrderID,
		types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation,
		changedBy, note)
}

// UngroupOrder pulls an order out of the allocation workflow. Both breakdown
// kinds are marked INACTIVE in bulk whether or not the stage has rows, and
// the order lands on ACCEPTED/NONE outside the normal transition table.
func (s *Service) UngroupOrder(clientOrderID, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusRegionalAllocation && order.Status != types.StatusClientAllocation {
			return fmt.Errorf("order can only be ungrouped from REGIONAL_ALLOCATION or CLIENT_ALLOCATION status: %w", types.ErrInvalidState)
		}

		allocations := allocation.NewDatabase(tx)
		if err := allocations.SetRegionalBreakdownStatus(clientOrderID, allocation.BreakdownInactive); err != nil {
			return fmt.Errorf("failed to deactivate regional breakdowns: %w", err)
		}
		if err := allocations.SetClientBreakdownStatus(clientOrderID, allocation.BreakdownInactive); err != nil {
			return fmt.Errorf("failed to deactivate client breakdowns: %w", err)
		}

		updated, err = s.status.ForceStatusTx(tx, clientOrderID,
			types.StatusAccepted, types.SubStatusNone, changedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_order_id", clientOrderID).
		Str("changed_by", changedBy).
		Msg("order ungrouped")
	return updated, nil
}

// CancelOrder cancels an order from any state.
func (s *Service) CancelOrder(clientOrderID, changedBy, note string) (*types.Order, error) {
	return s.status.CancelOrder(clientOrderID, changedBy, note)
}

// GetAuditTrail returns the order's status transition history, oldest first.
func (s *Service) GetAuditTrail(clientOrderID string) ([]status.StatusAudit, error) {
	return s.status.GetAuditTrail(clientOrderID)
}
