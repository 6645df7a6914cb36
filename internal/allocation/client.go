package allocation

import (
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClientService orchestrates the client allocation stage: distributing an
// order's quantity across client accounts, with every submission captured as
// an amendment log revision and applied to the live rows only on approval.
type ClientService struct {
	db       *Database
	raw      *gorm.DB
	status   *status.Service
	amendLog *AmendLog
}

func NewClientService(gormDB *gorm.DB, statusService *status.Service) *ClientService {
	return &ClientService{
		db:       NewDatabase(gormDB),
		raw:      gormDB,
		status:   statusService,
		amendLog: NewAmendLog(gormDB),
	}
}

// FetchPendingClientAllocations lists orders waiting for a client allocation
// to be drafted and submitted.
func (s *ClientService) FetchPendingClientAllocations() ([]types.Order, error) {
	return s.db.FindOrdersByStatusAndSubStatus(types.StatusClientAllocation, types.SubStatusPendingClientAllocation)
}

// FetchPendingClientAllocationApprovals lists orders whose client allocation
// has been submitted and awaits checker action.
func (s *ClientService) FetchPendingClientAllocationApprovals() ([]types.Order, error) {
	return s.db.FindOrdersByStatusAndSubStatus(types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval)
}

func (s *ClientService) GetBreakdowns(clientOrderID string) ([]ClientBreakdown, error) {
	return s.db.ClientBreakdowns(clientOrderID)
}

func (s *ClientService) GetAmendmentLog(clientOrderID string) (*AmendmentLog, error) {
	return s.amendLog.FindLatest(clientOrderID)
}

// SaveDraftAllocations replaces the working client breakdown set without
// touching the order status or the amendment log. Drafts may be saved any
// number of times before submission.
func (s *ClientService) SaveDraftAllocations(clientOrderID string, items []types.BreakdownItem) ([]ClientBreakdown, error) {
	var rows []ClientBreakdown
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusClientAllocation || order.SubStatus != types.SubStatusPendingClientAllocation {
			return fmt.Errorf("order is not in pending client allocation status: %w", types.ErrInvalidState)
		}

		rows, err = db.ReplaceClientBreakdowns(clientOrderID, items, BreakdownNew)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SubmitForApproval snapshots the current rows and the requested set into a
// new amendment log revision, reconciles the working rows against the
// request, and moves the order to pending approval. Final allocations must
// sum to the order quantity exactly.
func (s *ClientService) SubmitForApproval(clientOrderID string, items []types.BreakdownItem, changedBy, note string) (*types.Order, error) {
	logger := log.With().
		Str("client_order_id", clientOrderID).
		Str("service", "client_allocation").
		Logger()

	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusClientAllocation || order.SubStatus != types.SubStatusPendingClientAllocation {
			return fmt.Errorf("order is not in pending client allocation status: %w", types.ErrInvalidState)
		}

		if err := validateFinalAllocationSum(order.OrderQuantity, items); err != nil {
			return err
		}

		existing, err := db.ClientBreakdowns(clientOrderID)
		if err != nil {
			return err
		}
		before, err := marshalSnapshot(breakdownItems(existing))
		if err != nil {
			return err
		}
		after, err := marshalSnapshot(items)
		if err != nil {
			return err
		}

		if err := reconcileBreakdowns[ClientBreakdown](tx, clientOrderID, items); err != nil {
			return err
		}

		if _, err := s.amendLog.RecordTx(tx, clientOrderID, ObjectClientAllocationBreakdown, before, after, changedBy); err != nil {
			return err
		}

		updated, err = s.status.UpdateStatusTx(tx, clientOrderID,
			types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval,
			changedBy, note)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("client allocation submission failed")
		return nil, err
	}

	logger.Info().
		Int("breakdowns", len(items)).
		Str("changed_by", changedBy).
		Msg("client allocation submitted for approval")
	return updated, nil
}

// Approve applies the latest submitted snapshot as the ACCEPTED breakdown
// set, marks the amendment APPROVED and completes the order.
func (s *ClientService) Approve(clientOrderID, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusClientAllocation || order.SubStatus != types.SubStatusPendingClientAllocationApproval {
			return fmt.Errorf("order is not pending client allocation approval: %w", types.ErrInvalidState)
		}

		latest, err := db.LatestAmendment(clientOrderID)
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("no client allocation amendment log found for order %s: %w", clientOrderID, types.ErrInvalidState)
		}

		approved, err := unmarshalSnapshot(latest.AfterSnapshot)
		if err != nil {
			return err
		}
		if _, err := db.ReplaceClientBreakdowns(clientOrderID, approved, BreakdownAccepted); err != nil {
			return err
		}

		if err := s.amendLog.UpdateActionTx(tx, clientOrderID, AmendmentApproved); err != nil {
			return err
		}

		updated, err = s.status.UpdateStatusTx(tx, clientOrderID,
			types.StatusClientAllocation, types.SubStatusDone,
			changedBy, note)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_order_id", clientOrderID).
		Str("changed_by", changedBy).
		Msg("client allocation approved")
	return updated, nil
}

// Reject marks the latest amendment REJECTED and sends the order back to
// pending client allocation. The working breakdown rows are left as
// submitted so the maker can revise them.
func (s *ClientService) Reject(clientOrderID, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		db := s.db.withTx(tx)

		order, err := db.GetOrder(clientOrderID)
		if err != nil {
			return err
		}
		if order.Status != types.StatusClientAllocation || order.SubStatus != types.SubStatusPendingClientAllocationApproval {
			return fmt.Errorf("order is not pending client allocation approval: %w", types.ErrInvalidState)
		}

		if err := s.amendLog.UpdateActionTx(tx, clientOrderID, AmendmentRejected); err != nil {
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
		Msg("client allocation rejected")
	return updated, nil
}

func validateFinalAllocationSum(orderQuantity decimal.Decimal, items []types.BreakdownItem) error {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.FinalAllocation)
	}
	if !total.Equal(orderQuantity) {
		return fmt.Errorf("final allocations must sum to the order quantity (got %s, want %s): %w",
			total, orderQuantity, types.ErrInvalidArgument)
	}
	return nil
}

func breakdownItems(rows []ClientBreakdown) []types.BreakdownItem {
	items := make([]types.BreakdownItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, types.BreakdownItem{
			CountryCode:          row.CountryCode,
			AccountNumber:        row.AccountNumber,
			OrderQuantity:        row.OrderQuantity,
			FinalAllocation:      row.FinalAllocation,
			AllocationPercentage: row.AllocationPercentage,
			EstimatedOrderSize:   row.EstimatedOrderSize,
			YieldLimit:           row.YieldLimit,
			SpreadLimit:          row.SpreadLimit,
			SizeLimit:            row.SizeLimit,
		})
	}
	return items
}
