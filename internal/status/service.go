package status

import (
	"fmt"
	"time"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service validates and applies order status transitions, persisting an
// audit entry for every change. The order update and the audit append always
// commit in the same transaction.
type Service struct {
	db  *Database
	raw *gorm.DB
	now func() time.Time
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		raw: gormDB,
		now: time.Now,
	}
}

// transition is a single directed edge of the allowed transition table.
type transition struct {
	fromStatus    types.OrderStatus
	fromSubStatus types.OrderSubStatus
	toStatus      types.OrderStatus
	toSubStatus   types.OrderSubStatus
}

var allowedTransitions = []transition{
	{types.StatusNew, types.SubStatusNone, types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation},
	{types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval},
	{types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval, types.StatusClientAllocation, types.SubStatusPendingClientAllocation},
	{types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval, types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation},
	{types.StatusClientAllocation, types.SubStatusPendingClientAllocation, types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval},
	{types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval, types.StatusClientAllocation, types.SubStatusDone},
	{types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval, types.StatusClientAllocation, types.SubStatusPendingClientAllocation},
}

// UpdateStatus transitions an order to the target status/sub-status pair and
// appends a status audit entry, as a single transaction. Identity transitions
// are always permitted, and CANCELLED/NONE is reachable from any state; every
// other pair must match an edge of the transition table.
func (s *Service) UpdateStatus(clientOrderID string, targetStatus types.OrderStatus, targetSubStatus types.OrderSubStatus, changedBy, note string) (*types.Order, error) {
	var updated *types.Order
	err := s.raw.Transaction(func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = s.UpdateStatusTx(tx, clientOrderID, targetStatus, targetSubStatus, changedBy, note)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatusTx is UpdateStatus running inside the caller's transaction, for
// workflow services that combine the transition with other writes.
func (s *Service) UpdateStatusTx(tx *gorm.DB, clientOrderID string, targetStatus types.OrderStatus, targetSubStatus types.OrderSubStatus, changedBy, note string) (*types.Order, error) {
	db := s.db.withTx(tx)

	order, err := db.GetOrder(clientOrderID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(order.Status, order.SubStatus, targetStatus, targetSubStatus) {
		return nil, fmt.Errorf("transition from %s/%s to %s/%s is not allowed: %w",
			order.Status, order.SubStatus, targetStatus, targetSubStatus, types.ErrInvalidState)
	}

	return s.apply(db, order, targetStatus, targetSubStatus, changedBy, note)
}

// ForceStatusTx applies a transition without consulting the table. It exists
// for the ungroup path, which lands orders back on ACCEPTED/NONE even though
// no table edge targets ACCEPTED. The audit entry is still written.
func (s *Service) ForceStatusTx(tx *gorm.DB, clientOrderID string, targetStatus types.OrderStatus, targetSubStatus types.OrderSubStatus, changedBy, note string) (*types.Order, error) {
	db := s.db.withTx(tx)

	order, err := db.GetOrder(clientOrderID)
	if err != nil {
		return nil, err
	}

	return s.apply(db, order, targetStatus, targetSubStatus, changedBy, note)
}

// CancelOrder moves an order to CANCELLED/NONE from whatever state it is in.
func (s *Service) CancelOrder(clientOrderID, changedBy, note string) (*types.Order, error) {
	return s.UpdateStatus(clientOrderID, types.StatusCancelled, types.SubStatusNone, changedBy, note)
}

// GetAuditTrail returns every recorded transition for an order, oldest first.
func (s *Service) GetAuditTrail(clientOrderID string) ([]StatusAudit, error) {
	return s.db.GetAuditTrail(clientOrderID)
}

func (s *Service) apply(db *Database, order *types.Order, targetStatus types.OrderStatus, targetSubStatus types.OrderSubStatus, changedBy, note string) (*types.Order, error) {
	fromStatus := order.Status
	fromSubStatus := order.SubStatus

	order.Status = targetStatus
	order.SubStatus = targetSubStatus
	if err := db.SaveOrder(order); err != nil {
		return nil, fmt.Errorf("failed to save order status: %w", err)
	}

	entry := &StatusAudit{
		ClientOrderID: order.ClientOrderID,
		FromStatus:    fromStatus,
		FromSubStatus: fromSubStatus,
		ToStatus:      targetStatus,
		ToSubStatus:   targetSubStatus,
		ChangedBy:     changedBy,
		ChangedAt:     s.now(),
		Note:          note,
	}
	if err := db.CreateAudit(entry); err != nil {
		return nil, fmt.Errorf("failed to append status audit entry: %w", err)
	}

	log.Debug().
		Str("client_order_id", order.ClientOrderID).
		Str("from", string(fromStatus)+"/"+string(fromSubStatus)).
		Str("to", string(targetStatus)+"/"+string(targetSubStatus)).
		Str("changed_by", changedBy).
		Msg("order status updated")

	return order, nil
}

func transitionAllowed(fromStatus types.OrderStatus, fromSubStatus types.OrderSubStatus, toStatus types.OrderStatus, toSubStatus types.OrderSubStatus) bool {
	if fromStatus == toStatus && fromSubStatus == toSubStatus {
		return true
	}
	// Cancellation is exempt from the table
	if toStatus == types.StatusCancelled && toSubStatus == types.SubStatusNone {
		return true
	}
	for _, t := range allowedTransitions {
		if t.fromStatus == fromStatus && t.fromSubStatus == fromSubStatus &&
			t.toStatus == toStatus && t.toSubStatus == toSubStatus {
			return true
		}
	}
	return false
}
