package status

import (
	"testing"
	"time"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Order{}, &StatusAudit{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, id string, s types.OrderStatus, sub types.OrderSubStatus) {
	t.Helper()

	order := types.Order{
		ClientOrderID: id,
		TradeDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CountryCode:   "HK",
		Status:        s,
		SubStatus:     sub,
		SecurityID:    "XS2571924070",
		OrderQuantity: decimal.NewFromInt(100),
	}
	require.NoError(t, db.Create(&order).Error)
}

func TestUpdateStatusValidTransition(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	seedOrder(t, db, "ord-1", types.StatusNew, types.SubStatusNone)

	updated, err := svc.UpdateStatus("ord-1",
		types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation,
		"trader-a", "moving on")
	require.NoError(t, err)
	require.Equal(t, types.StatusRegionalAllocation, updated.Status)
	require.Equal(t, types.SubStatusPendingRegionalAllocation, updated.SubStatus)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	seedOrder(t, db, "ord-1", types.StatusNew, types.SubStatusNone)

	_, err := svc.UpdateStatus("ord-1",
		types.StatusClientAllocation, types.SubStatusPendingClientAllocation,
		"trader-a", "")
	require.ErrorIs(t, err, types.ErrInvalidState)
	require.Contains(t, err.Error(), "transition from NEW/NONE to CLIENT_ALLOCATION/PENDING_CLIENT_ALLOCATION is not allowed")

	// Order untouched on failure
	var order types.Order
	require.NoError(t, db.Where("client_order_id = ?", "ord-1").First(&order).Error)
	require.Equal(t, types.StatusNew, order.Status)
}

func TestUpdateStatusIdentityAlwaysAllowed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusDone)

	updated, err := svc.UpdateStatus("ord-1",
		types.StatusClientAllocation, types.SubStatusDone, "trader-a", "")
	require.NoError(t, err)
	require.Equal(t, types.SubStatusDone, updated.SubStatus)
}

func TestCancelExemptFromAnyState(t *testing.T) {
	states := []struct {
		status types.OrderStatus
		sub    types.OrderSubStatus
	}{
		{types.StatusNew, types.SubStatusNone},
		{types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval},
		{types.StatusClientAllocation, types.SubStatusDone},
	}

	for _, state := range states {
		db := setupTestDB(t)
		svc := NewService(db)
		seedOrder(t, db, "ord-1", state.status, state.sub)

		updated, err := svc.CancelOrder("ord-1", "ops", "cancelled by desk")
		require.NoError(t, err, "cancel from %s/%s", state.status, state.sub)
		require.Equal(t, types.StatusCancelled, updated.Status)
		require.Equal(t, types.SubStatusNone, updated.SubStatus)
	}
}

func TestRejectEdgesRevertSubStatus(t *testing.T) {
	edges := []struct {
		status  types.OrderStatus
		fromSub types.OrderSubStatus
		toSub   types.OrderSubStatus
	}{
		{types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval, types.SubStatusPendingRegionalAllocation},
		{types.StatusClientAllocation, types.SubStatusPendingClientAllocationApproval, types.SubStatusPendingClientAllocation},
	}

	for _, edge := range edges {
		db := setupTestDB(t)
		svc := NewService(db)
		seedOrder(t, db, "ord-1", edge.status, edge.fromSub)

		updated, err := svc.UpdateStatus("ord-1", edge.status, edge.toSub, "checker", "sent back")
		require.NoError(t, err, "reject edge %s/%s", edge.status, edge.fromSub)
		require.Equal(t, edge.status, updated.Status)
		require.Equal(t, edge.toSub, updated.SubStatus)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, err := svc.UpdateStatus("missing",
		types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, "x", "")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestAuditTrailAppendsPerTransition(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	fixed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	seedOrder(t, db, "ord-1", types.StatusNew, types.SubStatusNone)

	_, err := svc.UpdateStatus("ord-1",
		types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, "maker", "step 1")
	require.NoError(t, err)
	_, err = svc.UpdateStatus("ord-1",
		types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocationApproval, "maker", "step 2")
	require.NoError(t, err)

	trail, err := svc.GetAuditTrail("ord-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)

	first := trail[0]
	require.Equal(t, types.StatusNew, first.FromStatus)
	require.Equal(t, types.SubStatusNone, first.FromSubStatus)
	require.Equal(t, types.StatusRegionalAllocation, first.ToStatus)
	require.Equal(t, "maker", first.ChangedBy)
	require.Equal(t, "step 1", first.Note)
	require.True(t, first.ChangedAt.Equal(fixed))

	require.Equal(t, types.SubStatusPendingRegionalAllocation, trail[1].FromSubStatus)
	require.Equal(t, types.SubStatusPendingRegionalAllocationApproval, trail[1].ToSubStatus)
}

func TestForceStatusBypassesTable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation)

	// No table edge targets ACCEPTED/NONE
	_, err := svc.UpdateStatus("ord-1", types.StatusAccepted, types.SubStatusNone, "ops", "")
	require.ErrorIs(t, err, types.ErrInvalidState)

	var updated *types.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = svc.ForceStatusTx(tx, "ord-1", types.StatusAccepted, types.SubStatusNone, "ops", "ungrouped")
		return txErr
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusAccepted, updated.Status)

	// Forced transitions still audit
	trail, err := svc.GetAuditTrail("ord-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, types.StatusAccepted, trail[0].ToStatus)
}
