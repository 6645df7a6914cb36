package orders

import (
	"testing"
	"time"

	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var tradeDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Order{},
		&types.SubOrder{},
		&status.StatusAudit{},
		&allocation.RegionalBreakdown{},
		&allocation.ClientBreakdown{},
	))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	return NewService(db, status.NewService(db)), db
}

func seedOrder(t *testing.T, db *gorm.DB, id, securityID string, quantity int64) {
	t.Helper()

	order := types.Order{
		ClientOrderID: id,
		TradeDate:     tradeDate,
		CountryCode:   "HK",
		Status:        types.StatusNew,
		SubStatus:     types.SubStatusNone,
		SecurityID:    securityID,
		OrderQuantity: decimal.NewFromInt(quantity),
	}
	require.NoError(t, db.Create(&order).Error)
}

func seedSubOrder(t *testing.T, db *gorm.DB, orderID string, ipoFlag bool) {
	t.Helper()

	subOrder := types.SubOrder{
		ClientOrderID: orderID,
		CountryCode:   "HK",
		AccountID:     "ACC-1",
		IssueIPOFlag:  ipoFlag,
	}
	require.NoError(t, db.Create(&subOrder).Error)
}

func TestGroupOrdersSumsQuantities(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)
	seedOrder(t, db, "ord-2", "XS1", 100)

	group, err := svc.GroupOrders([]string{"ord-1", "ord-2"}, "trader-a")
	require.NoError(t, err)
	require.True(t, group.OrderQuantity.Equal(decimal.NewFromInt(200)))
	require.Equal(t, types.StatusNew, group.Status)
	require.Equal(t, types.SubStatusNone, group.SubStatus)
	require.Empty(t, group.OriginalClientOrderID)
	require.Equal(t, "XS1", group.SecurityID)

	// Members point back at the group
	for _, id := range []string{"ord-1", "ord-2"} {
		member, err := svc.GetOrder(id)
		require.NoError(t, err)
		require.Equal(t, group.ClientOrderID, member.OriginalClientOrderID)
	}
}

func TestGroupOrdersRequiresTwoIDs(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)

	_, err := svc.GroupOrders([]string{"ord-1"}, "trader-a")
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGroupOrdersUnknownID(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)

	_, err := svc.GroupOrders([]string{"ord-1", "missing"}, "trader-a")
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestGroupOrdersMismatchedSecurity(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)
	seedOrder(t, db, "ord-2", "XS2", 100)

	_, err := svc.GroupOrders([]string{"ord-1", "ord-2"}, "trader-a")
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestGroupOrdersWrongStatus(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)
	seedOrder(t, db, "ord-2", "XS1", 100)
	require.NoError(t, db.Model(&types.Order{}).
		Where("client_order_id = ?", "ord-2").
		Update("status", types.StatusCancelled).Error)

	_, err := svc.GroupOrders([]string{"ord-1", "ord-2"}, "trader-a")
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestCollectionBlotterFiltersIPOFlag(t *testing.T) {
	svc, db := newTestService(t)

	seedOrder(t, db, "ipo-order", "XS1", 100)
	seedSubOrder(t, db, "ipo-order", true)

	seedOrder(t, db, "cash-order", "XS1", 100)
	seedSubOrder(t, db, "cash-order", false)

	seedOrder(t, db, "no-legs", "XS1", 100)

	blotter, err := svc.FetchOrderCollectionBlotter()
	require.NoError(t, err)
	require.Len(t, blotter, 1)
	require.Equal(t, "ipo-order", blotter[0].ClientOrderID)
}

func TestCollectionBlotterExcludesProgressedOrders(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)
	seedSubOrder(t, db, "ord-1", true)

	_, err := svc.ProceedToRegionalAllocation("ord-1", "trader-a", "")
	require.NoError(t, err)

	blotter, err := svc.FetchOrderCollectionBlotter()
	require.NoError(t, err)
	require.Empty(t, blotter)
}

func TestUngroupRequiresAllocationStage(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)

	_, err := svc.UngroupOrder("ord-1", "trader-a", "")
	require.ErrorIs(t, err, types.ErrInvalidState)
	require.Contains(t, err.Error(), "REGIONAL_ALLOCATION or CLIENT_ALLOCATION")
}

func TestUngroupDeactivatesBothBreakdownKinds(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 200)

	_, err := svc.ProceedToRegionalAllocation("ord-1", "trader-a", "")
	require.NoError(t, err)

	require.NoError(t, db.Create(&allocation.RegionalBreakdown{
		ClientOrderID: "ord-1", CountryCode: "HK", AccountNumber: "ACC-1", Status: allocation.BreakdownAccepted,
	}).Error)
	require.NoError(t, db.Create(&allocation.ClientBreakdown{
		ClientOrderID: "ord-1", CountryCode: "HK", AccountNumber: "ACC-1", Status: allocation.BreakdownNew,
	}).Error)

	updated, err := svc.UngroupOrder("ord-1", "trader-a", "unwinding")
	require.NoError(t, err)
	require.Equal(t, types.StatusAccepted, updated.Status)
	require.Equal(t, types.SubStatusNone, updated.SubStatus)

	var regional allocation.RegionalBreakdown
	require.NoError(t, db.Where("client_order_id = ?", "ord-1").First(&regional).Error)
	require.Equal(t, allocation.BreakdownInactive, regional.Status)

	var client allocation.ClientBreakdown
	require.NoError(t, db.Where("client_order_id = ?", "ord-1").First(&client).Error)
	require.Equal(t, allocation.BreakdownInactive, client.Status)
}

func TestFetchByStatusOptionalSubStatus(t *testing.T) {
	svc, db := newTestService(t)
	seedOrder(t, db, "ord-1", "XS1", 100)
	seedOrder(t, db, "ord-2", "XS1", 100)

	_, err := svc.ProceedToRegionalAllocation("ord-2", "trader-a", "")
	require.NoError(t, err)

	newOrders, err := svc.FetchByStatus(types.StatusNew, nil)
	require.NoError(t, err)
	require.Len(t, newOrders, 1)

	sub := types.SubStatusPendingRegionalAllocation
	pending, err := svc.FetchByStatus(types.StatusRegionalAllocation, &sub)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "ord-2", pending[0].ClientOrderID)
}
