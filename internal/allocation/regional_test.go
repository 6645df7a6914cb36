package allocation

import (
	"testing"
	"time"

	"github.com/patricklo/ipo-allocation-api/internal/status"
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
	require.NoError(t, db.AutoMigrate(
		&types.Order{},
		&status.StatusAudit{},
		&RegionalAllocation{},
		&RegionalBreakdown{},
		&ClientBreakdown{},
		&FinalPricedBreakdown{},
		&FinalRegionalAllocation{},
		&AmendmentLog{},
	))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, id string, s types.OrderStatus, sub types.OrderSubStatus, quantity int64) {
	t.Helper()

	order := types.Order{
		ClientOrderID: id,
		TradeDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CountryCode:   "HK",
		Status:        s,
		SubStatus:     sub,
		SecurityID:    "XS2571924070",
		OrderQuantity: decimal.NewFromInt(quantity),
	}
	require.NoError(t, db.Create(&order).Error)
}

func breakdown(country, account string, quantity int64) types.BreakdownItem {
	return types.BreakdownItem{
		CountryCode:     country,
		AccountNumber:   account,
		OrderQuantity:   decimal.NewFromInt(quantity),
		FinalAllocation: decimal.NewFromInt(quantity),
	}
}

func TestUpsertAllocationBoundary(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRegionalService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	// HK + SG equal to the order quantity is allowed
	saved, err := svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(120), decimal.NewFromInt(80),
		decimal.NewFromFloat(99.5), "PRICE", decimal.NewFromInt(200))
	require.NoError(t, err)
	require.True(t, saved.OrderQuantity.Equal(decimal.NewFromInt(200)))
	require.True(t, saved.HKOrderQuantity.Equal(decimal.NewFromInt(120)))

	// Exceeding it is not
	_, err = svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(150), decimal.NewFromInt(80),
		decimal.NewFromFloat(99.5), "PRICE", decimal.NewFromInt(200))
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestUpsertAllocationUpdatesInPlace(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRegionalService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(100), decimal.NewFromInt(100),
		decimal.Zero, "PRICE", decimal.Zero)
	require.NoError(t, err)

	_, err = svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(50), decimal.NewFromInt(50),
		decimal.Zero, "YIELD", decimal.Zero)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&RegionalAllocation{}).Where("client_order_id = ?", "ord-1").Count(&count).Error)
	require.EqualValues(t, 1, count)

	current, err := svc.GetRegionalAllocation("ord-1")
	require.NoError(t, err)
	require.Equal(t, "YIELD", current.LimitType)
	require.True(t, current.SGOrderQuantity.Equal(decimal.NewFromInt(50)))
}

func TestSubmitRequiresSavedAllocation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRegionalService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.SubmitForApproval("ord-1",
		[]types.BreakdownItem{breakdown("HK", "ACC-1", 200)}, nil, nil, "maker", "")
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestRegionalSubmitApproveFlow(t *testing.T) {
	db := setupTestDB(t)
	statusSvc := status.NewService(db)
	svc := NewRegionalService(db, statusSvc)
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(120), decimal.NewFromInt(80), decimal.Zero, "PRICE", decimal.Zero)
	require.NoError(t, err)

	submitted, err := svc.SubmitForApproval("ord-1",
		[]types.BreakdownItem{
			breakdown("HK", "ACC-1", 120),
			breakdown("SG", "ACC-2", 80),
		},
		[]types.FinalPricedItem{{CountryCode: "HK", LimitType: "PRICE", FinalPrice: decimal.NewFromFloat(99.75)}},
		[]types.FinalRegionalItem{{Market: "HK", Allocation: decimal.NewFromInt(120)}},
		"maker", "first submit")
	require.NoError(t, err)
	require.Equal(t, types.SubStatusPendingRegionalAllocationApproval, submitted.SubStatus)

	rows, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, BreakdownNew, row.Status)
	}

	priced, err := NewDatabase(db).FinalPricedBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, priced, 1)
	require.True(t, priced[0].FinalPrice.Equal(decimal.NewFromFloat(99.75)))

	approved, err := svc.Approve("ord-1", "checker", "looks right")
	require.NoError(t, err)
	require.Equal(t, types.StatusClientAllocation, approved.Status)
	require.Equal(t, types.SubStatusPendingClientAllocation, approved.SubStatus)

	rows, err = svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	for _, row := range rows {
		require.Equal(t, BreakdownAccepted, row.Status)
	}
}

func TestRegionalRejectLeavesRowsNew(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRegionalService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(200), decimal.Zero, decimal.Zero, "PRICE", decimal.Zero)
	require.NoError(t, err)

	_, err = svc.SubmitForApproval("ord-1",
		[]types.BreakdownItem{breakdown("HK", "ACC-1", 200)}, nil, nil, "maker", "")
	require.NoError(t, err)

	rejected, err := svc.Reject("ord-1", "checker", "redo the split")
	require.NoError(t, err)
	require.Equal(t, types.SubStatusPendingRegionalAllocation, rejected.SubStatus)

	// Rejection reverts the order only, never the rows
	rows, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, BreakdownNew, rows[0].Status)
}

func TestRegionalResubmitReconcilesByKey(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRegionalService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.UpsertAllocation("ord-1",
		decimal.NewFromInt(200), decimal.Zero, decimal.Zero, "PRICE", decimal.Zero)
	require.NoError(t, err)

	_, err = svc.SubmitForApproval("ord-1",
		[]types.BreakdownItem{
			breakdown("HK", "ACC-1", 100),
			breakdown("HK", "ACC-2", 100),
		}, nil, nil, "maker", "")
	require.NoError(t, err)

	_, err = svc.Reject("ord-1", "checker", "")
	require.NoError(t, err)

	// ACC-1 dropped, ACC-2 updated, ACC-3 added
	_, err = svc.SubmitForApproval("ord-1",
		[]types.BreakdownItem{
			breakdown("HK", "ACC-2", 150),
			breakdown("HK", "ACC-3", 50),
		}, nil, nil, "maker", "")
	require.NoError(t, err)

	rows, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byAccount := make(map[string]RegionalBreakdown, len(rows))
	for _, row := range rows {
		byAccount[row.AccountNumber] = row
	}
	require.NotContains(t, byAccount, "ACC-1")
	require.True(t, byAccount["ACC-2"].OrderQuantity.Equal(decimal.NewFromInt(150)))
	require.True(t, byAccount["ACC-3"].OrderQuantity.Equal(decimal.NewFromInt(50)))
}
