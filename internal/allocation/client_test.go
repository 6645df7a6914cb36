package allocation

import (
	"testing"

	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSaveDraftReplacesRows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	rows, err := svc.SaveDraftAllocations("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-1", 100),
		breakdown("SG", "ACC-2", 100),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, BreakdownNew, rows[0].Status)

	// Draft save is a full replace, not a merge
	rows, err = svc.SaveDraftAllocations("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-3", 200),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	stored, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "ACC-3", stored[0].AccountNumber)
}

func TestSaveDraftWrongStage(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusRegionalAllocation, types.SubStatusPendingRegionalAllocation, 200)

	_, err := svc.SaveDraftAllocations("ord-1", []types.BreakdownItem{breakdown("HK", "ACC-1", 200)})
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestClientSubmitValidatesSum(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	_, err := svc.SubmitForApproval("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-1", 100),
		breakdown("SG", "ACC-2", 50),
	}, "maker", "")
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	// No amendment revision recorded on a failed submit
	latest, err := svc.GetAmendmentLog("ord-1")
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestClientSubmitRecordsAmendment(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	submitted, err := svc.SubmitForApproval("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-1", 120),
		breakdown("SG", "ACC-2", 80),
	}, "maker", "first pass")
	require.NoError(t, err)
	require.Equal(t, types.SubStatusPendingClientAllocationApproval, submitted.SubStatus)

	latest, err := svc.GetAmendmentLog("ord-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 1, latest.Revision)
	require.Equal(t, ObjectClientAllocationBreakdown, latest.ObjectType)
	require.Equal(t, AmendmentPendingApproval, latest.Action)
	require.Equal(t, "maker", latest.CreatedBy)

	// Before-snapshot of the first submit is the empty set
	before, err := unmarshalSnapshot(latest.BeforeSnapshot)
	require.NoError(t, err)
	require.Empty(t, before)
	after, err := unmarshalSnapshot(latest.AfterSnapshot)
	require.NoError(t, err)
	require.Len(t, after, 2)
}

func TestClientApproveAppliesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	_, err := svc.SubmitForApproval("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-1", 120),
		breakdown("SG", "ACC-2", 80),
	}, "maker", "")
	require.NoError(t, err)

	approved, err := svc.Approve("ord-1", "checker", "final")
	require.NoError(t, err)
	require.Equal(t, types.StatusClientAllocation, approved.Status)
	require.Equal(t, types.SubStatusDone, approved.SubStatus)

	rows, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, BreakdownAccepted, row.Status)
	}

	latest, err := svc.GetAmendmentLog("ord-1")
	require.NoError(t, err)
	require.Equal(t, AmendmentApproved, latest.Action)
	require.Equal(t, 1, latest.Revision)
}

func TestClientRejectAndResubmit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	_, err := svc.SubmitForApproval("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-1", 200),
	}, "maker", "")
	require.NoError(t, err)

	rejected, err := svc.Reject("ord-1", "checker", "wrong account")
	require.NoError(t, err)
	require.Equal(t, types.SubStatusPendingClientAllocation, rejected.SubStatus)

	latest, err := svc.GetAmendmentLog("ord-1")
	require.NoError(t, err)
	require.Equal(t, AmendmentRejected, latest.Action)

	// Submitted rows survive rejection for the maker to revise
	rows, err := svc.GetBreakdowns("ord-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, BreakdownNew, rows[0].Status)

	// Resubmission appends revision 2; the rejected revision keeps its action
	_, err = svc.SubmitForApproval("ord-1", []types.BreakdownItem{
		breakdown("HK", "ACC-9", 200),
	}, "maker", "revised")
	require.NoError(t, err)

	latest, err = svc.GetAmendmentLog("ord-1")
	require.NoError(t, err)
	require.Equal(t, 2, latest.Revision)
	require.Equal(t, AmendmentPendingApproval, latest.Action)

	var first AmendmentLog
	require.NoError(t, db.Where("ref_id = ? AND revision = ?", "ord-1", 1).First(&first).Error)
	require.Equal(t, AmendmentRejected, first.Action)
}

func TestClientApproveWithoutSubmitFails(t *testing.T) {
	db := setupTestDB(t)
	statusSvc := status.NewService(db)
	svc := NewClientService(db, statusSvc)
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	_, err := svc.Approve("ord-1", "checker", "")
	require.ErrorIs(t, err, types.ErrInvalidState)

	// Force the order into the approval sub-status without a submission to
	// exercise the missing-amendment guard
	var order types.Order
	require.NoError(t, db.Where("client_order_id = ?", "ord-1").First(&order).Error)
	order.SubStatus = types.SubStatusPendingClientAllocationApproval
	require.NoError(t, db.Save(&order).Error)

	_, err = svc.Approve("ord-1", "checker", "")
	require.ErrorIs(t, err, types.ErrInvalidState)
	require.Contains(t, err.Error(), "no client allocation amendment log found")
}

func TestClientSubmitSumBoundaryExact(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db, status.NewService(db))
	seedOrder(t, db, "ord-1", types.StatusClientAllocation, types.SubStatusPendingClientAllocation, 200)

	items := []types.BreakdownItem{
		{CountryCode: "HK", AccountNumber: "ACC-1", FinalAllocation: decimal.NewFromFloat(100.5)},
		{CountryCode: "SG", AccountNumber: "ACC-2", FinalAllocation: decimal.NewFromFloat(99.5)},
	}
	_, err := svc.SubmitForApproval("ord-1", items, "maker", "")
	require.NoError(t, err)
}
