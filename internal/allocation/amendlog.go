package allocation

import (
	"encoding/json"
	"fmt"

	"github.com/patricklo/ipo-allocation-api/internal/types"
	"gorm.io/gorm"
)

// AmendLog is the append-only revision log of breakdown submissions. Every
// submit-for-approval appends a new revision with action PENDING_APPROVAL;
// approve and reject mutate the latest revision's action in place without
// creating a new one.
type AmendLog struct {
	db *Database
}

func NewAmendLog(gormDB *gorm.DB) *AmendLog {
	return &AmendLog{db: NewDatabase(gormDB)}
}

// Record appends a new revision for the ref id. Revisions are numbered
// 1, 2, 3, ... with no gaps.
func (a *AmendLog) Record(refID string, objectType AmendmentObjectType, beforeSnapshot, afterSnapshot, createdBy string) (*AmendmentLog, error) {
	return a.RecordTx(a.db.db, refID, objectType, beforeSnapshot, afterSnapshot, createdBy)
}

// RecordTx is Record inside the caller's transaction.
func (a *AmendLog) RecordTx(tx *gorm.DB, refID string, objectType AmendmentObjectType, beforeSnapshot, afterSnapshot, createdBy string) (*AmendmentLog, error) {
	db := a.db.withTx(tx)

	latest, err := db.LatestAmendment(refID)
	if err != nil {
		return nil, err
	}
	nextRevision := 1
	if latest != nil {
		nextRevision = latest.Revision + 1
	}

	entry := &AmendmentLog{
		RefID:          refID,
		Revision:       nextRevision,
		ObjectType:     objectType,
		BeforeSnapshot: beforeSnapshot,
		AfterSnapshot:  afterSnapshot,
		Action:         AmendmentPendingApproval,
		CreatedBy:      createdBy,
	}
	if err := db.CreateAmendment(entry); err != nil {
		return nil, fmt.Errorf("failed to append amendment log entry: %w", err)
	}
	return entry, nil
}

// UpdateAction mutates the action of the latest revision for the ref id.
func (a *AmendLog) UpdateAction(refID string, action AmendmentAction) error {
	return a.UpdateActionTx(a.db.db, refID, action)
}

// UpdateActionTx is UpdateAction inside the caller's transaction.
func (a *AmendLog) UpdateActionTx(tx *gorm.DB, refID string, action AmendmentAction) error {
	db := a.db.withTx(tx)

	latest, err := db.LatestAmendment(refID)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no amendment log found for ref id %s: %w", refID, types.ErrNotFound)
	}

	latest.Action = action
	if err := db.SaveAmendment(latest); err != nil {
		return fmt.Errorf("failed to update amendment action: %w", err)
	}
	return nil
}

// FindLatest returns the highest-revision entry for a ref id, or nil.
func (a *AmendLog) FindLatest(refID string) (*AmendmentLog, error) {
	return a.db.LatestAmendment(refID)
}

// marshalSnapshot encodes a breakdown list as the opaque snapshot string
// stored in the log. Decimal fields round-trip exactly.
func marshalSnapshot(items []types.BreakdownItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize breakdown snapshot: %w", types.ErrSerialization)
	}
	return string(data), nil
}

func unmarshalSnapshot(snapshot string) ([]types.BreakdownItem, error) {
	var items []types.BreakdownItem
	if err := json.Unmarshal([]byte(snapshot), &items); err != nil {
		return nil, fmt.Errorf("failed to deserialize breakdown snapshot: %w", types.ErrSerialization)
	}
	return items, nil
}
