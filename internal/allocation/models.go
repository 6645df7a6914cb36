package allocation

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BreakdownStatus is the lifecycle status of a breakdown row. Rows are
// written as NEW on submission, flipped to ACCEPTED on approval and to
// INACTIVE when the owning group order is ungrouped.
type BreakdownStatus string

const (
	BreakdownNew      BreakdownStatus = "NEW"
	BreakdownAccepted BreakdownStatus = "ACCEPTED"
	BreakdownInactive BreakdownStatus = "INACTIVE"
)

// AmendmentAction is the approval state of an amendment log revision.
type AmendmentAction string

const (
	AmendmentPendingApproval AmendmentAction = "PENDING_APPROVAL"
	AmendmentApproved        AmendmentAction = "APPROVED"
	AmendmentRejected        AmendmentAction = "REJECTED"
)

// AmendmentObjectType identifies which breakdown kind a snapshot captures.
type AmendmentObjectType string

const (
	ObjectClientAllocationBreakdown   AmendmentObjectType = "CLIENT_ALLOCATION_BREAKDOWN"
	ObjectRegionalAllocationBreakdown AmendmentObjectType = "REGIONAL_ALLOCATION_BREAKDOWN"
)

// RegionalAllocation is the HK/SG quantity split for an order, one row per
// order. HK + SG must never exceed the order quantity.
type RegionalAllocation struct {
	gorm.Model      `json:"-"`
	ClientOrderID   string          `gorm:"uniqueIndex" json:"client_order_id"`
	OrderQuantity   decimal.Decimal `gorm:"type:numeric(20,4)" json:"order_quantity"`
	HKOrderQuantity decimal.Decimal `gorm:"type:numeric(20,4)" json:"hk_order_quantity"`
	SGOrderQuantity decimal.Decimal `gorm:"type:numeric(20,4)" json:"sg_order_quantity"`
	LimitValue      decimal.Decimal `gorm:"type:numeric(20,4)" json:"limit_value"`
	LimitType       string          `json:"limit_type"`
	SizeLimit       decimal.Decimal `gorm:"type:numeric(20,4)" json:"size_limit"`
}

// RegionalBreakdown is a per-market allocation slice, unique per
// (order, country, account).
type RegionalBreakdown struct {
	gorm.Model           `json:"-"`
	ClientOrderID        string          `gorm:"index" json:"client_order_id"`
	CountryCode          string          `json:"country_code"`
	AccountNumber        string          `json:"account_number"`
	Status               BreakdownStatus `json:"status"`
	OrderQuantity        decimal.Decimal `gorm:"type:numeric(20,4)" json:"order_quantity"`
	FinalAllocation      decimal.Decimal `gorm:"type:numeric(20,4)" json:"final_allocation"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(7,4)" json:"allocation_percentage"`
	EstimatedOrderSize   decimal.Decimal `gorm:"type:numeric(20,4)" json:"estimated_order_size"`
	YieldLimit           decimal.Decimal `gorm:"type:numeric(9,4)" json:"yield_limit"`
	SpreadLimit          decimal.Decimal `gorm:"type:numeric(9,4)" json:"spread_limit"`
	SizeLimit            decimal.Decimal `gorm:"type:numeric(20,4)" json:"size_limit"`
}

// ClientBreakdown is a per-client-account allocation slice, unique per
// (order, country, account). Same reconciliation semantics as
// RegionalBreakdown, applied at the client allocation stage.
type ClientBreakdown struct {
	gorm.Model           `json:"-"`
	ClientOrderID        string          `gorm:"index" json:"client_order_id"`
	CountryCode          string          `json:"country_code"`
	AccountNumber        string          `json:"account_number"`
	Status               BreakdownStatus `json:"status"`
	OrderQuantity        decimal.Decimal `gorm:"type:numeric(20,4)" json:"order_quantity"`
	FinalAllocation      decimal.Decimal `gorm:"type:numeric(20,4)" json:"final_allocation"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(7,4)" json:"allocation_percentage"`
	EstimatedOrderSize   decimal.Decimal `gorm:"type:numeric(20,4)" json:"estimated_order_size"`
	YieldLimit           decimal.Decimal `gorm:"type:numeric(9,4)" json:"yield_limit"`
	SpreadLimit          decimal.Decimal `gorm:"type:numeric(9,4)" json:"spread_limit"`
	SizeLimit            decimal.Decimal `gorm:"type:numeric(20,4)" json:"size_limit"`
}

// FinalPricedBreakdown carries the final price per country, one row per
// (order, country).
type FinalPricedBreakdown struct {
	gorm.Model    `json:"-"`
	ClientOrderID string          `gorm:"index" json:"client_order_id"`
	CountryCode   string          `json:"country_code"`
	LimitType     string          `json:"limit_type"`
	FinalPrice    decimal.Decimal `gorm:"type:numeric(18,6)" json:"final_price"`
}

// FinalRegionalAllocation is the final regional split per market, one row
// per (order, market).
type FinalRegionalAllocation struct {
	gorm.Model       `json:"-"`
	ClientOrderID    string          `gorm:"index" json:"client_order_id"`
	Market           string          `json:"market"`
	AsiaAllocation   decimal.Decimal `gorm:"type:numeric(20,4)" json:"asia_allocation"`
	Allocation       decimal.Decimal `gorm:"type:numeric(20,4)" json:"allocation"`
	EffectiveOrder   decimal.Decimal `gorm:"type:numeric(20,4)" json:"effective_order"`
	ProRata          decimal.Decimal `gorm:"type:numeric(7,4)" json:"pro_rata"`
	AllocationAmount decimal.Decimal `gorm:"type:numeric(20,4)" json:"allocation_amount"`
}

// AmendmentLog is one revision of a breakdown submission. Revisions per
// ref id are gapless starting at 1; only the latest revision's action is
// ever mutated, the snapshots never are.
type AmendmentLog struct {
	gorm.Model     `json:"-"`
	RefID          string              `gorm:"index" json:"ref_id"`
	Revision       int                 `json:"revision"`
	ObjectType     AmendmentObjectType `json:"object_type"`
	BeforeSnapshot string              `gorm:"type:text" json:"before_snapshot"`
	AfterSnapshot  string              `gorm:"type:text" json:"after_snapshot"`
	Action         AmendmentAction     `json:"action"`
	CreatedBy      string              `json:"created_by"`
}
