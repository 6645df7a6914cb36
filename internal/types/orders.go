package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the top-level workflow stage of a trader order.
type OrderStatus string

const (
	StatusNew                OrderStatus = "NEW"
	StatusAccepted           OrderStatus = "ACCEPTED"
	StatusRegionalAllocation OrderStatus = "REGIONAL_ALLOCATION"
	StatusClientAllocation   OrderStatus = "CLIENT_ALLOCATION"
	StatusCancelled          OrderStatus = "CANCELLED"
)

// OrderSubStatus is the finer-grained stage within a top-level status.
type OrderSubStatus string

const (
	SubStatusNone                              OrderSubStatus = "NONE"
	SubStatusDone                              OrderSubStatus = "DONE"
	SubStatusPendingRegionalAllocation         OrderSubStatus = "PENDING_REGIONAL_ALLOCATION"
	SubStatusPendingRegionalAllocationApproval OrderSubStatus = "PENDING_REGIONAL_ALLOCATION_APPROVAL"
	SubStatusPendingClientAllocation           OrderSubStatus = "PENDING_CLIENT_ALLOCATION"
	SubStatusPendingClientAllocationApproval   OrderSubStatus = "PENDING_CLIENT_ALLOCATION_APPROVAL"
)

// Order is a trader's IPO order line progressing through collection,
// regional allocation and client allocation. Synthetic group orders created
// by grouping or split execution use a generated client order id and carry
// no parent reference of their own.
type Order struct {
	gorm.Model            `json:"-"`
	ClientOrderID         string          `gorm:"uniqueIndex" json:"client_order_id"`
	TradeDate             time.Time       `json:"trade_date"`
	CountryCode           string          `json:"country_code"`
	Status                OrderStatus     `json:"status"`
	SubStatus             OrderSubStatus  `json:"sub_status"`
	OriginalClientOrderID string          `gorm:"index" json:"original_client_order_id,omitempty"` // parent group order, empty for top-level orders
	SecurityID            string          `json:"security_id"`
	OrderQuantity         decimal.Decimal `gorm:"type:numeric(20,4)" json:"order_quantity"`
	CleanPrice            decimal.Decimal `gorm:"type:numeric(18,6)" json:"clean_price"`
}

// SubOrder is a client-side leg of a trader order. Only orders with at least
// one leg flagged as an IPO issue appear on the collection blotter.
type SubOrder struct {
	gorm.Model    `json:"-"`
	ClientOrderID string `gorm:"index" json:"client_order_id"`
	CountryCode   string `json:"country_code"`
	AccountID     string `json:"account_id"`
	IssueIPOFlag  bool   `gorm:"column:issue_ipo_flag" json:"issue_ipo_flag"`
}
