package execution

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExecutionDetail records how an order was placed in the market. Split
// execution clones the group order's detail onto each regional carve-out,
// applying the per-request overrides.
type ExecutionDetail struct {
	gorm.Model       `json:"-"`
	ExecutionID      string          `gorm:"uniqueIndex" json:"execution_id"`
	ClientOrderID    string          `gorm:"index" json:"client_order_id"`
	BookingCenter    string          `json:"booking_center"`
	PlaceMethod      string          `json:"place_method"`
	BrokerCode       string          `json:"broker_code"`
	CounterpartyCode string          `json:"counterparty_code"`
	Side             string          `json:"side"`
	SecurityID       string          `json:"security_id"`
	Currency         string          `json:"currency"`
	ExecutedSize     decimal.Decimal `gorm:"type:numeric(20,4)" json:"executed_size"`
	ExecutedPrice    decimal.Decimal `gorm:"type:numeric(18,6)" json:"executed_price"`
}
