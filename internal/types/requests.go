package types

import "github.com/shopspring/decimal"

// BreakdownItem is one proposed per-account allocation slice. The same shape
// is used for regional and client allocation breakdowns and for amendment
// snapshots, so it must round-trip exactly through JSON.
type BreakdownItem struct {
	CountryCode          string          `json:"country_code" binding:"required"`
	AccountNumber        string          `json:"account_number" binding:"required"`
	OrderQuantity        decimal.Decimal `json:"order_quantity"`
	FinalAllocation      decimal.Decimal `json:"final_allocation"`
	AllocationPercentage decimal.Decimal `json:"allocation_percentage"`
	EstimatedOrderSize   decimal.Decimal `json:"estimated_order_size"`
	YieldLimit           decimal.Decimal `json:"yield_limit"`
	SpreadLimit          decimal.Decimal `json:"spread_limit"`
	SizeLimit            decimal.Decimal `json:"size_limit"`
}

// FinalPricedItem is the final price per country/market, one row per country.
type FinalPricedItem struct {
	CountryCode string          `json:"country_code" binding:"required"`
	LimitType   string          `json:"limit_type"`
	FinalPrice  decimal.Decimal `json:"final_price"`
}

// FinalRegionalItem is the final regional allocation per market.
type FinalRegionalItem struct {
	Market           string          `json:"market" binding:"required"`
	AsiaAllocation   decimal.Decimal `json:"asia_allocation"`
	Allocation       decimal.Decimal `json:"allocation"`
	EffectiveOrder   decimal.Decimal `json:"effective_order"`
	ProRata          decimal.Decimal `json:"pro_rata"`
	AllocationAmount decimal.Decimal `json:"allocation_amount"`
}

// RegionalExecution names one region to carve out of a group order during
// split execution, with an optional counterparty override.
type RegionalExecution struct {
	CountryCode    string `json:"country_code" binding:"required"`
	CounterpartyID string `json:"counterparty_id"`
}

// IPOExecRequest is the payload for group-order regional split execution.
type IPOExecRequest struct {
	BookingCenter      string              `json:"booking_center"`
	RegionalExecutions []RegionalExecution `json:"regional_executions" binding:"required,min=1,dive"`
}
