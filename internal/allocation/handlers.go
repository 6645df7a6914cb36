package allocation

import (
	"github.com/gin-gonic/gin"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/patricklo/ipo-allocation-api/pkg/response"
	"github.com/shopspring/decimal"
)

// GinHandlers contains HTTP handlers for the regional and client allocation endpoints
type GinHandlers struct {
	regional *RegionalService
	client   *ClientService
}

// NewGinHandlers creates a new set of HTTP handlers for allocation endpoints
func NewGinHandlers(regional *RegionalService, client *ClientService) *GinHandlers {
	return &GinHandlers{
		regional: regional,
		client:   client,
	}
}

type upsertRegionalRequest struct {
	HKOrderQuantity decimal.Decimal `json:"hk_order_quantity"`
	SGOrderQuantity decimal.Decimal `json:"sg_order_quantity"`
	LimitValue      decimal.Decimal `json:"limit_value"`
	LimitType       string          `json:"limit_type"`
	SizeLimit       decimal.Decimal `json:"size_limit"`
}

type submitRegionalRequest struct {
	Breakdowns     []types.BreakdownItem     `json:"breakdowns" binding:"required,min=1,dive"`
	FinalPriced    []types.FinalPricedItem   `json:"final_priced" binding:"dive"`
	FinalRegionals []types.FinalRegionalItem `json:"final_regionals" binding:"dive"`
	Note           string                    `json:"note"`
}

type breakdownsRequest struct {
	Breakdowns []types.BreakdownItem `json:"breakdowns" binding:"required,min=1,dive"`
	Note       string                `json:"note"`
}

type actionRequest struct {
	Note string `json:"note"`
}

// GetRegionalAllocationOrdersHandler lists orders in the regional allocation stage
func (h *GinHandlers) GetRegionalAllocationOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.regional.FetchRegionalAllocationOrders()
		response.Handle(c, orders, err)
	}
}

// GetRegionalAllocationHandler returns the HK/SG split for an order
// URL parameter: client_order_id
func (h *GinHandlers) GetRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		allocation, err := h.regional.GetRegionalAllocation(c.Param("client_order_id"))
		if err == nil && allocation == nil {
			response.NotFound(c, "No regional allocation saved for order")
			return
		}
		response.Handle(c, allocation, err)
	}
}

// UpsertRegionalAllocationHandler handles PUT requests to save the HK/SG split
// URL parameter: client_order_id
func (h *GinHandlers) UpsertRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upsertRegionalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		allocation, err := h.regional.UpsertAllocation(c.Param("client_order_id"),
			req.HKOrderQuantity, req.SGOrderQuantity, req.LimitValue, req.LimitType, req.SizeLimit)
		response.Handle(c, allocation, err)
	}
}

// GetRegionalBreakdownsHandler lists the regional breakdown rows for an order
// URL parameter: client_order_id
func (h *GinHandlers) GetRegionalBreakdownsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		breakdowns, err := h.regional.GetBreakdowns(c.Param("client_order_id"))
		response.Handle(c, breakdowns, err)
	}
}

// SubmitRegionalAllocationHandler submits the regional breakdowns for approval
// URL parameter: client_order_id
func (h *GinHandlers) SubmitRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRegionalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.regional.SubmitForApproval(c.Param("client_order_id"),
			req.Breakdowns, req.FinalPriced, req.FinalRegionals, c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// ApproveRegionalAllocationHandler approves a submitted regional allocation
// URL parameter: client_order_id
func (h *GinHandlers) ApproveRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.regional.Approve(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// RejectRegionalAllocationHandler rejects a submitted regional allocation
// URL parameter: client_order_id
func (h *GinHandlers) RejectRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.regional.Reject(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// GetPendingClientAllocationsHandler lists orders awaiting a client allocation draft
func (h *GinHandlers) GetPendingClientAllocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.client.FetchPendingClientAllocations()
		response.Handle(c, orders, err)
	}
}

// GetPendingClientApprovalsHandler lists orders awaiting client allocation approval
func (h *GinHandlers) GetPendingClientApprovalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.client.FetchPendingClientAllocationApprovals()
		response.Handle(c, orders, err)
	}
}

// GetClientBreakdownsHandler lists the client breakdown rows for an order
// URL parameter: client_order_id
func (h *GinHandlers) GetClientBreakdownsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		breakdowns, err := h.client.GetBreakdowns(c.Param("client_order_id"))
		response.Handle(c, breakdowns, err)
	}
}

// SaveClientDraftHandler handles PUT requests to save a client allocation draft
// URL parameter: client_order_id
func (h *GinHandlers) SaveClientDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req breakdownsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		rows, err := h.client.SaveDraftAllocations(c.Param("client_order_id"), req.Breakdowns)
		response.Handle(c, rows, err)
	}
}

// SubmitClientAllocationHandler submits the client breakdowns for approval
// URL parameter: client_order_id
func (h *GinHandlers) SubmitClientAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req breakdownsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.client.SubmitForApproval(c.Param("client_order_id"),
			req.Breakdowns, c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// ApproveClientAllocationHandler approves a submitted client allocation
// URL parameter: client_order_id
func (h *GinHandlers) ApproveClientAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.client.Approve(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// RejectClientAllocationHandler rejects a submitted client allocation
// URL parameter: client_order_id
func (h *GinHandlers) RejectClientAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.client.Reject(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}
