package orders

import (
	"github.com/gin-gonic/gin"
	"github.com/patricklo/ipo-allocation-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order collection and grouping endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type groupRequest struct {
	ClientOrderIDs []string `json:"client_order_ids" binding:"required"`
}

type actionRequest struct {
	Note string `json:"note"`
}

// GetCollectionBlotterHandler handles GET requests for the order collection blotter
func (h *GinHandlers) GetCollectionBlotterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.FetchOrderCollectionBlotter()
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for a single order
// URL parameter: client_order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetOrder(c.Param("client_order_id"))
		response.Handle(c, order, err)
	}
}

// GroupOrdersHandler handles POST requests to group orders
func (h *GinHandlers) GroupOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req groupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		group, err := h.service.GroupOrders(req.ClientOrderIDs, c.GetString("clientID"))
		response.Handle(c, group, err)
	}
}

// ProceedToRegionalAllocationHandler moves an order into the regional
// allocation stage
// URL parameter: client_order_id
func (h *GinHandlers) ProceedToRegionalAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.service.ProceedToRegionalAllocation(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// UngroupOrderHandler handles POST requests to ungroup an order
// URL parameter: client_order_id
func (h *GinHandlers) UngroupOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.service.UngroupOrder(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles POST requests to cancel an order
// URL parameter: client_order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req actionRequest
		_ = c.ShouldBindJSON(&req)

		order, err := h.service.CancelOrder(c.Param("client_order_id"), c.GetString("clientID"), req.Note)
		response.Handle(c, order, err)
	}
}

// GetAuditTrailHandler handles GET requests for an order's status history
// URL parameter: client_order_id
func (h *GinHandlers) GetAuditTrailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		trail, err := h.service.GetAuditTrail(c.Param("client_order_id"))
		response.Handle(c, trail, err)
	}
}
