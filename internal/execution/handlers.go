package execution

import (
	"github.com/gin-gonic/gin"
	"github.com/patricklo/ipo-allocation-api/internal/types"
	"github.com/patricklo/ipo-allocation-api/pkg/response"
)

// GinHandlers contains HTTP handlers for split execution endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for execution endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ExecuteIPOOrderHandler handles POST requests to split-execute a group order
// Requires internal authentication
// URL parameter: client_order_id
func (h *GinHandlers) ExecuteIPOOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.IPOExecRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		result, err := h.service.ExecuteIPOOrder(c.Param("client_order_id"), req, c.GetString("clientID"))
		response.Handle(c, result, err)
	}
}

// GetExecutionDetailsHandler handles GET requests for an order's execution details
// URL parameter: client_order_id
func (h *GinHandlers) GetExecutionDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		details, err := h.service.GetDetails(c.Param("client_order_id"))
		response.Handle(c, details, err)
	}
}
