package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	compliancedomain "github.com/rovamart/payguard/internal/compliance/domain"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/pkg/db/pagination"
)

type actionsResponse struct {
	payoutdomain.ListActionsResponse
	AgentHistory *compliancedomain.AgentHistory `json:"agent_history,omitempty"`
}

// handleListActions returns the order's audit trail plus the assigned
// agent's strike and watchlist history when one exists.
func (s *Server) handleListActions(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid pagination"))
		return
	}

	actions, err := s.payoutSvc.ListActions(c.Request.Context(), payoutdomain.ListActionsRequest{
		Pagination: page,
		OrderID:    orderID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := actionsResponse{ListActionsResponse: actions}

	var order orderdomain.Order
	if err := s.db.WithContext(c.Request.Context()).
		Select("id", "agent_id").
		First(&order, "id = ?", orderID).Error; err == nil && order.AgentID != nil {
		history, err := s.complianceSvc.AgentHistory(c.Request.Context(), *order.AgentID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp.AgentHistory = &history
	}

	c.JSON(http.StatusOK, resp)
}
