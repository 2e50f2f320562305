package server

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
)

type submitOTPRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

func (s *Server) handleSubmitOTP(c *gin.Context) {
	var body submitOTPRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := snowflake.ParseString(body.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	result, err := s.payoutSvc.SubmitOTP(c.Request.Context(), actorFrom(c), payoutdomain.SubmitOTPRequest{
		OrderID: orderID,
		Code:    body.Code,
	})
	switch {
	case errors.Is(err, payoutdomain.ErrPayoutLocked):
		// The lock has already committed; the caller still gets the
		// locked body rather than a success.
		c.JSON(http.StatusLocked, result)
	case errors.Is(err, payoutdomain.ErrOTPMismatch):
		c.JSON(http.StatusBadRequest, result)
	case err != nil:
		AbortWithError(c, err)
	default:
		c.JSON(http.StatusOK, result)
	}
}

type triggerOTPRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	DryRun  bool   `json:"dry_run"`
}

func (s *Server) handleTriggerOTP(c *gin.Context) {
	var body triggerOTPRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := snowflake.ParseString(body.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	result, err := s.payoutSvc.TriggerOTP(c.Request.Context(), actorFrom(c), payoutdomain.TriggerOTPRequest{
		OrderID: orderID,
		DryRun:  body.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
