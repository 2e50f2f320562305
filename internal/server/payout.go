package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
)

type unlockRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required"`
}

func (s *Server) handleUnlock(c *gin.Context) {
	var body unlockRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.OrderIDs) == 0 {
		AbortWithError(c, newValidationError("order_ids", "invalid_order_ids", "order_ids must be a non-empty list"))
		return
	}

	orderIDs := make([]snowflake.ID, 0, len(body.OrderIDs))
	for _, raw := range body.OrderIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("order_ids", "invalid_order_id", "order_ids must contain valid ids"))
			return
		}
		orderIDs = append(orderIDs, id)
	}

	result, err := s.payoutSvc.Unlock(c.Request.Context(), actorFrom(c), orderIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type orderActionRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Note    string `json:"note"`
}

func (s *Server) handleApprovePhoto(c *gin.Context) {
	var body orderActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := snowflake.ParseString(body.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	result, err := s.payoutSvc.ApprovePhoto(c.Request.Context(), actorFrom(c), orderID, body.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleIntent(c *gin.Context) {
	var body orderActionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := snowflake.ParseString(body.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	result, err := s.payoutSvc.MarkIntent(c.Request.Context(), actorFrom(c), orderID, body.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type payoutRefRequest struct {
	PayoutID string `json:"payout_id"`
	OrderID  string `json:"order_id"`
	Note     string `json:"note"`
}

func (r payoutRefRequest) ref() (payoutdomain.PayoutRef, error) {
	var ref payoutdomain.PayoutRef
	if r.PayoutID != "" {
		id, err := snowflake.ParseString(r.PayoutID)
		if err != nil {
			return ref, newValidationError("payout_id", "invalid_payout_id", "payout_id must be a valid id")
		}
		ref.PayoutID = &id
		return ref, nil
	}
	if r.OrderID != "" {
		id, err := snowflake.ParseString(r.OrderID)
		if err != nil {
			return ref, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id")
		}
		ref.OrderID = &id
		return ref, nil
	}
	return ref, newValidationError("payout_id", "missing_reference", "payout_id or order_id is required")
}

func (s *Server) handleConfirm(c *gin.Context) {
	var body payoutRefRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	ref, err := body.ref()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payoutSvc.ConfirmReceipt(c.Request.Context(), actorFrom(c), payoutdomain.ConfirmRequest{
		Ref:  ref,
		Note: body.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type rejectResponse struct {
	Status       string       `json:"status"`
	PayoutID     snowflake.ID `json:"payout_id"`
	AgentFlagged bool         `json:"agent_flagged"`
}

func (s *Server) handleReject(c *gin.Context) {
	var body payoutRefRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	ref, err := body.ref()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payoutSvc.RejectReceipt(c.Request.Context(), actorFrom(c), payoutdomain.RejectRequest{
		Ref:  ref,
		Note: body.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The ops dashboard has always treated a successful rejection as
	// status "error"; changing it breaks its renderer.
	c.JSON(http.StatusOK, rejectResponse{
		Status:       "error",
		PayoutID:     result.PayoutID,
		AgentFlagged: result.AgentFlagged,
	})
}

type manualCheckRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (s *Server) handleManualCheck(c *gin.Context) {
	var body manualCheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := snowflake.ParseString(body.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	result, err := s.payoutSvc.ManualCheck(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type lockAllRequest struct {
	Hours   int    `json:"hours"`
	State   string `json:"state"`
	Preview bool   `json:"preview"`
}

func (s *Server) handleLockAll(c *gin.Context) {
	var body lockAllRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	if body.Hours == 0 {
		body.Hours = eligibilitydomain.DefaultScanWindowHours
	}

	result, err := s.payoutSvc.EnforceCompliance(c.Request.Context(), actorFrom(c), payoutdomain.EnforceRequest{
		Hours:   body.Hours,
		State:   body.State,
		Preview: body.Preview,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
