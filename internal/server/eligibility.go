package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
)

func (s *Server) handleEligibility(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("order_id"))
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_order_id", "order_id must be a valid id"))
		return
	}

	breakdown, err := s.eligibilitySvc.Evaluate(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":    orderID,
		"eligibility": breakdown,
		"missing":     breakdown.Missing(),
	})
}

func (s *Server) handleEligibilityScan(c *gin.Context) {
	req := eligibilitydomain.ScanRequest{
		Hours:   queryInt(c, "hours", eligibilitydomain.DefaultScanWindowHours),
		State:   c.Query("state"),
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 20),
	}

	result, err := s.eligibilitySvc.Scan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
