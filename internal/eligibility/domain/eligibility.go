package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
)

// Breakdown is the per-order eligibility result: the three compliance
// signals plus their conjunction. A missing association counts as false.
type Breakdown struct {
	PaymentVerified bool `json:"payment_verified"`
	OTPSubmitted    bool `json:"otp_submitted"`
	PhotoApproved   bool `json:"photo_approved"`
	Eligible        bool `json:"eligible"`
}

// Evaluate derives payout eligibility from an order's associations.
// It never touches the database and has no side effects.
func Evaluate(order *orderdomain.Order) Breakdown {
	var b Breakdown
	if order == nil {
		return b
	}
	b.PaymentVerified = order.Payment != nil && order.Payment.IsVerified
	b.OTPSubmitted = order.OTP != nil && order.OTP.IsSubmitted
	b.PhotoApproved = order.Photo != nil && order.Photo.IsApproved
	b.Eligible = b.PaymentVerified && b.OTPSubmitted && b.PhotoApproved
	return b
}

// Missing lists the unmet signals using the wire labels consumed by the
// ops dashboard.
func (b Breakdown) Missing() []string {
	missing := make([]string, 0, 3)
	if !b.PaymentVerified {
		missing = append(missing, "payment_not_verified")
	}
	if !b.OTPSubmitted {
		missing = append(missing, "otp_not_submitted")
	}
	if !b.PhotoApproved {
		missing = append(missing, "photo_not_approved")
	}
	return missing
}

// ScanWindows are the only audit lookback windows the dashboard offers.
var ScanWindows = []int{10, 24, 48}

const DefaultScanWindowHours = 24

func ValidWindow(hours int) bool {
	for _, w := range ScanWindows {
		if hours == w {
			return true
		}
	}
	return false
}

type ScanRequest struct {
	Hours   int
	State   string
	Page    int
	PerPage int
}

type OrderEligibility struct {
	OrderID     snowflake.ID  `json:"order_id"`
	AgentID     *snowflake.ID `json:"agent_id,omitempty"`
	State       string        `json:"state"`
	DeliveredAt *time.Time    `json:"delivered_at"`
	Breakdown   Breakdown     `json:"eligibility"`
}

// ScanSummary aggregates how many scanned orders fail each signal.
type ScanSummary struct {
	Total              int `json:"total"`
	Eligible           int `json:"eligible"`
	PaymentNotVerified int `json:"payment_not_verified"`
	OTPNotSubmitted    int `json:"otp_not_submitted"`
	PhotoNotApproved   int `json:"photo_not_approved"`
}

type ScanResponse struct {
	Orders  []OrderEligibility `json:"orders"`
	Summary ScanSummary        `json:"summary"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	HasMore bool               `json:"has_more"`
}

type Service interface {
	// Evaluate loads one order with its signals and computes eligibility.
	Evaluate(ctx context.Context, orderID snowflake.ID) (Breakdown, error)
	// Scan audits orders delivered within the lookback window.
	Scan(ctx context.Context, req ScanRequest) (ScanResponse, error)
}

var ErrInvalidWindow = errors.New("invalid_window")
