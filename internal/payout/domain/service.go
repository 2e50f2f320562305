package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	"github.com/rovamart/payguard/internal/principal"
	"github.com/rovamart/payguard/pkg/db/pagination"
)

const (
	// MaxOTPAttempts is the strike threshold freezing a payout.
	MaxOTPAttempts = 3
	// OTPCodeLength is the exact length of a delivery confirmation code.
	OTPCodeLength = 6
	// OTPTTL is how long a triggered code stays valid.
	OTPTTL = 10 * time.Minute
)

type SubmitOTPRequest struct {
	OrderID snowflake.ID
	Code    string
}

type SubmitOTPResult struct {
	Status            string        `json:"status"`
	Message           string        `json:"message"`
	RemainingAttempts int           `json:"remaining_attempts"`
	PayoutID          *snowflake.ID `json:"payout_id,omitempty"`
}

type TriggerOTPRequest struct {
	OrderID snowflake.ID
	DryRun  bool
}

type TriggerOTPResult struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	MaskedPhone string     `json:"masked_phone,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type UnlockResult struct {
	UnlockedCount  int            `json:"unlocked_count"`
	UnlockedOrders []snowflake.ID `json:"unlocked_orders"`
}

// ActionResult is returned by the auxiliary logged actions (photo
// approval, intent to approve) alongside the order's current eligibility.
type ActionResult struct {
	Status      string                      `json:"status"`
	Eligibility eligibilitydomain.Breakdown `json:"eligibility"`
	PayoutID    *snowflake.ID               `json:"payout_id,omitempty"`
}

// PayoutRef resolves a payout either directly or through its order.
type PayoutRef struct {
	PayoutID *snowflake.ID
	OrderID  *snowflake.ID
}

type ConfirmRequest struct {
	Ref  PayoutRef
	Note string
}

type ConfirmResult struct {
	Status      string       `json:"status"`
	PayoutID    snowflake.ID `json:"payout_id"`
	Locked      bool         `json:"locked"`
	ConfirmedBy string       `json:"confirmed_by"`
	ConfirmedAt time.Time    `json:"confirmed_at"`
	Skipped     bool         `json:"skipped"`
}

type RejectRequest struct {
	Ref  PayoutRef
	Note string
}

type RejectResult struct {
	PayoutID     snowflake.ID `json:"payout_id"`
	AgentFlagged bool         `json:"agent_flagged"`
}

type ManualCheckResult struct {
	Eligibility eligibilitydomain.Breakdown `json:"eligibility"`
	Note        string                      `json:"note"`
}

type EnforceRequest struct {
	Hours   int
	State   string
	Preview bool
}

// LockCandidate is one ineligible order whose payout is (or would be) locked.
type LockCandidate struct {
	OrderID  snowflake.ID `json:"order_id"`
	PayoutID snowflake.ID `json:"payout_id"`
	Missing  []string     `json:"missing"`
}

type EnforceResult struct {
	Preview     bool            `json:"preview"`
	LockedCount int             `json:"locked_count"`
	Candidates  []LockCandidate `json:"candidates"`
}

type ListActionsRequest struct {
	pagination.Pagination
	OrderID snowflake.ID
}

type ListActionsResponse struct {
	pagination.PageInfo
	Actions []ActionLog `json:"actions"`
}

type Service interface {
	SubmitOTP(ctx context.Context, actor principal.Principal, req SubmitOTPRequest) (SubmitOTPResult, error)
	TriggerOTP(ctx context.Context, actor principal.Principal, req TriggerOTPRequest) (TriggerOTPResult, error)
	Unlock(ctx context.Context, actor principal.Principal, orderIDs []snowflake.ID) (UnlockResult, error)
	ApprovePhoto(ctx context.Context, actor principal.Principal, orderID snowflake.ID, note string) (ActionResult, error)
	MarkIntent(ctx context.Context, actor principal.Principal, orderID snowflake.ID, note string) (ActionResult, error)
	ConfirmReceipt(ctx context.Context, actor principal.Principal, req ConfirmRequest) (ConfirmResult, error)
	RejectReceipt(ctx context.Context, actor principal.Principal, req RejectRequest) (RejectResult, error)
	ManualCheck(ctx context.Context, actor principal.Principal, orderID snowflake.ID) (ManualCheckResult, error)
	EnforceCompliance(ctx context.Context, actor principal.Principal, req EnforceRequest) (EnforceResult, error)
	ListActions(ctx context.Context, req ListActionsRequest) (ListActionsResponse, error)
}
