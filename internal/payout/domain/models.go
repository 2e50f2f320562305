package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutStatus string

const (
	StatusPending   PayoutStatus = "pending"
	StatusLocked    PayoutStatus = "locked"
	StatusPaid      PayoutStatus = "paid"
	StatusRejected  PayoutStatus = "rejected"
	StatusConfirmed PayoutStatus = "confirmed"
)

const (
	LockTypeCompliance = "compliance"
	LockTypeManual     = "manual"
)

// Payout is the disbursement owed against one order. It is never deleted;
// once IsLockedFinal is set no further status mutation is permitted.
type Payout struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID snowflake.ID `json:"order_id" gorm:"not null;index"`
	Amount  int64        `json:"amount" gorm:"not null"`
	Status  PayoutStatus `json:"status" gorm:"type:text;not null;default:'pending'"`

	LockedBy   *string    `json:"locked_by" gorm:"type:text"`
	LockedAt   *time.Time `json:"locked_at"`
	LockReason *string    `json:"lock_reason" gorm:"type:text"`
	LockType   *string    `json:"lock_type" gorm:"type:text"`

	IsConfirmed   bool       `json:"is_confirmed" gorm:"not null;default:false"`
	ConfirmedBy   *string    `json:"confirmed_by" gorm:"type:text"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	IsLockedFinal bool       `json:"is_locked_final" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Payout) TableName() string { return "payouts" }

type ActionKind string

const (
	ActionOTPFailed        ActionKind = "otp_failed"
	ActionOTPSubmitted     ActionKind = "otp_submitted"
	ActionOTPTriggered     ActionKind = "otp_triggered"
	ActionLocked           ActionKind = "locked"
	ActionUnlockedByGM     ActionKind = "unlocked_by_gm"
	ActionPhotoApproved    ActionKind = "photo_approved"
	ActionIntentToApprove  ActionKind = "intent_to_approve"
	ActionReceiptConfirmed ActionKind = "receipt_confirmed"
	ActionLockedFinal      ActionKind = "locked_final"
	ActionRejected         ActionKind = "rejected"
	ActionAutoWatchlisted  ActionKind = "auto_watchlisted"
	ActionManualCheck      ActionKind = "manual_check"
)

// ActionLog is the append-only compliance system-of-record. Rows are never
// updated or deleted. PayoutID is nullable: system-level entries such as
// auto-watchlisting are not tied to a specific payout.
type ActionLog struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	PayoutID    *snowflake.ID `json:"payout_id" gorm:"index"`
	Action      ActionKind    `json:"action" gorm:"type:text;not null"`
	PerformedBy string        `json:"performed_by" gorm:"type:text;not null"`
	Role        string        `json:"role" gorm:"type:text;not null"`
	Note        string        `json:"note" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null;index"`
}

func (ActionLog) TableName() string { return "payout_action_logs" }
