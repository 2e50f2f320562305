package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusDelivered = "delivered"
)

// Order is a customer delivery order. Payment, OTP and Photo are the three
// compliance signals attached to it; any of them may be absent.
type Order struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	Amount         int64         `json:"amount" gorm:"not null"`
	DeliveryStatus string        `json:"delivery_status" gorm:"type:text;not null"`
	State          string        `json:"state" gorm:"type:text;index"`
	CustomerPhone  string        `json:"customer_phone" gorm:"type:text"`
	AgentID        *snowflake.ID `json:"agent_id" gorm:"index"`
	DeliveredAt    *time.Time    `json:"delivered_at" gorm:"index"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`

	Payment *Payment       `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
	OTP     *OTP           `json:"otp,omitempty" gorm:"foreignKey:OrderID"`
	Photo   *Photo         `json:"photo,omitempty" gorm:"foreignKey:OrderID"`
	Agent   *DeliveryAgent `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
}

func (Order) TableName() string { return "orders" }

type Payment struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID    snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	Reference  string       `json:"reference" gorm:"type:text"`
	IsVerified bool         `json:"is_verified" gorm:"not null;default:false"`
	VerifiedAt *time.Time   `json:"verified_at"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// OTP holds the one-time code a customer reads back to the delivery agent.
type OTP struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID     snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	Code        string       `json:"-" gorm:"type:text;not null"`
	IsSubmitted bool         `json:"is_submitted" gorm:"not null;default:false"`
	SubmittedAt *time.Time   `json:"submitted_at"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (OTP) TableName() string { return "otps" }

type Photo struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID    snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	URL        string       `json:"url" gorm:"type:text"`
	IsApproved bool         `json:"is_approved" gorm:"not null;default:false"`
	ApprovedBy *string      `json:"approved_by" gorm:"type:text"`
	ApprovedAt *time.Time   `json:"approved_at"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (Photo) TableName() string { return "photos" }

// DeliveryAgent is the field courier assigned to an order.
type DeliveryAgent struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Phone     string       `json:"phone" gorm:"type:text"`
	State     string       `json:"state" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (DeliveryAgent) TableName() string { return "delivery_agents" }

var (
	ErrOrderNotFound = errors.New("order_not_found")
	ErrOTPNotFound   = errors.New("otp_not_found")
	ErrPhotoNotFound = errors.New("photo_not_found")
)
