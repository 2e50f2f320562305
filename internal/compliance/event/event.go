package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const PayoutRejectedTopic = "payout.rejected"

// PayoutRejected is the payload recorded when a receipt is rejected and
// the delivery agent should take a strike.
type PayoutRejected struct {
	AgentID      snowflake.ID `json:"agent_id"`
	PayoutID     snowflake.ID `json:"payout_id"`
	OrderID      snowflake.ID `json:"order_id"`
	Note         string       `json:"note"`
	RejectedBy   string       `json:"rejected_by"`
	RejectedRole string       `json:"rejected_role"`
}

// Event is one row of the compliance outbox. Rows are written inside the
// transaction that produces them and drained by the consumer afterwards.
type Event struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	EventType   string         `json:"event_type" gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	Published   bool           `json:"published" gorm:"not null;default:false;index"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
}

func (Event) TableName() string { return "compliance_events" }

// Publisher enqueues events. The tx handle must belong to the transaction
// that produced the event so the row commits or rolls back with it.
type Publisher interface {
	Publish(ctx context.Context, tx *gorm.DB, eventType string, payload any) error
}

type outboxPublisher struct {
	node *snowflake.Node
	now  func() time.Time
}

func NewOutboxPublisher(node *snowflake.Node, now func() time.Time) Publisher {
	return &outboxPublisher{node: node, now: now}
}

func (p *outboxPublisher) Publish(ctx context.Context, tx *gorm.DB, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	evt := Event{
		ID:        p.node.Generate(),
		EventType: eventType,
		Payload:   datatypes.JSON(raw),
		CreatedAt: p.now(),
	}
	return tx.WithContext(ctx).Create(&evt).Error
}
