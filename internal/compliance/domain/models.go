package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type StrikeSeverity string

const (
	SeverityLow    StrikeSeverity = "low"
	SeverityMedium StrikeSeverity = "medium"
	SeverityHigh   StrikeSeverity = "high"
)

const (
	StrikeSourcePayoutCompliance = "payout_compliance"

	// StrikeWindow is the trailing window for the auto-watchlist count.
	StrikeWindow = 30 * 24 * time.Hour
	// WatchlistThreshold escalates an agent once reached within the window.
	WatchlistThreshold = 3
)

// StrikeLog is a demerit issued against a delivery agent. Never mutated.
type StrikeLog struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	AgentID   snowflake.ID   `json:"agent_id" gorm:"not null;index"`
	Reason    string         `json:"reason" gorm:"type:text;not null"`
	Severity  StrikeSeverity `json:"severity" gorm:"type:text;not null"`
	Source    string         `json:"source" gorm:"type:text;not null"`
	IssuedBy  string         `json:"issued_by" gorm:"type:text;not null"`
	PayoutID  *snowflake.ID  `json:"payout_id"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;index"`
}

func (StrikeLog) TableName() string { return "strike_logs" }

// Watchlist flags an agent for escalated review. At most one active entry
// per agent.
type Watchlist struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	AgentID     snowflake.ID `json:"agent_id" gorm:"not null;index"`
	Reason      string       `json:"reason" gorm:"type:text;not null"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	CreatedBy   string       `json:"created_by" gorm:"type:text;not null"`
	EscalatedAt time.Time    `json:"escalated_at" gorm:"not null"`
	ResolvedBy  *string      `json:"resolved_by" gorm:"type:text"`
	ResolvedAt  *time.Time   `json:"resolved_at"`
}

func (Watchlist) TableName() string { return "watchlists" }

type AgentHistory struct {
	Strikes   []StrikeLog `json:"strikes"`
	Watchlist []Watchlist `json:"watchlist"`
}

type Repository interface {
	InsertStrike(ctx context.Context, db *gorm.DB, strike *StrikeLog) error
	CountStrikesSince(ctx context.Context, db *gorm.DB, agentID snowflake.ID, since time.Time) (int64, error)
	HasActiveWatchlist(ctx context.Context, db *gorm.DB, agentID snowflake.ID) (bool, error)
	InsertWatchlist(ctx context.Context, db *gorm.DB, entry *Watchlist) error
	AgentHistory(ctx context.Context, db *gorm.DB, agentID snowflake.ID) (AgentHistory, error)
}

type Service interface {
	// AgentHistory returns the agent's strike and watchlist records for
	// the audit trail endpoint.
	AgentHistory(ctx context.Context, agentID snowflake.ID) (AgentHistory, error)
}
