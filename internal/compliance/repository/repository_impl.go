package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/compliance/domain"
	"github.com/rovamart/payguard/internal/compliance/event"
)

type repo struct{}

func Provide() domain.Repository { return &repo{} }

func (r *repo) InsertStrike(ctx context.Context, db *gorm.DB, strike *domain.StrikeLog) error {
	return db.WithContext(ctx).Create(strike).Error
}

func (r *repo) CountStrikesSince(ctx context.Context, db *gorm.DB, agentID snowflake.ID, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.StrikeLog{}).
		Where("agent_id = ? AND created_at >= ?", agentID, since).
		Count(&count).Error
	return count, err
}

func (r *repo) HasActiveWatchlist(ctx context.Context, db *gorm.DB, agentID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Watchlist{}).
		Where("agent_id = ? AND active = ?", agentID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) InsertWatchlist(ctx context.Context, db *gorm.DB, entry *domain.Watchlist) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) AgentHistory(ctx context.Context, db *gorm.DB, agentID snowflake.ID) (domain.AgentHistory, error) {
	var history domain.AgentHistory

	if err := db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Find(&history.Strikes).Error; err != nil {
		return history, err
	}

	if err := db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("escalated_at DESC").
		Find(&history.Watchlist).Error; err != nil {
		return history, err
	}

	return history, nil
}

// OutboxRepository reads and settles compliance_events rows for the
// consumer.
type OutboxRepository interface {
	PendingEvents(ctx context.Context, db *gorm.DB, limit int) ([]event.Event, error)
	MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type outboxRepo struct{}

func ProvideOutbox() OutboxRepository { return &outboxRepo{} }

func (r *outboxRepo) PendingEvents(ctx context.Context, db *gorm.DB, limit int) ([]event.Event, error) {
	var events []event.Event
	err := db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&event.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{"published": true, "published_at": at}).Error
}
