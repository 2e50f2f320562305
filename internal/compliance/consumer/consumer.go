package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bwmarrin/snowflake"

	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/compliance/domain"
	"github.com/rovamart/payguard/internal/compliance/event"
	"github.com/rovamart/payguard/internal/compliance/repository"
	"github.com/rovamart/payguard/internal/principal"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/pkg/db"
)

const drainBatchSize = 50

// Consumer drains the compliance outbox. Each event is settled in its own
// transaction so one poison event cannot block the rest of the batch.
type Consumer struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	node       *snowflake.Node
	repo       domain.Repository
	outbox     repository.OutboxRepository
	payoutRepo payoutdomain.Repository
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Node       *snowflake.Node
	Repo       domain.Repository
	Outbox     repository.OutboxRepository
	PayoutRepo payoutdomain.Repository
}

func New(p Params) *Consumer {
	return &Consumer{
		db:         p.DB,
		log:        p.Log.Named("compliance.consumer"),
		clock:      p.Clock,
		node:       p.Node,
		repo:       p.Repo,
		outbox:     p.Outbox,
		payoutRepo: p.PayoutRepo,
	}
}

// ProcessPending handles every pending outbox row. Failures are logged and
// left pending for the next pass.
func (c *Consumer) ProcessPending(ctx context.Context) error {
	events, err := c.outbox.PendingEvents(ctx, c.db, drainBatchSize)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if err := c.process(ctx, evt); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// A concurrent consumer won the watchlist insert; the
				// event stays pending and the retry sees the winner.
				c.log.Info("compliance event lost an insert race, will retry",
					zap.Int64("event_id", evt.ID.Int64()),
					zap.String("event_type", evt.EventType),
				)
				continue
			}
			c.log.Error("process compliance event",
				zap.Int64("event_id", evt.ID.Int64()),
				zap.String("event_type", evt.EventType),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case event.PayoutRejectedTopic:
		return c.handlePayoutRejected(ctx, evt)
	default:
		c.log.Warn("unknown compliance event type, marking published",
			zap.String("event_type", evt.EventType))
		return c.outbox.MarkPublished(ctx, c.db, evt.ID, c.clock.Now())
	}
}

func (c *Consumer) handlePayoutRejected(ctx context.Context, evt event.Event) error {
	var payload event.PayoutRejected
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}

	now := c.clock.Now()

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payoutID := payload.PayoutID
		strike := domain.StrikeLog{
			ID:        c.node.Generate(),
			AgentID:   payload.AgentID,
			Reason:    fmt.Sprintf("payout receipt rejected: %s", payload.Note),
			Severity:  domain.SeverityMedium,
			Source:    domain.StrikeSourcePayoutCompliance,
			IssuedBy:  payload.RejectedBy,
			PayoutID:  &payoutID,
			CreatedAt: now,
		}
		if err := c.repo.InsertStrike(ctx, tx, &strike); err != nil {
			return err
		}

		count, err := c.repo.CountStrikesSince(ctx, tx, payload.AgentID, now.Add(-domain.StrikeWindow))
		if err != nil {
			return err
		}

		if count >= domain.WatchlistThreshold {
			if err := c.maybeWatchlist(ctx, tx, payload.AgentID, count, now); err != nil {
				return err
			}
		}

		return c.outbox.MarkPublished(ctx, tx, evt.ID, now)
	})
}

func (c *Consumer) maybeWatchlist(ctx context.Context, tx *gorm.DB, agentID snowflake.ID, strikes int64, now time.Time) error {
	active, err := c.repo.HasActiveWatchlist(ctx, tx, agentID)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	entry := domain.Watchlist{
		ID:          c.node.Generate(),
		AgentID:     agentID,
		Reason:      fmt.Sprintf("%d strikes in 30 days", strikes),
		Active:      true,
		CreatedBy:   principal.System.ID,
		EscalatedAt: now,
	}
	if err := c.repo.InsertWatchlist(ctx, tx, &entry); err != nil {
		return err
	}

	c.log.Info("agent auto-watchlisted",
		zap.Int64("agent_id", agentID.Int64()),
		zap.Int64("strikes", strikes),
	)

	return c.payoutRepo.InsertAction(ctx, tx, &payoutdomain.ActionLog{
		ID:          c.node.Generate(),
		PayoutID:    nil,
		Action:      payoutdomain.ActionAutoWatchlisted,
		PerformedBy: principal.System.ID,
		Role:        principal.System.Role,
		Note:        fmt.Sprintf("agent %d watchlisted after %d strikes", agentID.Int64(), strikes),
		CreatedAt:   now,
	})
}
