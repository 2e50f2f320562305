package consumer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/compliance/domain"
	"github.com/rovamart/payguard/internal/compliance/event"
	"github.com/rovamart/payguard/internal/compliance/repository"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
	payoutrepo "github.com/rovamart/payguard/internal/payout/repository"
	pkgdb "github.com/rovamart/payguard/pkg/db"
)

type fixture struct {
	consumer  *Consumer
	publisher event.Publisher
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	stmts := []string{
		`CREATE TABLE strike_logs (
			id BIGINT PRIMARY KEY,
			agent_id BIGINT NOT NULL,
			reason TEXT NOT NULL,
			severity TEXT NOT NULL,
			source TEXT NOT NULL,
			issued_by TEXT NOT NULL,
			payout_id BIGINT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE watchlists (
			id BIGINT PRIMARY KEY,
			agent_id BIGINT NOT NULL,
			reason TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by TEXT NOT NULL,
			escalated_at DATETIME NOT NULL,
			resolved_by TEXT,
			resolved_at DATETIME
		)`,
		`CREATE UNIQUE INDEX uq_watchlists_one_active ON watchlists (agent_id) WHERE active`,
		`CREATE TABLE compliance_events (
			id BIGINT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			published_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payout_action_logs (
			id BIGINT PRIMARY KEY,
			payout_id BIGINT,
			action TEXT NOT NULL,
			performed_by TEXT NOT NULL,
			role TEXT NOT NULL,
			note TEXT,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	cons := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fake,
		Node:       node,
		Repo:       repository.Provide(),
		Outbox:     repository.ProvideOutbox(),
		PayoutRepo: payoutrepo.Provide(),
	})

	return &fixture{
		consumer:  cons,
		publisher: event.NewOutboxPublisher(node, fake.Now),
		db:        db,
		node:      node,
		clock:     fake,
	}
}

func (f *fixture) publishRejection(t *testing.T, agentID snowflake.ID) {
	t.Helper()
	payload := event.PayoutRejected{
		AgentID:      agentID,
		PayoutID:     f.node.Generate(),
		OrderID:      f.node.Generate(),
		Note:         "receipt mismatch",
		RejectedBy:   "u-fc",
		RejectedRole: "fc",
	}
	require.NoError(t, f.publisher.Publish(context.Background(), f.db, event.PayoutRejectedTopic, payload))
}

func TestProcessPendingIssuesStrike(t *testing.T) {
	f := setup(t)
	agentID := f.node.Generate()

	f.publishRejection(t, agentID)
	require.NoError(t, f.consumer.ProcessPending(context.Background()))

	var strikes []domain.StrikeLog
	require.NoError(t, f.db.Find(&strikes).Error)
	require.Len(t, strikes, 1)
	assert.Equal(t, domain.SeverityMedium, strikes[0].Severity)
	assert.Equal(t, domain.StrikeSourcePayoutCompliance, strikes[0].Source)
	require.NotNil(t, strikes[0].PayoutID)

	var watchlists []domain.Watchlist
	require.NoError(t, f.db.Find(&watchlists).Error)
	assert.Empty(t, watchlists)

	var pending int64
	require.NoError(t, f.db.Model(&event.Event{}).Where("published = ?", false).Count(&pending).Error)
	assert.EqualValues(t, 0, pending)
}

func TestThirdStrikeInWindowWatchlistsOnce(t *testing.T) {
	f := setup(t)
	agentID := f.node.Generate()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.publishRejection(t, agentID)
		require.NoError(t, f.consumer.ProcessPending(ctx))
		f.clock.Advance(24 * time.Hour)
	}

	var watchlists []domain.Watchlist
	require.NoError(t, f.db.Find(&watchlists).Error)
	require.Len(t, watchlists, 1)
	assert.True(t, watchlists[0].Active)
	assert.Equal(t, "system", watchlists[0].CreatedBy)
	assert.Contains(t, watchlists[0].Reason, "3 strikes in 30 days")

	// The escalation also lands in the audit trail, unattached to a payout.
	var logs []payoutdomain.ActionLog
	require.NoError(t, f.db.Where("action = ?", payoutdomain.ActionAutoWatchlisted).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].PayoutID)
	assert.Equal(t, "system", logs[0].PerformedBy)

	// A fourth strike while already watchlisted adds no second entry.
	f.publishRejection(t, agentID)
	require.NoError(t, f.consumer.ProcessPending(ctx))

	var strikes int64
	require.NoError(t, f.db.Model(&domain.StrikeLog{}).Count(&strikes).Error)
	assert.EqualValues(t, 4, strikes)

	require.NoError(t, f.db.Find(&watchlists).Error)
	assert.Len(t, watchlists, 1)
}

func TestStrikesOutsideWindowDoNotEscalate(t *testing.T) {
	f := setup(t)
	agentID := f.node.Generate()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		f.publishRejection(t, agentID)
		require.NoError(t, f.consumer.ProcessPending(ctx))
		f.clock.Advance(31 * 24 * time.Hour)
	}

	// Third strike arrives with the first two long expired.
	f.publishRejection(t, agentID)
	require.NoError(t, f.consumer.ProcessPending(ctx))

	var watchlists []domain.Watchlist
	require.NoError(t, f.db.Find(&watchlists).Error)
	assert.Empty(t, watchlists)
}

func TestOneActiveWatchlistPerAgent(t *testing.T) {
	f := setup(t)
	repo := repository.Provide()
	ctx := context.Background()
	agentID := f.node.Generate()

	first := domain.Watchlist{
		ID:          f.node.Generate(),
		AgentID:     agentID,
		Reason:      "3 strikes in 30 days",
		Active:      true,
		CreatedBy:   "system",
		EscalatedAt: f.clock.Now(),
	}
	require.NoError(t, repo.InsertWatchlist(ctx, f.db, &first))

	dup := first
	dup.ID = f.node.Generate()
	err := repo.InsertWatchlist(ctx, f.db, &dup)
	require.Error(t, err)
	assert.True(t, pkgdb.IsDuplicateKeyErr(err))

	// Resolving the active entry frees the slot for a later escalation.
	require.NoError(t, f.db.Model(&domain.Watchlist{}).Where("id = ?", first.ID).Update("active", false).Error)

	again := first
	again.ID = f.node.Generate()
	again.EscalatedAt = f.clock.Now()
	require.NoError(t, repo.InsertWatchlist(ctx, f.db, &again))
}

func TestUnknownEventTypeIsSettled(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.publisher.Publish(context.Background(), f.db, "payout.telemetry", map[string]any{"x": 1}))
	require.NoError(t, f.consumer.ProcessPending(context.Background()))

	var pending int64
	require.NoError(t, f.db.Model(&event.Event{}).Where("published = ?", false).Count(&pending).Error)
	assert.EqualValues(t, 0, pending)
}
