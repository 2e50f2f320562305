package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/clock"
	complianceconsumer "github.com/rovamart/payguard/internal/compliance/consumer"
	compliancerepo "github.com/rovamart/payguard/internal/compliance/repository"
	"github.com/rovamart/payguard/internal/compliance/event"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/internal/payout/repository"
	"github.com/rovamart/payguard/internal/principal"
)

var (
	actorGM = principal.Principal{ID: "u-gm", Role: principal.RoleGM}
	actorFC = principal.Principal{ID: "u-fc", Role: principal.RoleFC}
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareSchema(t, db)
	return db
}

func prepareSchema(t *testing.T, db *gorm.DB) {
	t.Helper()

	stmts := []string{
		`CREATE TABLE delivery_agents (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT,
			state TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE orders (
			id BIGINT PRIMARY KEY,
			amount BIGINT NOT NULL,
			delivery_status TEXT NOT NULL,
			state TEXT,
			customer_phone TEXT,
			agent_id BIGINT,
			delivered_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL UNIQUE,
			reference TEXT,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			verified_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE otps (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL UNIQUE,
			code TEXT NOT NULL,
			is_submitted BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_at DATETIME,
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE photos (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL UNIQUE,
			url TEXT,
			is_approved BOOLEAN NOT NULL DEFAULT FALSE,
			approved_by TEXT,
			approved_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payouts (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			locked_by TEXT,
			locked_at DATETIME,
			lock_reason TEXT,
			lock_type TEXT,
			is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			confirmed_by TEXT,
			confirmed_at DATETIME,
			is_locked_final BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
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
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)
	node := mustNode(t)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	publisher := event.NewOutboxPublisher(node, fake.Now)

	cons := complianceconsumer.New(complianceconsumer.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fake,
		Node:       node,
		Repo:       compliancerepo.Provide(),
		Outbox:     compliancerepo.ProvideOutbox(),
		PayoutRepo: repo,
	})

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		Node:      node,
		Repo:      repo,
		Publisher: publisher,
		Consumer:  cons,
		Metrics:   nil,
		Limiter:   nil,
	})

	return &fixture{svc: svc, db: db, node: node, clock: fake}
}

type orderOpts struct {
	paymentVerified bool
	otpCode         string
	otpSubmitted    bool
	photoApproved   bool
	withAgent       bool
	payoutStatus    domain.PayoutStatus
	noPayout        bool
	noOTP           bool
	noPhoto         bool
	noPayment       bool
}

type seeded struct {
	order   *orderdomain.Order
	payout  *domain.Payout
	agentID *snowflake.ID
}

func seedOrder(t *testing.T, f *fixture, opts orderOpts) seeded {
	t.Helper()

	now := f.clock.Now()
	deliveredAt := now.Add(-time.Hour)

	var agentID *snowflake.ID
	if opts.withAgent {
		agent := orderdomain.DeliveryAgent{
			ID:        f.node.Generate(),
			Name:      "Agent",
			Phone:     "08031112222",
			State:     "lagos",
			CreatedAt: now,
		}
		if err := f.db.Create(&agent).Error; err != nil {
			t.Fatalf("seed agent: %v", err)
		}
		agentID = &agent.ID
	}

	order := orderdomain.Order{
		ID:             f.node.Generate(),
		Amount:         10_000,
		DeliveryStatus: orderdomain.DeliveryStatusDelivered,
		State:          "lagos",
		CustomerPhone:  "08120003333",
		AgentID:        agentID,
		DeliveredAt:    &deliveredAt,
		CreatedAt:      now,
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if !opts.noPayment {
		payment := orderdomain.Payment{
			ID:         f.node.Generate(),
			OrderID:    order.ID,
			Reference:  "ref-1",
			IsVerified: opts.paymentVerified,
			CreatedAt:  now,
		}
		if opts.paymentVerified {
			payment.VerifiedAt = &now
		}
		if err := f.db.Create(&payment).Error; err != nil {
			t.Fatalf("seed payment: %v", err)
		}
	}

	if !opts.noOTP {
		code := opts.otpCode
		if code == "" {
			code = "123456"
		}
		otp := orderdomain.OTP{
			ID:          f.node.Generate(),
			OrderID:     order.ID,
			Code:        code,
			IsSubmitted: opts.otpSubmitted,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := f.db.Create(&otp).Error; err != nil {
			t.Fatalf("seed otp: %v", err)
		}
	}

	if !opts.noPhoto {
		photo := orderdomain.Photo{
			ID:         f.node.Generate(),
			OrderID:    order.ID,
			URL:        "https://example.com/p.jpg",
			IsApproved: opts.photoApproved,
			CreatedAt:  now,
		}
		if err := f.db.Create(&photo).Error; err != nil {
			t.Fatalf("seed photo: %v", err)
		}
	}

	var payout *domain.Payout
	if !opts.noPayout {
		status := opts.payoutStatus
		if status == "" {
			status = domain.StatusPending
		}
		payout = &domain.Payout{
			ID:        f.node.Generate(),
			OrderID:   order.ID,
			Amount:    order.Amount,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := f.db.Create(payout).Error; err != nil {
			t.Fatalf("seed payout: %v", err)
		}
	}

	return seeded{order: &order, payout: payout, agentID: agentID}
}

func countActions(t *testing.T, db *gorm.DB, payoutID snowflake.ID, kind domain.ActionKind) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&domain.ActionLog{}).
		Where("payout_id = ? AND action = ?", payoutID, kind).
		Count(&count).Error; err != nil {
		t.Fatalf("count actions: %v", err)
	}
	return count
}

func reloadPayout(t *testing.T, db *gorm.DB, id snowflake.ID) domain.Payout {
	t.Helper()
	var payout domain.Payout
	if err := db.First(&payout, "id = ?", id).Error; err != nil {
		t.Fatalf("reload payout: %v", err)
	}
	return payout
}
