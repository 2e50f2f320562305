package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/config"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	payoutdomain "github.com/rovamart/payguard/internal/payout/domain"
)

var Module = fx.Module("seed",
	fx.Invoke(func(db *gorm.DB, cfg config.Config, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
		if !cfg.SeedDemo || cfg.Environment == "production" {
			return nil
		}
		if err := EnsureDemoData(db, node, clk); err != nil {
			return err
		}
		log.Info("demo data seeded")
		return nil
	}),
)

// EnsureDemoData seeds a small delivered-order dataset for local
// dashboards. It is idempotent: an existing order short-circuits.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node, clk clock.Clock) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&orderdomain.Order{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := clk.Now()

		agent := orderdomain.DeliveryAgent{
			ID:        node.Generate(),
			Name:      "Demo Agent",
			Phone:     "08030001111",
			State:     "lagos",
			CreatedAt: now,
		}
		if err := tx.Create(&agent).Error; err != nil {
			return err
		}

		deliveredAt := now.Add(-2 * time.Hour)
		verifiedAt := deliveredAt

		order := orderdomain.Order{
			ID:             node.Generate(),
			Amount:         250_00,
			DeliveryStatus: orderdomain.DeliveryStatusDelivered,
			State:          "lagos",
			CustomerPhone:  "08120009999",
			AgentID:        &agent.ID,
			DeliveredAt:    &deliveredAt,
			CreatedAt:      now,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		payment := orderdomain.Payment{
			ID:         node.Generate(),
			OrderID:    order.ID,
			Reference:  "demo-ref-001",
			IsVerified: true,
			VerifiedAt: &verifiedAt,
			CreatedAt:  now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		photo := orderdomain.Photo{
			ID:        node.Generate(),
			OrderID:   order.ID,
			URL:       "https://example.com/demo/delivery.jpg",
			CreatedAt: now,
		}
		if err := tx.Create(&photo).Error; err != nil {
			return err
		}

		payout := payoutdomain.Payout{
			ID:        node.Generate(),
			OrderID:   order.ID,
			Amount:    order.Amount,
			Status:    payoutdomain.StatusPaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&payout).Error
	})
}
