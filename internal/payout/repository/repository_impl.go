package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"github.com/rovamart/payguard/internal/payout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := db.WithContext(ctx).
		Preload("Payment").
		Preload("OTP").
		Preload("Photo").
		Preload("Agent").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderdomain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FirstPayoutForOrder returns the order's active payout, nil when the order
// has no payout yet.
func (r *repo) FirstPayoutForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repo) GetPayout(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	err := db.WithContext(ctx).First(&payout, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repo) LockPayout(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	query := `SELECT * FROM payouts WHERE id = ?`
	if supportsRowLock(tx) {
		query += ` FOR UPDATE`
	}
	err := tx.WithContext(ctx).Raw(query, id).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, domain.ErrPayoutNotFound
	}
	return &payout, nil
}

func (r *repo) UpdatePayout(ctx context.Context, db *gorm.DB, payout *domain.Payout) error {
	return db.WithContext(ctx).Save(payout).Error
}

func (r *repo) CountActions(ctx context.Context, db *gorm.DB, payoutID *snowflake.ID, kind domain.ActionKind) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.ActionLog{}).Where("action = ?", kind)
	if payoutID != nil {
		stmt = stmt.Where("payout_id = ?", *payoutID)
	} else {
		stmt = stmt.Where("payout_id IS NULL")
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertAction(ctx context.Context, db *gorm.DB, entry *domain.ActionLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO payout_action_logs (id, payout_id, action, performed_by, role, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PayoutID,
		entry.Action,
		entry.PerformedBy,
		entry.Role,
		entry.Note,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListActionsForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, cursor *domain.ActionCursor, limit int) ([]*domain.ActionLog, error) {
	var logs []*domain.ActionLog
	stmt := db.WithContext(ctx).Model(&domain.ActionLog{}).
		Where("payout_id IN (SELECT id FROM payouts WHERE order_id = ?)", orderID)

	if cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt,
			cursor.CreatedAt,
			cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) UpsertOTP(ctx context.Context, db *gorm.DB, otp *orderdomain.OTP) error {
	return db.WithContext(ctx).Save(otp).Error
}

func (r *repo) UpdateOTP(ctx context.Context, db *gorm.DB, otp *orderdomain.OTP) error {
	return db.WithContext(ctx).Save(otp).Error
}

func (r *repo) UpdatePhoto(ctx context.Context, db *gorm.DB, photo *orderdomain.Photo) error {
	return db.WithContext(ctx).Save(photo).Error
}

// sqlite has no FOR UPDATE; the whole database locks on write instead.
func supportsRowLock(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	name := db.Dialector.Name()
	return name == "postgres" || name == "mysql"
}
