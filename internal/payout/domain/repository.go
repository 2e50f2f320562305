package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"gorm.io/gorm"
)

// ActionCursor keys cursor pagination over the append-only action log.
type ActionCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// Repository is stateless: callers pass the handle so the same methods work
// inside and outside a transaction.
type Repository interface {
	GetOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error)
	FirstPayoutForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Payout, error)
	GetPayout(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	// LockPayout reloads the payout under a row lock for the duration of
	// the surrounding transaction.
	LockPayout(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Payout, error)
	UpdatePayout(ctx context.Context, db *gorm.DB, payout *Payout) error

	CountActions(ctx context.Context, db *gorm.DB, payoutID *snowflake.ID, kind ActionKind) (int64, error)
	InsertAction(ctx context.Context, db *gorm.DB, entry *ActionLog) error
	ListActionsForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, cursor *ActionCursor, limit int) ([]*ActionLog, error)

	UpsertOTP(ctx context.Context, db *gorm.DB, otp *orderdomain.OTP) error
	UpdateOTP(ctx context.Context, db *gorm.DB, otp *orderdomain.OTP) error
	UpdatePhoto(ctx context.Context, db *gorm.DB, photo *orderdomain.Photo) error
}
