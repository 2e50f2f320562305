package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/compliance/consumer"
	"github.com/rovamart/payguard/internal/compliance/event"
	"github.com/rovamart/payguard/internal/observability/metrics"
	"github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/internal/principal"
	"github.com/rovamart/payguard/internal/ratelimit"
	"github.com/rovamart/payguard/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Node      *snowflake.Node
	Repo      domain.Repository
	Publisher event.Publisher
	Consumer  *consumer.Consumer
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.OTPSubmitLimiter `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	node      *snowflake.Node
	repo      domain.Repository
	publisher event.Publisher
	consumer  *consumer.Consumer
	metrics   *metrics.Metrics
	limiter   *ratelimit.OTPSubmitLimiter
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("payout.service"),
		clock:     p.Clock,
		node:      p.Node,
		repo:      p.Repo,
		publisher: p.Publisher,
		consumer:  p.Consumer,
		metrics:   p.Metrics,
		limiter:   p.Limiter,
	}
}

// resolvePayout dereferences a PayoutRef, preferring the direct payout id.
func (s *service) resolvePayout(ctx context.Context, db *gorm.DB, ref domain.PayoutRef) (*domain.Payout, error) {
	switch {
	case ref.PayoutID != nil:
		return s.repo.GetPayout(ctx, db, *ref.PayoutID)
	case ref.OrderID != nil:
		payout, err := s.repo.FirstPayoutForOrder(ctx, db, *ref.OrderID)
		if err != nil {
			return nil, err
		}
		if payout == nil {
			return nil, domain.ErrPayoutNotFound
		}
		return payout, nil
	default:
		return nil, domain.ErrPayoutNotFound
	}
}

func (s *service) logAction(ctx context.Context, tx *gorm.DB, payoutID *snowflake.ID, kind domain.ActionKind, actor principal.Principal, note string) error {
	return s.repo.InsertAction(ctx, tx, &domain.ActionLog{
		ID:          s.node.Generate(),
		PayoutID:    payoutID,
		Action:      kind,
		PerformedBy: actor.ID,
		Role:        actor.Role,
		Note:        note,
		CreatedAt:   s.clock.Now(),
	})
}

func (s *service) ListActions(ctx context.Context, req domain.ListActionsRequest) (domain.ListActionsResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 50
	}

	var cursor *domain.ActionCursor
	if req.PageToken != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListActionsResponse{}, err
		}
		parsed, err := decodeActionCursor(decoded)
		if err != nil {
			return domain.ListActionsResponse{}, err
		}
		cursor = parsed
	}

	// Ensure the order exists so unknown ids return not found, not an
	// empty page.
	if _, err := s.repo.GetOrder(ctx, s.db, req.OrderID); err != nil {
		return domain.ListActionsResponse{}, err
	}

	logs, err := s.repo.ListActionsForOrder(ctx, s.db, req.OrderID, cursor, limit)
	if err != nil {
		return domain.ListActionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(logs, int32(limit), func(entry *domain.ActionLog) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})

	if len(logs) > limit {
		logs = logs[:limit]
	}

	actions := make([]domain.ActionLog, 0, len(logs))
	for _, entry := range logs {
		actions = append(actions, *entry)
	}

	return domain.ListActionsResponse{
		PageInfo: *pageInfo,
		Actions:  actions,
	}, nil
}

func decodeActionCursor(c *pagination.Cursor) (*domain.ActionCursor, error) {
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &domain.ActionCursor{
		ID:        snowflake.ID(id),
		CreatedAt: createdAt,
	}, nil
}
