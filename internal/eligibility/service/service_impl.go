package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rovamart/payguard/internal/clock"
	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPerPage = 20

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) eligibilitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("eligibility.service"),
		clock: p.Clock,
	}
}

func (s *Service) Evaluate(ctx context.Context, orderID snowflake.ID) (eligibilitydomain.Breakdown, error) {
	var order orderdomain.Order
	err := s.db.WithContext(ctx).
		Preload("Payment").
		Preload("OTP").
		Preload("Photo").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return eligibilitydomain.Breakdown{}, orderdomain.ErrOrderNotFound
		}
		return eligibilitydomain.Breakdown{}, err
	}
	return eligibilitydomain.Evaluate(&order), nil
}

func (s *Service) Scan(ctx context.Context, req eligibilitydomain.ScanRequest) (eligibilitydomain.ScanResponse, error) {
	hours := req.Hours
	if hours == 0 {
		hours = eligibilitydomain.DefaultScanWindowHours
	}
	if !eligibilitydomain.ValidWindow(hours) {
		return eligibilitydomain.ScanResponse{}, eligibilitydomain.ErrInvalidWindow
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > 100 {
		perPage = 100
	}

	orders, err := s.scanOrders(ctx, hours, req.State, page, perPage)
	if err != nil {
		return eligibilitydomain.ScanResponse{}, err
	}

	hasMore := false
	if len(orders) > perPage {
		hasMore = true
		orders = orders[:perPage]
	}

	resp := eligibilitydomain.ScanResponse{
		Orders:  make([]eligibilitydomain.OrderEligibility, 0, len(orders)),
		Page:    page,
		PerPage: perPage,
		HasMore: hasMore,
	}

	for i := range orders {
		breakdown := eligibilitydomain.Evaluate(&orders[i])
		resp.Orders = append(resp.Orders, eligibilitydomain.OrderEligibility{
			OrderID:     orders[i].ID,
			AgentID:     orders[i].AgentID,
			State:       orders[i].State,
			DeliveredAt: orders[i].DeliveredAt,
			Breakdown:   breakdown,
		})

		resp.Summary.Total++
		if breakdown.Eligible {
			resp.Summary.Eligible++
		}
		if !breakdown.PaymentVerified {
			resp.Summary.PaymentNotVerified++
		}
		if !breakdown.OTPSubmitted {
			resp.Summary.OTPNotSubmitted++
		}
		if !breakdown.PhotoApproved {
			resp.Summary.PhotoNotApproved++
		}
	}

	return resp, nil
}

func (s *Service) scanOrders(ctx context.Context, hours int, state string, page, perPage int) ([]orderdomain.Order, error) {
	since := s.clock.Now().Add(-windowDuration(hours))

	stmt := s.db.WithContext(ctx).
		Preload("Payment").
		Preload("OTP").
		Preload("Photo").
		Where("delivered_at IS NOT NULL AND delivered_at >= ?", since)

	if state = strings.TrimSpace(state); state != "" {
		stmt = stmt.Where("state = ?", state)
	}

	var orders []orderdomain.Order
	err := stmt.Order("delivered_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage + 1).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func windowDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}
