package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/internal/principal"
)

// EnforceCompliance locks every ineligible delivered order's payout inside
// the lookback window. Preview builds the candidate list without writing;
// execution is all or nothing.
func (s *service) EnforceCompliance(ctx context.Context, actor principal.Principal, req domain.EnforceRequest) (domain.EnforceResult, error) {
	if !eligibilitydomain.ValidWindow(req.Hours) {
		return domain.EnforceResult{}, eligibilitydomain.ErrInvalidWindow
	}

	if req.Preview {
		candidates, err := s.lockCandidates(ctx, s.db, req)
		if err != nil {
			return domain.EnforceResult{}, err
		}
		return domain.EnforceResult{
			Preview:    true,
			Candidates: candidates,
		}, nil
	}

	var (
		locked     int
		candidates []domain.LockCandidate
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		candidates, err = s.lockCandidates(ctx, tx, req)
		if err != nil {
			return err
		}

		for i := range candidates {
			candidate := &candidates[i]
			payout, err := s.repo.LockPayout(ctx, tx, candidate.PayoutID)
			if err != nil {
				return err
			}
			// Raced into a lock since the scan; leave it as is.
			if payout.Status == domain.StatusLocked || payout.IsLockedFinal {
				continue
			}

			// The signals may have been fixed between the scan and the
			// row lock; the note must reflect what is missing now.
			order, err := s.repo.GetOrder(ctx, tx, candidate.OrderID)
			if err != nil {
				return err
			}
			breakdown := eligibilitydomain.Evaluate(order)
			if breakdown.Eligible {
				continue
			}
			candidate.Missing = breakdown.Missing()

			reason := fmt.Sprintf("compliance sweep: missing %s", strings.Join(candidate.Missing, ", "))
			if err := s.lockPayoutRow(ctx, tx, payout, actor, reason); err != nil {
				return err
			}
			locked++
		}
		return nil
	})
	if err != nil {
		return domain.EnforceResult{}, err
	}

	for i := 0; i < locked; i++ {
		s.metrics.RecordPayoutLock(ctx, domain.LockTypeCompliance)
	}

	return domain.EnforceResult{
		LockedCount: locked,
		Candidates:  candidates,
	}, nil
}

// lockCandidates scans delivered orders in the window and keeps the
// ineligible ones whose payout is still open. Execution passes its own
// transaction handle so the scan and the locks share one view.
func (s *service) lockCandidates(ctx context.Context, conn *gorm.DB, req domain.EnforceRequest) ([]domain.LockCandidate, error) {
	cutoff := s.clock.Now().Add(-time.Duration(req.Hours) * time.Hour)

	stmt := conn.WithContext(ctx).
		Preload("Payment").
		Preload("OTP").
		Preload("Photo").
		Where("delivery_status = ?", orderdomain.DeliveryStatusDelivered).
		Where("delivered_at >= ?", cutoff)
	if req.State != "" {
		stmt = stmt.Where("state = ?", req.State)
	}

	var orders []*orderdomain.Order
	if err := stmt.Order("delivered_at asc, id asc").Find(&orders).Error; err != nil {
		return nil, err
	}

	candidates := make([]domain.LockCandidate, 0)
	for _, order := range orders {
		breakdown := eligibilitydomain.Evaluate(order)
		if breakdown.Eligible {
			continue
		}

		payout, err := s.repo.FirstPayoutForOrder(ctx, conn, order.ID)
		if err != nil {
			return nil, err
		}
		if payout == nil || payout.Status == domain.StatusLocked || payout.IsLockedFinal {
			continue
		}

		candidates = append(candidates, domain.LockCandidate{
			OrderID:  order.ID,
			PayoutID: payout.ID,
			Missing:  breakdown.Missing(),
		})
	}
	return candidates, nil
}
