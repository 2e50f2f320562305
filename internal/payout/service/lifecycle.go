package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/compliance/event"
	eligibilitydomain "github.com/rovamart/payguard/internal/eligibility/domain"
	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/internal/principal"
)

// Unlock releases locked payouts for the given orders in one transaction.
// Orders whose payout is missing or not locked are silently skipped.
func (s *service) Unlock(ctx context.Context, actor principal.Principal, orderIDs []snowflake.ID) (domain.UnlockResult, error) {
	result := domain.UnlockResult{UnlockedOrders: make([]snowflake.ID, 0, len(orderIDs))}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, orderID := range orderIDs {
			payout, err := s.repo.FirstPayoutForOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if payout == nil {
				continue
			}

			payout, err = s.repo.LockPayout(ctx, tx, payout.ID)
			if err != nil {
				return err
			}
			if payout.Status != domain.StatusLocked || payout.IsLockedFinal {
				continue
			}

			payout.Status = domain.StatusPending
			payout.LockedBy = nil
			payout.LockedAt = nil
			payout.LockReason = nil
			payout.LockType = nil
			payout.UpdatedAt = s.clock.Now()
			if err := s.repo.UpdatePayout(ctx, tx, payout); err != nil {
				return err
			}

			id := payout.ID
			if err := s.logAction(ctx, tx, &id, domain.ActionUnlockedByGM, actor, "manual unlock"); err != nil {
				return err
			}

			result.UnlockedOrders = append(result.UnlockedOrders, orderID)
			result.UnlockedCount++
		}
		return nil
	})
	if err != nil {
		return domain.UnlockResult{}, err
	}

	for range result.UnlockedOrders {
		s.metrics.RecordPayoutUnlock(ctx, actor.Role)
	}
	return result, nil
}

// ApprovePhoto marks the delivery photo approved. Re-approving is a no-op
// reported as skipped, with no duplicate audit entry.
func (s *service) ApprovePhoto(ctx context.Context, actor principal.Principal, orderID snowflake.ID, note string) (domain.ActionResult, error) {
	var result domain.ActionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Photo == nil {
			return orderdomain.ErrPhotoNotFound
		}

		payoutID, err := s.payoutIDForOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result.PayoutID = payoutID

		if order.Photo.IsApproved {
			result.Status = "skipped"
			result.Eligibility = eligibilitydomain.Evaluate(order)
			return nil
		}

		now := s.clock.Now()
		order.Photo.IsApproved = true
		order.Photo.ApprovedBy = &actor.ID
		order.Photo.ApprovedAt = &now
		if err := s.repo.UpdatePhoto(ctx, tx, order.Photo); err != nil {
			return err
		}

		if err := s.logAction(ctx, tx, payoutID, domain.ActionPhotoApproved, actor, note); err != nil {
			return err
		}

		result.Status = "ok"
		result.Eligibility = eligibilitydomain.Evaluate(order)
		return nil
	})
	if err != nil {
		return domain.ActionResult{}, err
	}
	return result, nil
}

// MarkIntent records a reviewer's stated intent to approve the payout.
// Every call appends a fresh audit entry.
func (s *service) MarkIntent(ctx context.Context, actor principal.Principal, orderID snowflake.ID, note string) (domain.ActionResult, error) {
	var result domain.ActionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		payoutID, err := s.payoutIDForOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := s.logAction(ctx, tx, payoutID, domain.ActionIntentToApprove, actor, note); err != nil {
			return err
		}

		result = domain.ActionResult{
			Status:      "ok",
			Eligibility: eligibilitydomain.Evaluate(order),
			PayoutID:    payoutID,
		}
		return nil
	})
	if err != nil {
		return domain.ActionResult{}, err
	}
	return result, nil
}

// ConfirmReceipt settles the payout. All three eligibility signals plus a
// paid status are required; success freezes the payout permanently.
// Confirming an already confirmed payout reports the original confirmation.
func (s *service) ConfirmReceipt(ctx context.Context, actor principal.Principal, req domain.ConfirmRequest) (domain.ConfirmResult, error) {
	var result domain.ConfirmResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.resolvePayout(ctx, tx, req.Ref)
		if err != nil {
			return err
		}
		payout, err = s.repo.LockPayout(ctx, tx, payout.ID)
		if err != nil {
			return err
		}

		if payout.IsConfirmed {
			result = domain.ConfirmResult{
				Status:   "ok",
				PayoutID: payout.ID,
				Locked:   payout.IsLockedFinal,
				Skipped:  true,
			}
			if payout.ConfirmedBy != nil {
				result.ConfirmedBy = *payout.ConfirmedBy
			}
			if payout.ConfirmedAt != nil {
				result.ConfirmedAt = *payout.ConfirmedAt
			}
			return nil
		}
		if payout.IsLockedFinal {
			return domain.ErrPayoutFinal
		}

		order, err := s.repo.GetOrder(ctx, tx, payout.OrderID)
		if err != nil {
			return err
		}

		missing := eligibilitydomain.Evaluate(order).Missing()
		if payout.Status != domain.StatusPaid {
			missing = append(missing, "payout_not_paid")
		}
		if len(missing) > 0 {
			return &domain.RequirementsNotMetError{Missing: missing}
		}

		now := s.clock.Now()
		payout.Status = domain.StatusConfirmed
		payout.IsConfirmed = true
		payout.ConfirmedBy = &actor.ID
		payout.ConfirmedAt = &now
		payout.IsLockedFinal = true
		payout.UpdatedAt = now
		if err := s.repo.UpdatePayout(ctx, tx, payout); err != nil {
			return err
		}

		id := payout.ID
		if err := s.logAction(ctx, tx, &id, domain.ActionReceiptConfirmed, actor, req.Note); err != nil {
			return err
		}
		if err := s.logAction(ctx, tx, &id, domain.ActionLockedFinal, actor, "payout settled and frozen"); err != nil {
			return err
		}

		result = domain.ConfirmResult{
			Status:      "ok",
			PayoutID:    payout.ID,
			Locked:      true,
			ConfirmedBy: actor.ID,
			ConfirmedAt: now,
		}
		return nil
	})
	if err != nil {
		return domain.ConfirmResult{}, err
	}

	if !result.Skipped {
		s.metrics.RecordConfirmation(ctx, actor.Role)
	}
	return result, nil
}

// RejectReceipt marks the payout rejected and, when the order has an
// assigned agent, enqueues a strike for the compliance consumer. The
// outbox row commits with the rejection; the drain afterwards is best
// effort.
func (s *service) RejectReceipt(ctx context.Context, actor principal.Principal, req domain.RejectRequest) (domain.RejectResult, error) {
	if req.Note == "" {
		return domain.RejectResult{}, domain.ErrNoteRequired
	}

	var (
		result  domain.RejectResult
		flagged bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.resolvePayout(ctx, tx, req.Ref)
		if err != nil {
			return err
		}
		payout, err = s.repo.LockPayout(ctx, tx, payout.ID)
		if err != nil {
			return err
		}
		if payout.IsLockedFinal {
			return domain.ErrPayoutFinal
		}

		result.PayoutID = payout.ID
		if payout.Status == domain.StatusRejected {
			// Already rejected; do not double-strike the agent.
			return nil
		}

		now := s.clock.Now()
		lockType := domain.LockTypeManual
		payout.Status = domain.StatusRejected
		payout.LockedBy = &actor.ID
		payout.LockedAt = &now
		payout.LockType = &lockType
		payout.UpdatedAt = now
		if err := s.repo.UpdatePayout(ctx, tx, payout); err != nil {
			return err
		}

		id := payout.ID
		if err := s.logAction(ctx, tx, &id, domain.ActionRejected, actor, req.Note); err != nil {
			return err
		}

		order, err := s.repo.GetOrder(ctx, tx, payout.OrderID)
		if err != nil {
			return err
		}
		if order.AgentID != nil {
			payload := event.PayoutRejected{
				AgentID:      *order.AgentID,
				PayoutID:     payout.ID,
				OrderID:      order.ID,
				Note:         req.Note,
				RejectedBy:   actor.ID,
				RejectedRole: actor.Role,
			}
			if err := s.publisher.Publish(ctx, tx, event.PayoutRejectedTopic, payload); err != nil {
				return err
			}
			flagged = true
		}
		return nil
	})
	if err != nil {
		return domain.RejectResult{}, err
	}

	if flagged {
		if err := s.consumer.ProcessPending(ctx); err != nil {
			s.log.Warn("post-reject outbox drain failed, ticker will retry", zap.Error(err))
		}
	}

	s.metrics.RecordRejection(ctx, actor.Role)
	result.AgentFlagged = flagged
	return result, nil
}

// ManualCheck snapshots the order's eligibility into the audit trail.
func (s *service) ManualCheck(ctx context.Context, actor principal.Principal, orderID snowflake.ID) (domain.ManualCheckResult, error) {
	var result domain.ManualCheckResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		breakdown := eligibilitydomain.Evaluate(order)
		raw, err := json.Marshal(breakdown)
		if err != nil {
			return err
		}
		note := fmt.Sprintf("manual eligibility check: %s", raw)

		payoutID, err := s.payoutIDForOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := s.logAction(ctx, tx, payoutID, domain.ActionManualCheck, actor, note); err != nil {
			return err
		}

		result = domain.ManualCheckResult{Eligibility: breakdown, Note: note}
		return nil
	})
	if err != nil {
		return domain.ManualCheckResult{}, err
	}
	return result, nil
}

func (s *service) payoutIDForOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*snowflake.ID, error) {
	payout, err := s.repo.FirstPayoutForOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, nil
	}
	id := payout.ID
	return &id, nil
}
