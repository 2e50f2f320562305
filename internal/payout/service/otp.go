package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orderdomain "github.com/rovamart/payguard/internal/order/domain"
	"github.com/rovamart/payguard/internal/payout/domain"
	"github.com/rovamart/payguard/internal/principal"
)

type otpOutcome int

const (
	otpSuccess otpOutcome = iota
	otpAlreadySubmitted
	otpMismatch
	otpLockedOut
)

// SubmitOTP verifies the code the customer read back to the agent. The
// failure count is lifetime per payout: three wrong codes ever lock the
// payout, and the lock commits even though the call reports a lock error.
func (s *service) SubmitOTP(ctx context.Context, actor principal.Principal, req domain.SubmitOTPRequest) (domain.SubmitOTPResult, error) {
	if !validOTPCode(req.Code) {
		return domain.SubmitOTPResult{}, domain.ErrInvalidOTPCode
	}
	if !s.limiter.Allow(ctx, actor.ID, req.OrderID) {
		return domain.SubmitOTPResult{}, domain.ErrTooManyRequests
	}

	var (
		outcome   otpOutcome
		remaining int
		payoutID  *snowflake.ID
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}

		payout, err := s.repo.FirstPayoutForOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if payout != nil {
			payout, err = s.repo.LockPayout(ctx, tx, payout.ID)
			if err != nil {
				return err
			}
			id := payout.ID
			payoutID = &id

			if payout.IsLockedFinal {
				return domain.ErrPayoutFinal
			}
			if payout.Status == domain.StatusLocked {
				outcome = otpLockedOut
				return nil
			}
		}

		failCount, err := s.failedAttempts(ctx, tx, payoutID)
		if err != nil {
			return err
		}

		// Exhausted attempts freeze the payout before the code is even
		// compared, so a correct fourth try still locks.
		if payout != nil && failCount >= domain.MaxOTPAttempts {
			if err := s.lockPayoutRow(ctx, tx, payout, actor, "otp attempts exhausted"); err != nil {
				return err
			}
			outcome = otpLockedOut
			return nil
		}

		otp := order.OTP
		if otp == nil {
			return orderdomain.ErrOTPNotFound
		}
		if otp.IsSubmitted {
			outcome = otpAlreadySubmitted
			remaining = attemptsLeft(failCount)
			return nil
		}

		now := s.clock.Now()
		expired := otp.ExpiresAt != nil && !now.Before(*otp.ExpiresAt)

		if otp.Code == req.Code && !expired {
			otp.IsSubmitted = true
			otp.SubmittedAt = &now
			otp.UpdatedAt = now
			if err := s.repo.UpdateOTP(ctx, tx, otp); err != nil {
				return err
			}
			if err := s.logAction(ctx, tx, payoutID, domain.ActionOTPSubmitted, actor, "delivery code confirmed"); err != nil {
				return err
			}
			outcome = otpSuccess
			remaining = attemptsLeft(failCount)
			return nil
		}

		note := fmt.Sprintf("wrong code, attempt %d of %d", failCount+1, domain.MaxOTPAttempts)
		if expired {
			note = fmt.Sprintf("expired code, attempt %d of %d", failCount+1, domain.MaxOTPAttempts)
		}
		if err := s.logAction(ctx, tx, payoutID, domain.ActionOTPFailed, actor, note); err != nil {
			return err
		}

		if payout != nil && failCount+1 >= domain.MaxOTPAttempts {
			if err := s.lockPayoutRow(ctx, tx, payout, actor, "otp attempts exhausted"); err != nil {
				return err
			}
			outcome = otpLockedOut
			return nil
		}

		outcome = otpMismatch
		remaining = attemptsLeft(failCount + 1)
		return nil
	})
	if err != nil {
		return domain.SubmitOTPResult{}, err
	}

	switch outcome {
	case otpLockedOut:
		s.metrics.RecordPayoutLock(ctx, domain.LockTypeCompliance)
		s.log.Warn("payout locked after otp strikes",
			zap.Int64("order_id", req.OrderID.Int64()),
			zap.String("actor_id", actor.ID),
		)
		return domain.SubmitOTPResult{
			Status:            "locked",
			Message:           "payout locked after repeated failed attempts",
			RemainingAttempts: 0,
			PayoutID:          payoutID,
		}, domain.ErrPayoutLocked
	case otpMismatch:
		s.metrics.RecordOTPFailure(ctx, actor.Role)
		return domain.SubmitOTPResult{
			Status:            "error",
			Message:           "incorrect delivery code",
			RemainingAttempts: remaining,
			PayoutID:          payoutID,
		}, domain.ErrOTPMismatch
	case otpAlreadySubmitted:
		return domain.SubmitOTPResult{
			Status:            "ok",
			Message:           "delivery code already submitted",
			RemainingAttempts: remaining,
			PayoutID:          payoutID,
		}, nil
	default:
		s.metrics.RecordOTPSubmission(ctx, actor.Role)
		return domain.SubmitOTPResult{
			Status:            "ok",
			Message:           "delivery code confirmed",
			RemainingAttempts: remaining,
			PayoutID:          payoutID,
		}, nil
	}
}

// TriggerOTP issues a fresh delivery code for an order with a verified
// payment. Dry runs report the masked destination without persisting.
func (s *service) TriggerOTP(ctx context.Context, actor principal.Principal, req domain.TriggerOTPRequest) (domain.TriggerOTPResult, error) {
	order, err := s.repo.GetOrder(ctx, s.db, req.OrderID)
	if err != nil {
		return domain.TriggerOTPResult{}, err
	}
	if order.Payment == nil || !order.Payment.IsVerified {
		return domain.TriggerOTPResult{}, domain.ErrPaymentNotVerified
	}

	masked := maskPhone(order.CustomerPhone)
	if req.DryRun {
		return domain.TriggerOTPResult{
			Status:      "ok",
			Message:     "dry run, no code sent",
			MaskedPhone: masked,
		}, nil
	}

	code, err := generateCode()
	if err != nil {
		return domain.TriggerOTPResult{}, err
	}

	now := s.clock.Now()
	expires := now.Add(domain.OTPTTL)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		otp := order.OTP
		if otp == nil {
			otp = &orderdomain.OTP{
				ID:        s.node.Generate(),
				OrderID:   order.ID,
				CreatedAt: now,
			}
		}
		otp.Code = code
		otp.IsSubmitted = false
		otp.SubmittedAt = nil
		otp.ExpiresAt = &expires
		otp.UpdatedAt = now
		if err := s.repo.UpsertOTP(ctx, tx, otp); err != nil {
			return err
		}

		var payoutID *snowflake.ID
		payout, err := s.repo.FirstPayoutForOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if payout != nil {
			id := payout.ID
			payoutID = &id
		}

		return s.logAction(ctx, tx, payoutID, domain.ActionOTPTriggered, actor,
			fmt.Sprintf("code sent to %s", masked))
	})
	if err != nil {
		return domain.TriggerOTPResult{}, err
	}

	return domain.TriggerOTPResult{
		Status:      "ok",
		Message:     "delivery code sent",
		MaskedPhone: masked,
		ExpiresAt:   &expires,
	}, nil
}

// failedAttempts counts lifetime otp_failed entries for this payout. Orders
// without a payout carry no strike history yet.
func (s *service) failedAttempts(ctx context.Context, tx *gorm.DB, payoutID *snowflake.ID) (int64, error) {
	if payoutID == nil {
		return 0, nil
	}
	return s.repo.CountActions(ctx, tx, payoutID, domain.ActionOTPFailed)
}

func (s *service) lockPayoutRow(ctx context.Context, tx *gorm.DB, payout *domain.Payout, actor principal.Principal, reason string) error {
	now := s.clock.Now()
	lockType := domain.LockTypeCompliance

	payout.Status = domain.StatusLocked
	payout.LockedBy = &actor.ID
	payout.LockedAt = &now
	payout.LockReason = &reason
	payout.LockType = &lockType
	payout.UpdatedAt = now

	if err := s.repo.UpdatePayout(ctx, tx, payout); err != nil {
		return err
	}
	id := payout.ID
	return s.logAction(ctx, tx, &id, domain.ActionLocked, actor, reason)
}

func attemptsLeft(failed int64) int {
	left := domain.MaxOTPAttempts - int(failed)
	if left < 0 {
		return 0
	}
	return left
}

// Only a wrong length short-circuits as validation; any six characters
// go through the exact, case-sensitive comparison and count an attempt.
func validOTPCode(code string) bool {
	return len(code) == domain.OTPCodeLength
}

func generateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// maskPhone keeps the last three digits visible.
func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return phone
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
