package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovamart/payguard/internal/payout/domain"
)

func TestSubmitOTPSuccess(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{paymentVerified: true, otpCode: "123456"})

	result, err := f.svc.SubmitOTP(context.Background(), actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, domain.MaxOTPAttempts, result.RemainingAttempts)

	assert.EqualValues(t, 1, countActions(t, f.db, s.payout.ID, domain.ActionOTPSubmitted))
	assert.EqualValues(t, 0, countActions(t, f.db, s.payout.ID, domain.ActionOTPFailed))

	payout := reloadPayout(t, f.db, s.payout.ID)
	assert.Equal(t, domain.StatusPending, payout.Status)
}

func TestSubmitOTPRejectsMalformedCode(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	for _, code := range []string{"", "12345", "1234567"} {
		_, err := f.svc.SubmitOTP(context.Background(), actorGM, domain.SubmitOTPRequest{
			OrderID: s.order.ID,
			Code:    code,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidOTPCode, "code %q", code)
	}

	assert.EqualValues(t, 0, countActions(t, f.db, s.payout.ID, domain.ActionOTPFailed))
}

func TestSubmitOTPNonDigitCodeCountsAttempt(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	// Comparison is exact and case-sensitive; a six-character code of any
	// shape is a real attempt, not a validation error.
	result, err := f.svc.SubmitOTP(context.Background(), actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "12345a",
	})
	require.ErrorIs(t, err, domain.ErrOTPMismatch)
	assert.Equal(t, 2, result.RemainingAttempts)
	assert.EqualValues(t, 1, countActions(t, f.db, s.payout.ID, domain.ActionOTPFailed))
}

func TestSubmitOTPWrongCodeCountsDown(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	result, err := f.svc.SubmitOTP(context.Background(), actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "000000",
	})
	require.ErrorIs(t, err, domain.ErrOTPMismatch)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, 2, result.RemainingAttempts)
	assert.EqualValues(t, 1, countActions(t, f.db, s.payout.ID, domain.ActionOTPFailed))
}

func TestSubmitOTPThirdStrikeLocks(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
			OrderID: s.order.ID,
			Code:    "000000",
		})
		require.ErrorIs(t, err, domain.ErrOTPMismatch)
	}

	result, err := f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "000000",
	})
	require.ErrorIs(t, err, domain.ErrPayoutLocked)
	assert.Equal(t, "locked", result.Status)
	assert.Equal(t, 0, result.RemainingAttempts)

	// The lock must have committed despite the error return.
	payout := reloadPayout(t, f.db, s.payout.ID)
	assert.Equal(t, domain.StatusLocked, payout.Status)
	require.NotNil(t, payout.LockType)
	assert.Equal(t, domain.LockTypeCompliance, *payout.LockType)
	assert.EqualValues(t, 3, countActions(t, f.db, s.payout.ID, domain.ActionOTPFailed))
	assert.EqualValues(t, 1, countActions(t, f.db, s.payout.ID, domain.ActionLocked))
}

func TestSubmitOTPCorrectCodeAfterExhaustionStillLocks(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
			OrderID: s.order.ID,
			Code:    "000000",
		})
	}

	// Fourth attempt with the right code: the strike history wins.
	result, err := f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "123456",
	})
	require.ErrorIs(t, err, domain.ErrPayoutLocked)
	assert.Equal(t, "locked", result.Status)

	assert.EqualValues(t, 0, countActions(t, f.db, s.payout.ID, domain.ActionOTPSubmitted))

	var otp struct{ IsSubmitted bool }
	require.NoError(t, f.db.Table("otps").
		Select("is_submitted").
		Where("order_id = ?", s.order.ID).
		Scan(&otp).Error)
	assert.False(t, otp.IsSubmitted)
}

func TestSubmitOTPLockSurvivesUnlockHistory(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{otpCode: "123456"})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
			OrderID: s.order.ID,
			Code:    "000000",
		})
	}

	_, err := f.svc.Unlock(ctx, actorGM, []snowflake.ID{s.order.ID})
	require.NoError(t, err)

	// The failure count is lifetime: the next submission locks again
	// without consuming a fresh set of attempts.
	result, err := f.svc.SubmitOTP(ctx, actorGM, domain.SubmitOTPRequest{
		OrderID: s.order.ID,
		Code:    "123456",
	})
	require.True(t, errors.Is(err, domain.ErrPayoutLocked))
	assert.Equal(t, "locked", result.Status)
}

func TestTriggerOTPDryRunDoesNotPersist(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{paymentVerified: true, noOTP: true})

	result, err := f.svc.TriggerOTP(context.Background(), actorFC, domain.TriggerOTPRequest{
		OrderID: s.order.ID,
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "********333", result.MaskedPhone)
	assert.Nil(t, result.ExpiresAt)

	var count int64
	require.NoError(t, f.db.Table("otps").Where("order_id = ?", s.order.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestTriggerOTPRequiresVerifiedPayment(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{paymentVerified: false})

	_, err := f.svc.TriggerOTP(context.Background(), actorFC, domain.TriggerOTPRequest{
		OrderID: s.order.ID,
	})
	assert.ErrorIs(t, err, domain.ErrPaymentNotVerified)
}

func TestTriggerOTPIssuesCodeWithTTL(t *testing.T) {
	f := setupService(t)
	s := seedOrder(t, f, orderOpts{paymentVerified: true, noOTP: true})

	result, err := f.svc.TriggerOTP(context.Background(), actorFC, domain.TriggerOTPRequest{
		OrderID: s.order.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(domain.OTPTTL), result.ExpiresAt.UTC())

	var otp struct{ Code string }
	require.NoError(t, f.db.Table("otps").
		Select("code").
		Where("order_id = ?", s.order.ID).
		Scan(&otp).Error)
	assert.Len(t, otp.Code, domain.OTPCodeLength)

	assert.EqualValues(t, 1, countActions(t, f.db, s.payout.ID, domain.ActionOTPTriggered))
}
