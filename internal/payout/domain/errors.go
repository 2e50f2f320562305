package domain

import (
	"errors"
	"strings"
)

var (
	ErrPayoutNotFound     = errors.New("payout_not_found")
	ErrPayoutLocked       = errors.New("payout_locked")
	ErrPayoutFinal        = errors.New("payout_locked_final")
	ErrOTPMismatch        = errors.New("otp_mismatch")
	ErrInvalidOTPCode     = errors.New("invalid_otp_code")
	ErrNoteRequired       = errors.New("note_required")
	ErrPaymentNotVerified = errors.New("payment_not_verified")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

// RequirementsNotMetError carries the explicit list of unmet confirmation
// preconditions so the dashboard can render actionable guidance.
type RequirementsNotMetError struct {
	Missing []string
}

func (e *RequirementsNotMetError) Error() string {
	return "requirements not met: " + strings.Join(e.Missing, ", ")
}
