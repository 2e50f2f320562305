package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	orderdomain "github.com/rovamart/payguard/internal/order/domain"
)

func orderWith(payment, otp, photo bool) *orderdomain.Order {
	o := &orderdomain.Order{}
	o.Payment = &orderdomain.Payment{IsVerified: payment}
	o.OTP = &orderdomain.OTP{IsSubmitted: otp}
	o.Photo = &orderdomain.Photo{IsApproved: photo}
	return o
}

func TestEvaluateConjunction(t *testing.T) {
	cases := []struct {
		name     string
		payment  bool
		otp      bool
		photo    bool
		eligible bool
	}{
		{"all signals met", true, true, true, true},
		{"payment missing", false, true, true, false},
		{"otp missing", true, false, true, false},
		{"photo missing", true, true, false, false},
		{"only payment", true, false, false, false},
		{"only otp", false, true, false, false},
		{"only photo", false, false, true, false},
		{"nothing met", false, false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Evaluate(orderWith(tc.payment, tc.otp, tc.photo))
			assert.Equal(t, tc.payment, b.PaymentVerified)
			assert.Equal(t, tc.otp, b.OTPSubmitted)
			assert.Equal(t, tc.photo, b.PhotoApproved)
			assert.Equal(t, tc.eligible, b.Eligible)
		})
	}
}

func TestEvaluateMissingAssociations(t *testing.T) {
	b := Evaluate(&orderdomain.Order{})
	assert.False(t, b.PaymentVerified)
	assert.False(t, b.OTPSubmitted)
	assert.False(t, b.PhotoApproved)
	assert.False(t, b.Eligible)

	assert.Equal(t, Breakdown{}, Evaluate(nil))
}

func TestEvaluateUnverifiedAssociations(t *testing.T) {
	o := &orderdomain.Order{
		Payment: &orderdomain.Payment{IsVerified: false},
		OTP:     &orderdomain.OTP{IsSubmitted: false},
		Photo:   &orderdomain.Photo{IsApproved: false},
	}
	assert.False(t, Evaluate(o).Eligible)
}

func TestMissingLabels(t *testing.T) {
	b := Evaluate(orderWith(false, true, false))
	assert.Equal(t, []string{"payment_not_verified", "photo_not_approved"}, b.Missing())

	assert.Empty(t, Evaluate(orderWith(true, true, true)).Missing())

	all := Breakdown{}.Missing()
	assert.Equal(t, []string{"payment_not_verified", "otp_not_submitted", "photo_not_approved"}, all)
}

func TestValidWindow(t *testing.T) {
	for _, w := range ScanWindows {
		assert.True(t, ValidWindow(w))
	}
	for _, w := range []int{0, 1, 7, 12, 23, 25, 72, -24} {
		assert.False(t, ValidWindow(w), "window %d", w)
	}
}
