package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// OTPSubmitLimiter throttles OTP submissions per actor and order. A nil
// limiter (rate limiting disabled or no redis) allows everything.
type OTPSubmitLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewOTPSubmitLimiter(bucket *TokenBucket, log *zap.Logger, rate float64, burst int) *OTPSubmitLimiter {
	if bucket == nil {
		return nil
	}
	return &OTPSubmitLimiter{
		bucket: bucket,
		log:    log.Named("ratelimit.otp"),
		rate:   rate,
		burst:  burst,
	}
}

// Allow reports whether this actor may attempt another submission for the
// order. Redis failures are logged and treated as allowed so the limiter
// never takes down the submit path.
func (l *OTPSubmitLimiter) Allow(ctx context.Context, actorID string, orderID snowflake.ID) bool {
	if l == nil {
		return true
	}

	key := fmt.Sprintf("otp:submit:%s:%d", actorID, orderID.Int64())
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("otp rate limit check failed, allowing", zap.Error(err))
		return true
	}
	return res.Allowed
}
