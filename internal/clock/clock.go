package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source injected into every service so that windowed
// queries (strike windows, OTP expiry) are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
