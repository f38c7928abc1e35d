// Package clock abstracts time for services so settlement and payout
// logic can be tested against a fixed instant.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
