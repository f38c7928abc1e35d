// Package period derives the YYYYMM accounting-period bucket used to
// order and filter which obligations may be settled together.
package period

import (
	"fmt"
	"time"
)

// Key is a year-month bucket encoded as YYYYMM, e.g. 202301.
// Keys compare numerically: an earlier period is always the smaller key.
type Key int

// FromTime buckets a timestamp into its accounting period.
func FromTime(t time.Time) Key {
	return Key(t.Year()*100 + int(t.Month()))
}

// FromTimes returns the bucket of the first non-zero timestamp. Callers
// pass the invoice-period start date first and the creation date as the
// fallback.
func FromTimes(preferred, fallback time.Time) Key {
	if !preferred.IsZero() {
		return FromTime(preferred)
	}
	return FromTime(fallback)
}

// Before reports whether k is strictly earlier than other.
func (k Key) Before(other Key) bool { return k < other }

// String formats the key as its 6-digit YYYYMM form.
func (k Key) String() string { return fmt.Sprintf("%06d", int(k)) }
