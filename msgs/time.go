package msgs

import (
	"fmt"
	"time"
)

// Time is a wire timestamp split into whole seconds and nanoseconds
// since the Unix epoch.
type Time struct {
	Sec  uint32 `json:"sec"`
	NSec uint32 `json:"nsec"`
}

// Now returns the current wall-clock time as a wire timestamp.
func Now() Time {
	t := time.Now()
	return Time{Sec: uint32(t.Unix()), NSec: uint32(t.Nanosecond())}
}

// NewTime builds a timestamp from explicit seconds and nanoseconds.
func NewTime(sec, nsec uint32) Time {
	return Time{Sec: sec, NSec: nsec}
}

// IsZero reports whether the timestamp is the zero value. A zero stamp
// on an outgoing goal means "stamp me"; on a cancel message it is
// deliberate and means "no time filter".
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.NSec == 0
}

func (t Time) String() string {
	return fmt.Sprintf("%d.%09d", t.Sec, t.NSec)
}

// ToGoTime converts the wire timestamp back into a time.Time.
func (t Time) ToGoTime() time.Time {
	return time.Unix(int64(t.Sec), int64(t.NSec))
}
