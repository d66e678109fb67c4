package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Time is simulation time as a fixed-point count of picoseconds.
// Integer arithmetic keeps event ordering exact and reproducible.
type Time int64

const (
	Picosecond  Time = 1
	Nanosecond       = 1000 * Picosecond
	Microsecond      = 1000 * Nanosecond
	Millisecond      = 1000 * Microsecond
	Second           = 1000 * Millisecond

	// MaxTime is the largest representable simulation time (about 106 days).
	MaxTime Time = math.MaxInt64
)

// FromSeconds converts seconds to Time, rounding to the nearest picosecond.
// Values outside the representable range saturate.
func FromSeconds(s float64) Time {
	v := math.Round(s * float64(Second))
	if v >= math.MaxInt64 {
		return MaxTime
	}
	if v <= math.MinInt64 {
		return Time(math.MinInt64)
	}
	return Time(v)
}

// Seconds returns t in seconds.
func (t Time) Seconds() float64 {
	return float64(t) / float64(Second)
}

// String renders t in seconds without trailing zeros, e.g. "0.008s".
func (t Time) String() string {
	neg := t < 0
	u := uint64(t)
	if neg {
		u = uint64(-t)
	}
	sec := u / uint64(Second)
	frac := u % uint64(Second)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(sec, 10))
	if frac != 0 {
		fs := fmt.Sprintf("%012d", frac)
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(fs, "0"))
	}
	b.WriteByte('s')
	return b.String()
}

var timeUnits = []struct {
	suffix string
	scale  Time
}{
	{"ps", Picosecond},
	{"ns", Nanosecond},
	{"us", Microsecond},
	{"ms", Millisecond},
	{"s", Second},
}

// ParseTime parses a decimal number with an optional unit suffix
// (s, ms, us, ns, ps). A bare number is read as seconds.
func ParseTime(s string) (Time, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, fmt.Errorf("empty time value")
	}
	scale := Second
	for _, u := range timeUnits {
		if strings.HasSuffix(str, u.suffix) {
			str = strings.TrimSpace(strings.TrimSuffix(str, u.suffix))
			scale = u.scale
			break
		}
	}
	// integers are converted exactly; everything else goes through float64
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		if n != 0 && (n > math.MaxInt64/int64(scale) || n < math.MinInt64/int64(scale)) {
			return 0, fmt.Errorf("time %q out of range", s)
		}
		return Time(n) * scale, nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("time %q must be finite", s)
	}
	v := math.Round(f * float64(scale))
	if v >= math.MaxInt64 || v <= math.MinInt64 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return Time(v), nil
}
