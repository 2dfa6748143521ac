package repository

import "time"

// Resolution is the bar size requested from a data source.
type Resolution string

const (
	Daily  Resolution = "daily"
	Hour   Resolution = "hour"
	Minute Resolution = "minute"
)

// IsValidResolution returns true if res is supported.
func IsValidResolution(res Resolution) bool {
	switch res {
	case Daily, Hour, Minute:
		return true
	default:
		return false
	}
}

// DefaultResolution returns the default resolution.
func DefaultResolution() Resolution { return Daily }

// NormalizeResolution converts raw string to a valid resolution (or default).
func NormalizeResolution(s string) Resolution {
	if s == "" {
		return DefaultResolution()
	}
	res := Resolution(s)
	if IsValidResolution(res) {
		return res
	}
	return DefaultResolution()
}

// Duration returns the bar length.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
