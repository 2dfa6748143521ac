package util

import "time"

// DayUTC reads the wall-clock date of t as a UTC calendar date at midnight.
// The location of t is not converted, only relabelled.
func DayUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
