// Package safeconv provides checked numeric conversions used when packing
// configuration durations into fixed-width fields.
package safeconv

import "fmt"

// DurationSecondsToInt rounds a float64 second count down to an int,
// rejecting negative values.
//
// CWE-190: Integer Overflow or Wraparound
func DurationSecondsToInt(seconds float64) (int, error) {
	if seconds < 0 {
		return 0, fmt.Errorf("cannot convert negative duration to int: %f", seconds)
	}
	return int(seconds), nil
}
