// Package metrics holds the pure derived-value calculators the pipeline
// depends on: the decaying priority score and the review streak.
package metrics

import (
	"math"
	"time"
)

const secondsPerDay = 86400.0

// Priority maps an item's age and review count to a decaying priority value:
//
//	ln(ageDays + 1) / (1 + 0.5 * timesReviewed)
//
// where ageDays is clamped to at least 1. The result is non-decreasing in
// age and strictly decreasing in review count, so stale unreviewed items
// float to the top and each review pushes an item down.
func Priority(createdAt time.Time, timesReviewed int, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Seconds() / secondsPerDay
	if ageDays < 1 {
		ageDays = 1
	}
	return math.Log(ageDays+1) / (1 + 0.5*float64(timesReviewed))
}
