// Package score holds the pure scoring math: percentage normalization and
// personal-best delta computation. Nothing here touches storage or fails.
package score

import "math"

// Normalize converts a raw correct/total pair into a score in [0,100].
// Malformed input is clamped rather than rejected; a submission must never be
// lost to a cosmetic data issue.
func Normalize(correct, total int) int {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}
	s := int(math.Round(100 * float64(correct) / float64(total)))
	if s > 100 {
		return 100
	}
	return s
}

// Delta reports how a new score changes a user's recorded best for one quiz.
type Delta struct {
	Improved bool
	Gain     int
	NewBest  int
}

// Best compares a new score against the previous best. An absent previous
// best is passed as zero; whether the entry existed at all is the caller's
// concern, since it only affects quiz counting, not the delta.
func Best(prev, newScore int) Delta {
	if newScore > prev {
		return Delta{Improved: true, Gain: newScore - prev, NewBest: newScore}
	}
	return Delta{NewBest: prev}
}
