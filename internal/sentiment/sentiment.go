// Package sentiment turns positive/negative/neutral counts into percentage
// shares.
package sentiment

import (
	"fmt"

	"github.com/abelbrown/divyadrishti/internal/model"
)

// Shares holds the percentage share of each bucket. Each share is computed
// independently; their sum may drift from 100 by floating-point error and
// no rounding correction is applied.
type Shares struct {
	Positive float64
	Negative float64
	Neutral  float64
	Total    float64
}

// NoData reports whether the counts summed to zero. Callers render an
// explicit "no data" state instead of a zero-width bar.
func (s Shares) NoData() bool {
	return s.Total == 0
}

// Normalize computes shares from non-negative counts. A zero total yields
// all-zero shares.
func Normalize(s model.Sentiment) Shares {
	total := s.Total()
	if total == 0 {
		return Shares{}
	}
	return Shares{
		Positive: 100 * s.Positive / total,
		Negative: 100 * s.Negative / total,
		Neutral:  100 * s.Neutral / total,
		Total:    total,
	}
}

// Percent formats a share as an integer percentage, e.g. "75%".
func Percent(share float64) string {
	return fmt.Sprintf("%.0f%%", share)
}

// PercentOneDecimal formats a share with one decimal place, e.g. "33.3%".
func PercentOneDecimal(share float64) string {
	return fmt.Sprintf("%.1f%%", share)
}
