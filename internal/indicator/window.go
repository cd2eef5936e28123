package indicator

import (
	"math"

	"stockrobotv1/internal/frame"
)

// Pure windowed routines. Each consumes one ordered symbol-group column and
// produces an aligned output column. Undefined positions are NaN.

// diff returns out[i] = in[i] - in[i-1]; out[0] is undefined.
func diff(in []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		if i == 0 || math.IsNaN(in[i]) || math.IsNaN(in[i-1]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = in[i] - in[i-1]
	}
	return out
}

// rollingMean returns a trailing mean over `period` rows. Positions with
// fewer than `period` rows behind them (inclusive), or with any undefined
// value inside the window, are undefined.
func rollingMean(period int) frame.WindowFunc {
	return func(in []float64) []float64 {
		out := make([]float64, len(in))
		for i := range in {
			if i < period-1 {
				out[i] = math.NaN()
				continue
			}
			sum := 0.0
			defined := true
			for j := i - period + 1; j <= i; j++ {
				if math.IsNaN(in[j]) {
					defined = false
					break
				}
				sum += in[j]
			}
			if !defined {
				out[i] = math.NaN()
				continue
			}
			out[i] = sum / float64(period)
		}
		return out
	}
}

// ewma returns an exponentially weighted mean with smoothing factor alpha.
// The recurrence is seeded from the first defined input; leading undefined
// positions stay undefined, and an undefined input mid-series carries the
// previous smoothed value forward.
func ewma(alpha float64) frame.WindowFunc {
	return func(in []float64) []float64 {
		out := make([]float64, len(in))
		seeded := false
		s := 0.0
		for i, v := range in {
			if !seeded {
				if math.IsNaN(v) {
					out[i] = math.NaN()
					continue
				}
				s = v
				seeded = true
				out[i] = s
				continue
			}
			if !math.IsNaN(v) {
				s = alpha*v + (1-alpha)*s
			}
			out[i] = s
		}
		return out
	}
}

// mapVals lifts an element-wise function to a WindowFunc.
func mapVals(fn func(v float64) float64) frame.WindowFunc {
	return func(in []float64) []float64 {
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = fn(v)
		}
		return out
	}
}

// spanAlpha converts a span/period to a smoothing factor: 2/(period+1).
func spanAlpha(period int) float64 {
	return 2.0 / float64(period+1)
}
