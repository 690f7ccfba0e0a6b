// Package stats contains case statistics calculations and reporting.
package stats

import (
	"strconv"

	"github.com/verte-zerg/casetrend/internal/model"
)

// Metric selects one of the three case counts.
type Metric int

// Metric values.
const (
	Confirmed Metric = iota
	Recovered
	Deaths
)

// Metrics lists every metric in display order.
var Metrics = []Metric{Confirmed, Recovered, Deaths}

func (m Metric) String() string {
	switch m {
	case Confirmed:
		return "Confirmed"
	case Recovered:
		return "Recovered"
	case Deaths:
		return "Deaths"
	default:
		return "Metric(" + strconv.Itoa(int(m)) + ")"
	}
}

// Value extracts the metric from a metrics triple.
func (m Metric) Value(v model.Metrics) int64 {
	switch m {
	case Confirmed:
		return v.Confirmed
	case Recovered:
		return v.Recovered
	case Deaths:
		return v.Deaths
	default:
		return 0
	}
}

// Cumulative returns one metric of a series as float values.
func Cumulative(rows []model.Row, m Metric) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = float64(m.Value(r.Metrics))
	}
	return out
}

// DailyNew converts a cumulative series into day-over-day deltas. Upstream
// corrections can make a delta negative; they are kept as is.
func DailyNew(rows []model.Row, m Metric) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		cur := float64(m.Value(r.Metrics))
		if i == 0 {
			out[i] = cur
			continue
		}
		out[i] = cur - float64(m.Value(rows[i-1].Metrics))
	}
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// FormatCount renders n with comma thousands separators.
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
