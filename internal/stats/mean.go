package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
)

// Epoch anchors the daily-mean denominator.
var Epoch = time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC)

// InvalidEpochError means today is too close to (or before) the epoch.
type InvalidEpochError struct {
	ElapsedDays int
}

func (e *InvalidEpochError) Error() string {
	return fmt.Sprintf("invalid elapsed days %d since %s: check the system clock", e.ElapsedDays, Epoch.Format(dataset.DateLayout))
}

// ElapsedDays counts whole days from Epoch to the day before today. The
// count does not depend on which day actually supplied the latest numbers.
func ElapsedDays(today time.Time) int {
	yesterday := dataset.Day(today).AddDate(0, 0, -1)
	return int(yesterday.Sub(Epoch).Hours() / 24)
}

// DailyMean divides each cumulative metric by ElapsedDays, rounding half to even.
func DailyMean(latest model.Metrics, today time.Time) (model.Metrics, error) {
	days := ElapsedDays(today)
	if days <= 0 {
		return model.Metrics{}, &InvalidEpochError{ElapsedDays: days}
	}
	return model.Metrics{
		Confirmed: perDay(latest.Confirmed, days),
		Recovered: perDay(latest.Recovered, days),
		Deaths:    perDay(latest.Deaths, days),
	}, nil
}

func perDay(total int64, days int) int64 {
	return int64(math.RoundToEven(float64(total) / float64(days)))
}
