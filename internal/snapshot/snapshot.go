// Package snapshot projects the dataset onto fixed checkpoint dates.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
)

// LatestLabel names the dynamically resolved checkpoint.
const LatestLabel = "Latest"

// Checkpoint is a labelled calendar date.
type Checkpoint struct {
	Label string
	Date  time.Time
}

// Fixed are the month-end checkpoints, in order.
var Fixed = []Checkpoint{
	{Label: "January", Date: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)},
	{Label: "February", Date: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)},
	{Label: "March", Date: time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC)},
	{Label: "April", Date: time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC)},
}

// NoDataForDateError means a fixed checkpoint date has no rows at all.
type NoDataForDateError struct {
	Checkpoint Checkpoint
}

func (e *NoDataForDateError) Error() string {
	return fmt.Sprintf("no data for %s checkpoint (%s)", e.Checkpoint.Label, e.Checkpoint.Date.Format(dataset.DateLayout))
}

// NoRecentDataError means neither of the two most recent days has rows.
type NoRecentDataError struct {
	Tried []time.Time
}

func (e *NoRecentDataError) Error() string {
	msg := "no recent data published"
	for i, d := range e.Tried {
		if i == 0 {
			msg += " (tried "
		} else {
			msg += ", "
		}
		msg += d.Format(dataset.DateLayout)
	}
	if len(e.Tried) > 0 {
		msg += ")"
	}
	return msg
}

// Table maps canonical country identifiers to metrics for one checkpoint.
type Table struct {
	checkpoint Checkpoint
	rows       map[string]model.Metrics
}

// NewTable indexes rows by country.
func NewTable(cp Checkpoint, rows []model.Row) *Table {
	t := &Table{checkpoint: cp, rows: make(map[string]model.Metrics, len(rows))}
	for _, r := range rows {
		t.rows[r.Country] = r.Metrics
	}
	return t
}

// Checkpoint returns the checkpoint the table was built for.
func (t *Table) Checkpoint() Checkpoint {
	return t.checkpoint
}

// Has reports whether the country is present. It implements resolve.Lookup.
func (t *Table) Has(country string) bool {
	if t == nil {
		return false
	}
	_, ok := t.rows[country]
	return ok
}

// Len returns the number of countries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Countries returns the country identifiers sorted alphabetically.
func (t *Table) Countries() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.rows))
	for c := range t.rows {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FixedCheckpoint builds the table for a fixed checkpoint date.
func FixedCheckpoint(ds *dataset.Dataset, cp Checkpoint) (*Table, error) {
	rows := ds.RowsOnDate(cp.Date)
	if len(rows) == 0 {
		return nil, &NoDataForDateError{Checkpoint: cp}
	}
	return NewTable(cp, rows), nil
}

// LatestCheckpoint builds the table for the most recent published day. It
// tries the day before today, then the day before that, and stops there.
func LatestCheckpoint(ds *dataset.Dataset, today time.Time) (*Table, error) {
	day := dataset.Day(today)
	yesterday := day.AddDate(0, 0, -1)
	if rows := ds.RowsOnDate(yesterday); len(rows) > 0 {
		return NewTable(Checkpoint{Label: LatestLabel, Date: yesterday}, rows), nil
	}
	twoDaysAgo := day.AddDate(0, 0, -2)
	if rows := ds.RowsOnDate(twoDaysAgo); len(rows) > 0 {
		return NewTable(Checkpoint{Label: LatestLabel, Date: twoDaysAgo}, rows), nil
	}
	return nil, &NoRecentDataError{Tried: []time.Time{yesterday, twoDaysAgo}}
}
