// Package dataset holds the in-memory case time series indexed by date.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/casetrend/internal/model"
)

// DateLayout is the ISO-8601 calendar date format used by the source table.
const DateLayout = "2006-01-02"

var (
	// ErrEmptyDataset is returned when Load receives no rows at all.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrNoValidRows is returned when every input row was malformed.
	ErrNoValidRows = errors.New("dataset has no valid rows")
)

// MalformedRowError describes a source row that was skipped during Load.
type MalformedRowError struct {
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("line %d: %s %q: %s", e.Line, e.Field, e.Value, e.Reason)
}

// Dataset is an immutable, date-indexed collection of rows.
type Dataset struct {
	byDate  map[string][]model.Row
	dates   []time.Time
	skipped []*MalformedRowError
	size    int
}

// Load validates raw rows and builds a Dataset. Malformed rows are skipped
// and kept in Skipped; Load only fails when nothing usable remains.
func Load(raw []model.RawRow) (*Dataset, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyDataset
	}
	ds := &Dataset{byDate: map[string][]model.Row{}}
	seen := map[string]map[string]struct{}{}
	for _, r := range raw {
		row, err := parseRow(r)
		if err != nil {
			ds.skipped = append(ds.skipped, err)
			continue
		}
		key := row.Date.Format(DateLayout)
		countries, ok := seen[key]
		if !ok {
			countries = map[string]struct{}{}
			seen[key] = countries
			ds.dates = append(ds.dates, row.Date)
		}
		if _, dup := countries[row.Country]; dup {
			ds.skipped = append(ds.skipped, &MalformedRowError{
				Line:   r.Line,
				Field:  "Country",
				Value:  row.Country,
				Reason: "duplicate country for date " + key,
			})
			continue
		}
		countries[row.Country] = struct{}{}
		ds.byDate[key] = append(ds.byDate[key], row)
		ds.size++
	}
	if ds.size == 0 {
		return nil, fmt.Errorf("%w: %d rows skipped, first: %w", ErrNoValidRows, len(ds.skipped), ds.skipped[0])
	}
	sort.Slice(ds.dates, func(i, j int) bool {
		return ds.dates[i].Before(ds.dates[j])
	})
	return ds, nil
}

// RowsOnDate returns every row recorded for the calendar date of d.
// A date without rows yields an empty slice.
func (ds *Dataset) RowsOnDate(d time.Time) []model.Row {
	rows := ds.byDate[d.Format(DateLayout)]
	out := make([]model.Row, len(rows))
	copy(out, rows)
	return out
}

// Dates returns the distinct dates present, oldest first.
func (ds *Dataset) Dates() []time.Time {
	out := make([]time.Time, len(ds.dates))
	copy(out, ds.dates)
	return out
}

// Series returns the rows for one country ordered by date.
func (ds *Dataset) Series(country string) []model.Row {
	var out []model.Row
	for _, d := range ds.dates {
		for _, row := range ds.byDate[d.Format(DateLayout)] {
			if row.Country == country {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Len returns the number of valid rows.
func (ds *Dataset) Len() int {
	return ds.size
}

// Skipped returns the rows rejected during Load.
func (ds *Dataset) Skipped() []*MalformedRowError {
	out := make([]*MalformedRowError, len(ds.skipped))
	copy(out, ds.skipped)
	return out
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseRow(r model.RawRow) (model.Row, *MalformedRowError) {
	if r.Malformed != "" {
		return model.Row{}, &MalformedRowError{Line: r.Line, Field: "record", Reason: r.Malformed}
	}
	dateStr := strings.TrimSpace(r.Date)
	if dateStr == "" {
		return model.Row{}, &MalformedRowError{Line: r.Line, Field: "Date", Reason: "missing"}
	}
	date, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return model.Row{}, &MalformedRowError{Line: r.Line, Field: "Date", Value: dateStr, Reason: "not a YYYY-MM-DD date"}
	}
	country := strings.TrimSpace(r.Country)
	if country == "" {
		return model.Row{}, &MalformedRowError{Line: r.Line, Field: "Country", Reason: "missing"}
	}
	row := model.Row{Date: date, Country: country}
	fields := []struct {
		name   string
		value  string
		target *int64
	}{
		{"Confirmed", r.Confirmed, &row.Confirmed},
		{"Recovered", r.Recovered, &row.Recovered},
		{"Deaths", r.Deaths, &row.Deaths},
	}
	for _, f := range fields {
		n, perr := parseCount(f.name, f.value, r.Line)
		if perr != nil {
			return model.Row{}, perr
		}
		*f.target = n
	}
	return row, nil
}

func parseCount(field, value string, line int) (int64, *MalformedRowError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, &MalformedRowError{Line: line, Field: field, Reason: "missing"}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// Some exports write counts as floats ("12.0").
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, &MalformedRowError{Line: line, Field: field, Value: value, Reason: "not an integer"}
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, &MalformedRowError{Line: line, Field: field, Value: value, Reason: "negative count"}
	}
	return n, nil
}
