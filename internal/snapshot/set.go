package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
)

// ErrNotFound matches every NotFoundError.
var ErrNotFound = errors.New("country not in checkpoint table")

// NotFoundError means a resolved name is missing from a checkpoint table.
// Names must be resolved first, so this signals an internal inconsistency.
type NotFoundError struct {
	Country    string
	Checkpoint Checkpoint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not in %s table (%s)", e.Country, e.Checkpoint.Label, e.Checkpoint.Date.Format(dataset.DateLayout))
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MetricsFor returns the metrics of an already-resolved country.
func MetricsFor(country string, t *Table) (model.Metrics, error) {
	if t == nil {
		return model.Metrics{}, &NotFoundError{Country: country}
	}
	m, ok := t.rows[country]
	if !ok {
		return model.Metrics{}, &NotFoundError{Country: country, Checkpoint: t.checkpoint}
	}
	return m, nil
}

// Set holds the four fixed tables and the latest table for a session.
type Set struct {
	fixed  []*Table
	latest *Table
}

// Extract computes every checkpoint table once.
func Extract(ds *dataset.Dataset, today time.Time) (*Set, error) {
	s := &Set{fixed: make([]*Table, 0, len(Fixed))}
	for _, cp := range Fixed {
		t, err := FixedCheckpoint(ds, cp)
		if err != nil {
			return nil, err
		}
		s.fixed = append(s.fixed, t)
	}
	latest, err := LatestCheckpoint(ds, today)
	if err != nil {
		return nil, err
	}
	s.latest = latest
	return s, nil
}

// Tables returns the fixed tables followed by the latest one.
func (s *Set) Tables() []*Table {
	out := make([]*Table, 0, len(s.fixed)+1)
	out = append(out, s.fixed...)
	return append(out, s.latest)
}

// Reference is the table names are validated against (January).
func (s *Set) Reference() *Table {
	return s.fixed[0]
}

// Latest returns the latest table.
func (s *Set) Latest() *Table {
	return s.latest
}
