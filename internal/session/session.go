// Package session composes the dataset, checkpoint tables and calculators
// into an immutable per-run query object.
package session

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/logging"
	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/resolve"
	"github.com/verte-zerg/casetrend/internal/snapshot"
	"github.com/verte-zerg/casetrend/internal/stats"
)

const maxLoggedSkips = 5

// Session answers country queries against data loaded once at startup.
// Nothing in it is mutated after New returns, so it may be shared.
type Session struct {
	ds        *dataset.Dataset
	snapshots *snapshot.Set
	today     time.Time
	logger    *zap.Logger
}

// New extracts every checkpoint table for today.
func New(ds *dataset.Dataset, today time.Time, logger *zap.Logger) (*Session, error) {
	if ds == nil {
		return nil, errors.New("session requires a dataset")
	}
	logger = logging.OrNop(logger)
	today = dataset.Day(today)

	logger.Info("dataset loaded",
		zap.Int("rows", ds.Len()),
		zap.Int("dates", len(ds.Dates())),
		zap.Int("skipped", len(ds.Skipped())))
	if skipped := ds.Skipped(); len(skipped) > 0 {
		logger.Warn("skipped malformed rows", zap.Int("count", len(skipped)))
		for i, s := range skipped {
			if i == maxLoggedSkips {
				break
			}
			logger.Debug("malformed row", zap.Int("line", s.Line), zap.String("field", s.Field), zap.String("reason", s.Reason))
		}
	}

	set, err := snapshot.Extract(ds, today)
	if err != nil {
		return nil, fmt.Errorf("failed to extract checkpoints: %w", err)
	}
	latest := set.Latest().Checkpoint().Date
	if !latest.Equal(today.AddDate(0, 0, -1)) {
		logger.Warn("latest data lags by two days", zap.String("date", latest.Format(dataset.DateLayout)))
	}
	logger.Info("session ready",
		zap.String("today", today.Format(dataset.DateLayout)),
		zap.String("latest", latest.Format(dataset.DateLayout)),
		zap.Int("countries", set.Reference().Len()))

	return &Session{ds: ds, snapshots: set, today: today, logger: logger}, nil
}

// Query resolves a country name and collects its checkpoint metrics and daily mean.
func (s *Session) Query(raw string) (*model.Report, error) {
	country, err := resolve.Resolve(raw, s.snapshots.Reference())
	if err != nil {
		return nil, err
	}
	tables := s.snapshots.Tables()
	report := &model.Report{
		Country:   country,
		Snapshots: make([]model.Snapshot, 0, len(tables)),
	}
	for _, t := range tables {
		m, err := snapshot.MetricsFor(country, t)
		if err != nil {
			s.logger.Error("resolved country missing from checkpoint",
				zap.String("country", country),
				zap.String("checkpoint", t.Checkpoint().Label),
				zap.Error(err))
			return nil, err
		}
		cp := t.Checkpoint()
		report.Snapshots = append(report.Snapshots, model.Snapshot{Label: cp.Label, Date: cp.Date, Metrics: m})
	}
	mean, err := stats.DailyMean(report.Latest().Metrics, s.today)
	if err != nil {
		return nil, err
	}
	report.DailyMean = mean
	report.ElapsedDays = stats.ElapsedDays(s.today)
	return report, nil
}

// Countries lists the canonical identifiers accepted by Query.
func (s *Session) Countries() []string {
	return s.snapshots.Reference().Countries()
}

// Series returns the full time series for a canonical country.
func (s *Session) Series(country string) []model.Row {
	return s.ds.Series(country)
}

// Today returns the session's reference date.
func (s *Session) Today() time.Time {
	return s.today
}

// LatestDate returns the date that supplied the latest checkpoint.
func (s *Session) LatestDate() time.Time {
	return s.snapshots.Latest().Checkpoint().Date
}

// Recoverable reports whether err only needs a new country name.
func Recoverable(err error) bool {
	var amb *resolve.AmbiguousNameError
	var unknown *resolve.UnknownCountryError
	return errors.Is(err, resolve.ErrEmptyName) || errors.As(err, &amb) || errors.As(err, &unknown)
}
