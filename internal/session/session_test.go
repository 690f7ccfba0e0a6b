package session

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/resolve"
	"github.com/verte-zerg/casetrend/internal/snapshot"
	"github.com/verte-zerg/casetrend/internal/stats"
)

var today = time.Date(2020, 5, 5, 9, 0, 0, 0, time.UTC)

func row(line int, date, country string, confirmed int64) model.RawRow {
	return model.RawRow{
		Line:      line,
		Date:      date,
		Country:   country,
		Confirmed: strconv.FormatInt(confirmed, 10),
		Recovered: strconv.FormatInt(confirmed/10, 10),
		Deaths:    strconv.FormatInt(confirmed/100, 10),
	}
}

func scenario(t *testing.T, extra ...model.RawRow) *dataset.Dataset {
	t.Helper()
	raw := []model.RawRow{
		row(2, "2020-01-31", "US", 10),
		row(3, "2020-02-29", "US", 100),
		row(4, "2020-03-31", "US", 1000),
		row(5, "2020-04-30", "US", 10000),
		row(6, "2020-05-04", "US", 20000),
		row(7, "2020-01-31", "Italy", 2),
		row(8, "2020-02-29", "Italy", 20),
		row(9, "2020-03-31", "Italy", 200),
		row(10, "2020-04-30", "Italy", 2000),
		row(11, "2020-05-04", "Italy", 4000),
	}
	ds, err := dataset.Load(append(raw, extra...))
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	return ds
}

func TestQueryEndToEnd(t *testing.T) {
	s, err := New(scenario(t), today, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	report, err := s.Query("usa")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if report.Country != "US" {
		t.Fatalf("expected US, got %q", report.Country)
	}
	var labels []string
	var confirmed []int64
	for _, snap := range report.Snapshots {
		labels = append(labels, snap.Label)
		confirmed = append(confirmed, snap.Confirmed)
	}
	if diff := cmp.Diff([]string{"January", "February", "March", "April", "Latest"}, labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{10, 100, 1000, 10000, 20000}, confirmed); diff != "" {
		t.Fatalf("confirmed mismatch (-want +got):\n%s", diff)
	}
	if report.ElapsedDays != 103 {
		t.Fatalf("expected 103 elapsed days, got %d", report.ElapsedDays)
	}
	// 20000/103 = 194.17, 2000/103 = 19.42, 200/103 = 1.94
	want := model.Metrics{Confirmed: 194, Recovered: 19, Deaths: 2}
	if diff := cmp.Diff(want, report.DailyMean); diff != "" {
		t.Fatalf("daily mean mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryIsIdempotent(t *testing.T) {
	s, err := New(scenario(t), today, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	first, err := s.Query("Italy")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if _, err := s.Query("USA"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	second, err := s.Query("Italy")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated query differs (-first +second):\n%s", diff)
	}
}

func TestQueryRecoverableErrors(t *testing.T) {
	s, err := New(scenario(t), today, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, input := range []string{"", "Congo", "Wakanda"} {
		_, err := s.Query(input)
		if err == nil {
			t.Fatalf("Query(%q): expected error", input)
		}
		if !Recoverable(err) {
			t.Fatalf("Query(%q): expected recoverable error, got %v", input, err)
		}
	}
	var unknown *resolve.UnknownCountryError
	if _, err := s.Query("Wakanda"); !errors.As(err, &unknown) || unknown.Input != "Wakanda" {
		t.Fatalf("expected UnknownCountryError echoing input, got %v", err)
	}
	if Recoverable(errors.New("boom")) {
		t.Fatalf("arbitrary errors must not be recoverable")
	}
}

func TestQueryMissingFromLaterCheckpoint(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ds := scenario(t, row(12, "2020-01-31", "Spain", 1))
	s, err := New(ds, today, zap.New(core))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = s.Query("Spain")
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if Recoverable(err) {
		t.Fatalf("NotFoundError must not be recoverable")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
}

func TestLatestFallbackKeepsDenominator(t *testing.T) {
	ds, err := dataset.Load([]model.RawRow{
		row(2, "2020-01-31", "US", 10),
		row(3, "2020-02-29", "US", 100),
		row(4, "2020-03-31", "US", 1000),
		row(5, "2020-04-30", "US", 10000),
		row(6, "2020-05-03", "US", 20600),
	})
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	s, err := New(ds, today, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !s.LatestDate().Equal(time.Date(2020, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected fallback to 2020-05-03, got %v", s.LatestDate())
	}
	report, err := s.Query("US")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if report.ElapsedDays != stats.ElapsedDays(today) || report.DailyMean.Confirmed != 200 {
		t.Fatalf("expected today-1 denominator (103 days, mean 200), got %d days, mean %d", report.ElapsedDays, report.DailyMean.Confirmed)
	}
}

func TestNewFailures(t *testing.T) {
	if _, err := New(nil, today, nil); err == nil {
		t.Fatalf("expected error for nil dataset")
	}

	var noRecent *snapshot.NoRecentDataError
	if _, err := New(scenario(t), today.AddDate(0, 0, 10), nil); !errors.As(err, &noRecent) {
		t.Fatalf("expected NoRecentDataError, got %v", err)
	}

	ds, err := dataset.Load([]model.RawRow{row(2, "2020-05-04", "US", 1)})
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	var noData *snapshot.NoDataForDateError
	if _, err := New(ds, today, nil); !errors.As(err, &noData) {
		t.Fatalf("expected NoDataForDateError, got %v", err)
	}
}

func TestAccessors(t *testing.T) {
	s, err := New(scenario(t), today, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if diff := cmp.Diff([]string{"Italy", "US"}, s.Countries()); diff != "" {
		t.Fatalf("countries mismatch (-want +got):\n%s", diff)
	}
	if len(s.Series("US")) != 5 {
		t.Fatalf("expected 5 points for US")
	}
	if !s.Today().Equal(time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today truncated to date, got %v", s.Today())
	}
}
