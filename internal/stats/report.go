package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/model"
)

// RenderReport prints the checkpoint table and daily mean for one country.
func RenderReport(w io.Writer, report *model.Report) error {
	if report == nil {
		_, err := fmt.Fprintln(w, "No report.")
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", report.Country); err != nil {
		return err
	}
	headers := []string{"Checkpoint", "Date", "Confirmed", "Recovered", "Deaths"}
	rows := make([][]string, 0, len(report.Snapshots)+1)
	for _, s := range report.Snapshots {
		rows = append(rows, []string{
			s.Label,
			s.Date.Format(dataset.DateLayout),
			FormatCount(s.Confirmed),
			FormatCount(s.Recovered),
			FormatCount(s.Deaths),
		})
	}
	rows = append(rows, []string{
		"Daily mean",
		fmt.Sprintf("%d days", report.ElapsedDays),
		FormatCount(report.DailyMean.Confirmed),
		FormatCount(report.DailyMean.Recovered),
		FormatCount(report.DailyMean.Deaths),
	})
	rightAlign := map[int]bool{2: true, 3: true, 4: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCountrySeries plots the cumulative metrics and the smoothed daily new
// confirmed cases for one country.
func RenderCountrySeries(w io.Writer, country string, rows []model.Row, totalWidth, height int, forceColor bool) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "No time series for %s.\n", country)
		return err
	}
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	cumulative := make([]Series, 0, len(Metrics))
	for _, m := range Metrics {
		cumulative = append(cumulative, Series{Name: m.String(), Values: Cumulative(rows, m)})
	}
	if err := PlotTimeSeries(w, "Cumulative cases ("+country+")", dates, cumulative, width, height, forceColor); err != nil {
		return err
	}
	daily := []Series{{
		Name:   "New confirmed (7-day avg)",
		Values: MovingAverage(DailyNew(rows, Confirmed), 7),
	}}
	return PlotTimeSeries(w, "Daily new cases ("+country+")", dates, daily, width, height, forceColor)
}
