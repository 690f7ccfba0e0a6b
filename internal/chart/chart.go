// Package chart renders a country's time series as a PNG image.
package chart

import (
	"errors"
	"fmt"
	"io"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/stats"
)

// Default image size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// ErrTooFewPoints is returned when the series cannot form a line.
var ErrTooFewPoints = errors.New("at least two dates are needed to draw a chart")

var metricColors = map[stats.Metric]drawing.Color{
	stats.Confirmed: gochart.ColorBlue,
	stats.Recovered: gochart.ColorGreen,
	stats.Deaths:    gochart.ColorRed,
}

// WritePNG draws one line per metric over the rows' dates.
func WritePNG(w io.Writer, title string, rows []model.Row, width, height int) error {
	if len(rows) < 2 {
		return ErrTooFewPoints
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
	}
	maxY := 0.0
	series := make([]gochart.Series, 0, len(stats.Metrics))
	for _, m := range stats.Metrics {
		ys := stats.Cumulative(rows, m)
		for _, v := range ys {
			if v > maxY {
				maxY = v
			}
		}
		series = append(series, gochart.TimeSeries{
			Name:    m.String(),
			XValues: dates,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: metricColors[m],
				StrokeWidth: 2,
			},
		})
	}
	if maxY == 0 {
		maxY = 1
	}

	ch := gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{ValueFormatter: gochart.TimeDateValueFormatter},
		YAxis: gochart.YAxis{
			Name:           "Cases",
			Range:          &gochart.ContinuousRange{Min: 0, Max: maxY * 1.05},
			ValueFormatter: countFormatter,
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func countFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return stats.FormatCount(int64(f))
	}
	return ""
}
