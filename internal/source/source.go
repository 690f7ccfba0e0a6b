// Package source downloads and decodes the country-aggregated case CSV.
package source

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/verte-zerg/casetrend/internal/model"
)

// DefaultURL is the upstream countries-aggregated CSV.
const DefaultURL = "https://raw.githubusercontent.com/datasets/covid-19/master/data/countries-aggregated.csv"

// DefaultTimeout bounds a fetch when no client timeout is configured.
const DefaultTimeout = 30 * time.Second

// Columns lists the CSV columns read, in RawRow field order.
var Columns = []string{"Date", "Country", "Confirmed", "Recovered", "Deaths"}

// ErrNoRows is returned when the CSV has a header but no data.
var ErrNoRows = errors.New("csv has no data rows")

// Fetch downloads url and decodes it into raw rows.
func Fetch(ctx context.Context, client *http.Client, url string) ([]model.RawRow, error) {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "casetrend")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected source status: %s", resp.Status)
	}
	rows, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return rows, nil
}

// Decode reads the required columns from a headed CSV. Extra columns are
// ignored and column order does not matter. Values are kept as text.
// Lines whose field count differs from the header are returned with
// Malformed set instead of failing the decode.
func Decode(r io.Reader) ([]model.RawRow, error) {
	clean, lines, ragged, err := splitRagged(r)
	if err != nil {
		return nil, err
	}

	types := make(map[string]arrow.DataType, len(Columns))
	for _, c := range Columns {
		types[c] = arrow.BinaryTypes.String
	}
	reader := csv.NewInferringReader(clean,
		csv.WithHeader(true),
		csv.WithAllocator(memory.DefaultAllocator),
		csv.WithIncludeColumns(Columns),
		csv.WithColumnTypes(types),
	)
	defer reader.Release()

	rows := make([]model.RawRow, 0, len(lines)+len(ragged))
	next := 0
	for reader.Next() {
		rec := reader.Record()
		cols := make([]*array.String, len(Columns))
		for i := range Columns {
			col, ok := rec.Column(i).(*array.String)
			if !ok {
				return nil, fmt.Errorf("column %s: unexpected type %s", Columns[i], rec.Column(i).DataType())
			}
			cols[i] = col
		}
		for j := 0; j < int(rec.NumRows()); j++ {
			if next >= len(lines) {
				return nil, errors.New("csv reader returned more records than were read")
			}
			line := lines[next]
			next++
			for len(ragged) > 0 && ragged[0].Line < line {
				rows = append(rows, ragged[0])
				ragged = ragged[1:]
			}
			// Values alias record buffers released by the next call to Next.
			rows = append(rows, model.RawRow{
				Line:      line,
				Date:      strings.Clone(cols[0].Value(j)),
				Country:   strings.Clone(cols[1].Value(j)),
				Confirmed: strings.Clone(cols[2].Value(j)),
				Recovered: strings.Clone(cols[3].Value(j)),
				Deaths:    strings.Clone(cols[4].Value(j)),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	rows = append(rows, ragged...)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// splitRagged copies the header and every record with the header's field
// count into a new CSV stream, recording each kept record's source line.
// Records with another field count come back as malformed rows.
func splitRagged(r io.Reader) (io.Reader, []int, []model.RawRow, error) {
	in := stdcsv.NewReader(r)
	in.FieldsPerRecord = -1
	in.ReuseRecord = true

	header, err := in.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, fmt.Errorf("%w: missing header", ErrNoRows)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	want := len(header)

	var buf bytes.Buffer
	out := stdcsv.NewWriter(&buf)
	if err := out.Write(header); err != nil {
		return nil, nil, nil, err
	}
	var lines []int
	var ragged []model.RawRow
	for {
		rec, err := in.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		line, _ := in.FieldPos(0)
		if len(rec) != want {
			ragged = append(ragged, model.RawRow{
				Line:      line,
				Malformed: fmt.Sprintf("wrong number of fields: got %d, want %d", len(rec), want),
			})
			continue
		}
		if err := out.Write(rec); err != nil {
			return nil, nil, nil, err
		}
		lines = append(lines, line)
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return nil, nil, nil, err
	}
	return &buf, lines, ragged, nil
}
