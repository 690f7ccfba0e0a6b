package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/casetrend/internal/model"
)

const sample = `Date,Country,Confirmed,Recovered,Deaths
2020-01-22,Afghanistan,0,0,0
2020-01-22,US,1,0,0
`

func TestDecode(t *testing.T) {
	rows, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []model.RawRow{
		{Line: 2, Date: "2020-01-22", Country: "Afghanistan", Confirmed: "0", Recovered: "0", Deaths: "0"},
		{Line: 3, Date: "2020-01-22", Country: "US", Confirmed: "1", Recovered: "0", Deaths: "0"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeReorderedAndExtraColumns(t *testing.T) {
	in := "Deaths,Region,Country,Recovered,Date,Confirmed\n" +
		"3,Americas,US,2,2020-05-04,x\n"
	rows, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []model.RawRow{{Line: 2, Date: "2020-05-04", Country: "US", Confirmed: "x", Recovered: "2", Deaths: "3"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeQuotedCountry(t *testing.T) {
	in := "Date,Country,Confirmed,Recovered,Deaths\n" +
		"2020-05-04,\"Korea, South\",10,5,1\n"
	rows, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Country != "Korea, South" {
		t.Fatalf("expected quoted country, got %+v", rows)
	}
}

func TestDecodeKeepsGoingPastRaggedLines(t *testing.T) {
	in := "Date,Country,Confirmed,Recovered,Deaths\n" +
		"2020-01-31,US,10,1,0\n" +
		"2020-01-31,Italy,2,0,0,extra\n" +
		"2020-01-31,Spain\n" +
		"2020-01-31,\"Korea, South\",4,0,0\n"
	rows, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []model.RawRow{
		{Line: 2, Date: "2020-01-31", Country: "US", Confirmed: "10", Recovered: "1", Deaths: "0"},
		{Line: 3, Malformed: "wrong number of fields: got 6, want 5"},
		{Line: 4, Malformed: "wrong number of fields: got 2, want 5"},
		{Line: 5, Date: "2020-01-31", Country: "Korea, South", Confirmed: "4", Recovered: "0", Deaths: "0"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOnlyRaggedLines(t *testing.T) {
	in := "Date,Country,Confirmed,Recovered,Deaths\n2020-01-31,US\n"
	rows, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Line != 2 || rows[0].Malformed == "" {
		t.Fatalf("expected one malformed row on line 2, got %+v", rows)
	}
}

func TestDecodeMissingColumn(t *testing.T) {
	in := "Date,Country,Confirmed,Deaths\n2020-05-04,US,1,0\n"
	_, err := Decode(strings.NewReader(in))
	if !errors.Is(err, csv.ErrMismatchFields) {
		t.Fatalf("expected ErrMismatchFields, got %v", err)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
	_, err := Decode(strings.NewReader("Date,Country,Confirmed,Recovered,Deaths\n"))
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	rows, err := Fetch(context.Background(), srv.Client(), srv.URL+"/data.csv")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL+"/missing.csv"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestFetchHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fetch(ctx, srv.Client(), srv.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
