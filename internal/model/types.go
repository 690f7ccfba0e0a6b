// Package model defines shared data structures.
package model

import "time"

// RawRow is one decoded but unvalidated row of the source table.
type RawRow struct {
	Line      int
	Date      string
	Country   string
	Confirmed string
	Recovered string
	Deaths    string
	// Malformed is set when the line could not be split into the table's
	// columns. The other fields are empty then.
	Malformed string
}

// Metrics holds the three cumulative case counts.
type Metrics struct {
	Confirmed int64
	Recovered int64
	Deaths    int64
}

// Row is a validated time-series row for one country on one date.
type Row struct {
	Date    time.Time
	Country string
	Metrics
}

// Snapshot is one country's metrics at a checkpoint.
type Snapshot struct {
	Label string
	Date  time.Time
	Metrics
}

// Report is the answer to a single country query.
type Report struct {
	Country     string
	Snapshots   []Snapshot
	DailyMean   Metrics
	ElapsedDays int
}

// Latest returns the last snapshot of the report.
func (r *Report) Latest() Snapshot {
	if r == nil || len(r.Snapshots) == 0 {
		return Snapshot{}
	}
	return r.Snapshots[len(r.Snapshots)-1]
}

// SourceConfig defines where the dataset comes from.
type SourceConfig struct {
	URL     string
	Timeout time.Duration
	Offline bool
}

// Fetch describes one cached download of the source table.
type Fetch struct {
	ID        string
	Source    string
	FetchedAt time.Time
	RowCount  int
}
