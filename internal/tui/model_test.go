package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/resolve"
)

type fakeQuerier struct {
	reports map[string]*model.Report
	err     error
	queries []string
}

func (f *fakeQuerier) Query(raw string) (*model.Report, error) {
	f.queries = append(f.queries, raw)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.reports[raw]; ok {
		return r, nil
	}
	return nil, &resolve.UnknownCountryError{Input: raw}
}

func (f *fakeQuerier) Series(string) []model.Row { return nil }

func (f *fakeQuerier) Countries() []string {
	return []string{"Congo (Brazzaville)", "Congo (Kinshasa)", "US"}
}

func (f *fakeQuerier) Today() time.Time {
	return time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC)
}

func (f *fakeQuerier) LatestDate() time.Time {
	return time.Date(2020, 5, 4, 0, 0, 0, 0, time.UTC)
}

func usReport() *model.Report {
	return &model.Report{
		Country: "US",
		Snapshots: []model.Snapshot{
			{Label: "Latest", Date: time.Date(2020, 5, 4, 0, 0, 0, 0, time.UTC), Metrics: model.Metrics{Confirmed: 20000}},
		},
		DailyMean:   model.Metrics{Confirmed: 194},
		ElapsedDays: 103,
	}
}

func newSizedModel(t *testing.T, q Querier, logger *zap.Logger) *Model {
	t.Helper()
	m := NewModel(q, logger)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func enter(m *Model, text string) {
	m.input.SetValue(text)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestEnterRunsQuery(t *testing.T) {
	q := &fakeQuerier{reports: map[string]*model.Report{"usa": usReport()}}
	m := newSizedModel(t, q, nil)
	enter(m, "usa")
	if m.report == nil || m.report.Country != "US" {
		t.Fatalf("expected US report, got %+v", m.report)
	}
	if m.errMsg != "" {
		t.Fatalf("unexpected error %q", m.errMsg)
	}
	view := m.View()
	for _, want := range []string{"Checkpoint", "20,000", "103 days", "No time series"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestRecoverableErrorKeepsSession(t *testing.T) {
	q := &fakeQuerier{reports: map[string]*model.Report{"usa": usReport()}}
	m := newSizedModel(t, q, nil)
	enter(m, "Wakanda")
	if !strings.Contains(m.errMsg, "Wakanda") {
		t.Fatalf("expected error echoing input, got %q", m.errMsg)
	}
	enter(m, "usa")
	if m.errMsg != "" || m.report == nil {
		t.Fatalf("expected recovery after error, got err=%q report=%v", m.errMsg, m.report)
	}
	if len(q.queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(q.queries))
	}
}

func TestAmbiguousErrorListsOptions(t *testing.T) {
	q := &fakeQuerier{err: &resolve.AmbiguousNameError{Input: "Congo", Options: []string{"Congo (Brazzaville)", "Congo (Kinshasa)"}}}
	m := newSizedModel(t, q, nil)
	enter(m, "Congo")
	if !strings.Contains(m.errMsg, "Congo (Brazzaville)") || !strings.Contains(m.errMsg, "Congo (Kinshasa)") {
		t.Fatalf("expected both options, got %q", m.errMsg)
	}
}

func TestInternalErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	q := &fakeQuerier{err: errors.New("table mismatch")}
	m := newSizedModel(t, q, zap.New(core))
	enter(m, "US")
	if !strings.Contains(m.errMsg, "table mismatch") {
		t.Fatalf("expected error shown, got %q", m.errMsg)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
}

func TestEscClears(t *testing.T) {
	q := &fakeQuerier{}
	m := newSizedModel(t, q, nil)
	enter(m, "Wakanda")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.input.Value() != "" || m.errMsg != "" || m.report != nil {
		t.Fatalf("expected cleared state, got input=%q err=%q", m.input.Value(), m.errMsg)
	}
}

func TestTabTogglesCountries(t *testing.T) {
	m := newSizedModel(t, &fakeQuerier{}, nil)
	m.input.SetValue("congo")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if !m.showCountries {
		t.Fatalf("expected countries view")
	}
	view := m.View()
	if !strings.Contains(view, "3 countries, 2 matching") {
		t.Fatalf("expected country summary in view:\n%s", view)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.showCountries {
		t.Fatalf("expected countries view closed")
	}
}

func TestCtrlCQuits(t *testing.T) {
	m := NewModel(&fakeQuerier{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestHeaderShowsDates(t *testing.T) {
	m := newSizedModel(t, &fakeQuerier{}, nil)
	header := m.renderHeader()
	if !strings.Contains(header, "today 2020-05-05") || !strings.Contains(header, "latest data 2020-05-04") {
		t.Fatalf("unexpected header %q", header)
	}
}
