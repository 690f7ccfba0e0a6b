// Package tui provides the Bubble Tea country query interface.
package tui

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/casetrend/internal/dataset"
	"github.com/verte-zerg/casetrend/internal/logging"
	"github.com/verte-zerg/casetrend/internal/model"
	"github.com/verte-zerg/casetrend/internal/session"
	"github.com/verte-zerg/casetrend/internal/stats"
)

const (
	plotHeight   = 8
	defaultWidth = 80
)

// Querier is the read-only view of a session used by the UI.
type Querier interface {
	Query(raw string) (*model.Report, error)
	Series(country string) []model.Row
	Countries() []string
	Today() time.Time
	LatestDate() time.Time
}

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	matchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
)

// Model implements the Bubble Tea query UI.
type Model struct {
	q      Querier
	logger *zap.Logger

	input textinput.Model
	body  viewport.Model

	width  int
	height int

	report        *model.Report
	errMsg        string
	showCountries bool
}

// NewModel constructs a query UI over q.
func NewModel(q Querier, logger *zap.Logger) *Model {
	input := textinput.New()
	input.Prompt = promptStyle.Render("Country: ")
	input.Placeholder = "e.g. USA, Italy, Korea, South"
	input.CharLimit = 64
	input.Cursor.SetMode(cursor.CursorBlink)
	input.Focus()

	m := &Model{
		q:      q,
		logger: logging.OrNop(logger),
		input:  input,
		body:   viewport.New(0, 0),
	}
	m.renderBody()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderBody()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			m.runQuery()
			return m, nil
		case tea.KeyEsc:
			m.input.Reset()
			m.report = nil
			m.errMsg = ""
			m.showCountries = false
			m.renderBody()
			return m, nil
		case tea.KeyTab:
			m.showCountries = !m.showCountries
			m.renderBody()
			return m, nil
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.body, cmd = m.body.Update(msg)
			return m, cmd
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.showCountries && m.input.Value() != before {
			m.renderBody()
		}
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return m.renderHeader() + "\n" + m.input.View() + "\n" + m.body.View() + "\n" + m.renderFooter()
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader()+"\n"+m.input.View(), m.width, headerHeight)
	body := fitLines(m.body.View(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 2
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.body.Width = m.width
	m.body.Height = bodyHeight
	m.input.Width = maxInt(10, m.width-lipgloss.Width(m.input.Prompt)-2)
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

func (m *Model) runQuery() {
	raw := m.input.Value()
	report, err := m.q.Query(raw)
	if err != nil {
		m.report = nil
		if session.Recoverable(err) {
			m.errMsg = err.Error()
		} else {
			m.logger.Error("query failed", zap.String("input", raw), zap.Error(err))
			m.errMsg = fmt.Sprintf("query failed: %v", err)
		}
		m.updateLayout()
		m.renderBody()
		return
	}
	m.errMsg = ""
	m.report = report
	m.showCountries = false
	m.updateLayout()
	m.renderBody()
}

func (m *Model) renderBody() {
	width := m.contentWidth()
	switch {
	case m.showCountries:
		countries := m.q.Countries()
		items := buildCountryItems(countries, m.input.Value())
		summary := fmt.Sprintf("%d countries", len(countries))
		if n := countMatches(countries, m.input.Value()); n > 0 {
			summary = fmt.Sprintf("%s, %d matching", summary, n)
		}
		m.body.SetContent(headerStyle.Render(summary) + "\n\n" + wrapItems(items, width))
	case m.report != nil:
		m.body.SetContent(renderReport(m.report, m.q.Series(m.report.Country), width))
	default:
		m.body.SetContent(headerStyle.Render("Type a country and press enter. Tab lists the known countries."))
	}
	m.body.GotoTop()
}

func renderReport(report *model.Report, series []model.Row, width int) string {
	var buf bytes.Buffer
	if err := stats.RenderReport(&buf, report); err != nil {
		return errorStyle.Render(err.Error())
	}
	buf.WriteString("\n")
	if err := stats.RenderCountrySeries(&buf, report.Country, series, width, plotHeight, true); err != nil {
		return errorStyle.Render(err.Error())
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Model) renderHeader() string {
	summary := fmt.Sprintf("casetrend  today %s  latest data %s  %d countries",
		m.q.Today().Format(dataset.DateLayout),
		m.q.LatestDate().Format(dataset.DateLayout),
		len(m.q.Countries()))
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := footerStyle.Render("Query: enter  Clear: esc  Countries: tab  Scroll: up/down/pgup/pgdn  Quit: ctrl+c")
	if m.errMsg == "" {
		return help
	}
	return help + "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
