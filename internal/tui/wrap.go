package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const itemGap = 2

type styledItem struct {
	s     string
	width int
}

// buildCountryItems highlights the countries containing filter.
func buildCountryItems(countries []string, filter string) []styledItem {
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]styledItem, 0, len(countries))
	for _, c := range countries {
		style := pendingStyle
		if filter != "" && strings.Contains(strings.ToLower(c), filter) {
			style = matchStyle
		}
		out = append(out, styledItem{
			s:     style.Render(c),
			width: runewidth.StringWidth(c),
		})
	}
	return out
}

func countMatches(countries []string, filter string) int {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return 0
	}
	n := 0
	for _, c := range countries {
		if strings.Contains(strings.ToLower(c), filter) {
			n++
		}
	}
	return n
}

// wrapItems lays items out left to right, breaking lines before an item
// would overflow width. An item wider than width gets a line of its own.
func wrapItems(items []styledItem, width int) string {
	var out strings.Builder
	lineWidth := 0
	for i, item := range items {
		if i > 0 {
			if width > 0 && lineWidth+itemGap+item.width > width {
				out.WriteRune('\n')
				lineWidth = 0
			} else {
				out.WriteString(strings.Repeat(" ", itemGap))
				lineWidth += itemGap
			}
		}
		out.WriteString(item.s)
		lineWidth += item.width
	}
	return out.String()
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
