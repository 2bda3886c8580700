package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/output"
)

const (
	sideBySideWidth = 110
	barWidth        = 10
	valueWidth      = 24
)

func categoryColumns() []table.Column {
	return []table.Column{
		{Title: "Grupo", Width: 24},
		{Title: "Tent.", Width: 7},
		{Title: "Acerto", Width: 7},
		{Title: "", Width: barWidth},
	}
}

func recentColumns() []table.Column {
	return []table.Column{
		{Title: "Quando", Width: 16},
		{Title: "Questão", Width: 8},
		{Title: "", Width: 2},
		{Title: "Resposta", Width: valueWidth},
	}
}

type tallyRow struct {
	label string
	t     models.Tally
}

// categoryRows lists categories then difficulties, each by attempts desc.
func categoryRows(s models.Stats) []table.Row {
	var rows []table.Row
	for _, group := range []struct {
		prefix  string
		tallies map[string]models.Tally
	}{{"cat", s.ByCategory}, {"dif", s.ByDifficulty}} {
		sorted := make([]tallyRow, 0, len(group.tallies))
		for k, t := range group.tallies {
			if t.Attempts > 0 {
				sorted = append(sorted, tallyRow{k, t})
			}
		}
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].t.Attempts != sorted[j].t.Attempts {
				return sorted[i].t.Attempts > sorted[j].t.Attempts
			}
			return sorted[i].label < sorted[j].label
		})
		for _, r := range sorted {
			ratio := float64(r.t.Correct) / float64(r.t.Attempts)
			rows = append(rows, table.Row{
				group.prefix + " · " + r.label,
				humanize.Comma(int64(r.t.Attempts)),
				output.FormatPercent(ratio),
				bar(ratio, barWidth),
			})
		}
	}
	return rows
}

func recentRows(attempts []models.Attempt, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(attempts))
	for _, a := range attempts {
		when := humanize.RelTime(time.UnixMilli(a.At), now, "ago", "from now")
		mark := "✗"
		if a.Correct {
			mark = "✓"
		}
		rows = append(rows, table.Row{when, a.QuestionID, mark, ansi.Truncate(a.Value.String(), valueWidth, "…")})
	}
	return rows
}

func bar(ratio float64, width int) string {
	filled := int(ratio*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// View implements tea.Model
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderTotals(),
		m.renderPanels(),
		m.renderSyncLine(),
		m.help.View(m.keys),
	}
	out := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.Width <= 0 {
		return out
	}
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = ansi.Truncate(l, m.Width, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHeader() string {
	h := titleStyle.Render("pratica")
	if m.version != "" {
		h += " " + subtleStyle.Render(m.version)
	}
	if !m.LastRefresh.IsZero() {
		h += "  " + subtleStyle.Render("updated "+m.LastRefresh.Format("15:04:05"))
	}
	return h
}

func (m Model) renderTotals() string {
	t := m.Stats.Totals
	acc := accuracyStyle(t.Accuracy).Render(output.FormatAccuracy(t.Correct, t.Attempts))
	if t.Attempts == 0 {
		acc = subtleStyle.Render("-")
	}
	parts := []string{
		statLabel.Render("Tentativas ") + statValue.Render(humanize.Comma(int64(t.Attempts))),
		statLabel.Render("Acerto ") + acc,
		statLabel.Render("Questões ") + statValue.Render(humanize.Comma(int64(t.UniqueQuestionCount))),
	}
	if t.LastAttemptAt != nil {
		parts = append(parts, statLabel.Render("Última ")+output.FormatMillisAgo(*t.LastAttemptAt))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderPanels() string {
	left := m.panel("DESEMPENHO", m.categories.View(), m.ActivePanel == PanelCategories)
	right := m.panel("RECENTES", m.recent.View(), m.ActivePanel == PanelRecent)
	if m.Width >= sideBySideWidth {
		return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}
	return lipgloss.JoinVertical(lipgloss.Left, left, right)
}

func (m Model) panel(title, body string, active bool) string {
	style := panelStyle
	if active {
		style = activePanelStyle
	}
	return style.Render(panelTitleStyle.Render(title) + "\n" + body)
}

func (m Model) renderSyncLine() string {
	switch {
	case m.userID == "":
		return subtleStyle.Render("sync: not logged in")
	case m.Syncing:
		return m.spinner.View() + " syncing…"
	case m.LastSync != nil:
		if m.LastSync.OK {
			return okStyle.Render("sync ok") + "  " + subtleStyle.Render(m.LastSync.Message)
		}
		return errStyle.Render(m.LastSync.Message)
	case m.Meta.LastSyncAt > 0:
		status := okStyle.Render("ok")
		if !m.Meta.LastSyncOK {
			status = errStyle.Render("failed")
		}
		return fmt.Sprintf("last sync %s (%s)", output.FormatMillisAgo(m.Meta.LastSyncAt), status)
	}
	return subtleStyle.Render("sync: never synced")
}
