package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/scheduler"
)

// View renders the active screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.mode == viewDetail {
		return m.renderDetail()
	}
	return m.renderList()
}

// ─────────────────────────────────────────────────────────────────────────────
// List view
// ─────────────────────────────────────────────────────────────────────────────

func (m Model) renderList() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(labelStyle.Render("no targets configured"))
	}
	sparkWidth := m.sparkWidth()
	for i, row := range m.rows {
		b.WriteString(m.renderRow(row, sparkWidth, i == m.selected))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q quit | r poll now | ↑↓ select | enter detail | ? help"))
	return b.String()
}

func (m Model) renderHeader() string {
	up := 0
	failed := 0
	for _, row := range m.rows {
		if row.OperStatus == models.OperUp {
			up++
		}
		if row.Phase == scheduler.PhaseFailed {
			failed++
		}
	}

	stats := fmt.Sprintf(" | %d interfaces | %d up", len(m.rows), up)
	if failed > 0 {
		stats += errorStyle.Render(fmt.Sprintf(" | %d failing", failed))
	}
	if !m.lastUpdate.IsZero() {
		stats += labelStyle.Render(fmt.Sprintf(" | updated %s", m.lastUpdate.Format("15:04:05")))
	}
	return headerStyle.Render(titleStyle.Render("trafikwatch") + stats)
}

func (m Model) renderRow(row scheduler.TargetStatus, sparkWidth int, selected bool) string {
	nameStyle := valueStyle
	if selected {
		nameStyle = selectedRowStyle
	}

	cursor := "  "
	if selected {
		cursor = "› "
	}

	name := fmt.Sprintf("%-28s", truncate(rowName(row), 28))
	rates := fmt.Sprintf("↓%-12s ↑%-12s",
		models.FormatRate(row.Last.InBps), models.FormatRate(row.Last.OutBps))
	spark := renderSparkline(inHistory(row.History), sparkWidth, colorInGraph)

	line := cursor + m.statusGlyph(row) + " " + nameStyle.Render(name) + " " +
		valueStyle.Render(rates) + " " + spark

	if row.Phase == scheduler.PhaseFailed {
		line += " " + errorStyle.Render("! "+truncate(row.LastError, 40))
	}
	return line
}

func (m Model) statusGlyph(row scheduler.TargetStatus) string {
	switch {
	case row.Phase == scheduler.PhaseFailed:
		return errorStyle.Render(glyphFailed)
	case row.Phase == scheduler.PhasePolling:
		return labelStyle.Render(glyphPolling)
	case row.OperStatus == models.OperUp:
		return lipgloss.NewStyle().Foreground(colorHealthy).Render(glyphUp)
	default:
		return labelStyle.Render(glyphDown)
	}
}

func (m Model) sparkWidth() int {
	if m.width <= 0 {
		return 20
	}
	w := m.width - 66
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}

// ─────────────────────────────────────────────────────────────────────────────
// Detail view
// ─────────────────────────────────────────────────────────────────────────────

func (m Model) renderDetail() string {
	if m.selected >= len(m.rows) {
		return m.renderList()
	}
	row := m.rows[m.selected]

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	title := titleStyle.Render(rowName(row))
	if row.Alias != "" {
		title += labelStyle.Render("  " + row.Alias)
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	width := m.width - 8
	if width < 30 {
		width = 30
	}
	if width > 100 {
		width = 100
	}

	in := inHistory(row.History)
	out := outHistory(row.History)

	var detail strings.Builder
	detail.WriteString(labelStyle.Render("in  ") +
		valueStyle.Render(fmt.Sprintf("%-12s", models.FormatRate(row.Last.InBps))) + "\n")
	detail.WriteString(renderSparkline(in, width, colorInGraph) + "\n\n")
	detail.WriteString(labelStyle.Render("out ") +
		valueStyle.Render(fmt.Sprintf("%-12s", models.FormatRate(row.Last.OutBps))) + "\n")
	detail.WriteString(renderSparkline(out, width, colorOutGraph) + "\n\n")

	if row.SpeedBps > 0 {
		pct := models.Utilization(row.Last, row.SpeedBps)
		detail.WriteString(labelStyle.Render("util ") + renderGauge(width-5, pct) +
			valueStyle.Render(fmt.Sprintf(" %.1f%%", pct)) + "\n")
	}

	detail.WriteString("\n")
	detail.WriteString(labelStyle.Render("host        ") + valueStyle.Render(fmt.Sprintf("%s:%d", row.Target.Host, row.Target.Port)) + "\n")
	detail.WriteString(labelStyle.Render("ifindex     ") + valueStyle.Render(fmt.Sprintf("%d", row.Target.IfIndex)) + "\n")
	detail.WriteString(labelStyle.Render("oper status ") + valueStyle.Render(models.OperStatusText(row.OperStatus)) + "\n")
	detail.WriteString(labelStyle.Render("samples     ") + valueStyle.Render(fmt.Sprintf("%d", len(row.History))) + "\n")
	if row.MissedPolls > 0 {
		detail.WriteString(labelStyle.Render("missed      ") + valueStyle.Render(fmt.Sprintf("%d", row.MissedPolls)) + "\n")
	}
	if row.LastError != "" {
		detail.WriteString(errorStyle.Render("error       "+row.LastError) + "\n")
	}

	b.WriteString(detailBoxStyle.Render(detail.String()))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("esc back | r poll this target | q quit"))
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Help view
// ─────────────────────────────────────────────────────────────────────────────

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("trafikwatch keys"))
	b.WriteString("\n\n")
	for _, line := range []string{
		"q, ctrl+c   quit",
		"r           poll now (all targets, or selected in detail view)",
		"↑/k ↓/j     move selection",
		"enter       open detail view",
		"esc         back / close help",
		"?           toggle this help",
	} {
		b.WriteString("  " + labelStyle.Render(line) + "\n")
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// rowName is "label ifname", or "host ifname" when no label is set.
func rowName(row scheduler.TargetStatus) string {
	return row.Target.DisplayName() + " " + row.Target.IfName
}

// inHistory projects the in-direction rates; invalid samples plot as zero so
// anomalies read as gaps.
func inHistory(hist []models.RateSample) []float64 {
	out := make([]float64, len(hist))
	for i, s := range hist {
		if s.Valid {
			out[i] = s.InBps
		}
	}
	return out
}

func outHistory(hist []models.RateSample) []float64 {
	out := make([]float64, len(hist))
	for i, s := range hist {
		if s.Valid {
			out[i] = s.OutBps
		}
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
