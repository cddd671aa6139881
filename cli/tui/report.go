package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/RAGGA-TIME/lifekline/report"
)

// ReportData is the payload of the report view.
type ReportData struct {
	ReportID string
	Provider string
	Model    string
	Stage    string
	Outcome  string
	Report   *report.Report
}

// ReportModel is a scrollable view of one report.
type ReportModel struct {
	data     *ReportData
	viewport viewport.Model
	help     help.Model
	ready    bool
	quitting bool
}

// NewReportModel creates a report view.
func NewReportModel(data *ReportData) ReportModel {
	return ReportModel{data: data, help: help.New()}
}

// Init implements tea.Model.
func (m ReportModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 3 // help line
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.viewport.SetContent(RenderReport(m.data, msg.Width))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ReportModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	line := fmt.Sprintf("%s • %3.f%%", m.help.View(keys), m.viewport.ScrollPercent()*100)
	return m.viewport.View() + "\n" + HelpStyle.Render(line)
}

// RenderReport lays out a report for a terminal of the given width.
func RenderReport(data *ReportData, width int) string {
	if data == nil || data.Report == nil {
		return ErrorStyle.Render("no report")
	}
	rep := data.Report

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Life K-Line Report"))
	b.WriteString("\n")

	rows := [][2]string{
		{"Report ID", data.ReportID},
		{"Provider", data.Provider},
		{"Model", data.Model},
		{"Stage", data.Stage},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}
	if data.Outcome != "" {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Outcome:"), OutcomeStyle(data.Outcome).Render(data.Outcome))
	}
	if len(rep.Analysis.Bazi) > 0 {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Bazi:"), ValueStyle.Render(strings.Join(rep.Analysis.Bazi, " ")))
	}

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Chart (%d years)", len(rep.ChartData))))
	b.WriteString("\n")
	chartWidth := width - 4
	if chartWidth < 10 {
		chartWidth = 10
	}
	b.WriteString(ChartStyle.Render(Sparkline(closes(rep.ChartData), chartWidth)))
	b.WriteString("\n")
	if hi, lo, ok := extremes(rep.ChartData); ok {
		fmt.Fprintf(&b, "%s %d (age %d, %s) %.0f\n", LabelStyle.Render("Peak:"), hi.Year, hi.Age, hi.GanZhi, hi.High)
		fmt.Fprintf(&b, "%s %d (age %d, %s) %.0f\n", LabelStyle.Render("Trough:"), lo.Year, lo.Age, lo.GanZhi, lo.Low)
	}

	for _, s := range rep.Analysis.Sections() {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s\n",
			TitleStyle.UnsetMarginBottom().Render(s.Name),
			ScoreStyle(s.Score).Render(fmt.Sprintf("%.1f", s.Score)))
		b.WriteString(ValueStyle.Width(max(width-2, 20)).Render(s.Text))
		b.WriteString("\n")
	}
	if rep.Analysis.CryptoYear != "" || rep.Analysis.CryptoStyle != "" {
		fmt.Fprintf(&b, "%s %s / %s\n", LabelStyle.Render("Crypto:"), rep.Analysis.CryptoYear, rep.Analysis.CryptoStyle)
	}
	return b.String()
}

// sparkBlocks are the levels of a sparkline, lowest first.
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws values as one row of block characters, sampling down to
// width when there are more values than columns.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		sampled := make([]float64, width)
		for i := range sampled {
			sampled[i] = values[i*len(values)/width]
		}
		values = sampled
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(values))
	for i, v := range values {
		level := len(sparkBlocks) - 1
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		out[i] = sparkBlocks[level]
	}
	return string(out)
}

func closes(points []report.KLinePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// extremes returns the points with the highest high and the lowest low.
func extremes(points []report.KLinePoint) (hi, lo report.KLinePoint, ok bool) {
	if len(points) == 0 {
		return hi, lo, false
	}
	hi, lo = points[0], points[0]
	for _, p := range points[1:] {
		if p.High > hi.High {
			hi = p
		}
		if p.Low < lo.Low {
			lo = p
		}
	}
	return hi, lo, true
}

// RunReportTUI shows a report until the user quits.
func RunReportTUI(data *ReportData) error {
	p := tea.NewProgram(NewReportModel(data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
