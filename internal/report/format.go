package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/workspace"
)

const barWidth = 30

var (
	accent = lipgloss.Color("6")
	warn   = lipgloss.Color("3")
)

// Format renders the status panel, timing and warnings for s
func Format(w io.Writer, s Summary, theme *display.Theme) {
	r := lipgloss.NewRenderer(w)
	label := r.NewStyle().Bold(true).Foreground(accent).Width(12).Align(lipgloss.Right)
	row := func(k, v string) string {
		return label.Render(k) + "  " + v
	}

	lines := []string{
		row("Project:", s.Project),
	}
	if s.Path != "" {
		lines = append(lines, row("Path:", s.Path))
	}
	lines = append(lines,
		row("Phase:", phaseStyle(r, s.Phase).Render(string(s.Phase))),
		"",
		row("Target:", strconv.Itoa(s.Target)),
		row("In Pool:", strconv.Itoa(s.PoolSize)),
		row("Analyzed:", strconv.Itoa(s.Analyzed)),
		row("Presented:", strconv.Itoa(s.Presented)),
		row("Rejected:", strconv.Itoa(s.Rejected)),
		row("Pending:", strconv.Itoa(s.Pending)),
	)
	if s.Analyzing > 0 {
		lines = append(lines, row("Analyzing:", r.NewStyle().Foreground(warn).Render(fmt.Sprintf("%d (will be re-analyzed)", s.Analyzing))))
	}
	lines = append(lines,
		"",
		row("Insights:", strconv.Itoa(s.Insights)),
		row("Progress:", progressBar(s.Analyzed, s.Target)+" "+s.Percent),
	)

	panel := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)

	fmt.Fprintln(w, theme.Label("Research-Ralph")+" - Status Report")
	fmt.Fprintln(w, panel.Render(strings.Join(lines, "\n")))

	if s.Timing.StartedAt != "" {
		fmt.Fprintln(w, theme.Label("Timing"))
		fmt.Fprintf(w, "  Started: %s\n", s.Timing.StartedAt)
		fmt.Fprintf(w, "  Elapsed: %s\n", FormatDuration(s.Timing.ElapsedSeconds))
		for _, p := range s.Timing.Phases {
			dur := "-"
			if p.DurationSeconds > 0 {
				dur = FormatDuration(p.DurationSeconds)
			}
			fmt.Fprintf(w, "  %-10s %s\n", string(p.Phase)+":", dur)
		}
		if s.Timing.ETASeconds > 0 {
			fmt.Fprintf(w, "  Avg/paper: %s\n", FormatDuration(int64(s.Timing.AvgSecondsPerPaper)))
			fmt.Fprintf(w, "  ETA: %s (%d papers remaining)\n", FormatDuration(s.Timing.ETASeconds), s.Timing.Remaining)
		}
	}

	for _, msg := range s.Warnings {
		fmt.Fprintf(w, "%s %s\n", theme.Warning(display.SymbolWarning), theme.Warning(msg))
	}
	if s.Phase == types.PhaseComplete {
		fmt.Fprintln(w, theme.Success(display.SymbolSuccess+" Research complete!"))
	}
}

// ProjectTable renders the project listing
func ProjectTable(w io.Writer, projects []workspace.Project) {
	r := lipgloss.NewRenderer(w)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(accent)).
		Headers("PROJECT", "PHASE", "PROGRESS", "PENDING")

	for _, p := range projects {
		progress := "-"
		pending := "-"
		if p.Readable {
			progress = fmt.Sprintf("%d/%d", p.Analyzed, p.Target)
			if p.Target <= 0 {
				progress = fmt.Sprintf("%d/?", p.Analyzed)
			}
			pending = strconv.Itoa(p.Pending)
		}
		t.Row(p.Name, p.Phase, progress, pending)
	}
	fmt.Fprintln(w, t.Render())
}

// progressBar draws [====------] capped at 100%
func progressBar(current, total int) string {
	pct := 0
	if total > 0 {
		pct = min(100, 100*current/total)
	}
	filled := barWidth * pct / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

func phaseStyle(r *lipgloss.Renderer, p types.Phase) lipgloss.Style {
	switch p {
	case types.PhaseDiscovery:
		return r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	case types.PhaseAnalysis:
		return r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	case types.PhaseIdeation:
		return r.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	case types.PhaseComplete:
		return r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	default:
		return r.NewStyle()
	}
}
