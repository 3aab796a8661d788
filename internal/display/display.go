// Package display provides unified output formatting for the research-ralph CLI.
// It visually separates controller messages from agent output.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Display handles all CLI output with visual hierarchy
type Display struct {
	out       io.Writer
	theme     *Theme
	termWidth int
	level     Level
	now       func() time.Time
}

// Options configure a Display
type Options struct {
	Out     io.Writer // defaults to os.Stdout
	NoColor bool
	Level   Level
}

// New creates a Display writing to stdout at info level
func New() *Display {
	return NewWithOptions(Options{Level: LevelInfo})
}

// NewWithOptions creates a Display with configuration. Colors are also
// disabled when output is not a terminal or NO_COLOR is set.
func NewWithOptions(opts Options) *Display {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	d := &Display{
		out:       out,
		termWidth: getTerminalWidth(out),
		level:     opts.Level,
		now:       time.Now,
	}
	if opts.NoColor || !ColorEnabled(out) {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// ColorEnabled reports whether w is a terminal and NO_COLOR is unset
func ColorEnabled(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether stdin is a terminal a user can answer prompts on
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// getTerminalWidth returns the terminal width, defaulting to 80
func getTerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120 // Cap at 120 for readability
	}
	return width
}

// Width returns the usable output width
func (d *Display) Width() int {
	return d.termWidth
}

// Theme returns the current theme for external use
func (d *Display) Theme() *Theme {
	return d.theme
}

// Writer returns the underlying output
func (d *Display) Writer() io.Writer {
	return d.out
}

// Box prints a boxed message with a title
func (d *Display) Box(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len([]rune(title)) + 4 // "─ TITLE "
	remainingWidth := width - titleLen
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	// Top border: ┌─ TITLE ─────────────────────────┐
	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Fprintln(d.out, d.theme.Border(topLine))

	for _, line := range lines {
		paddedLine := padRight(line, width-2)
		fmt.Fprintln(d.out, d.theme.Border(BoxVertical)+" "+d.theme.Text(paddedLine)+" "+d.theme.Border(BoxVertical))
	}

	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Fprintln(d.out, d.theme.Border(bottomLine))
}

// Status prints a single timestamped status line
func (d *Display) Status(symbol, message string) {
	timestamp := d.now().Format("[15:04:05]")
	fmt.Fprintf(d.out, "%s %s %s\n",
		d.theme.Border(timestamp),
		symbol,
		d.theme.Text(message))
}

// Success prints a success message with green checkmark
func (d *Display) Success(message string) {
	d.Status(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with red X
func (d *Display) Error(message string) {
	d.Status(d.theme.Error(SymbolError), message)
}

// Warning prints a warning message with yellow triangle
func (d *Display) Warning(message string) {
	d.Status(d.theme.Warning(SymbolWarning), message)
}

// Info prints an info message with cyan label
func (d *Display) Info(label, message string) {
	d.Status(d.theme.Info(label+":"), message)
}

// Resume prints a retry message with cyan arrow
func (d *Display) Resume(message string) {
	d.Status(d.theme.Info(SymbolResume), message)
}

// SectionBreak prints a horizontal separator for iteration boundaries
func (d *Display) SectionBreak() {
	fmt.Fprintln(d.out, d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// Iteration prints the iteration banner with progress
func (d *Display) Iteration(current, max int, phase string, analyzed, target int) {
	d.SectionBreak()
	fmt.Fprintf(d.out, "Iteration %d/%d [%s] %d/%d analyzed\n",
		current, max, d.theme.Info(phase), analyzed, target)
	d.SectionBreak()
}

// AgentLine prints one line of live agent output with a left gutter
func (d *Display) AgentLine(line string) {
	fmt.Fprintf(d.out, "%s%s %s\n", IndentAgent, d.theme.AgentGutter(GutterAgent), d.theme.AgentText(line))
}

// Duration prints execution duration
func (d *Display) Duration(dur time.Duration) {
	fmt.Fprintf(d.out, "   Duration: %s\n", dur.Round(time.Second))
}

// Debugf implements Logger
func (d *Display) Debugf(format string, args ...interface{}) {
	if d.level <= LevelDebug {
		d.Status(d.theme.Dim("·"), d.theme.Dim(fmt.Sprintf(format, args...)))
	}
}

// Infof implements Logger
func (d *Display) Infof(format string, args ...interface{}) {
	if d.level <= LevelInfo {
		d.Status(d.theme.Info("›"), fmt.Sprintf(format, args...))
	}
}

// Warnf implements Logger
func (d *Display) Warnf(format string, args ...interface{}) {
	if d.level <= LevelWarn {
		d.Warning(fmt.Sprintf(format, args...))
	}
}

// Errorf implements Logger
func (d *Display) Errorf(format string, args ...interface{}) {
	d.Error(fmt.Sprintf(format, args...))
}

// padRight pads a string to the specified width
func padRight(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:max(width, 0)])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

// Truncate truncates text to max length with ellipsis
func Truncate(s string, max int) string {
	s = CleanText(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// CleanText removes newlines and collapses spaces
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
