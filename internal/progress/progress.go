// Package progress owns progress.txt, the append-only markdown log shared
// by the controller and the executor.
package progress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/types"
)

// Well-known section titles seeded by the template
const (
	PatternsSection = "Research Patterns"
	InsightsSection = "Cross-Reference Insights"
)

const iterationPrefix = "Iteration "

// Template returns the initial log content. label is "Started" or "Reset".
func Template(label string, at time.Time) string {
	return fmt.Sprintf(`# Research-Ralph Progress Log
%s: %s

## %s
- (Patterns discovered during research will be added here)

## %s
- (Connections between papers will be added here)

---
`, label, at.Format(time.RFC3339), PatternsSection, InsightsSection)
}

// Init writes a fresh log, replacing any existing one.
func Init(path, label string, at time.Time) error {
	if err := filelock.AtomicWrite(path, []byte(Template(label, at)), 0644); err != nil {
		return fmt.Errorf("failed to initialize progress log: %w", err)
	}
	return nil
}

// Ensure creates the log if it does not exist yet.
func Ensure(path string, at time.Time) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat progress log: %w", err)
	}
	return Init(path, "Started", at)
}

// Entry is one controller-written iteration record
type Entry struct {
	Iteration int
	Max       int
	Phase     types.Phase
	RunID     string
	At        time.Time
	Result    string // "success", or the failure category
	Action    string // retry / skip / abort, empty on success
	Delay     time.Duration
	Analyzed  int
	Target    int
	Delta     int
	Duration  time.Duration
	Note      string
	Warnings  []string
}

// Format renders the entry as a markdown section
func (e Entry) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n## %s%d/%d [%s] %s\n", iterationPrefix, e.Iteration, e.Max, e.Phase, e.At.UTC().Format(time.RFC3339))
	if e.RunID != "" {
		fmt.Fprintf(&sb, "- run: %s\n", e.RunID)
	}
	result := e.Result
	if e.Action != "" {
		result = fmt.Sprintf("%s -> %s", e.Result, e.Action)
		if e.Delay > 0 {
			result += fmt.Sprintf(" in %s", e.Delay)
		}
	}
	fmt.Fprintf(&sb, "- result: %s\n", result)
	fmt.Fprintf(&sb, "- analyzed: %d/%d (%+d)\n", e.Analyzed, e.Target, e.Delta)
	fmt.Fprintf(&sb, "- duration: %s\n", e.Duration.Round(time.Second))
	if e.Note != "" {
		fmt.Fprintf(&sb, "- note: %s\n", e.Note)
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(&sb, "- warning: %s\n", w)
	}
	return sb.String()
}

// Append adds an iteration entry to the end of the log
func Append(path string, e Entry) error {
	return appendText(path, e.Format())
}

// AppendSection adds a free-form section with bullet lines
func AppendSection(path, title string, bullets []string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n## %s\n", title)
	for _, b := range bullets {
		fmt.Fprintf(&sb, "- %s\n", b)
	}
	return appendText(path, sb.String())
}

func appendText(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open progress log: %w", err)
	}
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to progress log: %w", err)
	}
	return f.Close()
}

// Section is a heading and the number of bullet items directly under it
type Section struct {
	Title string
	Level int
	Items int
}

// Log is the parsed outline of a progress file
type Log struct {
	Title         string
	Sections      []Section
	Iterations    int
	LastIteration string
}

// Section returns the first section with the given title
func (l *Log) Section(title string) (Section, bool) {
	for _, s := range l.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

// Parse reads a progress log and outlines its sections
func Parse(r io.Reader) (*Log, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read progress log: %w", err)
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	log := &Log{}

	var current *Section
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(extractText(node, source))
			if node.Level == 1 && log.Title == "" {
				log.Title = title
				current = nil
				continue
			}
			log.Sections = append(log.Sections, Section{Title: title, Level: node.Level})
			current = &log.Sections[len(log.Sections)-1]
			if strings.HasPrefix(title, iterationPrefix) {
				log.Iterations++
				log.LastIteration = title
			}
		case *ast.List:
			if current != nil {
				current.Items += node.ChildCount()
			}
		}
	}
	return log, nil
}

// ParseFile parses the log at path
func ParseFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		}
	}
	return buf.String()
}
