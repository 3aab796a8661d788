// Package llm invokes the external coding-agent CLIs that perform the
// research work. One invocation is one iteration.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Backend represents an agent CLI
type Backend interface {
	// Name returns the backend name (e.g., "claude", "amp")
	Name() string

	// Available reports why the backend cannot run, or nil
	Available() error

	// Invoke runs the agent once and blocks until it exits. A non-zero exit
	// is reported in Result, not as an error.
	Invoke(ctx context.Context, req Request) (Result, error)
}

// Request contains options for one invocation
type Request struct {
	Prompt  string
	WorkDir string
	Model   string
	// Env entries ("KEY=value") added to the inherited environment
	Env []string
	// OnLine, when set, receives each output line as it is produced
	OnLine func(line string)
}

// Result is what the loop sees of an invocation
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Success reports whether the agent exited cleanly
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Options configure a backend
type Options struct {
	Binary       string
	Model        string
	AllowedTools []string
}

// Factory builds a backend from options
type Factory func(opts Options) Backend

var registry = map[string]Factory{}

// Register makes a backend available to New
func Register(name string, f Factory) {
	registry[name] = f
}

// New creates the named backend
func New(name string, opts Options) (Backend, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(opts), nil
}

// Names returns the registered backend names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
