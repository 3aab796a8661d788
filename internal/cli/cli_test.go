package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/loop"
	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/workspace"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  int
		print bool
	}{
		{"nil", nil, ExitOK, false},
		{"plain error", errors.New("boom"), ExitFailure, true},
		{"silent exit", &ExitError{Code: ExitInterrupt}, ExitInterrupt, false},
		{"wrapped exit", fmt.Errorf("run: %w", &ExitError{Code: 1, Err: errors.New("x")}), ExitFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(tt.err))
			assert.Equal(t, tt.print, ShouldPrint(tt.err))
		})
	}
}

func TestConfirm(t *testing.T) {
	d := display.NewWithOptions(display.Options{Out: &strings.Builder{}})
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"yes":   true,
	}
	for input, want := range tests {
		assert.Equal(t, want, confirm(strings.NewReader(input), d, "Reset?"), "input %q", input)
	}
}

func TestReportRunExitCodes(t *testing.T) {
	d := display.NewWithOptions(display.Options{Out: &strings.Builder{}})
	tests := []struct {
		name string
		res  loop.Result
		err  error
		code int
	}{
		{"completed", loop.Result{Outcome: loop.Completed, Message: "done"}, nil, ExitOK},
		{"budget exhausted", loop.Result{Outcome: loop.BudgetExhausted, Message: "budget exhausted"}, nil, ExitFailure},
		{"interrupted", loop.Result{Outcome: loop.Interrupted}, nil, ExitInterrupt},
		{"aborted", loop.Result{Outcome: loop.Aborted, Message: "aborted"}, loop.ErrTooManyFailures, ExitFailure},
		{"error before start", loop.Result{}, errors.New("no progress log"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(reportRun(d, tt.res, tt.err, time.Second)))
		})
	}
}

// execute runs the root command with an isolated config file
func execute(t *testing.T, args ...string) error {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	rootCmd.SetArgs(append(args, "--config", cfg))
	return rootCmd.Execute()
}

func newProject(t *testing.T) string {
	t.Helper()
	dir, err := workspace.Create(t.TempDir(), "memory", "agent memory", 2, time.Now())
	require.NoError(t, err)
	return dir
}

func TestResetCommand(t *testing.T) {
	t.Cleanup(func() {
		resetYes = false
		isInteractive = display.IsInteractive
	})
	isInteractive = func() bool { return false }
	dir := newProject(t)

	err := execute(t, "reset", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	snaps, err := state.ListSnapshots(dir)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	require.NoError(t, execute(t, "reset", dir, "--yes"))
	snaps, err = state.ListSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "reset", snaps[0].Manifest.Reason)
}

func TestPhaseCommandRequiresForce(t *testing.T) {
	t.Cleanup(func() { phaseForce = false })
	dir := newProject(t)

	err := execute(t, "phase", dir, "ANALYSIS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	require.NoError(t, execute(t, "phase", dir, "analysis", "--force"))
	st, err := state.NewStore(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, types.PhaseAnalysis, st.Phase)
}

func TestRunRefusesTargetChangeInProgress(t *testing.T) {
	t.Cleanup(func() { runPapers = 0 })
	dir := newProject(t)
	store := state.NewStore(dir)
	st, err := store.Load()
	require.NoError(t, err)
	st.Phase = types.PhaseAnalysis
	st.PapersPool = []state.Paper{{ID: "a", Status: types.StatusPresented}, {ID: "b", Status: types.StatusPending}}
	require.NoError(t, store.Save(st))

	err = execute(t, "run", dir, "--papers", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	st, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Target())
}

func TestRunRejectsInvalidProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, state.DocumentFile), `{"requirements": {}}`))

	err := execute(t, "run", dir)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.False(t, ShouldPrint(err), "problems are listed by the command")
}

func TestStatusZeroTargetReportsNotApplicable(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		statusJSON = false
	})

	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, state.DocumentFile),
		`{"project": "p", "requirements": {"target_papers": 0}, "phase": "DISCOVERY"}`))

	require.NoError(t, execute(t, "status", dir, "--json"))
	assert.Contains(t, out.String(), `"completion": "N/A"`)
	assert.NotContains(t, out.String(), "invalid target")
}

func TestRunRefusesZeroTarget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, state.DocumentFile),
		`{"project": "p", "requirements": {"target_papers": 0}}`))

	err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--papers")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
