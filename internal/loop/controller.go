// Package loop drives the research executor one iteration at a time until
// the work is verified complete, the budget runs out, or failures pile up.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/failure"
	"github.com/daydemir/research-ralph/internal/history"
	"github.com/daydemir/research-ralph/internal/llm"
	"github.com/daydemir/research-ralph/internal/phase"
	"github.com/daydemir/research-ralph/internal/progress"
	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/utils"
	"github.com/daydemir/research-ralph/internal/verify"
)

// ErrTooManyFailures is returned when consecutive retryable failures reach the ceiling
var ErrTooManyFailures = errors.New("too many consecutive executor failures")

// BudgetSlack is added to the paper target to get the default iteration budget
const BudgetSlack = 6

// DefaultIterationDelay is the pause after a successful, incomplete iteration
const DefaultIterationDelay = 2 * time.Second

// DefaultBudget returns the iteration budget for a paper target
func DefaultBudget(target int) int {
	return target + BudgetSlack
}

// Outcome is how a run ended
type Outcome int

const (
	Completed Outcome = iota
	BudgetExhausted
	Aborted
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case BudgetExhausted:
		return "budget_exhausted"
	case Aborted:
		return "aborted"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result summarizes a run
type Result struct {
	RunID        string
	Outcome      Outcome
	Iterations   int
	Phase        types.Phase
	Counts       state.Counts
	Target       int
	Message      string
	ProgressPath string
}

// Recorder persists run and iteration history. *history.Store implements it.
type Recorder interface {
	StartRun(ctx context.Context, run history.Run) error
	FinishRun(ctx context.Context, runID, outcome, message string, endedAt time.Time) error
	Record(ctx context.Context, it history.Iteration) error
}

// Hooks let the caller observe a run. All are optional.
type Hooks struct {
	// OnIterationStart replaces the default iteration log line
	OnIterationStart func(iteration, max int, st *state.State)
	// OnIterationEnd receives the record of every finished iteration
	OnIterationEnd func(it history.Iteration)
	// OnOutput receives executor output line by line
	OnOutput func(line string)
}

// Config holds controller dependencies and settings
type Config struct {
	Store   *state.Store
	Backend llm.Backend
	Prompt  string
	Model   string
	Env     []string

	MaxConsecutiveFailures int
	// IterationDelay is the pause after a successful, incomplete iteration
	IterationDelay time.Duration
	RunID          string

	Classifier failure.Classifier
	Verifier   verify.Verifier
	Probe      phase.ArtifactProbe
	Finalizer  Finalizer
	Recorder   Recorder
	Logger     display.Logger
	Hooks      Hooks

	// Now and Sleep default to the wall clock
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller runs the iteration loop for one project
type Controller struct {
	cfg     Config
	tracker *failure.Tracker
	log     display.Logger
}

// New creates a controller, filling unset dependencies with defaults
func New(cfg Config) *Controller {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = failure.TextClassifier{}
	}
	if cfg.Verifier == nil {
		cfg.Verifier = verify.MarkerVerifier{}
	}
	if cfg.Probe == nil && cfg.Store != nil {
		cfg.Probe = phase.DirProbe(cfg.Store.Dir())
	}
	if cfg.Logger == nil {
		cfg.Logger = display.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.IterationDelay < 0 {
		cfg.IterationDelay = 0
	}
	return &Controller{
		cfg:     cfg,
		tracker: failure.NewTracker(cfg.MaxConsecutiveFailures),
		log:     cfg.Logger,
	}
}

// Run executes up to maxIterations iterations. A returned error means the
// run could not continue: a state-integrity failure, a controller I/O
// failure, or ErrTooManyFailures. Budget exhaustion and interruption are
// reported through Result.Outcome with a nil error.
func (c *Controller) Run(ctx context.Context, maxIterations int) (Result, error) {
	store := c.cfg.Store
	res := Result{RunID: c.cfg.RunID, ProgressPath: store.ProgressPath()}
	if maxIterations < 1 {
		return res, fmt.Errorf("max iterations must be at least 1, got %d", maxIterations)
	}
	if err := progress.Ensure(store.ProgressPath(), c.cfg.Now()); err != nil {
		return res, err
	}
	c.startRun(ctx, maxIterations)

	for i := 1; i <= maxIterations; i++ {
		if ctx.Err() != nil {
			return c.finish(ctx, res, Interrupted, "interrupted before iteration %d", i), nil
		}

		st, err := c.prepare()
		if err != nil {
			return c.fail(ctx, res, err)
		}
		res.observe(st)

		if st.Phase == types.PhaseComplete {
			c.finalize(ctx, st, res)
			return c.finish(ctx, res, Completed, "research complete"), nil
		}

		res.Iterations = i
		stop, err := c.iterate(ctx, i, maxIterations, st, &res)
		if err != nil {
			return c.fail(ctx, res, err)
		}
		if stop {
			return res, nil
		}
	}

	return c.finish(ctx, res, BudgetExhausted,
		"budget exhausted after %d iterations; see %s to resume", maxIterations, res.ProgressPath), nil
}

// prepare loads state, recovers stuck papers and applies one phase step,
// saving if anything changed
func (c *Controller) prepare() (*state.State, error) {
	store := c.cfg.Store
	st, err := store.Load()
	if err != nil {
		return nil, err
	}

	changed := false
	if ids := state.Recover(st); len(ids) > 0 {
		c.log.Warnf("reset %d paper(s) stuck in analyzing: %v", len(ids), ids)
		changed = true
	}

	t := phase.Next(st, c.cfg.Probe)
	if t.Changed() {
		phase.Apply(st, t, c.cfg.Now())
		if t.Reverted {
			c.log.Warnf("phase reverted %s -> %s: %s", t.From, t.To, t.Reason)
		} else {
			c.log.Infof("phase %s -> %s: %s", t.From, t.To, t.Reason)
		}
		changed = true
	}

	if changed {
		if err := store.Save(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// iterate runs one executor invocation and acts on its outcome. It reports
// stop=true when the run is over.
func (c *Controller) iterate(ctx context.Context, i, budget int, st *state.State, res *Result) (bool, error) {
	store := c.cfg.Store
	before := st.Counts().Analyzed()
	target := st.Target()

	if c.cfg.Hooks.OnIterationStart != nil {
		c.cfg.Hooks.OnIterationStart(i, budget, st)
	} else {
		c.log.Infof("Iteration %d/%d [%s] %d/%d analyzed", i, budget, st.Phase, before, target)
	}

	started := c.cfg.Now()
	out, err := c.cfg.Backend.Invoke(ctx, llm.Request{
		Prompt:  c.cfg.Prompt,
		WorkDir: store.Dir(),
		Model:   c.cfg.Model,
		Env:     c.cfg.Env,
		OnLine:  c.cfg.Hooks.OnOutput,
	})
	if err != nil {
		out = llm.Result{ExitCode: llm.NotStartedExitCode, Output: err.Error()}
	}
	if out.ExitCode == llm.NotStartedExitCode && ctx.Err() != nil {
		// cancelled before the executor could start
		*res = c.finish(ctx, *res, Interrupted, "interrupted before iteration %d", i)
		return true, nil
	}
	elapsed := c.cfg.Now().Sub(started)

	after, err := store.Load()
	if err != nil {
		return true, err
	}
	if c.settle(after, before) {
		if err := store.Save(after); err != nil {
			return true, err
		}
	}
	res.observe(after)

	rec := history.Iteration{
		RunID:         c.cfg.RunID,
		Iteration:     i,
		Phase:         string(st.Phase),
		PhaseAfter:    string(after.Phase),
		ExitCode:      out.ExitCode,
		Analyzed:      after.Counts().Analyzed(),
		AnalyzedDelta: after.Counts().Analyzed() - before,
		Duration:      elapsed,
		StartedAt:     started,
	}
	entry := progress.Entry{
		Iteration: i,
		Max:       budget,
		Phase:     st.Phase,
		RunID:     c.cfg.RunID,
		At:        started,
		Analyzed:  rec.Analyzed,
		Target:    after.Target(),
		Delta:     rec.AnalyzedDelta,
		Duration:  elapsed,
	}
	for _, change := range state.IllegalTransitions(st, after) {
		c.log.Warnf("illegal paper status change %s", change)
		entry.Warnings = append(entry.Warnings, "illegal status change "+change)
	}

	if !out.Success() {
		return c.handleFailure(ctx, out, rec, entry, res)
	}

	c.tracker.Success()
	verdict := c.cfg.Verifier.Verify(out.Output, after)
	rec.Verdict = verdict.Outcome.String()
	entry.Result = "success"

	switch verdict.Outcome {
	case verify.Verified:
		if verdict.Fallback {
			c.log.Warnf("completion claimed without the %s marker; accepted because %s", verify.Marker, verdict.Reason)
		}
		state.MarkPhase(after, types.PhaseComplete, c.cfg.Now())
		if err := store.Save(after); err != nil {
			return true, err
		}
		rec.PhaseAfter = string(after.Phase)
		entry.Result = "verified"
		entry.Note = verdict.Reason
		c.record(ctx, rec, entry)
		res.observe(after)
		c.finalize(ctx, after, *res)
		*res = c.finish(ctx, *res, Completed, "research complete: %s", verdict.Reason)
		return true, nil
	case verify.Rejected:
		c.log.Warnf("completion claim rejected: %s", verdict.Reason)
		entry.Result = "claim rejected"
		entry.Note = verdict.Reason
	}

	c.log.Infof("iteration %d done in %s: %d/%d analyzed (%+d)", i, elapsed.Round(time.Second), rec.Analyzed, entry.Target, rec.AnalyzedDelta)
	c.record(ctx, rec, entry)

	if i < budget && c.cfg.IterationDelay > 0 {
		_ = c.cfg.Sleep(ctx, c.cfg.IterationDelay)
	}
	return false, nil
}

// handleFailure classifies a failed invocation and applies the backoff decision
func (c *Controller) handleFailure(ctx context.Context, out llm.Result, rec history.Iteration, entry progress.Entry, res *Result) (bool, error) {
	category := c.cfg.Classifier.Classify(out.ExitCode, out.Output)
	decision := c.tracker.Failure(category)
	excerpt := utils.Excerpt(out.Output, 200)

	rec.Category = string(category)
	rec.Action = string(decision.Action)
	rec.Delay = decision.Delay
	rec.Excerpt = excerpt
	entry.Result = string(category)
	entry.Action = string(decision.Action)
	entry.Delay = decision.Delay
	entry.Note = excerpt

	c.log.Errorf("executor failed (exit %d): %s -> %s [%d/%d consecutive]",
		out.ExitCode, category, decision, c.tracker.Count(), c.tracker.Max())
	if excerpt != "" {
		c.log.Debugf("last output: %s", excerpt)
	}
	c.record(ctx, rec, entry)

	switch decision.Action {
	case failure.Abort:
		if ctx.Err() != nil {
			// the failure is most likely the executor reacting to the interrupt
			*res = c.finish(ctx, *res, Interrupted, "interrupted during iteration %d", rec.Iteration)
			return true, nil
		}
		*res = c.finish(ctx, *res, Aborted, "aborted after %d consecutive failures (last: %s)", c.tracker.Max(), category)
		return true, fmt.Errorf("%w: last failure %s", ErrTooManyFailures, category)
	case failure.Retry:
		if err := c.cfg.Sleep(ctx, decision.Delay); err != nil {
			c.log.Debugf("backoff interrupted: %v", err)
		}
	case failure.SkipAndContinue:
	}
	return false, nil
}

// settle reconciles statistics and analysis timing after an invocation and
// reports whether st changed
func (c *Controller) settle(st *state.State, before int) bool {
	changed := st.ReconcileStatistics()
	if st.Phase == types.PhaseAnalysis && st.Counts().Analyzed() != before {
		state.UpdateAnalysisTiming(st, c.cfg.Now())
		changed = true
	}
	return changed
}

func (c *Controller) record(ctx context.Context, rec history.Iteration, entry progress.Entry) {
	if err := progress.Append(c.cfg.Store.ProgressPath(), entry); err != nil {
		c.log.Warnf("%v", err)
	}
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			c.log.Warnf("history: %v", err)
		}
	}
	if c.cfg.Hooks.OnIterationEnd != nil {
		c.cfg.Hooks.OnIterationEnd(rec)
	}
}

func (c *Controller) finalize(ctx context.Context, st *state.State, res Result) {
	if c.cfg.Finalizer == nil {
		return
	}
	if err := c.cfg.Finalizer.Finalize(ctx, st, res); err != nil {
		c.log.Warnf("finalization failed: %v", err)
	}
}

func (c *Controller) startRun(ctx context.Context, maxIterations int) {
	if c.cfg.Recorder == nil {
		return
	}
	run := history.Run{
		RunID:         c.cfg.RunID,
		Agent:         c.cfg.Backend.Name(),
		MaxIterations: maxIterations,
		StartedAt:     c.cfg.Now(),
	}
	if err := c.cfg.Recorder.StartRun(context.WithoutCancel(ctx), run); err != nil {
		c.log.Warnf("history: %v", err)
	}
}

func (c *Controller) finish(ctx context.Context, res Result, outcome Outcome, format string, args ...interface{}) Result {
	res.Outcome = outcome
	res.Message = fmt.Sprintf(format, args...)
	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.FinishRun(context.WithoutCancel(ctx), res.RunID, outcome.String(), res.Message, c.cfg.Now()); err != nil {
			c.log.Warnf("history: %v", err)
		}
	}
	return res
}

// fail ends the run with an error that is not a backoff abort
func (c *Controller) fail(ctx context.Context, res Result, err error) (Result, error) {
	if errors.Is(err, ErrTooManyFailures) {
		return res, err
	}
	res = c.finish(ctx, res, Aborted, "%v", err)
	return res, err
}

func (r *Result) observe(st *state.State) {
	r.Phase = st.Phase
	r.Counts = st.Counts()
	r.Target = st.Target()
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
