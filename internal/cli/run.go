package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/daydemir/research-ralph/internal/display"
	"github.com/daydemir/research-ralph/internal/filelock"
	"github.com/daydemir/research-ralph/internal/history"
	"github.com/daydemir/research-ralph/internal/loop"
	"github.com/daydemir/research-ralph/internal/prompts"
	"github.com/daydemir/research-ralph/internal/state"
	"github.com/daydemir/research-ralph/internal/types"
)

var (
	runPapers     int
	runIterations int
	runAgent      string
	runForce      bool
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run <project>",
	Short: "Run the research loop until complete or out of budget",
	Long: `Run the agent repeatedly against a research project.

The loop stops when:
  - the agent reports completion and rrd.json confirms it (exit 0)
  - the iteration budget is used up (exit 1, resume with another run)
  - retryable failures hit the consecutive-failure ceiling (exit 1)
  - you press Ctrl-C; the running iteration finishes first (exit 130)

The default budget is the paper target plus 6.

Examples:
  research-ralph run agent-memory
  research-ralph run agent-memory --iterations 5 --agent codex
  research-ralph run agent-memory --papers 30 --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d := newDisplay(cmd, cfg)

		dir, err := resolveProject(args[0], cfg)
		if err != nil {
			return err
		}
		store := state.NewStore(dir)

		if problems := store.Validate(); len(problems) > 0 {
			printProblems(d, "Invalid RRD file:", problems)
			return &ExitError{Code: ExitFailure}
		}

		lock, err := store.Lock()
		if err != nil {
			if errors.Is(err, filelock.ErrLocked) {
				return fmt.Errorf("another research-ralph run is active for %s", dir)
			}
			return err
		}
		defer lock.Unlock()

		runID := uuid.NewString()

		if runPapers > 0 {
			changed, err := store.UpdateTarget(runPapers, runForce, state.NewSnapshotter(dir, runID))
			if err != nil {
				return err
			}
			if !changed {
				return errors.New("research is already in progress; use --force to change the paper target (a snapshot is taken first)")
			}
		}

		st, err := store.Load()
		if err != nil {
			return err
		}
		if st.Target() < 1 {
			return errors.New("requirements.target_papers is 0; set a target with --papers N")
		}

		agentName := runAgent
		if agentName == "" {
			agentName = cfg.DefaultAgent
		}
		if !types.Agent(agentName).IsValid() {
			return fmt.Errorf("unknown agent %q", agentName)
		}
		backend, err := newBackend(cfg, agentName)
		if err != nil {
			return err
		}
		if err := backend.Available(); err != nil {
			return err
		}

		prompt, source, err := prompts.Load(dir, cfg.PromptFile)
		if err != nil {
			return err
		}

		iterations := runIterations
		if iterations <= 0 {
			iterations = loop.DefaultBudget(st.Target())
		}

		var recorder loop.Recorder
		if cfg.History.Enabled {
			hist, err := history.OpenForProject(dir)
			if err != nil {
				d.Warning(fmt.Sprintf("history disabled: %v", err))
			} else {
				defer hist.Close()
				recorder = hist
			}
		}

		d.Box("RESEARCH-RALPH",
			"Project:    "+st.Project,
			"Directory:  "+dir,
			"Agent:      "+agentName,
			"Prompt:     "+source.String(),
			fmt.Sprintf("Budget:     %d iterations", iterations),
			"Run:        "+runID,
		)

		if c := st.Counts(); st.Phase != types.PhaseDiscovery || c.Discovered > 0 {
			d.Resume(fmt.Sprintf("resuming in %s: %d/%d analyzed, %d in pool", st.Phase, c.Analyzed(), st.Target(), c.Discovered))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		agent, _ := cfg.Agent(agentName)
		ctrl := loop.New(loop.Config{
			Store:                  store,
			Backend:                backend,
			Prompt:                 prompt,
			Model:                  agent.Model,
			Env:                    cfg.ExecutorEnv(),
			MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
			IterationDelay:         cfg.IterationDelay,
			RunID:                  runID,
			Finalizer:              loop.SummaryFinalizer{Dir: dir},
			Recorder:               recorder,
			Logger:                 d,
			Hooks:                  runHooks(d, cfg.LiveOutput && !runQuiet),
		})

		started := time.Now()
		res, runErr := ctrl.Run(ctx, iterations)
		return reportRun(d, res, runErr, time.Since(started))
	},
}

func runHooks(d *display.Display, live bool) loop.Hooks {
	hooks := loop.Hooks{
		OnIterationStart: func(i, max int, st *state.State) {
			d.Iteration(i, max, string(st.Phase), st.Counts().Analyzed(), st.Target())
		},
	}
	if live {
		hooks.OnOutput = d.AgentLine
	}
	return hooks
}

// reportRun prints the final summary and maps the outcome to an exit code
func reportRun(d *display.Display, res loop.Result, runErr error, elapsed time.Duration) error {
	d.SectionBreak()
	switch res.Outcome {
	case loop.Completed:
		if runErr != nil {
			return runErr
		}
		d.Success(res.Message)
		d.Box("RESEARCH COMPLETE",
			fmt.Sprintf("Papers analyzed:  %d", res.Counts.Analyzed()),
			fmt.Sprintf("Presented:        %d", res.Counts.Presented),
			fmt.Sprintf("Rejected:         %d", res.Counts.Rejected),
			fmt.Sprintf("Iterations:       %d", res.Iterations),
		)
		d.Duration(elapsed)
		return nil
	case loop.BudgetExhausted:
		d.Warning(res.Message)
		d.Info("Progress", fmt.Sprintf("%d/%d papers analyzed", res.Counts.Analyzed(), res.Target))
		return &ExitError{Code: ExitFailure}
	case loop.Interrupted:
		d.Warning(res.Message)
		return &ExitError{Code: ExitInterrupt}
	default:
		d.Error(res.Message)
		if errors.Is(runErr, loop.ErrTooManyFailures) {
			d.Info("Progress", fmt.Sprintf("%d/%d papers analyzed; see history for failure details", res.Counts.Analyzed(), res.Target))
		}
		return &ExitError{Code: ExitFailure}
	}
}

func init() {
	runCmd.Flags().IntVar(&runPapers, "papers", 0, "change the paper target before running")
	runCmd.Flags().IntVarP(&runIterations, "iterations", "n", 0, "maximum iterations (default: target + 6)")
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "agent backend: claude, amp, codex (default from config)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "allow --papers on research in progress")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "hide live agent output")
	rootCmd.AddCommand(runCmd)
}
