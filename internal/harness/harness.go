package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/installer"
	"github.com/roach88/pipyaml/internal/script"
	"github.com/roach88/pipyaml/internal/store"
	"github.com/roach88/pipyaml/internal/wheel"
)

// Recorder persists a run's results. *store.Store implements it.
type Recorder interface {
	CreateRun(ctx context.Context, root, installer string) (store.Run, error)
	WriteCaseResult(ctx context.Context, runID string, rec store.CaseRecord) error
	FinishRun(ctx context.Context, runID string, summary store.Summary) error
}

// Config configures a Runner. The zero value runs "pip" with the default
// dispatch table and discards logs.
type Config struct {
	// Script configures the environment each case runs in.
	Script script.Config

	// Actions is the dispatch table. Nil uses installer.Actions.
	Actions map[string]installer.Action

	// Logger receives progress. Nil discards.
	Logger *slog.Logger

	// Now is the clock used for durations. Nil uses time.Now.
	Now func() time.Time

	// Recorder, if set, receives every case result of Run.
	Recorder Recorder

	// Workdir is the parent of per-case scratch directories in Run.
	// Empty creates a temporary directory.
	Workdir string

	// Keep leaves scratch directories in place after Run.
	Keep bool
}

// Runner replays cases.
type Runner struct {
	cfg     Config
	actions map[string]installer.Action
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a runner.
func New(cfg Config) *Runner {
	r := &Runner{
		cfg:     cfg,
		actions: cfg.Actions,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if r.actions == nil {
		r.actions = installer.Actions
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.cfg.Script.Logger == nil {
		r.cfg.Script.Logger = r.logger
	}
	return r
}

// RunCase replays one case in env and never panics on fixture problems:
// every failure is reported through the returned result.
func (r *Runner) RunCase(ctx context.Context, env *script.Environment, c fixture.Case) *CaseResult {
	start := r.now()
	result := &CaseResult{Case: c, Steps: []StepResult{}}

	err := r.replay(ctx, env, c, result)
	result.Duration = r.now().Sub(start)
	result.Err = err
	result.Status = status(c.Skip, err)

	r.logger.Info("case finished",
		"case", result.Name(),
		"status", result.Status,
		"steps", len(result.Steps),
		"duration", result.Duration,
	)
	if err != nil {
		r.logger.Debug("case failure", "case", result.Name(), "error", err)
	}
	return result
}

func (r *Runner) replay(ctx context.Context, env *script.Environment, c fixture.Case, result *CaseResult) error {
	if err := assertCount(c); err != nil {
		return err
	}

	for _, pkg := range c.Available {
		if _, err := wheel.WriteBasic(env.ScratchPath, pkg); err != nil {
			return err
		}
	}

	for i, req := range c.Request {
		step := StepResult{Index: i, Expected: c.Transaction[i]}

		name, arg, ok := req.Action()
		if !ok {
			step.Argument = map[string]any(req)
			result.Steps = append(result.Steps, step)
			return assertSingleAction(i, req)
		}
		step.Action = name
		step.Argument = arg

		action, ok := r.actions[name]
		if !ok {
			result.Steps = append(result.Steps, step)
			return assertKnownAction(i, name, slices.Sorted(maps.Keys(r.actions)))
		}

		r.logger.Debug("replaying request", "case", c.Name, "step", i, "action", name, "argument", arg)

		effect, err := action(ctx, env, arg)
		if err != nil {
			result.Steps = append(result.Steps, step)
			var argErr *installer.AssertionError
			if errors.As(err, &argErr) {
				return assertArgument(i, err)
			}
			return fmt.Errorf("request %d: %w", i, err)
		}

		outcome := effect.Outcome
		step.Actual = &outcome
		step.Result = effect.Result

		err = assertOutcome(i, step.Expected, outcome, effect.Result)
		step.Pass = err == nil
		result.Steps = append(result.Steps, step)
		if err != nil {
			return err
		}
	}
	return nil
}

// status maps a case's failure to its verdict. Skip marked cases are
// expected to fail in any way, setup errors included.
func status(skip bool, err error) Status {
	var assertion *AssertionError
	switch {
	case skip && err != nil:
		return StatusXFail
	case skip:
		return StatusXPass
	case err == nil:
		return StatusPass
	case errors.As(err, &assertion):
		return StatusFail
	default:
		return StatusError
	}
}

// Run replays every case of seq, each in its own scratch directory, and
// records results when a Recorder is configured. root only labels the run.
//
// Fixture load errors are collected in the suite result. Run returns an
// error when the context ends or the recorder fails.
func (r *Runner) Run(ctx context.Context, root string, seq iter.Seq2[fixture.Case, error]) (suite *SuiteResult, err error) {
	suite = &SuiteResult{Cases: []*CaseResult{}}

	workdir := r.cfg.Workdir
	if workdir == "" {
		workdir, err = os.MkdirTemp("", "pipyaml-")
		if err != nil {
			return suite, fmt.Errorf("failed to create workdir: %w", err)
		}
		if !r.cfg.Keep {
			defer os.RemoveAll(workdir)
		}
	} else if err := os.MkdirAll(workdir, 0755); err != nil {
		return suite, fmt.Errorf("failed to create workdir: %w", err)
	}

	if r.cfg.Recorder != nil {
		run, err := r.cfg.Recorder.CreateRun(ctx, root, strings.Join(r.installer(), " "))
		if err != nil {
			return suite, err
		}
		suite.RunID = run.ID
		defer func() {
			if finishErr := r.cfg.Recorder.FinishRun(context.WithoutCancel(ctx), suite.RunID, suite.Summary()); err == nil {
				err = finishErr
			}
		}()
	}

	r.logger.Info("running fixtures", "root", root, "workdir", workdir, "run_id", suite.RunID)

	for c, loadErr := range seq {
		if err := ctx.Err(); err != nil {
			return suite, fmt.Errorf("run interrupted: %w", err)
		}
		if loadErr != nil {
			r.logger.Error("fixture failed to load", "error", loadErr)
			suite.LoadErrors = append(suite.LoadErrors, loadErr)
			continue
		}

		result := r.runIsolated(ctx, workdir, c)
		suite.Cases = append(suite.Cases, result)

		if r.cfg.Recorder != nil {
			rec := result.Record(len(suite.Cases) - 1)
			if err := r.cfg.Recorder.WriteCaseResult(ctx, suite.RunID, rec); err != nil {
				return suite, err
			}
		}
	}

	sum := suite.Summary()
	r.logger.Info("run finished",
		"total", sum.Total,
		"passed", sum.Passed,
		"failed", sum.Failed,
		"xfailed", sum.XFailed,
		"xpassed", sum.XPassed,
		"errored", sum.Errored,
	)
	return suite, nil
}

// runIsolated gives c a fresh scratch directory below workdir.
func (r *Runner) runIsolated(ctx context.Context, workdir string, c fixture.Case) *CaseResult {
	dir, err := os.MkdirTemp(workdir, scratchPrefix(c.Name))
	if err == nil && !r.cfg.Keep {
		defer os.RemoveAll(dir)
	}

	var env *script.Environment
	if err == nil {
		env, err = script.NewEnvironment(dir, r.cfg.Script)
	}
	if err != nil {
		return &CaseResult{
			Case:   c,
			Steps:  []StepResult{},
			Status: status(c.Skip, err),
			Err:    fmt.Errorf("failed to create scratch directory: %w", err),
		}
	}
	return r.RunCase(ctx, env, c)
}

func (r *Runner) installer() []string {
	if len(r.cfg.Script.Installer) == 0 {
		return script.DefaultInstaller
	}
	return r.cfg.Script.Installer
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func scratchPrefix(name string) string {
	return unsafeChars.ReplaceAllString(name, "_") + "-"
}
