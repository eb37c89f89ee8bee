package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/dreamsxin/procmetrics/manager"
	"github.com/dreamsxin/procmetrics/types"
	"github.com/dreamsxin/procmetrics/util"
)

// Process is a launched target as seen by the loop.
type Process interface {
	Target
	IsRunning() bool
	Done() <-chan struct{}
	Stop(grace time.Duration) error
}

// Launcher starts target, through interpreter when it is not empty.
type Launcher func(interpreter, target string, args []string, opts ...manager.Option) (Process, error)

func launchHandle(interpreter, target string, args []string, opts ...manager.Option) (Process, error) {
	h, err := manager.LaunchTarget(interpreter, target, args, opts...)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Observer is called after every recorded sample.
type Observer func(types.Sample, Snapshot)

type LoopOption func(*Loop)

func WithSampler(s Sampler) LoopOption {
	return func(l *Loop) {
		l.sampler = s
	}
}

func WithLauncher(fn Launcher) LoopOption {
	return func(l *Loop) {
		l.launch = fn
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) LoopOption {
	return func(l *Loop) {
		l.clk = clk
	}
}

func WithLogger(entry *log.Entry) LoopOption {
	return func(l *Loop) {
		if entry != nil {
			l.log = entry
		}
	}
}

func WithObserver(fn Observer) LoopOption {
	return func(l *Loop) {
		l.observer = fn
	}
}

// WithProcessOptions are passed to the launcher on every run.
func WithProcessOptions(opts ...manager.Option) LoopOption {
	return func(l *Loop) {
		l.procOpts = append(l.procOpts, opts...)
	}
}

// Loop launches a target and samples it until it exits, times out or the
// run context is cancelled. A Loop runs one target at a time.
type Loop struct {
	cfg      types.Config
	sampler  Sampler
	launch   Launcher
	clk      clock.Clock
	log      *log.Entry
	observer Observer
	procOpts []manager.Option

	busy atomic.Bool
}

// NewLoop validates cfg and keeps a copy of it.
func NewLoop(cfg types.Config, opts ...LoopOption) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:     cfg,
		sampler: NewProcSampler(),
		launch:  launchHandle,
		clk:     clock.New(),
		log:     log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the configuration snapshot of the loop.
func (l *Loop) Config() types.Config {
	return l.cfg
}

// Outcome is what a run produced.
type Outcome struct {
	RunID        string
	Target       string
	State        types.State
	PID          int
	Series       *TimeSeries
	TotalElapsed time.Duration
	Err          error
}

// Result builds the final report of the run. It fails with the launch error
// of a failed run and with types.ErrEmptySeries when nothing was sampled.
func (o *Outcome) Result() (types.RunResult, error) {
	reason, ok := o.State.Reason()
	if !ok {
		if o.Err != nil {
			return types.RunResult{}, o.Err
		}
		return types.RunResult{}, errors.Errorf("run ended in state %s", o.State)
	}

	res, err := BuildReport(o.Series, o.TotalElapsed, reason)
	if err != nil {
		return types.RunResult{}, err
	}
	res.RunID = o.RunID
	res.Target = o.Target
	res.PID = o.PID
	return res, nil
}

// Run launches target and monitors it to the end. The target is never left
// running when Run returns, unless stopping it failed; Outcome.Err then
// carries the stop error.
func (l *Loop) Run(ctx context.Context, target string, args ...string) (*Outcome, error) {
	if !l.busy.CompareAndSwap(false, true) {
		return nil, types.ErrRunInProgress
	}
	defer l.busy.Store(false)

	runID := util.GenerateRunID()
	entry := l.log.WithFields(log.Fields{
		"run_id": util.ShortRunID(runID),
		"target": target,
	})

	out := &Outcome{
		RunID:  runID,
		Target: target,
		State:  types.StateIdle,
		Series: NewTimeSeries(l.cfg.ExportSeries),
	}

	opts := append([]manager.Option{manager.WithRunID(runID), manager.WithLogger(entry)}, l.procOpts...)
	proc, err := l.launch(l.cfg.Interpreter, target, args, opts...)
	if err != nil {
		out.State = types.StateFailed
		out.Err = err
		entry.WithError(err).Error("failed to launch target")
		return out, err
	}

	start := l.clk.Now()
	out.State = types.StateRunning
	out.PID = proc.PID()
	entry = entry.WithField("pid", out.PID)
	entry.WithField("interval", l.cfg.Interval).Info("monitoring started")

	// Prime the CPU counters, the first reading is always zero
	if _, err := l.sampler.Sample(ctx, proc, l.cfg.IncludeDescendants); err != nil {
		entry.WithError(err).Debug("baseline sample failed")
	}

	out.State = l.sampleLoop(ctx, proc, out.Series, start, entry)
	out.TotalElapsed = l.clk.Since(start)

	if proc.IsRunning() {
		entry.WithField("state", out.State).Info("stopping target")
		if err := proc.Stop(l.cfg.KillGrace); err != nil {
			// Waiting for an exit the stop could not cause would block forever
			out.Err = errors.Wrapf(err, "failed to stop target %d", out.PID)
			entry.WithError(err).Error("failed to stop target")
		}
	}
	if out.Err == nil {
		<-proc.Done()
	}

	if f, ok := l.sampler.(interface{ Forget() }); ok {
		f.Forget()
	}

	entry.WithFields(log.Fields{
		"state":   out.State,
		"samples": out.Series.Count(),
		"elapsed": out.TotalElapsed,
	}).Info("monitoring finished")
	return out, nil
}

func (l *Loop) sampleLoop(ctx context.Context, proc Process, series *TimeSeries, start time.Time, entry *log.Entry) types.State {
	if !l.wait(ctx, proc) {
		return types.StateInterrupted
	}

	for {
		if ctx.Err() != nil {
			return types.StateInterrupted
		}

		elapsed := l.clk.Since(start)
		if l.cfg.HasTimeout() && elapsed > l.cfg.Timeout {
			entry.WithField("timeout", l.cfg.Timeout).Warn("timeout exceeded")
			return types.StateTimedOut
		}

		if !proc.IsRunning() {
			return types.StateCompleted
		}

		reading, err := l.sampler.Sample(ctx, proc, l.cfg.IncludeDescendants)
		if err != nil {
			if ctx.Err() != nil {
				return types.StateInterrupted
			}
			entry.WithError(err).Debug("target no longer readable")
			return types.StateCompleted
		}

		sample := types.NewSample(elapsed, reading)
		if err := series.Append(sample); err != nil {
			entry.WithError(err).Warn("dropping sample")
		} else {
			snap := series.Snapshot()
			if l.cfg.LogsEnabled {
				LogSample(entry, sample, snap)
			}
			if l.observer != nil {
				l.observer(sample, snap)
			}
		}

		if !l.wait(ctx, proc) {
			return types.StateInterrupted
		}
	}
}

// wait sleeps one interval. It returns early when the target exits and
// reports false when ctx was cancelled.
func (l *Loop) wait(ctx context.Context, proc Process) bool {
	select {
	case <-ctx.Done():
		return false
	case <-proc.Done():
		return true
	case <-l.clk.After(l.cfg.Interval):
		return true
	}
}
