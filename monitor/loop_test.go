package monitor

import (
	"context"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsxin/procmetrics/manager"
	"github.com/dreamsxin/procmetrics/types"
)

type fakeProc struct {
	pid     int
	done    chan struct{}
	once    sync.Once
	stopped atomic.Int32
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, done: make(chan struct{})}
}

func (p *fakeProc) PID() int { return p.pid }

func (p *fakeProc) DescendantPIDs(context.Context) ([]int, error) { return nil, nil }

func (p *fakeProc) IsRunning() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProc) Done() <-chan struct{} { return p.done }

func (p *fakeProc) exit() {
	p.once.Do(func() { close(p.done) })
}

func (p *fakeProc) Stop(time.Duration) error {
	p.stopped.Add(1)
	p.exit()
	return nil
}

type fakeSampler struct {
	calls   atomic.Int32
	reading types.Reading
	// fail makes every call after the baseline return an error
	fail bool
}

func (s *fakeSampler) Sample(context.Context, Target, bool) (types.Reading, error) {
	n := s.calls.Add(1)
	if s.fail && n > 1 {
		return types.Reading{}, errors.WithStack(types.ErrSampleUnavailable)
	}
	return s.reading, nil
}

func launcherFor(p Process) Launcher {
	return func(string, string, []string, ...manager.Option) (Process, error) {
		return p, nil
	}
}

func testConfig(interval, timeout time.Duration) types.Config {
	cfg := types.DefaultConfig()
	cfg.Interval = interval
	cfg.Timeout = timeout
	cfg.LogsEnabled = false
	cfg.ExportSeries = true
	cfg.Interpreter = ""
	return cfg
}

func TestNewLoop_InvalidConfig(t *testing.T) {
	_, err := NewLoop(testConfig(0, 0))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = NewLoop(testConfig(time.Second, -time.Second))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestLoop_LaunchFailure(t *testing.T) {
	sampler := &fakeSampler{}
	launchErr := types.NewLaunchError("python3", []string{"missing.py"}, exec.ErrNotFound)
	loop, err := NewLoop(testConfig(10*time.Millisecond, 0),
		WithSampler(sampler),
		WithLauncher(func(string, string, []string, ...manager.Option) (Process, error) {
			return nil, launchErr
		}),
	)
	require.NoError(t, err)

	out, err := loop.Run(context.Background(), "missing.py")
	require.Error(t, err)
	assert.True(t, types.IsLaunchError(err))
	assert.Equal(t, types.StateFailed, out.State)
	assert.Equal(t, int32(0), sampler.calls.Load())

	_, err = out.Result()
	assert.True(t, types.IsLaunchError(err))
}

func TestLoop_MockClockTimeout(t *testing.T) {
	mock := clock.NewMock()
	proc := newFakeProc(100)
	sampler := &fakeSampler{reading: types.Reading{MemoryBytes: 64 * types.BytesPerMB, CPUPercent: 25, Processes: 1}}

	loop, err := NewLoop(testConfig(time.Second, 5*time.Second),
		WithSampler(sampler),
		WithLauncher(launcherFor(proc)),
		WithClock(mock),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				mock.Add(10 * time.Millisecond)
			}
		}
	}()

	out, err := loop.Run(context.Background(), "job.py")
	close(done)
	require.NoError(t, err)

	assert.Equal(t, types.StateTimedOut, out.State)
	assert.Greater(t, out.TotalElapsed, 5*time.Second)
	assert.Equal(t, int32(1), proc.stopped.Load())

	samples := out.Series.Samples()
	require.NotEmpty(t, samples)
	assert.LessOrEqual(t, len(samples), 5)
	for _, s := range samples {
		assert.GreaterOrEqual(t, s.Elapsed, time.Second)
		assert.LessOrEqual(t, s.Elapsed, 5*time.Second, "no sample is taken past the timeout")
		assert.Equal(t, 64.0, s.MemoryMB)
	}
	// Baseline plus one call per recorded sample
	assert.Equal(t, int32(len(samples)+1), sampler.calls.Load())

	res, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, types.TimeoutExceeded, res.Reason)
	assert.Equal(t, 100, res.PID)
	assert.Equal(t, "job.py", res.Target)
	assert.Equal(t, out.RunID, res.RunID)
}

func TestLoop_ProcessExitCompletes(t *testing.T) {
	proc := newFakeProc(7)
	loop, err := NewLoop(testConfig(5*time.Millisecond, 0),
		WithSampler(&fakeSampler{reading: types.Reading{MemoryBytes: types.BytesPerMB}}),
		WithLauncher(launcherFor(proc)),
		WithObserver(func(_ types.Sample, snap Snapshot) {
			if snap.Count == 3 {
				proc.exit()
			}
		}),
	)
	require.NoError(t, err)

	out, err := loop.Run(context.Background(), "job.py")
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, out.State)
	assert.Equal(t, 3, out.Series.Count())
	assert.Equal(t, int32(0), proc.stopped.Load(), "an exited target is not signalled")

	res, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, types.ProcessExited, res.Reason)
	assert.Equal(t, 1.0, res.PeakMemoryMB)
}

func TestLoop_SampleErrorCompletes(t *testing.T) {
	proc := newFakeProc(7)
	loop, err := NewLoop(testConfig(5*time.Millisecond, 0),
		WithSampler(&fakeSampler{fail: true}),
		WithLauncher(launcherFor(proc)),
	)
	require.NoError(t, err)

	out, err := loop.Run(context.Background(), "job.py")
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, out.State)
	assert.Equal(t, 0, out.Series.Count())
	// Still alive when sampling failed, so it is stopped
	assert.Equal(t, int32(1), proc.stopped.Load())

	_, err = out.Result()
	assert.ErrorIs(t, err, types.ErrEmptySeries)
}

// stubbornProc survives every stop request
type stubbornProc struct {
	*fakeProc
}

func (p *stubbornProc) Stop(time.Duration) error {
	p.stopped.Add(1)
	return errors.New("operation not permitted")
}

func TestLoop_StopFailureDoesNotBlock(t *testing.T) {
	proc := &stubbornProc{fakeProc: newFakeProc(7)}
	loop, err := NewLoop(testConfig(5*time.Millisecond, 50*time.Millisecond),
		WithSampler(&fakeSampler{}),
		WithLauncher(launcherFor(proc)),
	)
	require.NoError(t, err)

	result := make(chan *Outcome, 1)
	go func() {
		out, _ := loop.Run(context.Background(), "job.py")
		result <- out
	}()

	var out *Outcome
	select {
	case out = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the target could not be stopped")
	}

	assert.Equal(t, types.StateTimedOut, out.State)
	assert.Equal(t, int32(1), proc.stopped.Load())
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "operation not permitted")
	assert.True(t, proc.IsRunning())

	// The samples taken before the timeout still make a report
	res, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, types.TimeoutExceeded, res.Reason)
}

func TestLoop_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := newFakeProc(7)
	loop, err := NewLoop(testConfig(5*time.Millisecond, 0),
		WithSampler(&fakeSampler{}),
		WithLauncher(launcherFor(proc)),
		WithObserver(func(_ types.Sample, snap Snapshot) {
			if snap.Count == 2 {
				cancel()
			}
		}),
	)
	require.NoError(t, err)

	out, err := loop.Run(ctx, "job.py")
	require.NoError(t, err)

	assert.Equal(t, types.StateInterrupted, out.State)
	assert.Equal(t, 2, out.Series.Count())
	assert.Equal(t, int32(1), proc.stopped.Load())
	assert.False(t, proc.IsRunning())

	res, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, types.UserInterrupted, res.Reason)
}

func TestLoop_RunInProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once sync.Once
	loop, err := NewLoop(testConfig(5*time.Millisecond, 0),
		WithSampler(&fakeSampler{}),
		WithLauncher(launcherFor(newFakeProc(7))),
		WithObserver(func(types.Sample, Snapshot) {
			once.Do(func() { close(started) })
		}),
	)
	require.NoError(t, err)

	result := make(chan *Outcome, 1)
	go func() {
		out, _ := loop.Run(ctx, "first.py")
		result <- out
	}()
	<-started

	_, err = loop.Run(ctx, "second.py")
	assert.ErrorIs(t, err, types.ErrRunInProgress)

	cancel()
	out := <-result
	assert.Equal(t, types.StateInterrupted, out.State)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses unix commands")
	}
}

// capture records the process launched by the default launcher
func capture(dst *Process) LoopOption {
	return WithLauncher(func(interpreter, target string, args []string, opts ...manager.Option) (Process, error) {
		p, err := launchHandle(interpreter, target, args, opts...)
		*dst = p
		return p, err
	})
}

func quietProcess() LoopOption {
	return WithProcessOptions(manager.WithStdout(nil), manager.WithStderr(nil))
}

func TestLoop_TimeoutStopsRealProcess(t *testing.T) {
	skipOnWindows(t)

	var proc Process
	loop, err := NewLoop(testConfig(100*time.Millisecond, 500*time.Millisecond), capture(&proc), quietProcess())
	require.NoError(t, err)

	out, err := loop.Run(context.Background(), "sleep", "5")
	require.NoError(t, err)

	assert.Equal(t, types.StateTimedOut, out.State)
	assert.GreaterOrEqual(t, out.TotalElapsed, 500*time.Millisecond)
	// Resolution is bounded by one interval
	assert.LessOrEqual(t, out.TotalElapsed, 600*time.Millisecond)
	require.NotNil(t, proc)
	assert.False(t, proc.IsRunning())
	assert.NotZero(t, out.Series.Count())
}

func TestLoop_FastExitHasNoSamples(t *testing.T) {
	skipOnWindows(t)

	loop, err := NewLoop(testConfig(time.Second, 0), quietProcess())
	require.NoError(t, err)

	start := time.Now()
	out, err := loop.Run(context.Background(), "true")
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, out.State)
	assert.Equal(t, 0, out.Series.Count())
	assert.Less(t, time.Since(start), time.Second, "exit is observed before the first interval ends")

	_, err = out.Result()
	assert.ErrorIs(t, err, types.ErrEmptySeries)
}

func TestLoop_SamplesRealProcess(t *testing.T) {
	skipOnWindows(t)

	var observed atomic.Int32
	loop, err := NewLoop(testConfig(50*time.Millisecond, 0),
		quietProcess(),
		WithObserver(func(types.Sample, Snapshot) { observed.Add(1) }),
	)
	require.NoError(t, err)

	out, err := loop.Run(context.Background(), "sleep", "0.5")
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, out.State)
	assert.Greater(t, out.Series.Count(), 2)
	assert.Equal(t, int32(out.Series.Count()), observed.Load())

	res, err := out.Result()
	require.NoError(t, err)
	assert.Greater(t, res.PeakMemoryMB, 0.0)
	assert.GreaterOrEqual(t, res.PeakMemoryMB, res.MeanMemoryMB)
}
