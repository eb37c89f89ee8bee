package manager

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dreamsxin/procmetrics/types"
)

// Handle owns one launched target process for the duration of a run.
type Handle struct {
	mu   sync.RWMutex
	info types.ProcessInfo
	cmd  *exec.Cmd
	done chan struct{}
	log  *log.Entry
}

// Launch starts name with args in its own process group and returns a handle
// to it. Any failure to spawn is reported as a *types.LaunchError.
func Launch(name string, args []string, opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cmd, err := createCommand(name, args)
	if err != nil {
		return nil, types.NewLaunchError(name, args, err)
	}
	cmd.Stdout = o.Stdout
	cmd.Stderr = o.Stderr
	cmd.Stdin = o.Stdin
	cmd.Dir = o.Dir
	cmd.Env = o.Env
	// A descendant holding our pipes open must not keep the exit unobserved
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, types.NewLaunchError(name, args, err)
	}

	h := &Handle{
		info: types.ProcessInfo{
			RunID:     o.RunID,
			Name:      name,
			Args:      append([]string(nil), args...),
			PID:       cmd.Process.Pid,
			Running:   true,
			StartTime: time.Now(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}
	h.log = o.Logger.WithField("pid", h.info.PID)

	// Observe the exit in background so liveness checks never block
	go h.waitProcess()

	h.log.WithField("command", name).Debug("started process")
	return h, nil
}

// LaunchTarget runs path through interpreter ("<interpreter> <path> args...").
// With an empty interpreter path is executed directly. When an interpreter is
// used the target file must exist, otherwise nothing is spawned.
func LaunchTarget(interpreter, path string, args []string, opts ...Option) (*Handle, error) {
	if interpreter == "" {
		return Launch(path, args, opts...)
	}

	fullArgs := append([]string{path}, args...)

	stat, err := os.Stat(path)
	if err != nil {
		return nil, types.NewLaunchError(interpreter, fullArgs, err)
	}
	if !stat.Mode().IsRegular() {
		return nil, types.NewLaunchError(interpreter, fullArgs, errors.Errorf("%s is not a regular file", path))
	}

	return Launch(interpreter, fullArgs, opts...)
}

// PID returns the process id of the target
func (h *Handle) PID() int {
	return h.info.PID
}

// Info returns a snapshot of the process bookkeeping
func (h *Handle) Info() types.ProcessInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := h.info
	info.Args = append([]string(nil), h.info.Args...)
	return info
}

// IsRunning reports whether the exit of the process has not been observed yet.
func (h *Handle) IsRunning() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the error reported by the process exit, nil while running
// or after a clean exit.
func (h *Handle) ExitErr() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info.ExitErr
}

// Terminate asks the process group to stop. It is a no-op once the process
// has exited and may be called any number of times.
func (h *Handle) Terminate() error {
	if !h.IsRunning() {
		return nil
	}

	h.log.Debug("terminating process")
	if err := terminateProcessPlatform(h.cmd); err != nil {
		// 进程可能已经在此期间退出
		if !h.IsRunning() {
			return nil
		}
		return errors.Wrapf(err, "failed to terminate process %d", h.info.PID)
	}
	return nil
}

// Kill forcibly stops the process group. Same idempotence as Terminate.
func (h *Handle) Kill() error {
	if !h.IsRunning() {
		return nil
	}

	h.log.Debug("killing process")
	if err := killProcessPlatform(h.cmd); err != nil {
		if !h.IsRunning() {
			return nil
		}
		return errors.Wrapf(err, "failed to kill process %d", h.info.PID)
	}
	return nil
}

// Wait blocks until the process has exited or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop terminates the process and escalates to Kill when it is still alive
// after grace. It returns once the process has been reaped.
func (h *Handle) Stop(grace time.Duration) error {
	if !h.IsRunning() {
		return nil
	}

	if err := h.Terminate(); err != nil {
		h.log.WithError(err).Warn("graceful termination failed")
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
	}

	h.log.WithField("grace", grace).Warn("process ignored termination request, killing it")
	if err := h.Kill(); err != nil {
		return err
	}
	<-h.done
	return nil
}

// DescendantPIDs lists the live processes transitively spawned by the target.
func (h *Handle) DescendantPIDs(ctx context.Context) ([]int, error) {
	if !h.IsRunning() {
		return nil, nil
	}
	return Descendants(ctx, h.info.PID)
}

// waitProcess reaps the process and records how it ended
func (h *Handle) waitProcess() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.info.Running = false
	h.info.EndTime = time.Now()
	h.info.ExitErr = err
	h.mu.Unlock()

	close(h.done)

	entry := h.log.WithField("uptime", h.info.EndTime.Sub(h.info.StartTime))
	if err != nil {
		entry.WithError(err).Debug("process exited with error")
		return
	}
	entry.Debug("process exited")
}
