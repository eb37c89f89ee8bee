//go:build !windows

package manager

import (
	"os/exec"
	"syscall"

	"emperror.dev/errors"
	"golang.org/x/sys/unix"
)

// createCommand creates a Unix-specific command
func createCommand(name string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create process group for Unix systems
	}
	return cmd, nil
}

// terminateProcessPlatform asks the process group to exit (SIGTERM)
func terminateProcessPlatform(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGTERM)
}

// killProcessPlatform kills the process and its children (SIGKILL)
func killProcessPlatform(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil {
		return nil
	}

	// Negative PID means signal the process group
	err := unix.Kill(-cmd.Process.Pid, sig)
	if err != nil {
		// 如果进程已经不存在，忽略错误
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}
