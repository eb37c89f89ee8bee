//go:build windows

package manager

import (
	"fmt"
	"os/exec"
	"syscall"

	"emperror.dev/errors"
	"golang.org/x/sys/windows"
)

// createCommand creates a Windows-specific command
func createCommand(name string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd, nil
}

// terminateProcessPlatform stops the process tree. Console programs do not
// receive window messages, so there is no softer request than taskkill /T.
func terminateProcessPlatform(cmd *exec.Cmd) error {
	return killProcessPlatform(cmd)
}

// killProcessPlatform terminates a process and its children on Windows
func killProcessPlatform(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid

	// taskkill also walks the child tree
	killCmd := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", pid))
	if err := killCmd.Run(); err == nil {
		return nil
	}

	// Fall back to TerminateProcess for the root alone
	return terminateProcessAPI(pid)
}

// terminateProcessAPI terminates the process directly through the Windows API
func terminateProcessAPI(pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		// 进程已经不存在
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) || errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil
		}
		return errors.Wrapf(err, "failed to open process %d", pid)
	}
	defer windows.CloseHandle(handle)

	if err := windows.TerminateProcess(handle, 1); err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return nil
		}
		return errors.Wrapf(err, "failed to terminate process %d", pid)
	}
	return nil
}
