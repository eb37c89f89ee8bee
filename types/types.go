package types

import (
	"time"
)

// ProcessInfo contains information about a monitored target process
type ProcessInfo struct {
	RunID     string
	Name      string
	Args      []string
	PID       int
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	ExitErr   error
}

// Status returns the current status of the process as a string
func (p *ProcessInfo) Status() string {
	if p.Running {
		return "running"
	}
	if p.EndTime.IsZero() {
		return "pending"
	}
	return "exited"
}

// Uptime returns the duration the process has been running
func (p *ProcessInfo) Uptime() time.Duration {
	if p.Running {
		return time.Since(p.StartTime)
	}
	if !p.EndTime.IsZero() {
		return p.EndTime.Sub(p.StartTime)
	}
	return 0
}

// IsActive returns true if the process is currently running
func (p *ProcessInfo) IsActive() bool {
	return p.Running
}
