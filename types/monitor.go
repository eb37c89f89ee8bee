package types

import (
	"fmt"
	"time"
)

// BytesPerMB is the binary megabyte used for every memory figure.
const BytesPerMB = 1024 * 1024

// Reading is one resource poll of a target, possibly summed over its subtree.
type Reading struct {
	MemoryBytes uint64  `json:"memory_bytes"`
	CPUPercent  float64 `json:"cpu_percent"`
	Processes   int     `json:"processes"`
}

// MemoryMB returns the resident memory in binary megabytes.
func (r Reading) MemoryMB() float64 {
	return float64(r.MemoryBytes) / BytesPerMB
}

// Sample is a single point of the time series.
type Sample struct {
	Elapsed    time.Duration `json:"elapsed"`
	MemoryMB   float64       `json:"memory_mb"`
	CPUPercent float64       `json:"cpu_percent"`
}

// NewSample stamps a reading with the elapsed time of its tick.
func NewSample(elapsed time.Duration, r Reading) Sample {
	return Sample{
		Elapsed:    elapsed,
		MemoryMB:   r.MemoryMB(),
		CPUPercent: r.CPUPercent,
	}
}

// TerminationReason explains why a run ended.
type TerminationReason int

const (
	ProcessExited TerminationReason = iota
	TimeoutExceeded
	UserInterrupted
)

func (r TerminationReason) String() string {
	switch r {
	case ProcessExited:
		return "process exited"
	case TimeoutExceeded:
		return "timeout exceeded"
	case UserInterrupted:
		return "interrupted by user"
	default:
		return fmt.Sprintf("TerminationReason(%d)", int(r))
	}
}

// State of a monitoring run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateInterrupted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed out"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Reason maps a terminal state to its termination reason. Failed and
// non-terminal states have none.
func (s State) Reason() (TerminationReason, bool) {
	switch s {
	case StateCompleted:
		return ProcessExited, true
	case StateTimedOut:
		return TimeoutExceeded, true
	case StateInterrupted:
		return UserInterrupted, true
	default:
		return 0, false
	}
}

// RunResult is the final summary of a run.
type RunResult struct {
	RunID          string            `json:"run_id"`
	Target         string            `json:"target"`
	PID            int               `json:"pid"`
	TotalElapsed   time.Duration     `json:"total_elapsed"`
	MeanMemoryMB   float64           `json:"mean_memory_mb"`
	PeakMemoryMB   float64           `json:"peak_memory_mb"`
	MeanCPUPercent float64           `json:"mean_cpu_percent"`
	PeakCPUPercent float64           `json:"peak_cpu_percent"`
	SampleCount    int               `json:"sample_count"`
	Reason         TerminationReason `json:"reason"`
}
