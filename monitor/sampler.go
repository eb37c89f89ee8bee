package monitor

import (
	"context"
	"slices"
	"sync"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/dreamsxin/procmetrics/types"
)

// Target is the process a sampler polls.
type Target interface {
	PID() int
	DescendantPIDs(ctx context.Context) ([]int, error)
}

// Sampler takes one resource reading of a target.
type Sampler interface {
	Sample(ctx context.Context, target Target, includeDescendants bool) (types.Reading, error)
}

// ProcSampler reads process metrics through gopsutil.
//
// CPU is reported as usage since the previous poll of the same PID, so the
// sampler keeps one process handle per PID between calls.
type ProcSampler struct {
	mu    sync.Mutex
	procs map[int32]*process.Process
}

// NewProcSampler creates a sampler with an empty process cache.
func NewProcSampler() *ProcSampler {
	return &ProcSampler{
		procs: make(map[int32]*process.Process),
	}
}

// Sample reads resident memory and CPU of target, summed over its live
// descendants when includeDescendants is set.
func (s *ProcSampler) Sample(ctx context.Context, target Target, includeDescendants bool) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := int32(target.PID())
	pids := []int32{root}

	if includeDescendants {
		children, err := target.DescendantPIDs(ctx)
		if err == nil {
			for _, pid := range children {
				pids = append(pids, int32(pid))
			}
		}
	}
	s.prune(pids)

	rss, cpu, err := s.read(ctx, root, true)
	if err != nil {
		delete(s.procs, root)
		return types.Reading{}, err
	}

	reading := types.Reading{MemoryBytes: rss, CPUPercent: cpu, Processes: 1}
	for _, pid := range pids[1:] {
		rss, cpu, err := s.read(ctx, pid, false)
		if err != nil {
			// 子进程可能已经退出
			delete(s.procs, pid)
			continue
		}
		reading.MemoryBytes += rss
		reading.CPUPercent += cpu
		reading.Processes++
	}

	return reading, nil
}

// Forget drops every cached process handle.
func (s *ProcSampler) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.procs)
}

func (s *ProcSampler) read(ctx context.Context, pid int32, isRoot bool) (uint64, float64, error) {
	p, err := s.process(ctx, pid)
	if err != nil {
		return 0, 0, errors.WithDetails(errors.Wrap(types.ErrSampleUnavailable, err.Error()), "pid", pid)
	}

	if isRoot {
		status, err := p.StatusWithContext(ctx)
		if err == nil && slices.Contains(status, process.Zombie) {
			return 0, 0, errors.WithDetails(errors.Wrap(types.ErrSampleUnavailable, "process is a zombie"), "pid", pid)
		}
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, errors.WithDetails(errors.Wrap(types.ErrSampleUnavailable, err.Error()), "pid", pid)
	}

	cpu, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		cpu = 0
	}

	return mem.RSS, cpu, nil
}

func (s *ProcSampler) process(ctx context.Context, pid int32) (*process.Process, error) {
	if p, ok := s.procs[pid]; ok {
		return p, nil
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	s.procs[pid] = p
	return p, nil
}

// prune removes cached handles for PIDs that left the tree
func (s *ProcSampler) prune(live []int32) {
	for pid := range s.procs {
		if !slices.Contains(live, pid) {
			delete(s.procs, pid)
		}
	}
}
