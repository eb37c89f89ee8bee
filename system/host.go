package system

import (
	"context"
	"runtime"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dreamsxin/procmetrics/types"
)

// HostInfo describes the machine a run was measured on.
type HostInfo struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	TotalMemoryMB   float64 `json:"total_memory_mb"`
	LogicalCPUs     int     `json:"logical_cpus"`
}

// MaxCPUPercent is the CPU percent of a process saturating every logical CPU.
func (h HostInfo) MaxCPUPercent() float64 {
	return float64(h.LogicalCPUs) * 100
}

// Host collects the host context. Memory and CPU count are required, the
// platform description is best effort.
func Host(ctx context.Context) (HostInfo, error) {
	var info HostInfo

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, errors.Wrap(err, "failed to read memory info")
	}
	info.TotalMemoryMB = float64(vm.Total) / types.BytesPerMB

	info.LogicalCPUs, err = cpu.CountsWithContext(ctx, true)
	if err != nil || info.LogicalCPUs == 0 {
		info.LogicalCPUs = runtime.NumCPU()
	}

	info.OS = runtime.GOOS
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
	}

	return info, nil
}
