package monitor

import (
	"time"

	"github.com/dreamsxin/procmetrics/types"
)

// BuildReport summarizes a finished series. Run identity fields are left for
// the caller to fill in.
func BuildReport(series *TimeSeries, totalElapsed time.Duration, reason types.TerminationReason) (types.RunResult, error) {
	if series == nil || series.Count() == 0 {
		return types.RunResult{}, types.ErrEmptySeries
	}

	// Non-empty series cannot fail below
	meanMem, _ := series.MeanMemory()
	peakMem, _ := series.PeakMemory()
	meanCPU, _ := series.MeanCPU()
	peakCPU, _ := series.PeakCPU()

	return types.RunResult{
		TotalElapsed:   totalElapsed,
		MeanMemoryMB:   meanMem,
		PeakMemoryMB:   peakMem,
		MeanCPUPercent: meanCPU,
		PeakCPUPercent: peakCPU,
		SampleCount:    series.Count(),
		Reason:         reason,
	}, nil
}
