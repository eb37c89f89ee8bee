package monitor

import (
	"iter"

	"emperror.dev/errors"

	"github.com/dreamsxin/procmetrics/types"
)

// TimeSeries accumulates the samples of one run. Aggregates are maintained
// incrementally; the raw samples are only kept when retention is enabled.
//
// A TimeSeries has a single producer and is not safe for concurrent use.
type TimeSeries struct {
	retain  bool
	samples []types.Sample

	count   int
	sumMem  float64
	sumCPU  float64
	peakMem float64
	peakCPU float64
	last    types.Sample
}

// NewTimeSeries creates an empty series.
func NewTimeSeries(retain bool) *TimeSeries {
	return &TimeSeries{retain: retain}
}

// Append adds a sample. Elapsed time must not go backwards and metrics must
// not be negative.
func (ts *TimeSeries) Append(s types.Sample) error {
	if s.MemoryMB < 0 || s.CPUPercent < 0 || s.Elapsed < 0 {
		return errors.Errorf("negative sample values: %+v", s)
	}
	if ts.count > 0 && s.Elapsed < ts.last.Elapsed {
		return errors.WithDetails(errors.WithStack(types.ErrNonMonotonic), "previous", ts.last.Elapsed, "elapsed", s.Elapsed)
	}

	if ts.count == 0 || s.MemoryMB > ts.peakMem {
		ts.peakMem = s.MemoryMB
	}
	if ts.count == 0 || s.CPUPercent > ts.peakCPU {
		ts.peakCPU = s.CPUPercent
	}
	ts.sumMem += s.MemoryMB
	ts.sumCPU += s.CPUPercent
	ts.count++
	ts.last = s

	if ts.retain {
		ts.samples = append(ts.samples, s)
	}
	return nil
}

// Count returns the number of appended samples.
func (ts *TimeSeries) Count() int {
	return ts.count
}

// Retained reports whether raw samples are kept.
func (ts *TimeSeries) Retained() bool {
	return ts.retain
}

func (ts *TimeSeries) MeanMemory() (float64, error) {
	if ts.count == 0 {
		return 0, types.ErrEmptySeries
	}
	return ts.sumMem / float64(ts.count), nil
}

func (ts *TimeSeries) MeanCPU() (float64, error) {
	if ts.count == 0 {
		return 0, types.ErrEmptySeries
	}
	return ts.sumCPU / float64(ts.count), nil
}

func (ts *TimeSeries) PeakMemory() (float64, error) {
	if ts.count == 0 {
		return 0, types.ErrEmptySeries
	}
	return ts.peakMem, nil
}

func (ts *TimeSeries) PeakCPU() (float64, error) {
	if ts.count == 0 {
		return 0, types.ErrEmptySeries
	}
	return ts.peakCPU, nil
}

// Last returns the most recent sample.
func (ts *TimeSeries) Last() (types.Sample, bool) {
	return ts.last, ts.count > 0
}

// Samples returns a copy of the retained samples.
func (ts *TimeSeries) Samples() []types.Sample {
	return append([]types.Sample(nil), ts.samples...)
}

// Rows yields the retained samples as export rows.
func (ts *TimeSeries) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, s := range ts.samples {
			if !yield(RowFromSample(s)) {
				return
			}
		}
	}
}

// Snapshot is the running view of a series handed to observers.
type Snapshot struct {
	Count          int
	MeanMemoryMB   float64
	MeanCPUPercent float64
}

// Snapshot returns the current running means. It is zero for an empty series.
func (ts *TimeSeries) Snapshot() Snapshot {
	if ts.count == 0 {
		return Snapshot{}
	}
	return Snapshot{
		Count:          ts.count,
		MeanMemoryMB:   ts.sumMem / float64(ts.count),
		MeanCPUPercent: ts.sumCPU / float64(ts.count),
	}
}
