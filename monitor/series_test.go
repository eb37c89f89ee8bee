package monitor

import (
	"math/rand/v2"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamsxin/procmetrics/types"
)

func sample(sec float64, mem, cpu float64) types.Sample {
	return types.Sample{
		Elapsed:    time.Duration(sec * float64(time.Second)),
		MemoryMB:   mem,
		CPUPercent: cpu,
	}
}

func TestTimeSeries_Empty(t *testing.T) {
	ts := NewTimeSeries(true)

	assert.Equal(t, 0, ts.Count())
	for _, fn := range []func() (float64, error){ts.MeanMemory, ts.MeanCPU, ts.PeakMemory, ts.PeakCPU} {
		_, err := fn()
		assert.ErrorIs(t, err, types.ErrEmptySeries)
	}

	_, ok := ts.Last()
	assert.False(t, ok)
	assert.Empty(t, ts.Samples())
	assert.Equal(t, Snapshot{}, ts.Snapshot())
}

func TestTimeSeries_Aggregates(t *testing.T) {
	ts := NewTimeSeries(false)

	require.NoError(t, ts.Append(sample(1, 10, 50)))
	require.NoError(t, ts.Append(sample(2, 30, 150)))
	require.NoError(t, ts.Append(sample(3, 20, 100)))

	mean, err := ts.MeanMemory()
	require.NoError(t, err)
	assert.InDelta(t, 20, mean, 1e-9)

	peak, err := ts.PeakMemory()
	require.NoError(t, err)
	assert.Equal(t, 30.0, peak)

	meanCPU, err := ts.MeanCPU()
	require.NoError(t, err)
	assert.InDelta(t, 100, meanCPU, 1e-9)

	peakCPU, err := ts.PeakCPU()
	require.NoError(t, err)
	assert.Equal(t, 150.0, peakCPU)

	last, ok := ts.Last()
	require.True(t, ok)
	assert.Equal(t, sample(3, 20, 100), last)

	// Nothing is retained without export
	assert.Empty(t, ts.Samples())
	assert.Equal(t, 3, ts.Snapshot().Count)
}

func TestTimeSeries_RejectsNonMonotonic(t *testing.T) {
	ts := NewTimeSeries(true)

	require.NoError(t, ts.Append(sample(2, 1, 1)))
	require.NoError(t, ts.Append(sample(2, 1, 1)), "equal elapsed is allowed")

	err := ts.Append(sample(1, 1, 1))
	assert.True(t, errors.Is(err, types.ErrNonMonotonic))
	assert.Equal(t, 2, ts.Count())
	assert.Len(t, ts.Samples(), 2)
}

func TestTimeSeries_RejectsNegative(t *testing.T) {
	ts := NewTimeSeries(true)

	assert.Error(t, ts.Append(sample(1, -1, 0)))
	assert.Error(t, ts.Append(sample(1, 0, -1)))
	assert.Equal(t, 0, ts.Count())
}

func TestTimeSeries_RandomizedMatchesStats(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 50; round++ {
		ts := NewTimeSeries(true)
		n := 1 + rng.IntN(200)
		mems := make(stats.Float64Data, 0, n)
		cpus := make(stats.Float64Data, 0, n)

		for i := 0; i < n; i++ {
			mem := rng.Float64() * 4096
			cpu := rng.Float64() * 800
			mems = append(mems, mem)
			cpus = append(cpus, cpu)
			require.NoError(t, ts.Append(sample(float64(i)*0.1, mem, cpu)))
		}

		wantMean, _ := stats.Mean(mems)
		wantMax, _ := stats.Max(mems)
		wantMeanCPU, _ := stats.Mean(cpus)
		wantMaxCPU, _ := stats.Max(cpus)

		mean, _ := ts.MeanMemory()
		peak, _ := ts.PeakMemory()
		meanCPU, _ := ts.MeanCPU()
		peakCPU, _ := ts.PeakCPU()

		assert.InDelta(t, wantMean, mean, 1e-6)
		assert.Equal(t, wantMax, peak)
		assert.InDelta(t, wantMeanCPU, meanCPU, 1e-6)
		assert.Equal(t, wantMaxCPU, peakCPU)

		assert.GreaterOrEqual(t, peak, mean)
		assert.GreaterOrEqual(t, mean, 0.0)
		assert.GreaterOrEqual(t, peakCPU, meanCPU)
		assert.Equal(t, n, ts.Count())
		assert.Len(t, ts.Samples(), n)
	}
}

func TestTimeSeries_RowsStopEarly(t *testing.T) {
	ts := NewTimeSeries(true)
	for i := 0; i < 5; i++ {
		require.NoError(t, ts.Append(sample(float64(i), 1, 1)))
	}

	var seen int
	for range ts.Rows() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
