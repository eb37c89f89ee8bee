package monitor

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dreamsxin/procmetrics/types"
)

// FormatSampleLine renders the per-sample status line.
func FormatSampleLine(s types.Sample, snap Snapshot) string {
	return fmt.Sprintf("RAM: %.2f MB | Mean RAM: %.2f MB | CPU: %.1f%% | Mean CPU: %.1f%% | Time: %s",
		s.MemoryMB, snap.MeanMemoryMB, s.CPUPercent, snap.MeanCPUPercent, formatElapsed(s.Elapsed))
}

// LogSample emits one sample with its running means as structured fields.
func LogSample(entry *log.Entry, s types.Sample, snap Snapshot) {
	entry.WithFields(log.Fields{
		"elapsed":      s.Elapsed.Seconds(),
		"ram_mb":       s.MemoryMB,
		"mean_ram_mb":  snap.MeanMemoryMB,
		"cpu_percent":  s.CPUPercent,
		"mean_cpu_pct": snap.MeanCPUPercent,
	}).Info(FormatSampleLine(s, snap))
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
