package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dreamsxin/procmetrics/system"
	"github.com/dreamsxin/procmetrics/types"
	"github.com/dreamsxin/procmetrics/util"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
)

func renderBanner(w io.Writer, cfg types.Config) {
	titleColor.Fprintln(w, "procmetrics")
	fmt.Fprintf(w, "interval %s | timeout %s | logs %s | children %s | export %s\n",
		formatSeconds(cfg.Interval), formatTimeout(cfg.Timeout),
		onOff(cfg.LogsEnabled), onOff(cfg.IncludeDescendants), onOff(cfg.ExportSeries))
}

// reportTable renders the final summary of a run.
func reportTable(res types.RunResult, host *system.HostInfo) string {
	t := table.NewWriter()
	t.SetTitle("Run %s", util.ShortRunID(res.RunID))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Target", res.Target},
		{"PID", res.PID},
		{"Ended by", res.Reason},
		{"Duration", formatDuration(res.TotalElapsed)},
		{"Samples", res.SampleCount},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Mean RAM", fmt.Sprintf("%.2f MB", res.MeanMemoryMB)},
		{"Peak RAM", fmt.Sprintf("%.2f MB", res.PeakMemoryMB)},
		{"Mean CPU", fmt.Sprintf("%.1f%%", res.MeanCPUPercent)},
		{"Peak CPU", fmt.Sprintf("%.1f%%", res.PeakCPUPercent)},
	})
	if host != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Host memory", fmt.Sprintf("%.0f MB", host.TotalMemoryMB)},
			{"Logical CPUs", fmt.Sprintf("%d (max %.0f%%)", host.LogicalCPUs, host.MaxCPUPercent())},
		})
	}
	return t.Render()
}

func renderReport(w io.Writer, res types.RunResult, host *system.HostInfo) {
	fmt.Fprintln(w, reportTable(res, host))
}

// renderEmpty reports a run that ended before the first sample.
func renderEmpty(w io.Writer, target string, state types.State, elapsed time.Duration) {
	warnColor.Fprintf(w, "No samples collected for %s: the process %s after %s, before the first sampling interval.\n",
		target, state, formatDuration(elapsed))
}

func renderExport(w io.Writer, path string) {
	okColor.Fprintf(w, "Series exported to %s\n", path)
}

func renderError(w io.Writer, err error) {
	errColor.Fprintf(w, "Error: %v\n", err)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
