package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dreamsxin/procmetrics/monitor"
	"github.com/dreamsxin/procmetrics/system"
	"github.com/dreamsxin/procmetrics/types"
)

// App ties the settings, the prompter and the output together.
type App struct {
	Settings *Settings
	Prompt   Prompter
	Out      io.Writer
	Log      *log.Logger

	now func() time.Time
}

func NewApp(settings *Settings, prompt Prompter, out io.Writer, logger *log.Logger) *App {
	return &App{
		Settings: settings,
		Prompt:   prompt,
		Out:      out,
		Log:      logger,
		now:      time.Now,
	}
}

// RunTarget monitors one target with a snapshot of the current settings and
// prints the report. Ctrl+C interrupts the run, not the program.
func (a *App) RunTarget(ctx context.Context, target string, args ...string) (*monitor.Outcome, error) {
	cfg := a.Settings.Snapshot()
	renderBanner(a.Out, cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop, err := monitor.NewLoop(cfg, monitor.WithLogger(log.NewEntry(a.Log)))
	if err != nil {
		renderError(a.Out, err)
		return nil, err
	}

	startedAt := a.now()
	out, err := loop.Run(ctx, target, args...)
	if err != nil {
		renderError(a.Out, err)
		return out, err
	}

	res, err := out.Result()
	switch {
	case errors.Is(err, types.ErrEmptySeries):
		renderEmpty(a.Out, target, out.State, out.TotalElapsed)
	case err != nil:
		renderError(a.Out, err)
		return out, err
	default:
		var host *system.HostInfo
		if info, err := system.Host(ctx); err == nil {
			host = &info
		} else {
			a.Log.WithError(err).Debug("host info unavailable")
		}
		renderReport(a.Out, res, host)
	}

	if cfg.ExportSeries && out.Series.Count() > 0 {
		path, err := monitor.ExportSeries(cfg.ExportDir, target, startedAt, out.Series)
		if err != nil {
			renderError(a.Out, err)
			return out, err
		}
		renderExport(a.Out, path)
	}

	if out.Err != nil {
		renderError(a.Out, out.Err)
		return out, out.Err
	}
	return out, nil
}

// Interactive shows the main menu until the operator quits.
func (a *App) Interactive(ctx context.Context) error {
	for {
		cmd, err := a.Prompt.MainMenu()
		if err != nil {
			if isAbort(err) {
				return nil
			}
			return err
		}

		switch cmd {
		case MenuRun:
			target, err := a.Prompt.Input("Target", "Path of the program to monitor.", validateTarget)
			if err != nil {
				if isAbort(err) {
					continue
				}
				return err
			}
			// Failures are already reported, the menu stays open
			_, _ = a.RunTarget(ctx, target)
		case MenuSettings:
			if err := a.ConfigureSettings(); err != nil {
				return err
			}
		case MenuQuit:
			return nil
		default:
			return errors.Errorf("unknown menu command %d", int(cmd))
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// ConfigureSettings opens the settings menu.
func (a *App) ConfigureSettings() error {
	return settingsMenu(a.Prompt, a.Settings)
}
