package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dreamsxin/procmetrics/types"
)

// Settings holds the operator configuration between runs. Runs never read it
// directly, they work on a Snapshot.
type Settings struct {
	mu  sync.RWMutex
	cfg types.Config
}

func NewSettings(cfg types.Config) *Settings {
	return &Settings{cfg: cfg}
}

// Snapshot returns a copy of the current configuration.
func (s *Settings) Snapshot() types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Settings) update(fn func(*types.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

func (s *Settings) ToggleLogs() {
	s.update(func(c *types.Config) { c.LogsEnabled = !c.LogsEnabled })
}

func (s *Settings) ToggleDescendants() {
	s.update(func(c *types.Config) { c.IncludeDescendants = !c.IncludeDescendants })
}

func (s *Settings) ToggleExport() {
	s.update(func(c *types.Config) { c.ExportSeries = !c.ExportSeries })
}

// SetInterval parses seconds and stores the interval. Invalid input leaves
// the setting unchanged.
func (s *Settings) SetInterval(input string) error {
	d, err := types.ParseSeconds(input)
	if err != nil {
		return err
	}
	s.update(func(c *types.Config) { c.Interval = d })
	return nil
}

// SetTimeout parses seconds and stores the timeout. Blank input disables it.
func (s *Settings) SetTimeout(input string) error {
	if strings.TrimSpace(input) == "" {
		s.update(func(c *types.Config) { c.Timeout = 0 })
		return nil
	}
	d, err := types.ParseSeconds(input)
	if err != nil {
		return err
	}
	s.update(func(c *types.Config) { c.Timeout = d })
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%gs", d.Seconds())
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return formatSeconds(d)
}
