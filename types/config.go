package types

import (
	"math"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
)

const (
	DefaultInterval    = time.Second
	DefaultInterpreter = "python3"
	DefaultKillGrace   = 3 * time.Second
)

// Config is the per-run monitoring configuration. It is passed by value so
// every run works on its own snapshot.
type Config struct {
	LogsEnabled        bool          `json:"logs_enabled"`
	Interval           time.Duration `json:"interval"`
	Timeout            time.Duration `json:"timeout"` // 0 disables the timeout
	IncludeDescendants bool          `json:"include_descendants"`
	ExportSeries       bool          `json:"export_series"`
	Interpreter        string        `json:"interpreter"`
	ExportDir          string        `json:"export_dir"`
	KillGrace          time.Duration `json:"kill_grace"`
}

// DefaultConfig returns the configuration the tool starts with.
func DefaultConfig() Config {
	return Config{
		LogsEnabled: true,
		Interval:    DefaultInterval,
		Interpreter: DefaultInterpreter,
		ExportDir:   ".",
		KillGrace:   DefaultKillGrace,
	}
}

// HasTimeout reports whether the run is bounded.
func (c Config) HasTimeout() bool {
	return c.Timeout > 0
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.WithDetails(
			errors.Wrap(ErrInvalidConfiguration, "interval must be greater than 0"),
			"interval", c.Interval,
		)
	}
	if c.Timeout < 0 {
		return errors.WithDetails(
			errors.Wrap(ErrInvalidConfiguration, "timeout must be greater than 0"),
			"timeout", c.Timeout,
		)
	}
	if c.KillGrace < 0 {
		return errors.WithDetails(
			errors.Wrap(ErrInvalidConfiguration, "kill grace must not be negative"),
			"kill_grace", c.KillGrace,
		)
	}
	return nil
}

// ParseSeconds converts operator input in (fractional) seconds to a
// duration. Only finite values greater than zero are accepted.
func ParseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfiguration, "%q is not a number", s)
	}
	return SecondsToDuration(v)
}

// SecondsToDuration converts seconds to a duration, rejecting values <= 0.
func SecondsToDuration(v float64) (time.Duration, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrInvalidConfiguration, "%v is not a finite number", v)
	}
	if v <= 0 {
		return 0, errors.Wrap(ErrInvalidConfiguration, "value must be greater than 0")
	}
	if v > math.MaxInt64/float64(time.Second) {
		return 0, errors.Wrapf(ErrInvalidConfiguration, "%v seconds is out of range", v)
	}
	d := time.Duration(v * float64(time.Second))
	if d <= 0 {
		return 0, errors.Wrap(ErrInvalidConfiguration, "value is below the clock resolution")
	}
	return d, nil
}
