package cli

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/charmbracelet/huh"

	"github.com/dreamsxin/procmetrics/types"
)

// MenuCommand is an entry of the main menu.
type MenuCommand int

const (
	MenuRun MenuCommand = iota
	MenuSettings
	MenuQuit
)

func (c MenuCommand) String() string {
	switch c {
	case MenuRun:
		return "Run a target"
	case MenuSettings:
		return "Settings"
	case MenuQuit:
		return "Quit"
	default:
		return fmt.Sprintf("MenuCommand(%d)", int(c))
	}
}

// SettingCommand is an entry of the settings menu.
type SettingCommand int

const (
	SettingToggleLogs SettingCommand = iota
	SettingInterval
	SettingTimeout
	SettingDescendants
	SettingExport
	SettingBack
)

var settingCommands = []SettingCommand{
	SettingToggleLogs,
	SettingInterval,
	SettingTimeout,
	SettingDescendants,
	SettingExport,
	SettingBack,
}

// Label describes the command together with the current value it changes.
func (c SettingCommand) Label(cfg types.Config) string {
	switch c {
	case SettingToggleLogs:
		return "Per-sample logs: " + onOff(cfg.LogsEnabled)
	case SettingInterval:
		return "Sampling interval: " + formatSeconds(cfg.Interval)
	case SettingTimeout:
		return "Timeout: " + formatTimeout(cfg.Timeout)
	case SettingDescendants:
		return "Include child processes: " + onOff(cfg.IncludeDescendants)
	case SettingExport:
		return "Export CSV: " + onOff(cfg.ExportSeries)
	case SettingBack:
		return "Back"
	default:
		return fmt.Sprintf("SettingCommand(%d)", int(c))
	}
}

// Prompter asks the operator for input.
type Prompter interface {
	MainMenu() (MenuCommand, error)
	SettingsMenu(cfg types.Config) (SettingCommand, error)
	// Input asks for a line of text, validate may reject it
	Input(title, description string, validate func(string) error) (string, error)
}

type huhPrompter struct {
	accessible bool
}

// NewPrompter returns a terminal prompter built on huh forms.
func NewPrompter(accessible bool) Prompter {
	return &huhPrompter{accessible: accessible}
}

func (p *huhPrompter) run(field huh.Field) error {
	return huh.NewForm(huh.NewGroup(field)).
		WithAccessible(p.accessible).
		Run()
}

func (p *huhPrompter) MainMenu() (MenuCommand, error) {
	var cmd MenuCommand
	field := huh.NewSelect[MenuCommand]().
		Title("procmetrics").
		Options(
			huh.NewOption(MenuRun.String(), MenuRun),
			huh.NewOption(MenuSettings.String(), MenuSettings),
			huh.NewOption(MenuQuit.String(), MenuQuit),
		).
		Value(&cmd)
	return cmd, p.run(field)
}

func (p *huhPrompter) SettingsMenu(cfg types.Config) (SettingCommand, error) {
	var cmd SettingCommand
	options := make([]huh.Option[SettingCommand], 0, len(settingCommands))
	for _, c := range settingCommands {
		options = append(options, huh.NewOption(c.Label(cfg), c))
	}
	field := huh.NewSelect[SettingCommand]().
		Title("Settings").
		Options(options...).
		Value(&cmd)
	return cmd, p.run(field)
}

func (p *huhPrompter) Input(title, description string, validate func(string) error) (string, error) {
	var value string
	field := huh.NewInput().
		Title(title).
		Description(description).
		Value(&value)
	if validate != nil {
		field = field.Validate(validate)
	}
	return strings.TrimSpace(value), p.run(field)
}

// isAbort reports whether the operator left a form with ctrl+c or esc.
func isAbort(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}

// settingsMenu applies commands until the operator goes back.
func settingsMenu(p Prompter, settings *Settings) error {
	for {
		cmd, err := p.SettingsMenu(settings.Snapshot())
		if err != nil {
			if isAbort(err) {
				return nil
			}
			return err
		}

		switch cmd {
		case SettingToggleLogs:
			settings.ToggleLogs()
		case SettingDescendants:
			settings.ToggleDescendants()
		case SettingExport:
			settings.ToggleExport()
		case SettingInterval:
			err = promptSetting(p, "Sampling interval (seconds)", "A number greater than 0.", settings.SetInterval, validateSeconds)
		case SettingTimeout:
			err = promptSetting(p, "Timeout (seconds)", "Leave blank to disable.", settings.SetTimeout, validateTimeout)
		case SettingBack:
			return nil
		default:
			return errors.Errorf("unknown setting command %d", int(cmd))
		}
		if err != nil {
			return err
		}
	}
}

func promptSetting(p Prompter, title, description string, apply, validate func(string) error) error {
	value, err := p.Input(title, description, validate)
	if err != nil {
		if isAbort(err) {
			return nil
		}
		return err
	}
	return apply(value)
}

func validateSeconds(s string) error {
	_, err := types.ParseSeconds(s)
	return err
}

func validateTimeout(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateSeconds(s)
}

func validateTarget(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a target path is required")
	}
	return nil
}
