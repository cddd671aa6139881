package tui

import (
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/bubbles/key"
)

// View names accepted by Run.
const (
	ViewInspectReport = "inspect_report"
	ViewGenerate      = "generate"
)

// views maps each view name to the program that shows its payload.
var views = map[string]func(data any) error{
	ViewInspectReport: runReport,
	ViewGenerate:      runReport,
}

// Run shows data in the view registered as viewType and blocks until the
// user quits.
func Run(viewType string, data any) error {
	run, ok := views[viewType]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	if err := run(data); err != nil {
		return fmt.Errorf("%s: %w", viewType, err)
	}
	return nil
}

// IsTUISupported reports whether viewType has an interactive view.
func IsTUISupported(viewType string) bool {
	_, ok := views[viewType]
	return ok
}

// SupportedTUIViews lists the view names in sorted order.
func SupportedTUIViews() []string {
	return slices.Sorted(maps.Keys(views))
}

func runReport(data any) error {
	d, ok := data.(*ReportData)
	if !ok {
		return fmt.Errorf("unexpected data type %T", data)
	}
	return RunReportTUI(d)
}

// keyMap implements help.KeyMap for the help line.
type keyMap struct {
	Up, Down, Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Up, k.Down, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}
