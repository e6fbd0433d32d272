// Package tui renders the interactive dashboard: one row per watched
// interface with live rates and a history sparkline, plus a drill-down
// detail view. The dashboard only reads scheduler snapshots; all polling
// machinery stays behind the Engine interface.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/netwatch/trafikwatch/pkg/trafikwatch/scheduler"
)

// Engine is the slice of app.App the dashboard consumes.
type Engine interface {
	Snapshot() []scheduler.TargetStatus
	PollNow(key string)
	Interval() time.Duration
}

// viewMode selects the active screen.
type viewMode int

const (
	viewList viewMode = iota
	viewDetail
)

// refreshInterval is how often the dashboard re-reads the snapshot. Polling
// runs on its own cadence; this only bounds display staleness.
const refreshInterval = time.Second

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	engine Engine

	rows     []scheduler.TargetStatus
	selected int

	width  int
	height int

	mode     viewMode
	showHelp bool
	quitting bool

	lastUpdate time.Time
}

// NewModel builds the dashboard over a running engine.
func NewModel(engine Engine) Model {
	return Model{
		engine: engine,
		rows:   engine.Snapshot(),
	}
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.rows = m.engine.Snapshot()
		m.lastUpdate = time.Time(msg)
		m.clampSelection()
		return m, tickCmd()

	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// Run starts the dashboard in the alternate screen and blocks until quit.
func Run(engine Engine) error {
	p := tea.NewProgram(NewModel(engine), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
