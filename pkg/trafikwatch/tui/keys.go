package tui

import tea "github.com/charmbracelet/bubbletea"

// Key bindings.
const (
	keyQuit        = "q"
	keyQuitAlt     = "ctrl+c"
	keyRefresh     = "r"
	keySelectPrev  = "up"
	keySelectPrevK = "k"
	keySelectNext  = "down"
	keySelectNextJ = "j"
	keyExpand      = "enter"
	keyCollapse    = "esc"
	keyToggleHelp  = "?"
)

// handleKey processes keyboard input. It reports whether the key was
// consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == keyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == keyCollapse {
		m.showHelp = false
		return true, nil
	}
	if m.mode == viewDetail && key == keyCollapse {
		m.mode = viewList
		return true, nil
	}

	switch key {
	case keyQuit, keyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case keyRefresh:
		// Out-of-band poll of the selected target in detail view, of
		// everything in list view. The regular cadence is unaffected.
		if m.mode == viewDetail && m.selected < len(m.rows) {
			m.engine.PollNow(m.rows[m.selected].Target.Key())
		} else {
			m.engine.PollNow("")
		}
		return true, nil

	case keySelectPrev, keySelectPrevK:
		if m.selected > 0 {
			m.selected--
		}
		return true, nil

	case keySelectNext, keySelectNextJ:
		if m.selected < len(m.rows)-1 {
			m.selected++
		}
		return true, nil

	case keyExpand:
		if m.mode == viewList && len(m.rows) > 0 {
			m.mode = viewDetail
		}
		return true, nil

	case keyCollapse:
		m.mode = viewList
		return true, nil
	}

	return false, nil
}
