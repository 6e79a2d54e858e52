package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/manager"
)

// model is the Bubble Tea model for the drydock dashboard.
type model struct {
	manager    *manager.Manager
	cfg        *config.Config
	progress   *progressBoard
	input      textinput.Model
	cursor     int
	message    string
	isError    bool
	commanding bool // true when in command mode (/ pressed)
	quitting   bool
	width      int
	height     int

	// ids with a verb in flight
	busy map[string]compose.Verb

	showHelp bool

	// Double-press remove confirmation
	confirmRemove   bool
	confirmRemoveID string
}

func newModel(mgr *manager.Manager, cfg *config.Config, progress *progressBoard) model {
	ti := textinput.New()
	ti.Placeholder = "start, stop, restart, down <id|all> | refresh | quit"
	ti.CharLimit = 256
	ti.Width = 80
	ti.Blur()

	// Initial size so the first frame isn't rendered at width 0
	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	return model{
		manager:  mgr,
		cfg:      cfg,
		progress: progress,
		input:    ti,
		width:    w,
		height:   h,
		busy:     make(map[string]compose.Verb),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

// selected returns the id under the cursor.
func (m model) selected() (string, bool) {
	ids := m.manager.IDs()
	if m.cursor < 0 || m.cursor >= len(ids) {
		return "", false
	}
	return ids[m.cursor], true
}
