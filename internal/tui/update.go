package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/runtime"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6 // account for "  > /" prefix
		return m, nil

	case statusTickMsg:
		if len(m.busy) > 0 {
			// running verbs report their own states
			return m, tickCmd()
		}
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case statesRefreshedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Refresh failed: %v", msg.err)
			m.isError = true
		}
		return m, nil

	case operationDoneMsg:
		for _, id := range msg.ids {
			delete(m.busy, id)
		}
		m.progress.clear(msg.ids...)
		m.message, m.isError = summarize(msg)
		return m, nil

	case confirmRemoveExpiredMsg:
		m.confirmRemove = false
		m.confirmRemoveID = ""
		return m, nil

	case tea.KeyMsg:
		if m.commanding {
			return m.handleCommandMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	// Forward to input if in command mode
	if m.commanding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleNormalMode handles keys when navigating the deployment list.
func (m model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "esc" {
			m.showHelp = false
			return m, nil
		}
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// Second d confirms a remove, anything else cancels
	if m.confirmRemove {
		m.confirmRemove = false
		id := m.confirmRemoveID
		m.confirmRemoveID = ""
		if msg.String() == "d" {
			return m.launch(compose.VerbRemove, []string{id})
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.commanding = true
		m.input.Focus()
		m.input.SetValue("")
		return m, textinput.Blink

	case "s":
		if id, ok := m.selected(); ok {
			return m.launch(compose.VerbStart, []string{id})
		}
		return m, nil

	case "x":
		if id, ok := m.selected(); ok {
			return m.launch(compose.VerbStop, []string{id})
		}
		return m, nil

	case "r":
		if id, ok := m.selected(); ok {
			return m.launch(compose.VerbRestart, []string{id})
		}
		return m, nil

	case "d":
		if id, ok := m.selected(); ok {
			m.confirmRemove = true
			m.confirmRemoveID = id
			return m, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
				return confirmRemoveExpiredMsg{}
			})
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "up", "k":
		ids := m.manager.IDs()
		if m.cursor > 0 {
			m.cursor--
		} else if len(ids) > 0 {
			m.cursor = len(ids) - 1
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.manager.IDs())-1 {
			m.cursor++
		}
		return m, nil
	}

	return m, nil
}

// handleCommandMode handles keys when the command input is active.
func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		m.commanding = false
		m.input.Blur()
		return m.processInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

var commandVerbs = map[string]compose.Verb{
	"/start":   compose.VerbStart,
	"/stop":    compose.VerbStop,
	"/restart": compose.VerbRestart,
	"/down":    compose.VerbRemove,
}

func (m model) processInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	// Allow commands with or without the / prefix
	if input[0] != '/' {
		input = "/" + input
	}

	cmd := ParseCommand(input)
	if cmd == nil {
		return m, nil
	}

	if verb, ok := commandVerbs[cmd.Name]; ok {
		if len(cmd.Args) == 0 {
			m.message = fmt.Sprintf("Usage: %s <id|all>", cmd.Name)
			m.isError = true
			return m, nil
		}
		var ids []string
		if cmd.Args[0] != "all" {
			ids = cmd.Args
		}
		return m.launch(verb, ids)
	}

	switch cmd.Name {
	case "/refresh":
		m.message = "Refreshing..."
		m.isError = false
		return m, m.refreshCmd()

	case "/quit":
		m.quitting = true
		return m, tea.Quit

	default:
		m.message = fmt.Sprintf("Unknown command: %s", cmd.Name)
		m.isError = true
		return m, nil
	}
}

// launch runs verb in the background. Nil ids targets everything eligible.
func (m model) launch(verb compose.Verb, ids []string) (tea.Model, tea.Cmd) {
	targets := ids
	if len(targets) == 0 {
		targets = m.manager.IDs()
	}
	for _, id := range targets {
		if v, ok := m.busy[id]; ok {
			m.message = fmt.Sprintf("%s is busy (%s)", id, v)
			m.isError = true
			return m, nil
		}
	}
	for _, id := range targets {
		m.busy[id] = verb
	}

	label := strings.Join(ids, ", ")
	if label == "" {
		label = "all"
	}
	m.message = fmt.Sprintf("%s %s...", verbLabel(verb), label)
	m.isError = false

	mgr := m.manager
	return m, func() tea.Msg {
		ctx := context.Background()
		var (
			res *runtime.Result
			err error
		)
		switch verb {
		case compose.VerbStart:
			res, err = mgr.Start(ctx, ids, compose.ForStart("", false, 0, nil))
		case compose.VerbStop:
			res, err = mgr.Stop(ctx, ids, compose.ForStop("", false, "", nil))
		case compose.VerbRemove:
			res, err = mgr.Remove(ctx, ids, compose.ForStop("", false, "", nil))
		case compose.VerbRestart:
			res, err = mgr.Restart(ctx, ids, compose.ForRestart("", false, false, "", 0, nil))
		}
		return operationDoneMsg{verb: verb, ids: targets, res: res, err: err}
	}
}

func (m model) refreshCmd() tea.Cmd {
	mgr := m.manager
	return func() tea.Msg {
		_, err := mgr.RefreshStates(context.Background(), nil)
		return statesRefreshedMsg{err: err}
	}
}

func verbLabel(v compose.Verb) string {
	switch v {
	case compose.VerbStart:
		return "Starting"
	case compose.VerbStop:
		return "Stopping"
	case compose.VerbRemove:
		return "Removing"
	case compose.VerbRestart:
		return "Restarting"
	}
	return string(v)
}

// summarize turns an operation result into the status line.
func summarize(msg operationDoneMsg) (string, bool) {
	if msg.err != nil {
		return fmt.Sprintf("%s failed: %v", msg.verb, msg.err), true
	}
	if msg.res == nil || len(msg.res.StatusByID) == 0 {
		return fmt.Sprintf("%s: nothing to do", msg.verb), false
	}
	if msg.res.AllSuccessful() {
		return fmt.Sprintf("%s ok: %s", msg.verb, strings.Join(sortedKeys(msg.res.StatusByID), ", ")), false
	}

	var failed []string
	for _, id := range sortedKeys(msg.res.StatusByID) {
		if msg.res.StatusByID[id] {
			continue
		}
		line := id
		if errs := msg.res.ErrorsByID[id]; len(errs) > 0 {
			line += ": " + errs[len(errs)-1]
		}
		failed = append(failed, line)
	}
	return fmt.Sprintf("%s failed for %s", msg.verb, strings.Join(failed, "; ")), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
