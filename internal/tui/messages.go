package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/runtime"
)

// operationDoneMsg is sent when a lifecycle verb finishes.
type operationDoneMsg struct {
	verb compose.Verb
	ids  []string
	res  *runtime.Result
	err  error
}

// statesRefreshedMsg is sent after a background state refresh.
type statesRefreshedMsg struct {
	err error
}

type confirmRemoveExpiredMsg struct{}

// statusTickMsg triggers a status refresh poll.
type statusTickMsg time.Time

// tickCmd returns a command that sends a tick every 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}
