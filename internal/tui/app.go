package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/manager"
)

// Run starts the dashboard and blocks until the user quits. Progress
// callbacks of every registered deployment are routed to the dashboard.
func Run(mgr *manager.Manager, cfg *config.Config) error {
	progress := newProgressBoard()
	for _, id := range mgr.IDs() {
		if def, err := mgr.Definition(id); err == nil {
			def.OnProgress(progress.record, cfg.Runtime.ProgressInterval())
		}
	}

	p := tea.NewProgram(newModel(mgr, cfg, progress), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if err := mgr.SaveSnapshot(); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	fmt.Println("Goodbye! (deployments left as they are; use /stop or /down to tear them down)")
	return nil
}
