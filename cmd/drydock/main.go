package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/tui"
)

// errOperationFailed makes the process exit non-zero after the per-id
// errors have already been printed.
var errOperationFailed = errors.New("operation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "drydock",
		Short:         "drydock: run several docker compose deployments as one",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	root.AddCommand(
		initCmd(),
		startCmd(),
		stopCmd(),
		removeCmd(),
		restartCmd(),
		statusCmd(),
		inspectCmd(),
		volumesCmd(),
		imagesCmd(),
		validateCmd(),
		watchCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errOperationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize drydock in the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.Exists(projectDir) {
				fmt.Println("drydock already initialized in this project.")
				return nil
			}

			detection := config.Detect(projectDir)
			cfg := config.Default()
			cfg.Project = detection.Project
			cfg.Deployments = detection.Deployments

			if err := config.Save(projectDir, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			if err := updateGitignore(projectDir); err != nil {
				return fmt.Errorf("updating .gitignore: %w", err)
			}

			fmt.Printf("Initialized drydock for %s (%d deployment(s) found)\n", cfg.Project, len(cfg.Deployments))
			for _, d := range cfg.Deployments {
				fmt.Printf("  %s: %s\n", d.ID, d.File)
			}
			fmt.Printf("  Config: %s/%s\n", config.Dir, config.ConfigFile)
			fmt.Println("\nRun `drydock` to launch the dashboard.")
			return nil
		},
	}
}

func updateGitignore(projectDir string) error {
	gitignorePath := filepath.Join(projectDir, ".gitignore")

	entries := []string{
		config.Dir + "/" + config.StateFile,
		config.Dir + "/" + config.LogDir + "/",
		config.Dir + "/debug/",
	}

	existing, _ := os.ReadFile(gitignorePath)
	content := string(existing)

	var toAdd []string
	for _, entry := range entries {
		if !strings.Contains(content, entry) {
			toAdd = append(toAdd, entry)
		}
	}

	if len(toAdd) == 0 {
		return nil
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	content += "\n# drydock\n"
	for _, entry := range toAdd {
		content += entry + "\n"
	}

	return os.WriteFile(gitignorePath, []byte(content), 0o644)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	return tui.Run(a.mgr, a.cfg)
}
