package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/manager"
	"github.com/zpdzap/drydock/internal/parser"
	"github.com/zpdzap/drydock/internal/runtime"
)

type verbFlags struct {
	member        string
	rebuild       bool
	healthTimeout time.Duration
	noWait        bool
	timeout       time.Duration
	volumes       bool
	rmi           string
	flags         []string
}

func (f *verbFlags) extra() map[string]any {
	extra := map[string]any{}
	if f.timeout > 0 {
		extra["operation_timeout"] = f.timeout
	}
	if len(f.flags) > 0 {
		extra["flags"] = f.flags
	}
	return extra
}

func addCommonFlags(cmd *cobra.Command, f *verbFlags) {
	cmd.Flags().StringVar(&f.member, "member", "", "Limit the operation to one service")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Kill the operation after this long (default from config)")
	cmd.Flags().StringSliceVar(&f.flags, "flag", nil, "Extra flag passed before the compose sub-command (repeatable)")
}

func addHealthFlags(cmd *cobra.Command, f *verbFlags) {
	cmd.Flags().BoolVar(&f.rebuild, "rebuild", false, "Rebuild images before starting")
	cmd.Flags().DurationVar(&f.healthTimeout, "health-timeout", 0, "How long to wait for healthy (default from config)")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "Do not wait for health checks")
}

func startCmd() *cobra.Command {
	f := &verbFlags{}
	cmd := &cobra.Command{
		Use:   "start [ids...]",
		Short: "Start deployments and wait until they are healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := f.extra()
			extra["require_healthy"] = !f.noWait
			opts := compose.ForStart(f.member, f.rebuild, f.healthTimeout, extra)
			return runVerb(cmd, compose.VerbStart, args, opts, (*manager.Manager).Start)
		},
	}
	addCommonFlags(cmd, f)
	addHealthFlags(cmd, f)
	return cmd
}

func stopCmd() *cobra.Command {
	f := &verbFlags{}
	cmd := &cobra.Command{
		Use:   "stop [ids...]",
		Short: "Stop deployments without removing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := compose.ForStop(f.member, false, "", f.extra())
			return runVerb(cmd, compose.VerbStop, args, opts, (*manager.Manager).Stop)
		},
	}
	addCommonFlags(cmd, f)
	return cmd
}

func removeCmd() *cobra.Command {
	f := &verbFlags{}
	cmd := &cobra.Command{
		Use:     "remove [ids...]",
		Aliases: []string{"down"},
		Short:   "Take deployments down, optionally with volumes and images",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := compose.ForStop(f.member, f.volumes, f.rmi, f.extra())
			return runVerb(cmd, compose.VerbRemove, args, opts, (*manager.Manager).Remove)
		},
	}
	addCommonFlags(cmd, f)
	cmd.Flags().BoolVar(&f.volumes, "volumes", false, "Remove named volumes")
	cmd.Flags().StringVar(&f.rmi, "rmi", "", "Remove images: all or local")
	return cmd
}

func restartCmd() *cobra.Command {
	f := &verbFlags{}
	cmd := &cobra.Command{
		Use:   "restart [ids...]",
		Short: "Restart deployments (starts them if they are not running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := f.extra()
			opts := compose.ForRestart(f.member, f.rebuild, false, "", f.healthTimeout, extra)
			if f.noWait {
				opts.RequireHealthy = false
			}
			return runVerb(cmd, compose.VerbRestart, args, opts, (*manager.Manager).Restart)
		},
	}
	addCommonFlags(cmd, f)
	addHealthFlags(cmd, f)
	return cmd
}

type verbFunc func(*manager.Manager, context.Context, []string, compose.Options) (*runtime.Result, error)

func runVerb(cmd *cobra.Command, verb compose.Verb, ids []string, opts compose.Options, fn verbFunc) error {
	a, err := loadApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	watchProgress(a.mgr, out, a.cfg.Runtime.ProgressInterval())

	res, err := fn(a.mgr, cmd.Context(), ids, opts)
	if err != nil {
		return err
	}
	printResult(out, verb, res)
	if !res.AllSuccessful() {
		return errOperationFailed
	}
	return nil
}

// watchProgress prints each member event once as the runtime reports it.
func watchProgress(mgr *manager.Manager, w io.Writer, interval time.Duration) {
	var mu sync.Mutex
	seen := make(map[string]int)
	report := func(id string, events []parser.Event, verb compose.Verb) {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events[min(seen[id], len(events)):] {
			fmt.Fprintf(w, "  [%s] %s %s\n", id, ev.Member, ev.Status)
		}
		seen[id] = len(events)
	}
	for _, id := range mgr.IDs() {
		if def, err := mgr.Definition(id); err == nil {
			def.OnProgress(report, interval)
		}
	}
}

func printResult(w io.Writer, verb compose.Verb, res *runtime.Result) {
	if len(res.StatusByID) == 0 {
		fmt.Fprintf(w, "Nothing to %s.\n", verb)
		return
	}
	ids := make([]string, 0, len(res.StatusByID))
	for id := range res.StatusByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		mark := "✓"
		if !res.StatusByID[id] {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s %s", mark, verb, id)
		if s, ok := res.States[id]; ok {
			line += fmt.Sprintf("  (%s)", describe(s))
		}
		fmt.Fprintln(w, line)
		for _, e := range res.ErrorsByID[id] {
			fmt.Fprintf(w, "    %s\n", strings.TrimSpace(e))
		}
	}
}
