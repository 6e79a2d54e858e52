package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/metrics"
	"github.com/zpdzap/drydock/internal/state"
)

func watchCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll deployment state, print changes and serve metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Addr
			}
			if metricsAddr != "" {
				stop := serveMetrics(a, metricsAddr)
				defer stop()
			}

			reload := make(chan struct{}, 1)
			a.viper.OnConfigChange(func(e fsnotify.Event) {
				a.log.Info("config changed", "file", e.Name, "op", e.Op.String())
				select {
				case reload <- struct{}{}:
				default:
				}
			})
			a.viper.WatchConfig()

			out := cmd.OutOrStdout()
			last := map[string]state.DeploymentState{}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(out, "Watching %d deployment(s) every %s (Ctrl-C to stop)\n", len(a.mgr.IDs()), interval)
			for {
				states, err := a.mgr.RefreshStates(ctx, nil)
				if err != nil {
					return err
				}
				for _, id := range sortedIDs(states) {
					s := states[id]
					a.metrics.ObserveState(s)
					if prev, ok := last[id]; !ok || describe(prev) != describe(s) {
						fmt.Fprintf(out, "%s  %-12s %s\n", time.Now().Format("15:04:05"), id, describe(s))
					}
				}
				last = states
				if err := a.mgr.SaveSnapshot(); err != nil {
					a.log.Warn("saving state failed", "error", err.Error())
				}

				select {
				case <-ctx.Done():
					return nil
				case <-reload:
					if err := reloadConfig(ctx, a); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
					}
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Refresh interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// reloadConfig re-reads the config and brings the registered deployments in
// line with it.
func reloadConfig(ctx context.Context, a *app) error {
	cfg, err := config.Decode(a.viper)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return errs
	}

	keep := make([]string, 0, len(cfg.Deployments))
	for _, d := range cfg.Deployments {
		keep = append(keep, d.ID)
	}
	for _, id := range a.mgr.IDs() {
		if !slices.Contains(keep, id) {
			a.mgr.Unregister(id)
			a.metrics.Forget(id)
			a.log.WithDeployment(id).Info("unregistered")
		}
	}
	a.cfg = cfg
	a.mgr.SetDefaultHealthTimeout(cfg.Runtime.HealthTimeout())
	return a.mgr.RegisterConfig(ctx, cfg)
}

func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", "error", err.Error())
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Error("graceful shutdown failed", "error", err.Error())
		}
	}
}

func sortedIDs(states map[string]state.DeploymentState) []string {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
