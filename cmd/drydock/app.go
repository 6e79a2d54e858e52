package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/engine"
	"github.com/zpdzap/drydock/internal/inspect"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/manager"
	"github.com/zpdzap/drydock/internal/metrics"
	"github.com/zpdzap/drydock/internal/runtime"
)

// app holds everything a command needs, built from the project config.
type app struct {
	projectDir string
	viper      *viper.Viper
	cfg        *config.Config
	log        *logging.Logger
	engine     *engine.Client
	registry   *prometheus.Registry
	metrics    *metrics.Recorder
	mgr        *manager.Manager
	// cached runs never refresh, so they leave the snapshot alone
	readOnly bool
}

// loadApp reads the config and wires the runtime. With register set every
// configured deployment is registered, which inspects it once.
func loadApp(ctx context.Context, register bool) (*app, error) {
	projectDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if !config.Exists(projectDir) {
		return nil, fmt.Errorf("drydock is not initialized here (run `drydock init`)")
	}

	v := config.NewViper(projectDir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}

	a := &app{projectDir: projectDir, viper: v, cfg: cfg, log: logging.NopLogger()}
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger(filepath.Join(projectDir, config.Dir, config.LogDir), cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("opening log: %w", err)
		}
		a.log = l
	}

	builder := compose.NewCLIBuilder(cfg.Binary)
	var (
		insp      inspect.Inspector
		resources inspect.ResourceLister
	)
	switch cfg.Engine {
	case config.EngineAPI:
		client, err := engine.New(cfg.DockerHost)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to docker: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			a.log.Warn("docker ping failed", "error", err.Error())
		}
		a.engine = client
		insp = inspect.NewEngineInspector(client, a.log)
		resources = inspect.NewEngineResources(client)
	default:
		runner := inspect.NewExecRunner()
		insp = inspect.NewCLIInspector(builder.Binary(), runner, a.log)
		resources = inspect.NewCLIResources(runner)
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	rt := runtime.New(builder, insp,
		runtime.WithPollInterval(cfg.Runtime.PollInterval()),
		runtime.WithOperationTimeout(cfg.Runtime.OperationTimeout()),
		runtime.WithLogger(a.log),
		runtime.WithMetrics(a.metrics),
		runtime.WithResources(resources),
	)

	opts := []manager.Option{manager.WithLogger(a.log)}
	if cfg.Debug.Enabled {
		opts = append(opts, manager.WithDebugDir(config.ResolvePath(projectDir, cfg.Debug.Dir)))
	}
	a.mgr = manager.New(projectDir, rt, opts...)
	a.mgr.SetDefaultHealthTimeout(cfg.Runtime.HealthTimeout())

	a.readOnly = !register
	if err := a.mgr.LoadSnapshot(cfg.IDs()); err != nil {
		a.log.Warn("ignoring state snapshot", "error", err.Error())
	}
	if register {
		if err := a.mgr.RegisterConfig(ctx, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "Warning:", err)
		}
	}
	a.log.Debug("app loaded", "engine", cfg.Engine, "binary", builder.Binary(), "deployments", len(cfg.Deployments))
	return a, nil
}

// Close saves the state snapshot and releases the engine client and log.
func (a *app) Close() {
	if a.mgr != nil && !a.readOnly {
		if err := a.mgr.SaveSnapshot(); err != nil {
			a.log.Warn("saving state failed", "error", err.Error())
		}
	}
	if a.engine != nil {
		a.engine.Close()
	}
	a.log.Close()
}
