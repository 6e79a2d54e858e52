// Package manager registers deployments by id and runs lifecycle verbs
// against them, keeping the last-known state and errors per id.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/config"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/runtime"
	"github.com/zpdzap/drydock/internal/state"
)

// ErrBusy is returned when a verb targets an id another verb is running on.
var ErrBusy = errors.New("operation already in progress")

const minHealthTimeout = time.Second

// Manager is safe for concurrent use. Its lock is not held while a verb's
// processes run, so queries stay responsive during long operations.
type Manager struct {
	mu            sync.Mutex
	projectDir    string
	rt            runtime.Runtime
	log           *logging.Logger
	cache         *state.Cache
	defs          map[string]*compose.Definition
	errors        map[string][]string
	busy          map[string]bool
	healthTimeout time.Duration
	debugDir      string
}

type Option func(*Manager)

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithDebugDir enables debug capture on every definition registered later.
func WithDebugDir(dir string) Option {
	return func(m *Manager) { m.debugDir = dir }
}

// New creates a manager. projectDir is where state snapshots are kept.
func New(projectDir string, rt runtime.Runtime, opts ...Option) *Manager {
	m := &Manager{
		projectDir:    projectDir,
		rt:            rt,
		log:           logging.NopLogger(),
		cache:         state.NewCache(),
		defs:          make(map[string]*compose.Definition),
		errors:        make(map[string][]string),
		busy:          make(map[string]bool),
		healthTimeout: compose.DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDefaultHealthTimeout sets the health timeout used when options leave it
// zero. Values below one second are raised to one second.
func (m *Manager) SetDefaultHealthTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthTimeout = max(d, minHealthTimeout)
}

func (m *Manager) DefaultHealthTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthTimeout
}

// FromComposeFile registers the compose file at path under id.
func (m *Manager) FromComposeFile(ctx context.Context, id, path string) (*compose.Definition, error) {
	def, err := compose.FromFile(id, path)
	if err != nil {
		return nil, err
	}
	m.Register(ctx, def)
	return def, nil
}

// FromYAML registers an in-memory compose document under id.
func (m *Manager) FromYAML(ctx context.Context, id string, data map[string]any, workDir string) *compose.Definition {
	def := compose.FromYAML(id, data, workDir)
	m.Register(ctx, def)
	return def
}

// FromContainerName registers an existing container. It cannot be started.
func (m *Manager) FromContainerName(ctx context.Context, id, name string) *compose.Definition {
	def := compose.FromContainer(id, name, m.projectDir)
	m.Register(ctx, def)
	return def
}

// FromProjectName registers an existing compose project. It cannot be started.
func (m *Manager) FromProjectName(ctx context.Context, id, name string) *compose.Definition {
	def := compose.FromProject(id, name, m.projectDir)
	m.Register(ctx, def)
	return def
}

// Register adds def, replacing any definition with the same id, and
// refreshes its state.
func (m *Manager) Register(ctx context.Context, def *compose.Definition) {
	m.mu.Lock()
	if m.debugDir != "" && def.DebugDir() == "" {
		def.SetDebugDir(m.debugDir)
	}
	m.defs[def.ID()] = def
	m.mu.Unlock()

	m.log.WithDeployment(def.ID()).Debug("registered", "kind", string(def.Kind()))
	m.refresh(ctx, []*compose.Definition{def})
}

// RegisterConfig registers every deployment in cfg. Deployments that fail to
// load are skipped and returned joined.
func (m *Manager) RegisterConfig(ctx context.Context, cfg *config.Config) error {
	var errs []error
	for _, d := range cfg.Deployments {
		var def *compose.Definition
		switch {
		case d.File != "":
			var err error
			def, err = compose.FromFile(d.ID, config.ResolvePath(m.projectDir, d.File))
			if err != nil {
				errs = append(errs, fmt.Errorf("deployment %s: %w", d.ID, err))
				continue
			}
			if d.ProjectName != "" {
				def.SetProjectName(d.ProjectName)
			}
		case d.Container != "":
			def = compose.FromContainer(d.ID, d.Container, m.projectDir)
		case d.Project != "":
			def = compose.FromProject(d.ID, d.Project, m.projectDir)
		default:
			errs = append(errs, fmt.Errorf("deployment %s: no source", d.ID))
			continue
		}
		def.SetEnvs(d.EnvMap())
		m.Register(ctx, def)
	}
	return errors.Join(errs...)
}

// Unregister forgets id and everything known about it.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.defs, id)
	delete(m.errors, id)
	m.cache.Delete(id)
}

// IDs returns every registered id, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.defs))
	for id := range m.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Definition returns the definition registered under id.
func (m *Manager) Definition(id string) (*compose.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compose.ErrNotRegistered, id)
	}
	return def, nil
}

// resolve maps ids to definitions. No ids means every registered one, or
// every startable one when startable is set. Repeated ids resolve once, in
// first-seen order. Callers hold m.mu.
func (m *Manager) resolve(ids []string, startable bool) ([]*compose.Definition, error) {
	if len(ids) == 0 {
		all := make([]string, 0, len(m.defs))
		for id, def := range m.defs {
			if !startable || def.Startable() {
				all = append(all, id)
			}
		}
		sort.Strings(all)
		ids = all
	}

	defs := make([]*compose.Definition, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		def, ok := m.defs[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", compose.ErrNotRegistered, id)
		}
		if startable && !def.Startable() {
			return nil, fmt.Errorf("%w: %s", compose.ErrNotStartable, id)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (m *Manager) lookup(ids []string) ([]*compose.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(ids, false)
}

func idsOf(defs []*compose.Definition) []string {
	out := make([]string, len(defs))
	for i, def := range defs {
		out[i] = def.ID()
	}
	return out
}
