package manager

import (
	"context"
	"fmt"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/runtime"
)

// Start brings the deployments up. It returns at once, spawning nothing,
// when every target is already known to be running and healthy. An empty
// target set yields an empty, unsuccessful result.
func (m *Manager) Start(ctx context.Context, ids []string, opts compose.Options) (*runtime.Result, error) {
	return m.run(ctx, compose.VerbStart, ids, true, opts, func(defs []*compose.Definition, opts compose.Options) *runtime.Result {
		if m.allRunning(defs) {
			m.log.Info("start skipped, already running", "targets", len(defs))
			return runtime.Success(idsOf(defs)...).WithStates(m.cachedStates(defs)...)
		}
		return m.rt.Start(ctx, defs, opts)
	})
}

func (m *Manager) Stop(ctx context.Context, ids []string, opts compose.Options) (*runtime.Result, error) {
	return m.run(ctx, compose.VerbStop, ids, false, opts, func(defs []*compose.Definition, opts compose.Options) *runtime.Result {
		return m.rt.Stop(ctx, defs, opts)
	})
}

// Remove takes the deployments down, optionally with volumes and images.
func (m *Manager) Remove(ctx context.Context, ids []string, opts compose.Options) (*runtime.Result, error) {
	return m.run(ctx, compose.VerbRemove, ids, false, opts, func(defs []*compose.Definition, opts compose.Options) *runtime.Result {
		return m.rt.Remove(ctx, defs, opts)
	})
}

// Restart restarts running deployments. If any target is not running and
// healthy it starts them instead.
func (m *Manager) Restart(ctx context.Context, ids []string, opts compose.Options) (*runtime.Result, error) {
	return m.run(ctx, compose.VerbRestart, ids, true, opts, func(defs []*compose.Definition, opts compose.Options) *runtime.Result {
		if !m.allRunning(defs) {
			m.log.Info("restart degraded to start", "targets", len(defs))
			return m.rt.Start(ctx, defs, opts)
		}
		return m.rt.Restart(ctx, defs, opts)
	})
}

func (m *Manager) run(ctx context.Context, verb compose.Verb, ids []string, startable bool, opts compose.Options, exec func([]*compose.Definition, compose.Options) *runtime.Result) (*runtime.Result, error) {
	m.mu.Lock()
	defs, err := m.resolve(ids, startable)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	for _, def := range defs {
		if m.busy[def.ID()] {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrBusy, def.ID())
		}
	}
	for _, def := range defs {
		m.busy[def.ID()] = true
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = m.healthTimeout
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		for _, def := range defs {
			delete(m.busy, def.ID())
		}
		m.mu.Unlock()
	}()

	m.log.Info("operation requested", "verb", string(verb), "targets", len(defs))
	res := exec(defs, opts)
	m.afterOperation(verb, defs, res)
	return res, nil
}

// afterOperation records errors and states, then fires the callbacks
// outside the lock.
func (m *Manager) afterOperation(verb compose.Verb, defs []*compose.Definition, res *runtime.Result) {
	var fire []func()

	m.mu.Lock()
	m.cache.Merge(res.States)
	for _, def := range defs {
		id := def.ID()
		if s, ok := res.States[id]; ok {
			def.SetState(s)
		}
		if res.StatusByID[id] {
			delete(m.errors, id)
			if fn := def.SuccessCallback(); fn != nil {
				fire = append(fire, func() { fn(id, verb) })
			}
			continue
		}
		errs := append([]string(nil), res.ErrorsByID[id]...)
		m.errors[id] = errs
		m.log.WithDeployment(id).Warn("operation failed", "verb", string(verb), "errors", errs)
		if fn := def.ErrorCallback(); fn != nil {
			fire = append(fire, func() { fn(id, errs) })
		}
	}
	m.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}
