package manager

import (
	"context"
	"maps"
	"slices"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/state"
)

// Inspect returns member statuses per id, narrowed to member when given.
func (m *Manager) Inspect(ctx context.Context, ids []string, member string) (map[string]map[string]string, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return nil, err
	}
	return m.rt.Inspect(ctx, defs, member), nil
}

func (m *Manager) ContainerExists(ctx context.Context, ids []string, member string) (bool, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return false, err
	}
	return m.rt.ContainerExists(ctx, defs, member), nil
}

// IsRunning reports whether any target is running. With a member it checks
// that the member is running, healthy or up.
func (m *Manager) IsRunning(ctx context.Context, ids []string, member string) (bool, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return false, err
	}
	return m.rt.IsRunning(ctx, defs, member), nil
}

func (m *Manager) VolumesExist(ctx context.Context, ids []string) (bool, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return false, err
	}
	return m.rt.VolumesExist(ctx, defs), nil
}

func (m *Manager) ImagesExist(ctx context.Context, ids []string) (bool, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return false, err
	}
	return m.rt.ImagesExist(ctx, defs), nil
}

func (m *Manager) ListVolumes(ctx context.Context, ids []string) ([]string, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return nil, err
	}
	return m.rt.ListVolumes(ctx, defs), nil
}

func (m *Manager) ListImages(ctx context.Context, ids []string) ([]string, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return nil, err
	}
	return m.rt.ListImages(ctx, defs), nil
}

// Errors returns the errors stored by the last failed operation of each id.
// No ids means every id with errors.
func (m *Manager) Errors(ids []string) map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string)
	for id, errs := range m.errors {
		if len(ids) == 0 || slices.Contains(ids, id) {
			out[id] = slices.Clone(errs)
		}
	}
	return out
}

// State returns the cached state of id.
func (m *Manager) State(id string) (state.DeploymentState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Get(id)
}

// States returns every cached state.
func (m *Manager) States() map[string]state.DeploymentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.All()
}

// RefreshStates queries live state for ids and updates the cache.
func (m *Manager) RefreshStates(ctx context.Context, ids []string) (map[string]state.DeploymentState, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, defs), nil
}

func (m *Manager) refresh(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState {
	states := m.rt.Describe(ctx, defs)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Merge(states)
	for _, def := range defs {
		if s, ok := states[def.ID()]; ok {
			def.SetState(s)
		}
	}
	return maps.Clone(states)
}

// Validate checks the compose document of each target. Only failing ids
// appear in the result.
func (m *Manager) Validate(ids []string) (map[string]error, error) {
	defs, err := m.lookup(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]error)
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			out[def.ID()] = err
		}
	}
	return out, nil
}

func (m *Manager) allRunning(defs []*compose.Definition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.AllRunning(idsOf(defs))
}

func (m *Manager) cachedStates(defs []*compose.Definition) []state.DeploymentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.DeploymentState, 0, len(defs))
	for _, def := range defs {
		if s, ok := m.cache.Get(def.ID()); ok {
			out = append(out, s)
		}
	}
	return out
}

// SaveSnapshot writes the cached states of registered deployments to the
// project's state file.
func (m *Manager) SaveSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	registered := state.NewCache()
	for id := range m.defs {
		if s, ok := m.cache.Get(id); ok {
			registered.Set(s)
		}
	}
	return state.SaveSnapshot(m.projectDir, registered)
}

// LoadSnapshot seeds the cache with the saved states of ids. Entries for
// other ids are ignored. Live refreshes replace the loaded entries.
func (m *Manager) LoadSnapshot(ids []string) error {
	snap, err := state.LoadSnapshot(m.projectDir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Restore(m.cache, ids)
	return nil
}
