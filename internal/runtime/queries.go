package runtime

import (
	"context"
	"slices"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/state"
)

// Describe returns the live state of every definition.
func (r *CLIRuntime) Describe(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState {
	if len(defs) == 0 {
		return map[string]state.DeploymentState{}
	}
	return r.inspector.Describe(ctx, defs)
}

// Inspect returns member statuses per id, narrowed to member when the
// deployment has one by that name.
func (r *CLIRuntime) Inspect(ctx context.Context, defs []*compose.Definition, member string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for id, s := range r.Describe(ctx, defs) {
		if member != "" {
			if v, ok := s.Member(member); ok {
				out[id] = map[string]string{member: v}
				continue
			}
		}
		out[id] = s.Members()
	}
	return out
}

// ContainerExists reports whether docker knows about any of the deployments
// (or the named member of one).
func (r *CLIRuntime) ContainerExists(ctx context.Context, defs []*compose.Definition, member string) bool {
	for _, s := range r.Describe(ctx, defs) {
		if member != "" {
			if _, ok := s.Member(member); ok {
				return true
			}
			continue
		}
		if s.Status() != state.StatusUnknown {
			return true
		}
	}
	return false
}

// IsRunning reports whether any deployment is running. With a member name
// it checks that member's own status instead.
func (r *CLIRuntime) IsRunning(ctx context.Context, defs []*compose.Definition, member string) bool {
	for _, s := range r.Describe(ctx, defs) {
		if member == "" {
			if s.IsRunning() {
				return true
			}
			continue
		}
		if MemberUp(s, member) {
			return true
		}
	}
	return false
}

// MemberUp reports whether member's status is running, healthy or up.
func MemberUp(s state.DeploymentState, member string) bool {
	v, ok := s.Member(member)
	return ok && slices.Contains([]string{"running", "healthy", "up"}, v)
}

func (r *CLIRuntime) VolumesExist(ctx context.Context, defs []*compose.Definition) bool {
	return len(r.ListVolumes(ctx, defs)) > 0
}

func (r *CLIRuntime) ImagesExist(ctx context.Context, defs []*compose.Definition) bool {
	return len(r.ListImages(ctx, defs)) > 0
}

// ListVolumes returns the volumes of every deployment, sorted and without
// duplicates. Lookup failures are logged and skipped.
func (r *CLIRuntime) ListVolumes(ctx context.Context, defs []*compose.Definition) []string {
	return r.collect(ctx, defs, "volumes", func(def *compose.Definition) ([]string, error) {
		return r.resources.Volumes(ctx, def)
	})
}

func (r *CLIRuntime) ListImages(ctx context.Context, defs []*compose.Definition) []string {
	return r.collect(ctx, defs, "images", func(def *compose.Definition) ([]string, error) {
		return r.resources.Images(ctx, def)
	})
}

func (r *CLIRuntime) collect(_ context.Context, defs []*compose.Definition, what string, list func(*compose.Definition) ([]string, error)) []string {
	if r.resources == nil {
		return nil
	}
	var out []string
	for _, def := range defs {
		items, err := list(def)
		if err != nil {
			r.log.WithDeployment(def.ID()).Warn("listing "+what+" failed", "error", err.Error())
			continue
		}
		out = append(out, items...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
