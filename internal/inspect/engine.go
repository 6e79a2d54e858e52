package inspect

import (
	"context"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/engine"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/state"
)

// ContainerSource is the part of the engine client the inspector needs.
type ContainerSource interface {
	ProjectContainers(ctx context.Context, project string) ([]engine.Container, error)
	NamedContainers(ctx context.Context, name string) ([]engine.Container, error)
}

// EngineInspector reads container state from the Docker Engine API instead
// of shelling out.
type EngineInspector struct {
	src ContainerSource
	log *logging.Logger
}

func NewEngineInspector(src ContainerSource, log *logging.Logger) *EngineInspector {
	return &EngineInspector{src: src, log: log}
}

func (i *EngineInspector) Describe(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState {
	out := make(map[string]state.DeploymentState, len(defs))
	for _, def := range defs {
		out[def.ID()] = i.describe(ctx, def)
	}
	return out
}

func (i *EngineInspector) describe(ctx context.Context, def *compose.Definition) state.DeploymentState {
	var (
		list []engine.Container
		err  error
	)
	if def.Kind() == compose.KindContainer {
		list, err = i.src.NamedContainers(ctx, def.ContainerName())
	} else {
		list, err = i.src.ProjectContainers(ctx, def.ProjectName())
	}
	if err != nil {
		i.log.WithDeployment(def.ID()).Debug("engine query failed", "error", err.Error())
		return state.Unknown(def.ID())
	}

	records := make([]Record, 0, len(list))
	for _, c := range list {
		records = append(records, Record{
			Member: firstNonEmpty(c.Service, c.Name),
			State:  c.State,
			Health: HealthFromStatus(c.Status),
		})
	}
	return Summarize(def.ID(), records)
}

// ResourceSource is the part of the engine client resource listing needs.
type ResourceSource interface {
	ProjectVolumes(ctx context.Context, project string) ([]string, error)
	ProjectImages(ctx context.Context, project string) ([]string, error)
}

// EngineResources lists project volumes and images through the Engine API.
type EngineResources struct {
	src ResourceSource
}

func NewEngineResources(src ResourceSource) *EngineResources {
	return &EngineResources{src: src}
}

func (r *EngineResources) Volumes(ctx context.Context, def *compose.Definition) ([]string, error) {
	return r.src.ProjectVolumes(ctx, def.ProjectName())
}

func (r *EngineResources) Images(ctx context.Context, def *compose.Definition) ([]string, error) {
	return r.src.ProjectImages(ctx, def.ProjectName())
}
