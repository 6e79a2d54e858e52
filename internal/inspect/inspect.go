// Package inspect answers "what is this deployment doing right now" without
// changing anything.
package inspect

import (
	"context"
	"strings"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/state"
)

// Inspector queries live state. A failing lookup yields an Unknown snapshot
// for that id and never aborts the batch.
type Inspector interface {
	Describe(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState
}

// ResourceLister lists docker objects owned by a deployment.
type ResourceLister interface {
	Volumes(ctx context.Context, def *compose.Definition) ([]string, error)
	Images(ctx context.Context, def *compose.Definition) ([]string, error)
}

// Record is one member as reported by docker.
type Record struct {
	Member string
	State  string
	Health string
}

// Summarize folds member records into a snapshot. No members means Unknown.
// Every member exited means Stopped. Any unhealthy or exited member makes the
// deployment Unhealthy, a pending health check makes it Starting.
func Summarize(id string, records []Record) state.DeploymentState {
	members := make(map[string]string, len(records))
	starting := false
	for _, r := range records {
		if r.Member == "" {
			continue
		}
		token := strings.ToLower(strings.TrimSpace(r.State))
		if token == "" {
			token = "unknown"
		}
		switch strings.ToLower(r.Health) {
		case "unhealthy":
			token = "unhealthy"
		case "starting":
			starting = true
		}
		members[r.Member] = token
	}

	if len(members) == 0 {
		return state.Unknown(id)
	}

	allDown, anyBad := true, false
	for _, token := range members {
		switch token {
		case "exited", "dead", "created":
		default:
			allDown = false
		}
		if token == "unhealthy" || token == "exited" {
			anyBad = true
		}
	}

	switch {
	case allDown:
		return state.Stopped(id, members)
	case anyBad:
		return state.Unhealthy(id, members)
	case starting:
		return state.Starting(id, members)
	default:
		return state.Running(id, members)
	}
}

// HealthFromStatus extracts the health suffix docker appends to a status
// line such as "Up 2 minutes (healthy)".
func HealthFromStatus(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "(unhealthy)"):
		return "unhealthy"
	case strings.Contains(s, "(health: starting)"):
		return "starting"
	case strings.Contains(s, "(healthy)"):
		return "healthy"
	}
	return ""
}
