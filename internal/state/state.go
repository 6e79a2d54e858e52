// Package state holds deployment state snapshots and the last-known-state cache.
package state

import (
	"encoding/json"
	"maps"
)

// Status is the coarse lifecycle status of a deployment.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

// Health is the aggregated health of a deployment's members.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthStarting  Health = "starting"
	HealthUnknown   Health = "unknown"
)

// DeploymentState is an immutable snapshot. Use the constructors; a later
// snapshot for the same id replaces an earlier one, it is never merged.
type DeploymentState struct {
	id      string
	status  Status
	health  Health
	members map[string]string
}

// New builds a snapshot from explicit parts. members is copied.
func New(id string, status Status, health Health, members map[string]string) DeploymentState {
	return DeploymentState{
		id:      id,
		status:  status,
		health:  health,
		members: maps.Clone(members),
	}
}

// Running returns a running, healthy snapshot.
func Running(id string, members map[string]string) DeploymentState {
	return New(id, StatusRunning, HealthHealthy, members)
}

// Stopped returns a stopped snapshot with unknown health.
func Stopped(id string, members map[string]string) DeploymentState {
	return New(id, StatusStopped, HealthUnknown, members)
}

// Unhealthy returns a running snapshot whose health check fails.
func Unhealthy(id string, members map[string]string) DeploymentState {
	return New(id, StatusRunning, HealthUnhealthy, members)
}

// Starting returns a running snapshot whose health checks have not settled.
func Starting(id string, members map[string]string) DeploymentState {
	return New(id, StatusRunning, HealthStarting, members)
}

// Unknown returns a snapshot for a deployment that could not be inspected.
func Unknown(id string) DeploymentState {
	return New(id, StatusUnknown, HealthUnknown, nil)
}

func (s DeploymentState) ID() string     { return s.id }
func (s DeploymentState) Status() Status { return s.status }
func (s DeploymentState) Health() Health { return s.health }

// Members returns a copy of the member → status mapping.
func (s DeploymentState) Members() map[string]string {
	return maps.Clone(s.members)
}

// Member returns the reported status of one member.
func (s DeploymentState) Member(name string) (string, bool) {
	v, ok := s.members[name]
	return v, ok
}

// IsRunning reports whether the deployment status is running.
func (s DeploymentState) IsRunning() bool {
	return s.status == StatusRunning
}

// IsHealthy reports overall health. Without an explicit healthy verdict every
// member must itself report "healthy", and an empty member set is unhealthy.
func (s DeploymentState) IsHealthy() bool {
	if s.health == HealthHealthy {
		return true
	}
	if len(s.members) == 0 {
		return false
	}
	for _, status := range s.members {
		if status != string(HealthHealthy) {
			return false
		}
	}
	return true
}

type snapshotJSON struct {
	ID      string            `json:"id"`
	Status  Status            `json:"status"`
	Health  Health            `json:"health"`
	Members map[string]string `json:"members,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s DeploymentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{ID: s.id, Status: s.status, Health: s.health, Members: s.members})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *DeploymentState) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = New(raw.ID, raw.Status, raw.Health, raw.Members)
	return nil
}
