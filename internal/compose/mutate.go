package compose

import (
	"fmt"
	"strings"
)

// SetValues deep-merges values into the compose document. Maps merge key by
// key; any other value replaces what was there.
func (d *Definition) SetValues(values map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mergeInto(d.data, deepCopyMap(values))
}

// SetProjectName sets the top-level compose project name.
func (d *Definition) SetProjectName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data["name"] = name
}

func (d *Definition) SetContainerName(service, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.service(service)["container_name"] = name
}

// SetPortMapping publishes containerPort on hostPort. protocol defaults to tcp.
func (d *Definition) SetPortMapping(service string, containerPort, hostPort int, protocol string) {
	if protocol == "" {
		protocol = "tcp"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	svc := d.service(service)
	ports, _ := svc["ports"].([]any)
	svc["ports"] = append(ports, fmt.Sprintf("%d:%d/%s", hostPort, containerPort, protocol))
}

// SetNetwork declares a network and attaches every service that lists its
// networks (or has none yet) to it.
func (d *Definition) SetNetwork(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	networks := childMap(d.data, "networks")
	if _, ok := networks[name]; !ok {
		networks[name] = map[string]any{}
	}

	services, _ := d.data["services"].(map[string]any)
	for _, raw := range services {
		svc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch nets := svc["networks"].(type) {
		case nil:
			svc["networks"] = []any{name}
		case []any:
			if !containsString(nets, name) {
				svc["networks"] = append(nets, name)
			}
		case map[string]any:
			if _, ok := nets[name]; !ok {
				nets[name] = map[string]any{}
			}
		}
	}
}

// RenameService moves a service to a new key and rewrites depends_on
// references to it.
func (d *Definition) RenameService(from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	services, _ := d.data["services"].(map[string]any)
	svc, ok := services[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, from)
	}
	delete(services, from)
	services[to] = svc

	for _, raw := range services {
		other, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch deps := other["depends_on"].(type) {
		case []any:
			for i, dep := range deps {
				if dep == from {
					deps[i] = to
				}
			}
		case map[string]any:
			if v, ok := deps[from]; ok {
				delete(deps, from)
				deps[to] = v
			}
		}
	}
	return nil
}

// SetCPUs sets deploy.resources.limits.cpus.
func (d *Definition) SetCPUs(service string, cpus float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limits(service)["cpus"] = cpus
}

// SetMemoryLimit sets deploy.resources.limits.memory, e.g. "512M".
func (d *Definition) SetMemoryLimit(service, limit string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limits(service)["memory"] = strings.TrimSpace(limit)
}

// service returns services[name], creating it. Callers hold d.mu.
func (d *Definition) service(name string) map[string]any {
	return childMap(childMap(d.data, "services"), name)
}

func (d *Definition) limits(service string) map[string]any {
	return childMap(childMap(childMap(d.service(service), "deploy"), "resources"), "limits")
}

func childMap(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := make(map[string]any)
	parent[key] = m
	return m
}

func containsString(list []any, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dst[k] = srcMap
			continue
		}
		mergeInto(dstMap, srcMap)
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = deepCopyValue(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = deepCopyValue(v)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = v
		}
		return out
	default:
		return v
	}
}
