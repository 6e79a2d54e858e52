package compose

import (
	"slices"
	"strconv"
	"time"
)

// Verb is a lifecycle operation.
type Verb string

const (
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRemove  Verb = "remove"
	VerbRestart Verb = "restart"
)

// WaitsForHealth reports whether the verb brings containers up, so the
// runtime should poll for health afterwards.
func (v Verb) WaitsForHealth() bool {
	return v == VerbStart || v == VerbRestart
}

const (
	DefaultHealthTimeout     = 120 * time.Second
	DefaultStopHealthTimeout = 30 * time.Second
)

// Options parameterize one operation. Treat values as immutable; the
// constructors copy their slices and maps.
type Options struct {
	Member         string
	Rebuild        bool
	RemoveVolumes  bool
	RemoveImages   string
	Flags          []string
	RequireHealthy bool
	HealthTimeout  time.Duration
	Extra          map[string]any
}

// ForStart builds start options. extra may carry flags, require_healthy
// (default true), remove_volumes, remove_images and operation_timeout.
func ForStart(member string, rebuild bool, healthTimeout time.Duration, extra map[string]any) Options {
	requireHealthy := true
	if v, ok := boolValue(extra["require_healthy"]); ok {
		requireHealthy = v
	}
	removeVolumes, _ := boolValue(extra["remove_volumes"])
	removeImages, _ := extra["remove_images"].(string)
	return Options{
		Member:         member,
		Rebuild:        rebuild,
		RemoveVolumes:  removeVolumes,
		RemoveImages:   removeImages,
		Flags:          stringSlice(extra["flags"]),
		RequireHealthy: requireHealthy,
		HealthTimeout:  healthTimeout,
		Extra:          cloneExtra(extra),
	}
}

// ForStop builds stop and remove options. Health is never required.
func ForStop(member string, removeVolumes bool, removeImages string, extra map[string]any) Options {
	healthTimeout := DefaultStopHealthTimeout
	if d, ok := seconds(extra["health_timeout"]); ok {
		healthTimeout = d
	}
	return Options{
		Member:         member,
		RemoveVolumes:  removeVolumes,
		RemoveImages:   removeImages,
		Flags:          stringSlice(extra["flags"]),
		RequireHealthy: false,
		HealthTimeout:  healthTimeout,
		Extra:          cloneExtra(extra),
	}
}

// ForRestart builds restart options. Health is required.
func ForRestart(member string, rebuild, removeVolumes bool, removeImages string, healthTimeout time.Duration, extra map[string]any) Options {
	return Options{
		Member:         member,
		Rebuild:        rebuild,
		RemoveVolumes:  removeVolumes,
		RemoveImages:   removeImages,
		Flags:          stringSlice(extra["flags"]),
		RequireHealthy: true,
		HealthTimeout:  healthTimeout,
		Extra:          cloneExtra(extra),
	}
}

// OperationTimeout returns extra["operation_timeout"] in seconds, or def.
func (o Options) OperationTimeout(def time.Duration) time.Duration {
	if d, ok := seconds(o.Extra["operation_timeout"]); ok && d > 0 {
		return d
	}
	return def
}

// HealthTimeoutFrom reads extra["health_timeout"] in seconds, or returns def.
func HealthTimeoutFrom(extra map[string]any, def time.Duration) time.Duration {
	if d, ok := seconds(extra["health_timeout"]); ok && d > 0 {
		return d
	}
	return def
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return map[string]any{}
	}
	return deepCopyMap(extra)
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	}
	return false, false
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}

// seconds accepts a duration, a number of seconds or a numeric string.
func seconds(v any) (time.Duration, bool) {
	switch t := v.(type) {
	case time.Duration:
		return t, true
	case int:
		return time.Duration(t) * time.Second, true
	case int64:
		return time.Duration(t) * time.Second, true
	case float64:
		return time.Duration(t * float64(time.Second)), true
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d, true
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return time.Duration(n * float64(time.Second)), true
		}
	}
	return 0, false
}
