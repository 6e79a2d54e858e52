package compose

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError is one problem found in a compose document.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is every problem found in a compose document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the structural rules drydock relies on: no deprecated
// version key, at least one service, and a container_name on every service
// so its state can be tracked. It returns ValidationErrors or nil.
func Validate(data map[string]any) error {
	var errs ValidationErrors

	if _, ok := data["version"]; ok {
		errs = append(errs, ValidationError{"version", "the version key is deprecated in compose files, remove it"})
	}

	services, ok := data["services"].(map[string]any)
	if !ok || len(services) == 0 {
		errs = append(errs, ValidationError{"services", "at least one service must be defined"})
		return errs
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := "services." + name
		svc, ok := services[name].(map[string]any)
		if !ok {
			errs = append(errs, ValidationError{field, "service must be a mapping"})
			continue
		}
		if cn, _ := svc["container_name"].(string); strings.TrimSpace(cn) == "" {
			errs = append(errs, ValidationError{field + ".container_name", "must be set so the container state can be tracked"})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
