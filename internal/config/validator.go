package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
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

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidEngines returns the inspection engines drydock knows.
func ValidEngines() []string {
	return []string{EngineCLI, EngineAPI}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Engine != "" && !slices.Contains(ValidEngines(), c.Engine) {
		errs = append(errs, ValidationError{"engine", c.Engine, fmt.Sprintf("must be one of %v", ValidEngines())})
	}
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, fmt.Sprintf("must be one of %v", ValidLogLevels())})
	}

	errs = append(errs, c.validateRuntime()...)
	errs = append(errs, c.validateDeployments()...)
	return errs
}

func (c *Config) validateRuntime() []ValidationError {
	var errs []ValidationError
	positive := []struct {
		field string
		value int
	}{
		{"runtime.poll_interval_ms", c.Runtime.PollIntervalMs},
		{"runtime.operation_timeout_seconds", c.Runtime.OperationTimeoutSeconds},
		{"runtime.health_timeout_seconds", c.Runtime.HealthTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{p.field, p.value, "must be positive"})
		}
	}
	if c.Runtime.ProgressIntervalMs < 0 {
		errs = append(errs, ValidationError{"runtime.progress_interval_ms", c.Runtime.ProgressIntervalMs, "must not be negative"})
	}
	return errs
}

func (c *Config) validateDeployments() []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, d := range c.Deployments {
		field := fmt.Sprintf("deployments[%d]", i)
		if d.ID == "" {
			errs = append(errs, ValidationError{field + ".id", d.ID, "must not be empty"})
		} else if seen[d.ID] {
			errs = append(errs, ValidationError{field + ".id", d.ID, "duplicate deployment id"})
		}
		seen[d.ID] = true

		sources := 0
		for _, s := range []string{d.File, d.Container, d.Project} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			errs = append(errs, ValidationError{field, d.ID, "exactly one of file, container or project must be set"})
		}
	}
	return errs
}
