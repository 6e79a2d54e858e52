// Package compose models a registered deployment: its compose document,
// environment overrides, callbacks and the shell command that drives it.
package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zpdzap/drydock/internal/parser"
	"github.com/zpdzap/drydock/internal/state"
)

var (
	ErrNotRegistered   = errors.New("deployment not registered")
	ErrNotStartable    = errors.New("deployment is read-only")
	ErrServiceNotFound = errors.New("service not found")
)

// Kind says where a definition came from and what drydock may do with it.
type Kind string

const (
	KindFile      Kind = "file"
	KindYAML      Kind = "yaml"
	KindContainer Kind = "container"
	KindProject   Kind = "project"
)

// ProgressFunc receives the events parsed so far for one deployment.
type ProgressFunc func(id string, events []parser.Event, verb Verb)

// SuccessFunc is called after an operation succeeded for a deployment.
type SuccessFunc func(id string, verb Verb)

// ErrorFunc is called with the collected errors after an operation failed.
type ErrorFunc func(id string, errs []string)

// Definition is one registered deployment. It is safe for concurrent use.
type Definition struct {
	mu sync.RWMutex

	id         string
	kind       Kind
	workDir    string
	sourceFile string
	data       map[string]any
	env        map[string]string
	debugDir   string

	progress         ProgressFunc
	progressInterval time.Duration
	onSuccess        SuccessFunc
	onError          ErrorFunc

	state    state.DeploymentState
	hasState bool
}

// FromFile loads a compose file from disk.
func FromFile(id, path string) (*Definition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading compose file: %w", err)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing compose file %s: %w", path, err)
	}
	d := newDefinition(id, KindFile, filepath.Dir(abs), data)
	d.sourceFile = abs
	return d, nil
}

// FromYAML wraps an in-memory compose document. data is deep-copied.
func FromYAML(id string, data map[string]any, workDir string) *Definition {
	return newDefinition(id, KindYAML, workDir, deepCopyMap(data))
}

// ParseYAML decodes a compose document and wraps it like FromYAML.
func ParseYAML(id string, doc []byte, workDir string) (*Definition, error) {
	data, err := decode(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing compose document: %w", err)
	}
	return newDefinition(id, KindYAML, workDir, data), nil
}

// FromContainer refers to an existing container by name. It can be
// inspected, stopped and removed but not started.
func FromContainer(id, containerName, workDir string) *Definition {
	return newDefinition(id, KindContainer, workDir, map[string]any{"container_name": containerName})
}

// FromProject refers to an existing compose project by name.
func FromProject(id, projectName, workDir string) *Definition {
	return newDefinition(id, KindProject, workDir, map[string]any{"name": projectName})
}

func newDefinition(id string, kind Kind, workDir string, data map[string]any) *Definition {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if data == nil {
		data = make(map[string]any)
	}
	return &Definition{
		id:      id,
		kind:    kind,
		workDir: workDir,
		data:    data,
		env:     make(map[string]string),
	}
}

func decode(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}

func (d *Definition) ID() string { return d.id }
func (d *Definition) Kind() Kind { return d.kind }
func (d *Definition) WorkDir() string {
	return d.workDir
}

// SourceFile is the compose file a KindFile definition was loaded from.
func (d *Definition) SourceFile() string { return d.sourceFile }

// Startable reports whether drydock owns the compose document and may
// bring the deployment up.
func (d *Definition) Startable() bool {
	return d.kind == KindFile || d.kind == KindYAML
}

// Data returns a deep copy of the compose document.
func (d *Definition) Data() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return deepCopyMap(d.data)
}

var projectNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// ProjectName is the compose project the deployment runs under: the
// document's top-level name, else the directory name for files (as docker
// compose does), else the id.
func (d *Definition) ProjectName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if name, ok := d.data["name"].(string); ok && name != "" {
		return normalizeProjectName(name)
	}
	if d.kind == KindFile {
		return normalizeProjectName(filepath.Base(d.workDir))
	}
	return normalizeProjectName(d.id)
}

func normalizeProjectName(s string) string {
	s = projectNameChars.ReplaceAllString(strings.ToLower(s), "")
	return strings.TrimLeft(s, "_-")
}

// ContainerName is the container a KindContainer definition refers to.
func (d *Definition) ContainerName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, _ := d.data["container_name"].(string)
	return name
}

// Services returns the service names in the compose document, sorted.
func (d *Definition) Services() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	services, _ := d.data["services"].(map[string]any)
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContainerNames returns every container_name declared by the services, or
// the referenced container for KindContainer.
func (d *Definition) ContainerNames() []string {
	if d.kind == KindContainer {
		if name := d.ContainerName(); name != "" {
			return []string{name}
		}
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	services, _ := d.data["services"].(map[string]any)
	var names []string
	for _, svc := range services {
		m, _ := svc.(map[string]any)
		if name, ok := m["container_name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Env returns a copy of the environment overrides.
func (d *Definition) Env() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.env))
	for k, v := range d.env {
		out[k] = v
	}
	return out
}

func (d *Definition) SetEnv(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env[key] = value
}

func (d *Definition) SetEnvs(vars map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range vars {
		d.env[k] = v
	}
}

// SetDebugDir enables debug capture: rendered documents and logs of every
// operation are copied there.
func (d *Definition) SetDebugDir(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debugDir = dir
}

func (d *Definition) DebugDir() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.debugDir
}

// OnProgress registers fn to be called at most once per interval while an
// operation runs, plus once when it is launched.
func (d *Definition) OnProgress(fn ProgressFunc, interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = fn
	d.progressInterval = interval
}

// Progress returns the progress callback, or nil.
func (d *Definition) Progress() (ProgressFunc, time.Duration) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.progress, d.progressInterval
}

func (d *Definition) OnSuccess(fn SuccessFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSuccess = fn
}

func (d *Definition) SuccessCallback() SuccessFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.onSuccess
}

func (d *Definition) OnError(fn ErrorFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

func (d *Definition) ErrorCallback() ErrorFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.onError
}

// SetState records the last observed state.
func (d *Definition) SetState(s state.DeploymentState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
	d.hasState = true
}

// State returns the last observed state, if any.
func (d *Definition) State() (state.DeploymentState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state, d.hasState
}

// Validate checks the compose document. Read-only kinds have nothing to check.
func (d *Definition) Validate() error {
	if !d.Startable() {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Validate(d.data)
}
