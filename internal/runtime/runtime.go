// Package runtime runs lifecycle commands against many deployments at once
// and converges on their final state.
package runtime

import (
	"context"
	"os"
	"time"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/inspect"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/parser"
	"github.com/zpdzap/drydock/internal/state"
)

const (
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultOperationTimeout = 600 * time.Second
)

// Runtime is everything the manager needs from a backend. Lifecycle calls
// report failures through Result, never as Go errors.
type Runtime interface {
	Start(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result
	Stop(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result
	Remove(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result
	Restart(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result

	Describe(ctx context.Context, defs []*compose.Definition) map[string]state.DeploymentState
	Inspect(ctx context.Context, defs []*compose.Definition, member string) map[string]map[string]string
	ContainerExists(ctx context.Context, defs []*compose.Definition, member string) bool
	IsRunning(ctx context.Context, defs []*compose.Definition, member string) bool
	VolumesExist(ctx context.Context, defs []*compose.Definition) bool
	ImagesExist(ctx context.Context, defs []*compose.Definition) bool
	ListVolumes(ctx context.Context, defs []*compose.Definition) []string
	ListImages(ctx context.Context, defs []*compose.Definition) []string
}

// Recorder receives operation measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveOperation(verb string, outcome string, d time.Duration)
	ObserveTimeout(verb string)
	ObserveState(s state.DeploymentState)
}

// CLIRuntime drives external processes through a shell.
type CLIRuntime struct {
	builder          compose.CommandBuilder
	inspector        inspect.Inspector
	resources        inspect.ResourceLister
	parse            func(string) parser.Result
	pollInterval     time.Duration
	operationTimeout time.Duration
	log              *logging.Logger
	metrics          Recorder
	environ          func() []string
}

type Option func(*CLIRuntime)

func WithPollInterval(d time.Duration) Option {
	return func(r *CLIRuntime) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithOperationTimeout(d time.Duration) Option {
	return func(r *CLIRuntime) {
		if d > 0 {
			r.operationTimeout = d
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(r *CLIRuntime) { r.log = l }
}

func WithMetrics(m Recorder) Option {
	return func(r *CLIRuntime) { r.metrics = m }
}

func WithResources(l inspect.ResourceLister) Option {
	return func(r *CLIRuntime) { r.resources = l }
}

// WithParser replaces the output parser.
func WithParser(fn func(string) parser.Result) Option {
	return func(r *CLIRuntime) { r.parse = fn }
}

// WithEnviron replaces the base environment the processes inherit.
func WithEnviron(fn func() []string) Option {
	return func(r *CLIRuntime) { r.environ = fn }
}

func New(builder compose.CommandBuilder, inspector inspect.Inspector, opts ...Option) *CLIRuntime {
	r := &CLIRuntime{
		builder:          builder,
		inspector:        inspector,
		parse:            parser.Parse,
		pollInterval:     DefaultPollInterval,
		operationTimeout: DefaultOperationTimeout,
		log:              logging.NopLogger(),
		environ:          os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CLIRuntime) Start(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result {
	return r.Run(ctx, compose.VerbStart, defs, opts, true)
}

func (r *CLIRuntime) Stop(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result {
	return r.Run(ctx, compose.VerbStop, defs, opts, false)
}

func (r *CLIRuntime) Remove(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result {
	return r.Run(ctx, compose.VerbRemove, defs, opts, false)
}

func (r *CLIRuntime) Restart(ctx context.Context, defs []*compose.Definition, opts compose.Options) *Result {
	return r.Run(ctx, compose.VerbRestart, defs, opts, true)
}
