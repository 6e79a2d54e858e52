package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/ids"
	"github.com/zpdzap/drydock/internal/logging"
	"github.com/zpdzap/drydock/internal/state"
)

const (
	msgTimedOut  = "Operation timed out"
	msgCanceled  = "Operation canceled"
	msgNoStatus  = "no exit status recorded"
	killGrace    = 5 * time.Second
	outcomeOK    = "success"
	outcomeError = "failure"
)

// handle tracks one launched process. It lives only for one Run call.
type handle struct {
	def          *compose.Definition
	artifacts    *compose.Artifacts
	command      compose.Command
	cmd          *exec.Cmd
	logFile      *os.File
	done         chan struct{}
	waitErr      error
	lastProgress time.Time
	log          *logging.Logger
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) exitCode() int {
	if h.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Run executes verb against every definition concurrently and returns once
// every process has exited or been killed and the final state is known.
// Canceling ctx is treated like the operation timeout.
func (r *CLIRuntime) Run(ctx context.Context, verb compose.Verb, defs []*compose.Definition, opts compose.Options, waitForHealth bool) *Result {
	res := newResult()
	if len(defs) == 0 {
		return res
	}
	if ctx.Err() != nil {
		for _, def := range defs {
			res.fail(def.ID(), msgCanceled)
		}
		return res
	}

	log := r.log.WithOperation(ids.New()).With("verb", string(verb))
	started := time.Now()

	handles := r.launch(verb, defs, opts, res, log)
	r.drain(ctx, verb, handles, opts.OperationTimeout(r.operationTimeout), res, log)
	states := r.settle(ctx, defs, opts, waitForHealth, log)
	r.reconcile(defs, opts, states, res)

	elapsed := time.Since(started)
	for _, def := range defs {
		outcome := outcomeOK
		if !res.StatusByID[def.ID()] {
			outcome = outcomeError
		}
		if r.metrics != nil {
			r.metrics.ObserveOperation(string(verb), outcome, elapsed)
		}
	}
	if r.metrics != nil {
		for _, s := range states {
			r.metrics.ObserveState(s)
		}
	}
	log.Info("operation finished", "targets", len(defs), "duration_ms", elapsed.Milliseconds(), "success", res.AllSuccessful())
	return res
}

// launch renders, builds and starts one process per definition.
func (r *CLIRuntime) launch(verb compose.Verb, defs []*compose.Definition, opts compose.Options, res *Result, log *logging.Logger) []*handle {
	handles := make([]*handle, 0, len(defs))
	for _, def := range defs {
		id := def.ID()
		dlog := log.WithDeployment(id)

		artifacts, err := def.Render(verb)
		if err != nil {
			dlog.Error("render failed", "error", err.Error())
			res.fail(id, fmt.Sprintf("Failed to render definition: %v", err))
			continue
		}

		command := r.builder.Build(verb, def, opts, artifacts.ComposeFile)
		h, err := r.spawn(def, artifacts, command, dlog)
		if err != nil {
			dlog.Error("spawn failed", "error", err.Error(), "command", command.Invocation)
			res.fail(id, fmt.Sprintf("Failed to start process: %v", err))
			r.release(h, dlog)
			continue
		}
		dlog.Info("process started", "pid", h.cmd.Process.Pid, "command", command.Invocation)

		if fn, _ := def.Progress(); fn != nil {
			fn(id, nil, verb)
			h.lastProgress = time.Now()
		}
		handles = append(handles, h)
	}
	return handles
}

// spawn starts the command with stdout and stderr appended to the log file
// and no stdin. The returned handle is non-nil even on error so the caller
// can release the artifacts.
func (r *CLIRuntime) spawn(def *compose.Definition, artifacts *compose.Artifacts, command compose.Command, log *logging.Logger) (*handle, error) {
	h := &handle{def: def, artifacts: artifacts, command: command, done: make(chan struct{}), log: log}

	f, err := os.OpenFile(artifacts.LogFile, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return h, fmt.Errorf("opening log file: %w", err)
	}
	h.logFile = f

	argv := append(shell(), command.Invocation)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = command.Environ(r.environ())
	cmd.Stdout = f
	cmd.Stderr = f
	cmd.Stdin = nil
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return h, err
	}
	h.cmd = cmd

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// drain polls every handle until its process exits, the timeout passes or
// ctx is canceled.
func (r *CLIRuntime) drain(ctx context.Context, verb compose.Verb, handles []*handle, timeout time.Duration, res *Result, log *logging.Logger) {
	start := time.Now()
	active := handles

	for len(active) > 0 {
		remaining := active[:0]
		for _, h := range active {
			r.poll(verb, h, res)
			if !h.exited() {
				remaining = append(remaining, h)
				continue
			}
			r.poll(verb, h, res)
			r.finish(verb, h, res)
		}
		active = remaining
		if len(active) == 0 {
			return
		}

		if time.Since(start) > timeout {
			log.Warn("operation timed out", "timeout", timeout.String(), "remaining", len(active))
			r.abort(verb, active, msgTimedOut, res)
			return
		}

		select {
		case <-ctx.Done():
			log.Warn("operation canceled", "remaining", len(active))
			r.abort(verb, active, msgCanceled, res)
			return
		case <-time.After(r.pollInterval):
		}
	}
}

// poll re-parses the whole log, merges new error lines and fires the
// progress callback if its interval has passed.
func (r *CLIRuntime) poll(verb compose.Verb, h *handle, res *Result) {
	content, err := os.ReadFile(h.artifacts.LogFile)
	if err != nil {
		return
	}
	parsed := r.parse(string(content))
	id := h.def.ID()
	for _, line := range parsed.Errors {
		res.addError(id, line)
	}

	fn, interval := h.def.Progress()
	if fn == nil {
		return
	}
	if now := time.Now(); now.Sub(h.lastProgress) >= interval {
		fn(id, parsed.Events, verb)
		h.lastProgress = now
	}
}

func (r *CLIRuntime) finish(verb compose.Verb, h *handle, res *Result) {
	id := h.def.ID()
	code := h.exitCode()
	res.StatusByID[id] = code == 0
	if code != 0 {
		res.addError(id, fmt.Sprintf("Process exited with code %d", code))
	}
	h.log.Info("process exited", "exit_code", code)
	r.persist(verb, h)
	r.release(h, h.log)
}

// abort kills every remaining process and records msg against it.
func (r *CLIRuntime) abort(verb compose.Verb, active []*handle, msg string, res *Result) {
	for _, h := range active {
		res.fail(h.def.ID(), msg)
		if r.metrics != nil && msg == msgTimedOut {
			r.metrics.ObserveTimeout(string(verb))
		}
		if err := killProcessTree(h.cmd); err != nil {
			h.log.Warn("kill failed", "error", err.Error())
		}
		select {
		case <-h.done:
		case <-time.After(killGrace):
			h.log.Warn("process did not exit after kill")
		}
		r.persist(verb, h)
		r.release(h, h.log)
	}
}

func (r *CLIRuntime) persist(verb compose.Verb, h *handle) {
	prefix, err := h.def.PersistDebug(verb, h.artifacts)
	if err != nil {
		h.log.Warn("debug capture failed", "error", err.Error())
		return
	}
	if prefix != "" {
		h.log.Debug("debug artifacts saved", "prefix", prefix)
	}
}

// release closes the log file and removes temporaries. Failures are logged.
func (r *CLIRuntime) release(h *handle, log *logging.Logger) {
	if h == nil {
		return
	}
	if h.logFile != nil {
		h.logFile.Close()
		h.logFile = nil
	}
	if err := h.artifacts.Release(); err != nil {
		log.Warn("cleanup failed", "error", err.Error())
	}
}

// settle returns the states to report: polled until healthy when the verb
// waits for health and the options require it, otherwise one snapshot.
func (r *CLIRuntime) settle(ctx context.Context, defs []*compose.Definition, opts compose.Options, waitForHealth bool, log *logging.Logger) map[string]state.DeploymentState {
	if ctx.Err() != nil {
		return r.inspector.Describe(context.WithoutCancel(ctx), defs)
	}
	if !waitForHealth || !opts.RequireHealthy {
		return r.inspector.Describe(ctx, defs)
	}

	deadline := time.Now().Add(opts.HealthTimeout)
	for {
		states := r.inspector.Describe(ctx, defs)
		if allHealthy(defs, states) {
			log.Info("health converged")
			return states
		}
		if !time.Now().Before(deadline) {
			log.Warn("health did not converge", "timeout", opts.HealthTimeout.String())
			return states
		}
		select {
		case <-ctx.Done():
			return r.inspector.Describe(context.WithoutCancel(ctx), defs)
		case <-time.After(r.pollInterval):
		}
	}
}

func allHealthy(defs []*compose.Definition, states map[string]state.DeploymentState) bool {
	for _, def := range defs {
		s, ok := states[def.ID()]
		if !ok || !s.IsRunning() || !s.IsHealthy() {
			return false
		}
	}
	return true
}

// reconcile folds health into each exit status and attaches the states.
func (r *CLIRuntime) reconcile(defs []*compose.Definition, opts compose.Options, states map[string]state.DeploymentState, res *Result) {
	for _, def := range defs {
		id := def.ID()
		if _, ok := res.StatusByID[id]; !ok {
			res.fail(id, msgNoStatus)
		}
		s, ok := states[id]
		if !ok {
			continue
		}
		res.States[id] = s
		if opts.RequireHealthy && !s.IsHealthy() {
			res.fail(id, "Health check failed for "+id)
		}
	}
}
