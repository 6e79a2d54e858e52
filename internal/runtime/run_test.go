package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/parser"
	"github.com/zpdzap/drydock/internal/state"
)

// scriptBuilder runs a fixed shell script per deployment id.
type scriptBuilder struct {
	mu       sync.Mutex
	scripts  map[string]string
	rendered map[string]string
}

func (b *scriptBuilder) Build(_ compose.Verb, def *compose.Definition, _ compose.Options, composeFile string) compose.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rendered == nil {
		b.rendered = make(map[string]string)
	}
	b.rendered[def.ID()] = composeFile
	return compose.Command{Invocation: b.scripts[def.ID()], Dir: def.WorkDir(), Env: def.Env()}
}

type fakeInspector struct {
	mu     sync.Mutex
	states map[string]state.DeploymentState
	calls  int
}

func (f *fakeInspector) Describe(_ context.Context, defs []*compose.Definition) map[string]state.DeploymentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]state.DeploymentState, len(defs))
	for _, def := range defs {
		if s, ok := f.states[def.ID()]; ok {
			out[def.ID()] = s
		} else {
			out[def.ID()] = state.Unknown(def.ID())
		}
	}
	return out
}

func (f *fakeInspector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	timeouts int
	states   int
}

func (f *fakeRecorder) ObserveOperation(_ string, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) ObserveTimeout(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts++
}

func (f *fakeRecorder) ObserveState(state.DeploymentState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states++
}

func yamlDef(t *testing.T, id string) *compose.Definition {
	t.Helper()
	return compose.FromYAML(id, map[string]any{
		"services": map[string]any{
			id: map[string]any{"image": "alpine"},
		},
	}, t.TempDir())
}

func newTestRuntime(scripts map[string]string, insp *fakeInspector, opts ...Option) (*CLIRuntime, *scriptBuilder) {
	b := &scriptBuilder{scripts: scripts}
	opts = append([]Option{WithPollInterval(20 * time.Millisecond)}, opts...)
	return New(b, insp, opts...), b
}

func noHealth() compose.Options {
	return compose.ForStart("", false, time.Second, map[string]any{"require_healthy": false})
}

func TestRunEmpty(t *testing.T) {
	insp := &fakeInspector{}
	r, _ := newTestRuntime(nil, insp)

	res := r.Start(context.Background(), nil, noHealth())
	if len(res.StatusByID) != 0 || len(res.ErrorsByID) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if res.AllSuccessful() {
		t.Error("empty result should not be all successful")
	}
	if insp.count() != 0 {
		t.Errorf("inspector called %d times, want 0", insp.count())
	}
}

func TestRunMixedExitCodes(t *testing.T) {
	insp := &fakeInspector{states: map[string]state.DeploymentState{
		"web":    state.Running("web", map[string]string{"web": "running"}),
		"worker": state.Stopped("worker", nil),
	}}
	r, _ := newTestRuntime(map[string]string{
		"web":    "exit 0",
		"worker": "exit 1",
	}, insp)

	res := r.Start(context.Background(), []*compose.Definition{yamlDef(t, "web"), yamlDef(t, "worker")}, noHealth())

	want := map[string]bool{"web": true, "worker": false}
	if !reflect.DeepEqual(res.StatusByID, want) {
		t.Errorf("StatusByID = %v, want %v", res.StatusByID, want)
	}
	if !slices.Contains(res.ErrorsByID["worker"], "Process exited with code 1") {
		t.Errorf("worker errors = %v, want exit code message", res.ErrorsByID["worker"])
	}
	if _, ok := res.ErrorsByID["web"]; ok {
		t.Errorf("web should have no errors, got %v", res.ErrorsByID["web"])
	}
	if res.States["web"].Status() != state.StatusRunning {
		t.Errorf("web state = %s, want running", res.States["web"].Status())
	}
}

func TestRunMixedExitCodesRequireHealthy(t *testing.T) {
	insp := &fakeInspector{states: map[string]state.DeploymentState{
		"web":    state.Running("web", map[string]string{"web": "running"}),
		"worker": state.Stopped("worker", map[string]string{"worker": "exited"}),
	}}
	r, _ := newTestRuntime(map[string]string{
		"web":    "exit 0",
		"worker": "exit 1",
	}, insp)

	healthTimeout := 300 * time.Millisecond
	opts := compose.ForStart("", false, healthTimeout, nil)
	if !opts.RequireHealthy {
		t.Fatal("start options should require health by default")
	}

	start := time.Now()
	res := r.Start(context.Background(), []*compose.Definition{yamlDef(t, "web"), yamlDef(t, "worker")}, opts)
	elapsed := time.Since(start)

	want := map[string]bool{"web": true, "worker": false}
	if !reflect.DeepEqual(res.StatusByID, want) {
		t.Errorf("StatusByID = %v, want %v", res.StatusByID, want)
	}
	if !slices.Contains(res.ErrorsByID["worker"], "Process exited with code 1") {
		t.Errorf("worker errors = %v, want exit code message", res.ErrorsByID["worker"])
	}
	if !slices.Contains(res.ErrorsByID["worker"], "Health check failed for worker") {
		t.Errorf("worker errors = %v, want health failure", res.ErrorsByID["worker"])
	}
	if errs, ok := res.ErrorsByID["web"]; ok {
		t.Errorf("web should have no errors, got %v", errs)
	}
	if elapsed > healthTimeout+time.Second {
		t.Errorf("Start took %s, want under health timeout %s plus slack", elapsed, healthTimeout)
	}
	if insp.count() < 2 {
		t.Errorf("inspector called %d times, want polling", insp.count())
	}
}

func TestRunTimeout(t *testing.T) {
	rec := &fakeRecorder{}
	insp := &fakeInspector{}
	r, _ := newTestRuntime(map[string]string{"slow": "sleep 30"}, insp, WithMetrics(rec))

	opts := compose.ForStop("", false, "", map[string]any{"operation_timeout": "200ms"})
	start := time.Now()
	res := r.Stop(context.Background(), []*compose.Definition{yamlDef(t, "slow")}, opts)

	// timeout plus one poll interval, with slack for process teardown
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond+time.Second {
		t.Fatalf("Stop took %s, process was not killed", elapsed)
	}
	if res.StatusByID["slow"] {
		t.Error("timed out deployment should not succeed")
	}
	if !slices.Contains(res.ErrorsByID["slow"], msgTimedOut) {
		t.Errorf("errors = %v, want %q", res.ErrorsByID["slow"], msgTimedOut)
	}
	if rec.timeouts != 1 {
		t.Errorf("timeouts = %d, want 1", rec.timeouts)
	}
	if !reflect.DeepEqual(rec.outcomes, []string{outcomeError}) {
		t.Errorf("outcomes = %v", rec.outcomes)
	}
}

func TestRunCanceled(t *testing.T) {
	r, _ := newTestRuntime(map[string]string{"slow": "sleep 30"}, &fakeInspector{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	res := r.Stop(ctx, []*compose.Definition{yamlDef(t, "slow")}, compose.ForStop("", false, "", nil))

	if res.StatusByID["slow"] {
		t.Error("canceled deployment should not succeed")
	}
	if !slices.Contains(res.ErrorsByID["slow"], msgCanceled) {
		t.Errorf("errors = %v, want %q", res.ErrorsByID["slow"], msgCanceled)
	}
}

func TestRunAlreadyCanceled(t *testing.T) {
	b := &scriptBuilder{scripts: map[string]string{"web": "exit 0"}}
	r := New(b, &fakeInspector{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Start(ctx, []*compose.Definition{yamlDef(t, "web")}, noHealth())

	if res.StatusByID["web"] {
		t.Error("want failure")
	}
	if len(b.rendered) != 0 {
		t.Error("nothing should be launched after cancellation")
	}
}

func TestStopInspectsOnce(t *testing.T) {
	insp := &fakeInspector{states: map[string]state.DeploymentState{
		"web": state.Stopped("web", nil),
	}}
	r, _ := newTestRuntime(map[string]string{"web": "exit 0"}, insp)

	res := r.Stop(context.Background(), []*compose.Definition{yamlDef(t, "web")}, compose.ForStop("", false, "", nil))
	if !res.AllSuccessful() {
		t.Errorf("Stop failed: %v", res.ErrorsByID)
	}
	if insp.count() != 1 {
		t.Errorf("inspector called %d times, want 1", insp.count())
	}
	if res.States["web"].Status() != state.StatusStopped {
		t.Errorf("state = %s, want stopped", res.States["web"].Status())
	}
}

func TestRunErrorLinesOnSuccess(t *testing.T) {
	r, _ := newTestRuntime(map[string]string{
		"web": "echo 'Error response from daemon: pull access denied'; echo 'Error response from daemon: pull access denied'; exit 0",
	}, &fakeInspector{})

	res := r.Stop(context.Background(), []*compose.Definition{yamlDef(t, "web")}, compose.ForStop("", false, "", nil))
	if !res.StatusByID["web"] {
		t.Error("exit 0 should be reported as success")
	}
	want := []string{"Error response from daemon: pull access denied"}
	if !reflect.DeepEqual(res.ErrorsByID["web"], want) {
		t.Errorf("errors = %v, want %v", res.ErrorsByID["web"], want)
	}
}

func TestRunProgress(t *testing.T) {
	r, _ := newTestRuntime(map[string]string{
		"web": "echo 'Container web-1  Started'; sleep 0.2",
	}, &fakeInspector{})

	def := yamlDef(t, "web")
	var calls [][]parser.Event
	def.OnProgress(func(id string, events []parser.Event, verb compose.Verb) {
		if id != "web" || verb != compose.VerbStop {
			t.Errorf("progress(%q, %q)", id, verb)
		}
		calls = append(calls, events)
	}, 0)

	r.Stop(context.Background(), []*compose.Definition{def}, compose.ForStop("", false, "", nil))

	if len(calls) < 2 {
		t.Fatalf("progress called %d times, want at least 2", len(calls))
	}
	if len(calls[0]) != 0 {
		t.Errorf("first call events = %v, want none", calls[0])
	}
	last := calls[len(calls)-1]
	if len(last) != 1 || last[0].Member != "web-1" || last[0].Status != "started" {
		t.Errorf("last events = %+v", last)
	}
}

func TestRunEnvAndDir(t *testing.T) {
	def := yamlDef(t, "web")
	if err := os.WriteFile(filepath.Join(def.WorkDir(), "marker"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	def.SetEnv("DRYDOCK_TEST_VAR", "hello")

	r, _ := newTestRuntime(map[string]string{
		"web": `test -f marker && test "$DRYDOCK_TEST_VAR" = hello`,
	}, &fakeInspector{})

	res := r.Stop(context.Background(), []*compose.Definition{def}, compose.ForStop("", false, "", nil))
	if !res.StatusByID["web"] {
		t.Errorf("command did not see env or dir: %v", res.ErrorsByID["web"])
	}
}

func TestRunReleasesArtifacts(t *testing.T) {
	r, b := newTestRuntime(map[string]string{"web": "exit 0"}, &fakeInspector{})

	r.Stop(context.Background(), []*compose.Definition{yamlDef(t, "web")}, compose.ForStop("", false, "", nil))

	composeFile := b.rendered["web"]
	if composeFile == "" {
		t.Fatal("no compose file rendered")
	}
	if _, err := os.Stat(filepath.Dir(composeFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact dir still present: %v", err)
	}
}

func TestRunDebugCapture(t *testing.T) {
	debugDir := t.TempDir()
	def := yamlDef(t, "web")
	def.SetDebugDir(debugDir)

	r, _ := newTestRuntime(map[string]string{"web": "echo pulled"}, &fakeInspector{})
	r.Stop(context.Background(), []*compose.Definition{def}, compose.ForStop("", false, "", nil))

	logs, _ := filepath.Glob(filepath.Join(debugDir, "*-web-stop.log"))
	ymls, _ := filepath.Glob(filepath.Join(debugDir, "*-web-stop.yml"))
	if len(logs) != 1 || len(ymls) != 1 {
		t.Fatalf("debug files: logs=%v ymls=%v", logs, ymls)
	}
	content, _ := os.ReadFile(logs[0])
	if string(content) != "pulled\n" {
		t.Errorf("captured log = %q", content)
	}
}

func TestRunHealthFailure(t *testing.T) {
	insp := &fakeInspector{states: map[string]state.DeploymentState{
		"web": state.Unhealthy("web", map[string]string{"web": "unhealthy"}),
	}}
	r, _ := newTestRuntime(map[string]string{"web": "exit 0"}, insp)

	opts := compose.ForStart("", false, 100*time.Millisecond, nil)
	res := r.Start(context.Background(), []*compose.Definition{yamlDef(t, "web")}, opts)

	if res.StatusByID["web"] {
		t.Error("unhealthy deployment should fail")
	}
	if !slices.Contains(res.ErrorsByID["web"], "Health check failed for web") {
		t.Errorf("errors = %v", res.ErrorsByID["web"])
	}
	if insp.count() < 2 {
		t.Errorf("inspector called %d times, want polling", insp.count())
	}
}

func TestRunHealthConverges(t *testing.T) {
	insp := &fakeInspector{states: map[string]state.DeploymentState{
		"web": state.Running("web", map[string]string{"web": "running"}),
	}}
	r, _ := newTestRuntime(map[string]string{"web": "exit 0"}, insp)

	res := r.Start(context.Background(), []*compose.Definition{yamlDef(t, "web")}, compose.ForStart("", false, 5*time.Second, nil))
	if !res.AllSuccessful() {
		t.Errorf("Start failed: %v", res.ErrorsByID)
	}
	if insp.count() != 1 {
		t.Errorf("inspector called %d times, want 1", insp.count())
	}
}
