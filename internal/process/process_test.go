package process

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink collects Data/EOF callbacks for assertions.
type recordingSink struct {
	mu   sync.Mutex
	text strings.Builder
	eofs int
}

func (s *recordingSink) Data(h *Handle, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(text)
}

func (s *recordingSink) EOF(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eofs++
}

func (s *recordingSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

func (s *recordingSink) EOFs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eofs
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"cmd only", Spec{Cmd: []string{"echo", "hi"}}, false},
		{"shell only", Spec{ShellCmd: "echo hi"}, false},
		{"neither", Spec{}, true},
		{"both", Spec{Cmd: []string{"echo"}, ShellCmd: "echo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr && !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStartRequiresValidSpec(t *testing.T) {
	if _, err := Start(Spec{}, &recordingSink{}); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestStartUnknownEncoding(t *testing.T) {
	spec := Spec{Cmd: []string{"echo", "hi"}, Encoding: "not-a-charset"}
	if _, err := Start(spec, &recordingSink{}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestStartSpawnFailure(t *testing.T) {
	spec := Spec{Cmd: []string{"/no/such/binary-xyz"}}
	if _, err := Start(spec, &recordingSink{}); err == nil {
		t.Error("expected spawn error for missing executable")
	}
}

func TestStartCapturesStdout(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{Cmd: []string{"echo", "hello"}}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-h.Done()

	if got := sink.String(); !strings.Contains(got, "hello") {
		t.Errorf("expected stdout in sink, got %q", got)
	}
	if sink.EOFs() != 1 {
		t.Errorf("expected exactly one EOF signal, got %d", sink.EOFs())
	}
	if code, ok := h.ExitCode(); !ok || code != 0 {
		t.Errorf("expected exit code 0, got %d (ok=%v)", code, ok)
	}
	if h.Running() {
		t.Error("expected Running() false after Done")
	}
}

func TestStartCapturesStderr(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{ShellCmd: "echo oops 1>&2"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-h.Done()

	if got := sink.String(); !strings.Contains(got, "oops") {
		t.Errorf("expected stderr in sink, got %q", got)
	}
}

func TestExitCodeNonzero(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{ShellCmd: "exit 42"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-h.Done()

	if code, ok := h.ExitCode(); !ok || code != 42 {
		t.Errorf("expected exit code 42, got %d (ok=%v)", code, ok)
	}
}

func TestExitCodeAbsentWhileRunning(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{ShellCmd: "sleep 5"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Terminate()

	if _, ok := h.ExitCode(); ok {
		t.Error("expected exit code to be absent while running")
	}
	if !h.Running() {
		t.Error("expected Running() true")
	}
}

func TestTerminateIdempotent(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{ShellCmd: "sleep 5"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.Terminate()
	h.Terminate() // second call is a no-op

	if !h.Terminated() {
		t.Error("expected Terminated() true")
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}
}

func TestNoDataAfterTerminate(t *testing.T) {
	sink := &recordingSink{}
	h, err := Start(Spec{ShellCmd: "while true; do echo tick; sleep 0.01; done"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let some output through, then cut it off.
	time.Sleep(100 * time.Millisecond)
	h.Terminate()
	before := sink.String()

	<-h.Done()
	time.Sleep(50 * time.Millisecond)

	if after := sink.String(); after != before {
		t.Errorf("sink received data after Terminate: %q -> %q", before, after)
	}
	if sink.EOFs() != 0 {
		t.Errorf("expected no EOF after Terminate, got %d", sink.EOFs())
	}
}

// gateSink blocks its first Data delivery until released, so a test can
// hold a delivery in flight.
type gateSink struct {
	recordingSink
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gateSink) Data(h *Handle, text string) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.recordingSink.Data(h, text)
}

func TestTerminateBlocksOnInFlightDelivery(t *testing.T) {
	sink := &gateSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h, err := Start(Spec{ShellCmd: "echo hello; sleep 30"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Terminate()

	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery started")
	}

	terminated := make(chan struct{})
	go func() {
		h.Terminate()
		close(terminated)
	}()

	// The delivery is still in flight; Terminate must not return yet.
	select {
	case <-terminated:
		t.Fatal("Terminate returned during an in-flight delivery")
	case <-time.After(100 * time.Millisecond):
	}

	close(sink.release)
	select {
	case <-terminated:
	case <-time.After(5 * time.Second):
		t.Fatal("Terminate did not return after the delivery completed")
	}

	// The held delivery completed before Terminate returned; nothing
	// arrives afterward.
	got := sink.String()
	time.Sleep(50 * time.Millisecond)
	if after := sink.String(); after != got {
		t.Errorf("sink received data after Terminate: %q -> %q", got, after)
	}
}

func TestTerminateKillsProcessGroup(t *testing.T) {
	sink := &recordingSink{}

	// The shell spawns a grandchild; killing only the shell would
	// leave it running.
	h, err := Start(Spec{ShellCmd: "sleep 30 & wait"}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.Terminate()

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process group did not exit after Terminate")
	}
}

func TestEnvironmentMergeAndExpansion(t *testing.T) {
	t.Setenv("BUILDPANE_TEST_BASE", "base")

	sink := &recordingSink{}
	h, err := Start(Spec{
		ShellCmd: "echo $MERGED",
		Env:      map[string]string{"MERGED": "x-$BUILDPANE_TEST_BASE"},
	}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-h.Done()

	if got := sink.String(); !strings.Contains(got, "x-base") {
		t.Errorf("expected expanded env value in output, got %q", got)
	}
}

func TestPathOverrideRestored(t *testing.T) {
	orig := os.Getenv("PATH")

	sink := &recordingSink{}
	h, err := Start(Spec{
		Cmd:  []string{"echo", "hi"},
		Path: "/tmp/buildpane-extra:$PATH",
	}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-h.Done()

	if got := os.Getenv("PATH"); got != orig {
		t.Errorf("PATH not restored after spawn: %q", got)
	}
}

func TestHandleIdentity(t *testing.T) {
	sink := &recordingSink{}
	a, err := Start(Spec{Cmd: []string{"true"}}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	b, err := Start(Spec{Cmd: []string{"true"}}, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct non-empty handle IDs, got %q and %q", a.ID(), b.ID())
	}

	<-a.Done()
	<-b.Done()
}
