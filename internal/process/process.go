package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/buildpane/internal/encoding"
)

// BlockSize is the maximum number of bytes read from a stream per call.
const BlockSize = 16384

// Sentinel errors.
var (
	// ErrConfig is returned when a Spec does not name exactly one
	// command form, or the shell command is empty.
	ErrConfig = errors.New("invalid command spec")
)

// Spec describes the process to spawn.
type Spec struct {
	// Cmd is a literal argument vector, executed directly.
	// Exactly one of Cmd and ShellCmd must be set.
	Cmd []string

	// ShellCmd is a shell command string, executed through the
	// platform shell.
	ShellCmd string

	// Env is merged over the inherited environment. Variable
	// references in values are expanded against the merged set.
	Env map[string]string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string

	// Encoding is the IANA name of the output encoding.
	// Empty means UTF-8.
	Encoding string

	// Path temporarily replaces PATH while resolving and spawning the
	// executable. $PATH inside it expands to the prior value. The
	// parent's PATH is restored before Start returns.
	Path string
}

// Validate checks that exactly one command form is supplied.
func (s *Spec) Validate() error {
	if len(s.Cmd) == 0 && s.ShellCmd == "" {
		return fmt.Errorf("%w: cmd or shell_cmd is required", ErrConfig)
	}
	if len(s.Cmd) > 0 && s.ShellCmd != "" {
		return fmt.Errorf("%w: cmd and shell_cmd are mutually exclusive", ErrConfig)
	}
	return nil
}

// CommandLine returns a printable form of the command for diagnostics.
func (s *Spec) CommandLine() string {
	if s.ShellCmd != "" {
		return s.ShellCmd
	}
	return strings.Join(s.Cmd, " ")
}

// Sink receives decoded output from a Handle's reader goroutines.
//
// Data may be called concurrently from the stdout and stderr readers.
// EOF is called exactly once, from the stdout reader, when the primary
// stream ends. Neither is called after Terminate returns. Calling
// Terminate on the delivering Handle from inside Data or EOF deadlocks;
// spawn a goroutine for that.
type Sink interface {
	Data(h *Handle, text string)
	EOF(h *Handle)
}

// Handle is an opaque reference to one spawned external process.
type Handle struct {
	id string

	// Started is the time the process was spawned.
	Started time.Time

	cmd   *exec.Cmd
	group procGroup

	// sink is severed (set nil) by Terminate. Deliveries hold the read
	// lock for their whole duration, so Terminate's write lock cannot
	// be acquired while a Data or EOF call is in flight: once Terminate
	// returns, no callback is running or can start.
	sinkMu sync.RWMutex
	sink   Sink

	terminated atomic.Bool
	eofOnce    sync.Once

	exited   atomic.Bool
	exitCode atomic.Int32

	readers sync.WaitGroup
	done    chan struct{}
}

// Start validates the spec, spawns the process, and begins reading its
// output streams. The returned Handle owns the process; the caller owns
// the Handle.
func Start(spec Spec, sink Sink) (*Handle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// Resolve the decoders up front so an unknown encoding fails
	// before anything is spawned.
	outDec, err := encoding.NewDecoder(spec.Encoding)
	if err != nil {
		return nil, err
	}
	errDec, err := encoding.NewDecoder(spec.Encoding)
	if err != nil {
		return nil, err
	}

	restorePath := applyPathOverride(spec.Path)
	defer restorePath()

	cmd := buildCommand(spec)
	cmd.Env = buildEnvironment(spec.Env)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	h := &Handle{
		id:   uuid.New().String(),
		cmd:  cmd,
		sink: sink,
		done: make(chan struct{}),
	}
	h.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", spec.CommandLine(), err)
	}
	h.Started = time.Now()

	// The process may be running but ungroupable; Terminate will still
	// signal the immediate child.
	_ = h.group.capture(cmd)

	h.readers.Add(2)
	go h.readLoop(stdout, outDec, true)
	go h.readLoop(stderr, errDec, false)
	go h.waitLoop()

	return h, nil
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// PID returns the OS process ID.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return -1
	}
	return h.cmd.Process.Pid
}

// Running reports whether the process has not yet been reaped.
// It never blocks.
func (h *Handle) Running() bool {
	return !h.exited.Load()
}

// ExitCode returns the process exit code. The second return is false
// while the process is still running.
func (h *Handle) ExitCode() (int, bool) {
	if !h.exited.Load() {
		return 0, false
	}
	return int(h.exitCode.Load()), true
}

// Done returns a channel closed when the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Terminated reports whether Terminate has been called.
func (h *Handle) Terminated() bool {
	return h.terminated.Load()
}

// Terminate kills the whole process group and severs the output sink,
// blocking until any in-flight delivery completes. No Data or EOF
// callback fires after Terminate returns. Repeated calls are no-ops.
// Termination is fire-and-forget with respect to OS-level reaping; use
// Done to observe the actual exit.
func (h *Handle) Terminate() {
	if h.terminated.Swap(true) {
		return
	}

	h.sinkMu.Lock()
	h.sink = nil
	h.sinkMu.Unlock()

	h.group.kill(h.cmd)
}

// Elapsed returns the wall time since the process was spawned.
func (h *Handle) Elapsed() time.Duration {
	if h.Started.IsZero() {
		return 0
	}
	return time.Since(h.Started)
}

// readLoop reads one stream in BlockSize chunks, decodes incrementally,
// and forwards non-empty text to the sink. On EOF the descriptor is
// closed (close errors ignored; the stream is already gone) and, for the
// primary stream only, end-of-stream is signalled exactly once.
func (h *Handle) readLoop(r io.ReadCloser, dec *encoding.Decoder, primary bool) {
	defer h.readers.Done()

	buf := make([]byte, BlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				h.forward(text)
			}
		}
		if err != nil {
			if text := dec.Flush(); text != "" {
				h.forward(text)
			}
			_ = r.Close()
			if primary {
				h.signalEOF()
			}
			return
		}
	}
}

func (h *Handle) forward(text string) {
	h.sinkMu.RLock()
	defer h.sinkMu.RUnlock()

	if h.sink != nil {
		h.sink.Data(h, text)
	}
}

func (h *Handle) signalEOF() {
	h.eofOnce.Do(func() {
		h.sinkMu.RLock()
		defer h.sinkMu.RUnlock()

		if h.sink != nil {
			h.sink.EOF(h)
		}
	})
}

// waitLoop reaps the process once both readers have drained their pipes.
func (h *Handle) waitLoop() {
	h.readers.Wait()

	err := h.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	h.exitCode.Store(int32(code))
	h.exited.Store(true)
	close(h.done)

	h.group.release()
}

// applyPathOverride installs a temporary PATH for executable resolution
// and returns a function restoring the prior value. The override may
// reference $PATH to prepend or append to the inherited search path.
func applyPathOverride(override string) func() {
	if override == "" {
		return func() {}
	}

	old := os.Getenv("PATH")
	expanded := os.Expand(override, func(key string) string {
		if key == "PATH" {
			return old
		}
		return os.Getenv(key)
	})
	os.Setenv("PATH", expanded)

	return func() { os.Setenv("PATH", old) }
}

// buildEnvironment merges overrides onto the inherited environment,
// expanding variable references in override values against the merged
// set, and returns a deterministically ordered KEY=VALUE slice.
func buildEnvironment(overrides map[string]string) []string {
	envMap := make(map[string]string)

	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}

	for k, v := range overrides {
		envMap[k] = os.Expand(v, func(key string) string {
			if cur, ok := envMap[key]; ok {
				return cur
			}
			return ""
		})
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(envMap))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}
