package run

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/buildpane/internal/annotate"
	"github.com/dshills/buildpane/internal/config"
	"github.com/dshills/buildpane/internal/encoding"
	"github.com/dshills/buildpane/internal/errindex"
	"github.com/dshills/buildpane/internal/panel"
	"github.com/dshills/buildpane/internal/process"
	"github.com/dshills/buildpane/internal/status"
)

// State is the controller's lifecycle state.
type State int32

const (
	// StateIdle means no build is in flight.
	StateIdle State = iota
	// StateStarting means an invocation is being set up.
	StateStarting
	// StateRunning means a process is live and streaming output.
	StateRunning
	// StateFinishing means the primary stream ended and the summary
	// is being written.
	StateFinishing
	// StateCancelling means a kill request is being serviced.
	StateCancelling
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFinishing:
		return "finishing"
	case StateCancelling:
		return "cancelling"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Request is one build invocation.
type Request struct {
	// Cmd is a literal argument vector. Exactly one of Cmd and
	// ShellCmd must be set unless Kill is.
	Cmd []string

	// ShellCmd is a shell command string.
	ShellCmd string

	// FilePattern extracts file:line:column references from output.
	// Empty disables error extraction.
	FilePattern string

	// LinePattern is the optional secondary location pattern.
	LinePattern string

	// Dir is the working directory. Empty defaults to the active
	// file's directory.
	Dir string

	// Encoding is the IANA name of the process output encoding.
	Encoding string

	// Env is merged over the inherited environment.
	Env map[string]string

	// Path temporarily overrides PATH for executable resolution.
	Path string

	// Syntax colorizes the output panel.
	Syntax string

	// Quiet suppresses the progress animation and summary chrome.
	Quiet bool

	// Kill terminates the current build instead of starting one.
	Kill bool
}

// finishGrace is how long Finishing waits for the exit code after the
// primary stream ends. Stream EOF usually trails process exit by less
// than this; if the code still is not available the summary reports
// success, matching the lenient poll-once behavior builds expect.
const finishGrace = 250 * time.Millisecond

// Controller orchestrates build invocations for one context.
//
// All methods are safe to call from any goroutine. Internally a single
// scheduler goroutine owns the display buffer, the error index, and the
// annotation renderer; Invoke, Cancel, and queue drains are serialized
// onto it.
type Controller struct {
	pnl      *panel.Panel
	index    *errindex.Index
	renderer *annotate.Renderer
	statSink status.Sink
	progress *status.Progress
	queue    *Queue

	settings   config.Settings
	settingsMu sync.RWMutex

	activeFile func() string

	ops    chan func()
	closed chan struct{}
	once   sync.Once

	state atomic.Int32

	handleMu sync.Mutex
	handle   *process.Handle

	// Scheduler-owned; touched only on the scheduler goroutine.
	matcher   errindex.Matcher
	debugText string
	quiet     bool
	savedView *panel.ViewState
}

// Options configure a Controller.
type Options struct {
	// Resolver locates open source views for annotation rendering.
	// Nil disables annotations.
	Resolver annotate.ViewResolver

	// Status receives status messages. Nil discards them.
	Status status.Sink

	// Settings are the context's presentation settings.
	Settings config.Settings

	// ActiveFile reports the path of the active source file, used to
	// default the working directory. Nil means no default.
	ActiveFile func() string
}

// NewController creates a controller and starts its scheduler.
func NewController(opts Options) *Controller {
	if opts.Status == nil {
		opts.Status = status.Discard
	}
	if opts.Resolver == nil {
		opts.Resolver = nopResolver{}
	}

	pnl := panel.New()
	index := errindex.New("")

	c := &Controller{
		pnl:        pnl,
		index:      index,
		renderer:   annotate.New(opts.Resolver, index),
		statSink:   opts.Status,
		progress:   status.NewProgress(opts.Status, "Building...", "Build finished"),
		queue:      NewQueue(),
		settings:   opts.Settings,
		activeFile: opts.ActiveFile,
		ops:        make(chan func(), 16),
		closed:     make(chan struct{}),
	}
	c.state.Store(int32(StateIdle))

	go c.loop()
	return c
}

// Panel returns the controller's output panel.
func (c *Controller) Panel() *panel.Panel {
	return c.pnl
}

// Index returns the controller's error index.
func (c *Controller) Index() *errindex.Index {
	return c.index
}

// Renderer returns the controller's annotation renderer.
func (c *Controller) Renderer() *annotate.Renderer {
	return c.renderer
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// SetSettings replaces the controller's settings. Takes effect on the
// next invocation.
func (c *Controller) SetSettings(s config.Settings) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	c.settings = s
}

func (c *Controller) currentSettings() config.Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// CancelEnabled reports whether a kill request would do anything: a
// handle exists and is still running.
func (c *Controller) CancelEnabled() bool {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()
	return c.handle != nil && c.handle.Running()
}

// Invoke starts a build, superseding any build still in flight. With
// req.Kill set it cancels instead. Configuration problems (no command,
// both command forms, bad pattern or encoding) are returned and nothing
// is spawned; spawn failures are rendered into the display buffer and
// return nil.
func (c *Controller) Invoke(req Request) error {
	var err error
	c.do(func() { err = c.invoke(req) })
	return err
}

// Cancel terminates the current build. It is synchronous: on return the
// controller is Idle and immediately re-invokable.
func (c *Controller) Cancel() {
	c.do(func() { c.cancel() })
}

// Flush blocks until every operation and queued chunk enqueued before
// the call has been applied to the display buffer.
func (c *Controller) Flush() {
	for {
		c.do(func() {})
		if c.queue.Len() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Close terminates any live process and stops the scheduler.
func (c *Controller) Close() {
	c.do(func() {
		if c.handle != nil {
			c.handle.Terminate()
			c.setHandle(nil)
		}
		c.progress.Stop(false)
	})
	c.once.Do(func() { close(c.closed) })
}

// do runs fn on the scheduler goroutine and waits for it.
func (c *Controller) do(fn func()) {
	done := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(done) }:
	case <-c.closed:
		return
	}
	select {
	case <-done:
	case <-c.closed:
	}
}

// post runs fn on the scheduler goroutine without waiting.
func (c *Controller) post(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.closed:
	}
}

// loop is the scheduler: the only goroutine that mutates the display
// buffer, rebuilds the index, or updates annotations.
func (c *Controller) loop() {
	for {
		select {
		case <-c.closed:
			return
		case fn := <-c.ops:
			fn()
		case <-c.queue.Wake():
			c.drainOne()
		}
	}
}

// drainOne applies a single chunk per wakeup. Popping happens under the
// queue lock; the buffer append and any rebuild happen outside it. If
// chunks remain another tick is requested, so pending ops interleave
// with heavy output instead of waiting behind it.
func (c *Controller) drainOne() {
	text, ok, more := c.queue.Pop()
	if !ok {
		return
	}
	if more {
		c.queue.Reschedule()
	}
	c.apply(text)
}

// drainAll empties the queue in one pass. Used before summarizing so
// the error count reflects every line the build produced.
func (c *Controller) drainAll() {
	for {
		text, ok, _ := c.queue.Pop()
		if !ok {
			return
		}
		c.apply(text)
	}
}

// apply appends one chunk to the display buffer and, when it completed
// at least one line, refreshes the error index. Inline annotations are
// a separate concern: the index always counts errors for the status
// message, while Update renders only when inline display is enabled.
func (c *Controller) apply(text string) {
	hadNewline := c.pnl.Buffer().Append(text)

	if hadNewline && c.matcher != nil {
		c.index.Rebuild(c.pnl.Buffer().Text(), c.matcher)
		if c.renderer.Enabled() {
			c.renderer.Update()
		}
	}
}

// invoke services one Invoke request on the scheduler goroutine.
func (c *Controller) invoke(req Request) error {
	c.queue.Clear()

	if req.Kill {
		c.cancel()
		return nil
	}

	// Supersede: a build still in flight is terminated outright. Any
	// output already in flight hits the stale-owner guard.
	if h := c.currentHandle(); h != nil {
		h.Terminate()
		c.setHandle(nil)
	}

	c.state.Store(int32(StateStarting))
	settings := c.currentSettings()

	spec := process.Spec{
		Cmd:      req.Cmd,
		ShellCmd: req.ShellCmd,
		Env:      mergeEnv(req.Env, settings.BuildEnv),
		Dir:      c.resolveDir(req.Dir),
		Encoding: req.Encoding,
		Path:     req.Path,
	}
	if err := spec.Validate(); err != nil {
		c.state.Store(int32(StateIdle))
		return err
	}
	if _, err := encoding.NewDecoder(spec.Encoding); err != nil {
		c.state.Store(int32(StateIdle))
		return fmt.Errorf("%w: %v", process.ErrConfig, err)
	}

	var matcher errindex.Matcher
	if req.FilePattern != "" {
		m, err := errindex.NewRegexMatcher(req.FilePattern, req.LinePattern)
		if err != nil {
			c.state.Store(int32(StateIdle))
			return fmt.Errorf("%w: %v", process.ErrConfig, err)
		}
		matcher = m
	}
	c.matcher = matcher

	c.pnl.Configure(panel.Settings{
		FilePattern: req.FilePattern,
		LinePattern: req.LinePattern,
		BaseDir:     spec.Dir,
		WordWrap:    settings.OutputWordWrap,
		Gutter:      settings.Gutter,
		Syntax:      req.Syntax,
	})
	c.index.SetBaseDir(spec.Dir)

	// Prior run's annotations go away before new output arrives.
	c.renderer.HideAll()
	if settings.ShowErrorsInline {
		c.renderer.Enable()
	}

	if settings.ShowPanelOnBuild {
		c.pnl.Show()
	}

	// Capture the scroll position before clearing so Finishing can put
	// the reader back where they were.
	if settings.RestoreOutputScroll {
		st := c.pnl.Buffer().SaveState()
		c.savedView = &st
	} else {
		c.savedView = nil
	}
	c.pnl.Buffer().Clear()

	c.quiet = req.Quiet
	c.debugText = debugText(spec)

	if !c.quiet {
		c.progress.Start()
	}

	h, err := process.Start(spec, (*queueSink)(c))
	if err != nil {
		// No process exists to own queued output; render directly.
		c.progress.Stop(false)
		c.pnl.Buffer().Append(err.Error() + "\n")
		c.pnl.Buffer().Append(c.debugText + "\n")
		if !c.quiet {
			c.pnl.Buffer().Append("[Finished]")
		}
		c.state.Store(int32(StateIdle))
		return nil
	}

	c.setHandle(h)
	c.queue.SetOwner(h)
	c.state.Store(int32(StateRunning))
	return nil
}

// cancel services a kill request on the scheduler goroutine.
func (c *Controller) cancel() {
	h := c.currentHandle()
	if h == nil {
		return
	}

	c.state.Store(int32(StateCancelling))
	h.Terminate()
	c.setHandle(nil)
	c.queue.Clear()
	c.pnl.Buffer().Append("[Cancelled]")
	c.progress.Stop(false)
	c.state.Store(int32(StateIdle))
}

// finish services the primary stream's EOF on the scheduler goroutine.
func (c *Controller) finish(h *process.Handle) {
	if h != c.currentHandle() {
		// A newer invocation superseded this build; its summary is
		// not wanted and its late output already hit the owner guard.
		return
	}

	c.state.Store(int32(StateFinishing))

	// The exit code usually becomes available just after EOF; wait
	// briefly, then report leniently if it is still absent.
	select {
	case <-h.Done():
	case <-time.After(finishGrace):
	}

	c.drainAll()

	if !c.quiet {
		elapsed := h.Elapsed().Seconds()
		code, ok := h.ExitCode()
		if !ok || code == 0 {
			c.apply(fmt.Sprintf("[Finished in %.1fs]", elapsed))
		} else {
			c.apply(fmt.Sprintf("[Finished in %.1fs with exit code %d]\n", elapsed, code))
			c.apply(c.debugText)
		}
	}

	switch n := c.index.Count(); {
	case n > 0:
		c.progress.Stop(false)
		c.statSink.Message(fmt.Sprintf("Build finished with %d errors", n))
	case c.quiet:
		// Progress never ran; report completion directly.
		c.statSink.Message("Build finished")
	default:
		c.progress.Stop(true)
	}

	if c.savedView != nil {
		c.pnl.Buffer().RestoreState(*c.savedView)
		c.savedView = nil
	} else {
		// Long unwrapped error lines leave the panel scrolled far
		// right; snap it back.
		c.pnl.Buffer().ResetHorizontalScroll()
	}

	c.setHandle(nil)
	c.state.Store(int32(StateIdle))
}

func (c *Controller) setHandle(h *process.Handle) {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()
	c.handle = h
}

func (c *Controller) currentHandle() *process.Handle {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()
	return c.handle
}

func (c *Controller) resolveDir(dir string) string {
	if dir != "" {
		return dir
	}
	if c.activeFile != nil {
		if f := c.activeFile(); f != "" {
			return filepath.Dir(f)
		}
	}
	return ""
}

// debugText preserves the command line, directory, and resolved PATH
// for diagnosis when a build fails.
func debugText(spec process.Spec) string {
	var text string
	if spec.ShellCmd != "" {
		text = "[shell_cmd: " + spec.ShellCmd + "]\n"
	} else {
		text = fmt.Sprintf("[cmd: %v]\n", spec.Cmd)
	}

	dir := spec.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	text += "[dir: " + dir + "]\n"

	if p, ok := spec.Env["PATH"]; ok {
		text += "[path: " + p + "]"
	} else {
		text += "[path: " + os.Getenv("PATH") + "]"
	}
	return text
}

// mergeEnv layers the context's build_env over the request's overrides.
func mergeEnv(reqEnv, buildEnv map[string]string) map[string]string {
	if len(buildEnv) == 0 {
		return reqEnv
	}
	merged := make(map[string]string, len(reqEnv)+len(buildEnv))
	for k, v := range reqEnv {
		merged[k] = v
	}
	for k, v := range buildEnv {
		merged[k] = v
	}
	return merged
}

// queueSink adapts the controller to the process.Sink the stream
// readers call into. Data goes straight to the queue from the reader
// goroutines; EOF hops onto the scheduler.
type queueSink Controller

func (s *queueSink) Data(h *process.Handle, text string) {
	(*Controller)(s).queue.Append(h, text)
}

func (s *queueSink) EOF(h *process.Handle) {
	// EOF is delivered under the handle's sink lock. Posting from a
	// goroutine keeps the delivery from blocking against a scheduler
	// that is itself waiting in Terminate on this handle.
	c := (*Controller)(s)
	go c.post(func() { c.finish(h) })
}

// nopResolver never finds a view; annotations silently do nothing.
type nopResolver struct{}

func (nopResolver) FindOpenView(string) annotate.View { return nil }
