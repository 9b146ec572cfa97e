// Package main is the buildpane demo binary: run a build command,
// stream its output, and show extracted errors.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dshills/buildpane/internal/buildspec"
	"github.com/dshills/buildpane/internal/config"
	"github.com/dshills/buildpane/internal/panel/backend"
	"github.com/dshills/buildpane/internal/run"
	"github.com/dshills/buildpane/internal/status"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	shellCmd    string
	dir         string
	encoding    string
	fileRegex   string
	lineRegex   string
	quiet       bool
	configPath  string
	specPath    string
	tui         bool
	cmd         []string
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	opts := parseFlags()

	settings, err := loadSettings(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	req, err := buildRequest(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.tui {
		return runTUI(req, settings)
	}
	return runPlain(req, settings)
}

// runPlain mirrors the display buffer to stdout and status messages to
// stderr.
func runPlain(req run.Request, settings config.Settings) int {
	ctrl := run.NewController(run.Options{
		Status:   status.NewWriterSink(os.Stderr),
		Settings: settings,
	})
	defer ctrl.Close()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		ctrl.Cancel()
		<-signals
		os.Exit(1)
	}()

	if err := ctrl.Invoke(req); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printed := 0
	for {
		text := ctrl.Panel().Buffer().Text()
		if len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}
		if ctrl.State() == run.StateIdle {
			ctrl.Flush()
			text = ctrl.Panel().Buffer().Text()
			if len(text) > printed {
				fmt.Print(text[printed:])
			}
			fmt.Println()
			return 0
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// runTUI shows the panel in a tcell screen. Ctrl-C cancels the build,
// q or Escape quits.
func runTUI(req run.Request, settings config.Settings) int {
	term, err := backend.NewTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	if err := term.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to init terminal: %v\n", err)
		return 1
	}
	defer term.Shutdown()

	sink := &latestSink{}
	ctrl := run.NewController(run.Options{
		Status:   sink,
		Settings: settings,
	})
	defer ctrl.Close()

	view := backend.NewView(term, ctrl.Panel())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)
	defer signal.Stop(signals)

	if err := ctrl.Invoke(req); err != nil {
		term.Shutdown()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			view.Render(sink.Latest())
		case <-signals:
			ctrl.Cancel()
		case ev, ok := <-term.Events():
			if !ok {
				return 0
			}
			switch {
			case ev.Resized:
				view.Render(sink.Latest())
			case ev.Key == backend.KeyCtrlC:
				ctrl.Cancel()
			case ev.Key == backend.KeyEscape,
				ev.Key == backend.KeyRune && ev.Rune == 'q':
				return 0
			}
		}
	}
}

// latestSink keeps only the most recent status message, which is all a
// one-row status line can show.
type latestSink struct {
	mu   sync.Mutex
	text string
}

func (s *latestSink) Message(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

func (s *latestSink) Latest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func loadSettings(path string) (config.Settings, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildRequest assembles the run request from a definition file and
// flag overrides. Flags win.
func buildRequest(opts options) (run.Request, error) {
	var req run.Request
	if opts.specPath != "" {
		loaded, err := buildspec.Load(opts.specPath)
		if err != nil {
			return run.Request{}, err
		}
		req = loaded
	}

	if opts.shellCmd != "" {
		req.ShellCmd = opts.shellCmd
		req.Cmd = nil
	}
	if len(opts.cmd) > 0 {
		req.Cmd = opts.cmd
		req.ShellCmd = ""
	}
	if opts.dir != "" {
		req.Dir = opts.dir
	}
	if opts.encoding != "" {
		req.Encoding = opts.encoding
	}
	if opts.fileRegex != "" {
		req.FilePattern = opts.fileRegex
	}
	if opts.lineRegex != "" {
		req.LinePattern = opts.lineRegex
	}
	if opts.quiet {
		req.Quiet = true
	}
	return req, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.shellCmd, "shell", "", "Shell command to run")
	flag.StringVar(&opts.dir, "dir", "", "Working directory")
	flag.StringVar(&opts.encoding, "encoding", "", "Process output encoding (IANA name)")
	flag.StringVar(&opts.fileRegex, "file-regex", "", "Pattern extracting file:line:col: message")
	flag.StringVar(&opts.lineRegex, "line-regex", "", "Secondary line pattern")
	flag.BoolVar(&opts.quiet, "quiet", false, "Suppress summary chrome and progress")
	flag.StringVar(&opts.configPath, "config", "", "Path to settings file (TOML)")
	flag.StringVar(&opts.specPath, "spec", "", "Path to build definition file (.yaml or .build)")
	flag.BoolVar(&opts.tui, "tui", false, "Show the output panel in the terminal")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "buildpane - run a build and capture its errors\n\n")
		fmt.Fprintf(os.Stderr, "Usage: buildpane [options] [-- command args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  buildpane -shell 'make -j4' -file-regex '^(.*?):(\\d+):(\\d+): (.*)$'\n")
		fmt.Fprintf(os.Stderr, "  buildpane -spec project.build\n")
		fmt.Fprintf(os.Stderr, "  buildpane -tui -- go build ./...\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("buildpane %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	opts.cmd = flag.Args()

	if opts.shellCmd == "" && len(opts.cmd) == 0 && opts.specPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	return opts
}
