// Package status delivers lightweight status messages and the build
// progress animation shown while a process runs.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Sink receives transient status messages.
type Sink interface {
	Message(text string)
}

// WriterSink writes each status message as one line to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Message implements Sink.
func (s *WriterSink) Message(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, text)
}

// Discard is a Sink that drops every message.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Message(string) {}

const (
	progressSize     = 12
	progressInterval = 100 * time.Millisecond
)

// Progress animates an indicator, [=   ], next to a message while a
// build runs. At most one animation runs per Progress; starting again
// while one is live is a no-op. Frames are posted through the Sink from
// a dedicated goroutine.
type Progress struct {
	mu      sync.Mutex
	sink    Sink
	message string
	success string
	running bool
	stop    chan bool
	done    chan struct{}
}

// NewProgress creates a stopped progress indicator.
func NewProgress(sink Sink, message, success string) *Progress {
	return &Progress{
		sink:    sink,
		message: message,
		success: success,
	}
}

// Start begins the animation. A second Start while running is ignored.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan bool, 1)
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// Stop ends the animation and blocks until the final frame is posted.
// When success is true the success message is that frame; otherwise
// the indicator just disappears. Stopping a stopped indicator is a
// no-op.
func (p *Progress) Stop(success bool) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stop <- success
	close(p.stop)
	p.stop = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()

	<-done
}

// Running reports whether the animation is live.
func (p *Progress) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Progress) run(stop <-chan bool, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	index, addend := 0, 1
	for {
		select {
		case success := <-stop:
			if success {
				p.sink.Message(p.success)
			} else {
				p.sink.Message("")
			}
			return
		case <-ticker.C:
			before := index % progressSize
			after := progressSize - 1 - before
			p.sink.Message(fmt.Sprintf("%s [%s=%s]",
				p.message,
				strings.Repeat(" ", before),
				strings.Repeat(" ", after)))

			if after == 0 {
				addend = -1
			}
			if before == 0 {
				addend = 1
			}
			index += addend
		}
	}
}
