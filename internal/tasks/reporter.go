package tasks

import (
	"fmt"
	"sync"
)

// Reporter is the only capability a processing function has over its task.
type Reporter interface {
	// Report appends a progress message.
	Report(text string)
	// Progress records a completion percentage (0-100).
	Progress(pct int)
}

// Reportf formats and reports a message.
func Reportf(r Reporter, format string, args ...interface{}) {
	r.Report(fmt.Sprintf(format, args...))
}

type update struct {
	text     string
	progress int
	isText   bool
}

// channelReporter forwards updates over a bounded channel drained by a
// single goroutine, so messages keep their order. When the buffer is full
// Report blocks; progress updates are dropped instead since a later one
// supersedes them.
type channelReporter struct {
	mu     sync.RWMutex
	ch     chan update
	closed bool
	done   <-chan struct{}
}

func newChannelReporter(size int, done <-chan struct{}) *channelReporter {
	return &channelReporter{ch: make(chan update, size), done: done}
}

func (c *channelReporter) Report(text string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- update{text: text, isText: true}:
	case <-c.done:
	}
}

func (c *channelReporter) Progress(pct int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- update{progress: pct}:
	default:
	}
}

// close stops accepting updates. Reports from an abandoned worker after
// close are discarded.
func (c *channelReporter) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// ReporterFunc adapts a function to Reporter; progress is ignored.
type ReporterFunc func(text string)

func (f ReporterFunc) Report(text string) { f(text) }
func (f ReporterFunc) Progress(int)       {}
