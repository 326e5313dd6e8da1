// Package sessionlog persists the spoken-command history.
//
// One line per completed or aborted session is appended to a plain text
// history file. The writer is asynchronous because the capture machine must
// never block on disk: lines flow through a buffered queue into a single
// writer goroutine, and when the queue is full or the disk fails the line is
// dropped with a diagnostic log instead of stalling a session.
package sessionlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/MrWong99/hark/internal/capture"
)

const (
	// timeLayout prefixes every history line. Local time, human-scannable.
	timeLayout = "2006-01-02 15:04:05"

	defaultQueueSize = 64
)

// Option is a functional option for configuring a [Logger].
type Option func(*Logger)

// WithFs substitutes the filesystem. Tests use [afero.NewMemMapFs].
func WithFs(fs afero.Fs) Option {
	return func(l *Logger) {
		l.fs = fs
	}
}

// WithQueueSize sets how many lines may be buffered before Record starts
// dropping. Default: 64.
func WithQueueSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// Logger appends one line per session result to a history file.
//
// Record never blocks and never fails the caller; Close drains whatever is
// queued before returning.
type Logger struct {
	fs        afero.Fs
	path      string
	queueSize int

	mu     sync.Mutex
	closed bool
	queue  chan string
	done   chan struct{}
}

// New creates the history file's parent directory and starts the writer
// goroutine. The file itself is created lazily on the first line.
func New(path string, opts ...Option) (*Logger, error) {
	l := &Logger{
		fs:        afero.NewOsFs(),
		path:      path,
		queueSize: defaultQueueSize,
	}
	for _, o := range opts {
		o(l)
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sessionlog: create history dir: %w", err)
	}

	l.queue = make(chan string, l.queueSize)
	l.done = make(chan struct{})
	go l.run()
	return l, nil
}

// Path returns the history file location.
func (l *Logger) Path() string { return l.path }

// Record enqueues a history line for res. Safe to call from the capture
// machine's loop: a full queue or a closed logger drops the line.
func (l *Logger) Record(res capture.Result) {
	line := formatLine(res)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		slog.Warn("session history closed, dropping entry", "session_id", res.SessionID)
		return
	}
	select {
	case l.queue <- line:
	default:
		slog.Warn("session history queue full, dropping entry", "session_id", res.SessionID)
	}
}

// Close stops the writer after draining all queued lines.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

// run is the single writer goroutine.
func (l *Logger) run() {
	defer close(l.done)
	for line := range l.queue {
		l.append(line)
	}
}

// append opens, writes and closes per line. Sessions arrive at human speech
// pace, so holding the file open buys nothing.
func (l *Logger) append(line string) {
	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("session history open failed", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		slog.Warn("session history write failed", "path", l.path, "error", err)
	}
}

// formatLine renders one history line:
//
//	[2006-01-02 15:04:05] reason=silence_timeout outcome=dispatched spoken=false "open the garage"
//
// An error field is appended for results that carry one.
func formatLine(res capture.Result) string {
	line := fmt.Sprintf("[%s] reason=%s outcome=%s spoken=%t %q",
		res.StartedAt.Format(timeLayout), res.Reason, res.Outcome, res.ResponseSpoken, res.Transcript)
	if res.Err != nil {
		line += fmt.Sprintf(" error=%q", res.Err.Error())
	}
	return line + "\n"
}
