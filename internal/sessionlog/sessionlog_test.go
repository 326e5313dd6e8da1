package sessionlog_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/hark/internal/capture"
	"github.com/MrWong99/hark/internal/sessionlog"
)

func newMemLogger(t *testing.T, path string, opts ...sessionlog.Option) (*sessionlog.Logger, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l, err := sessionlog.New(path, append([]sessionlog.Option{sessionlog.WithFs(fs)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, fs
}

func readHistory(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func result(started time.Time, transcript string) capture.Result {
	return capture.Result{
		SessionID:      "s-1",
		StartedAt:      started,
		Reason:         capture.ReasonSilenceTimeout,
		Transcript:     transcript,
		Outcome:        capture.OutcomeDispatched,
		ResponseSpoken: false,
		AudioDuration:  2 * time.Second,
	}
}

func TestLogger_WritesFormattedLine(t *testing.T) {
	const path = "history.log"
	l, fs := newMemLogger(t, path)

	started := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	l.Record(result(started, "open the garage"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readHistory(t, fs, path)
	want := `[2025-03-14 09:26:53] reason=silence_timeout outcome=dispatched spoken=false "open the garage"`
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("history = %q, want [%q]", lines, want)
	}
}

func TestLogger_AppendsInOrder(t *testing.T) {
	const path = "history.log"
	l, fs := newMemLogger(t, path)

	started := time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	for i, transcript := range []string{"first", "second", "third"} {
		l.Record(result(started.Add(time.Duration(i)*time.Minute), transcript))
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readHistory(t, fs, path)
	if len(lines) != 3 {
		t.Fatalf("history has %d lines, want 3", len(lines))
	}
	for i, transcript := range []string{"first", "second", "third"} {
		if !strings.HasSuffix(lines[i], `"`+transcript+`"`) {
			t.Errorf("line %d = %q, want transcript %q", i, lines[i], transcript)
		}
	}
}

func TestLogger_IncludesErrorWhenPresent(t *testing.T) {
	const path = "history.log"
	l, fs := newMemLogger(t, path)

	res := capture.Result{
		SessionID:  "s-2",
		StartedAt:  time.Date(2025, 3, 14, 10, 0, 0, 0, time.Local),
		Reason:     capture.ReasonAborted,
		Outcome:    capture.OutcomeAborted,
		Err:        errors.New("shutting down"),
		Transcript: "",
	}
	l.Record(res)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readHistory(t, fs, path)
	if len(lines) != 1 {
		t.Fatalf("history has %d lines, want 1", len(lines))
	}
	if !strings.Contains(lines[0], `reason=aborted outcome=aborted`) {
		t.Errorf("line = %q, missing abort fields", lines[0])
	}
	if !strings.Contains(lines[0], `error="shutting down"`) {
		t.Errorf("line = %q, missing error field", lines[0])
	}
}

func TestLogger_RecordAfterCloseIsDropped(t *testing.T) {
	const path = "history.log"
	l, fs := newMemLogger(t, path)

	l.Record(result(time.Now(), "kept"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Must not panic, must not write.
	l.Record(result(time.Now(), "dropped"))

	lines := readHistory(t, fs, path)
	if len(lines) != 1 {
		t.Errorf("history has %d lines after post-close record, want 1", len(lines))
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	l, _ := newMemLogger(t, "history.log")
	if err := l.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLogger_CreatesParentDir(t *testing.T) {
	const path = "state/hark/history.log"
	l, fs := newMemLogger(t, path)
	defer l.Close()

	ok, err := afero.DirExists(fs, "state/hark")
	if err != nil {
		t.Fatalf("DirExists: %v", err)
	}
	if !ok {
		t.Error("parent directory was not created")
	}
}

func TestNew_FailsOnUnwritableFs(t *testing.T) {
	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())
	if _, err := sessionlog.New("state/history.log", sessionlog.WithFs(ro)); err == nil {
		t.Error("New on a read-only filesystem did not fail")
	}
}

func TestLogger_ConcurrentRecords(t *testing.T) {
	const path = "history.log"
	l, fs := newMemLogger(t, path, sessionlog.WithQueueSize(256))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				l.Record(result(time.Now(), "cmd"))
			}
		}()
	}
	wg.Wait()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readHistory(t, fs, path)
	if len(lines) != 100 {
		t.Errorf("history has %d lines, want 100", len(lines))
	}
}
