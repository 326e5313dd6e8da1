package keyword_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hark/internal/keyword"
	sttmock "github.com/MrWong99/hark/pkg/provider/stt/mock"
)

const rate = 16000

// feedSeconds pushes d worth of zeroed PCM through the spotter in 100 ms
// chunks, the cadence of the capture loop.
func feedSeconds(s *keyword.Spotter, d time.Duration) {
	chunk := make([]int16, rate/10)
	for fed := time.Duration(0); fed < d; fed += 100 * time.Millisecond {
		s.Feed(chunk, rate)
	}
}

// waitCalls blocks until the mock has seen at least n Transcribe calls.
func waitCalls(t *testing.T, tr *sttmock.Transcriber, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tr.CallCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d transcribe calls (got %d)", n, tr.CallCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpotter_HitWhenWindowEndsWithKeyword(t *testing.T) {
	tr := &sttmock.Transcriber{Text: "close the garage over"}
	m := newMatcher(t)
	s := keyword.NewSpotter(tr, m)

	feedSeconds(s, 600*time.Millisecond)

	select {
	case text := <-s.Hits():
		if text != "close the garage over" {
			t.Errorf("hit transcript = %q, want scan text", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for keyword hit")
	}
}

func TestSpotter_NoHitWithoutKeyword(t *testing.T) {
	tr := &sttmock.Transcriber{Text: "close the garage"}
	s := keyword.NewSpotter(tr, newMatcher(t))

	feedSeconds(s, 600*time.Millisecond)
	waitCalls(t, tr, 1)

	select {
	case text := <-s.Hits():
		t.Fatalf("unexpected hit %q", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSpotter_NoScanBelowInterval(t *testing.T) {
	tr := &sttmock.Transcriber{Text: "over"}
	s := keyword.NewSpotter(tr, newMatcher(t))

	feedSeconds(s, 500*time.Millisecond) // under the 600 ms default interval
	time.Sleep(50 * time.Millisecond)

	if n := tr.CallCount(); n != 0 {
		t.Errorf("transcriber called %d time(s) before interval elapsed; want 0", n)
	}
}

func TestSpotter_WindowIsBounded(t *testing.T) {
	tr := &sttmock.Transcriber{Text: "nothing"}
	s := keyword.NewSpotter(tr, newMatcher(t))

	// Feed 3 s total; each scan must see at most the 1.5 s window.
	for i := 1; i <= 5; i++ {
		feedSeconds(s, 600*time.Millisecond)
		waitCalls(t, tr, i)
		time.Sleep(10 * time.Millisecond) // let the scan finish before the next trigger
	}

	maxWindow := rate * 3 / 2 // 1.5 s
	for i, call := range tr.Calls() {
		if len(call.Samples) > maxWindow {
			t.Errorf("scan %d saw %d samples, want <= %d", i, len(call.Samples), maxWindow)
		}
		if call.SampleRate != rate {
			t.Errorf("scan %d rate = %d, want %d", i, call.SampleRate, rate)
		}
	}
}

func TestSpotter_ScanErrorIsSwallowed(t *testing.T) {
	tr := &sttmock.Transcriber{Err: errors.New("model melted")}
	s := keyword.NewSpotter(tr, newMatcher(t))

	feedSeconds(s, 600*time.Millisecond)
	waitCalls(t, tr, 1)

	select {
	case text := <-s.Hits():
		t.Fatalf("unexpected hit %q after scan error", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSpotter_ResetDiscardsPendingHit(t *testing.T) {
	tr := &sttmock.Transcriber{Text: "over"}
	s := keyword.NewSpotter(tr, newMatcher(t))

	feedSeconds(s, 600*time.Millisecond)
	waitCalls(t, tr, 1)
	// Let the scan post its hit before resetting.
	time.Sleep(50 * time.Millisecond)

	s.Reset()

	select {
	case text := <-s.Hits():
		t.Fatalf("hit %q survived Reset", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSpotter_ResetInvalidatesInFlightScan(t *testing.T) {
	release := make(chan struct{})
	tr := &sttmock.Transcriber{
		Text: "over",
		Delay: func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	s := keyword.NewSpotter(tr, newMatcher(t))

	feedSeconds(s, 600*time.Millisecond) // scan starts, blocks on release
	s.Reset()                            // session ends while scan is in flight
	close(release)

	select {
	case text := <-s.Hits():
		t.Fatalf("stale scan delivered hit %q after Reset", text)
	case <-time.After(200 * time.Millisecond):
	}
}
