package capture_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hark/internal/capture"
)

func TestSession_SilenceAccounting(t *testing.T) {
	s := capture.NewSession(16000)
	if s.ID == "" {
		t.Fatal("session has no ID")
	}

	chunk := make([]int16, 1600) // 100 ms at 16 kHz

	s.Append(chunk, true)
	if got := s.TrailingSilence(); got != 0 {
		t.Fatalf("TrailingSilence after voiced chunk = %v, want 0", got)
	}

	s.Append(chunk, false)
	s.Append(chunk, false)
	if got := s.TrailingSilence(); got != 200*time.Millisecond {
		t.Fatalf("TrailingSilence = %v, want 200ms", got)
	}
	if got := s.Duration(); got != 300*time.Millisecond {
		t.Fatalf("Duration = %v, want 300ms", got)
	}

	// A voiced chunk resets the run.
	s.Append(chunk, true)
	if got := s.TrailingSilence(); got != 0 {
		t.Fatalf("TrailingSilence after voiced reset = %v, want 0", got)
	}

	// An unclassified chunk keeps audio but leaves the run untouched.
	s.Append(chunk, false)
	s.AppendUnclassified(chunk)
	if got := s.TrailingSilence(); got != 100*time.Millisecond {
		t.Fatalf("TrailingSilence after unclassified chunk = %v, want 100ms", got)
	}
	if got := s.Duration(); got != 600*time.Millisecond {
		t.Fatalf("Duration = %v, want 600ms", got)
	}
}

func TestSession_TrimTrailingSilence(t *testing.T) {
	s := capture.NewSession(16000)
	chunk := make([]int16, 1600)

	s.Append(chunk, true)
	s.Append(chunk, true)
	s.Append(chunk, false)
	s.Append(chunk, false)

	trimmed := s.TrimTrailingSilence()
	if trimmed != 200*time.Millisecond {
		t.Fatalf("trimmed = %v, want 200ms", trimmed)
	}
	if got := s.Duration(); got != 200*time.Millisecond {
		t.Fatalf("Duration after trim = %v, want 200ms", got)
	}
	if got := s.TrailingSilence(); got != 0 {
		t.Fatalf("TrailingSilence after trim = %v, want 0", got)
	}
}

func TestSession_TrimEmptiesFullySilentBuffer(t *testing.T) {
	s := capture.NewSession(16000)
	for range 20 {
		s.Append(make([]int16, 1600), false)
	}

	if trimmed := s.TrimTrailingSilence(); trimmed != 2*time.Second {
		t.Fatalf("trimmed = %v, want 2s", trimmed)
	}
	if len(s.Samples()) != 0 {
		t.Fatalf("buffer holds %d samples after full trim, want 0", len(s.Samples()))
	}
	if got := s.Duration(); got != 0 {
		t.Fatalf("Duration = %v, want 0", got)
	}
}

func TestSession_AbortResult(t *testing.T) {
	s := capture.NewSession(16000)
	s.Append(make([]int16, 8000), true) // 500 ms

	cause := errors.New("stream died")
	res := s.AbortResult(cause)

	if res.SessionID != s.ID {
		t.Fatalf("SessionID = %q, want %q", res.SessionID, s.ID)
	}
	if !res.StartedAt.Equal(s.StartedAt) {
		t.Fatalf("StartedAt = %v, want %v", res.StartedAt, s.StartedAt)
	}
	if res.Reason != capture.ReasonAborted {
		t.Fatalf("Reason = %v, want aborted", res.Reason)
	}
	if res.Outcome != capture.OutcomeAborted {
		t.Fatalf("Outcome = %v, want aborted", res.Outcome)
	}
	if !errors.Is(res.Err, cause) {
		t.Fatalf("Err = %v, want %v", res.Err, cause)
	}
	if res.AudioDuration != 500*time.Millisecond {
		t.Fatalf("AudioDuration = %v, want 500ms", res.AudioDuration)
	}
}

func TestEnumStrings(t *testing.T) {
	reasons := map[capture.TerminationReason]string{
		capture.ReasonNone:           "none",
		capture.ReasonEndKeyword:     "end_keyword",
		capture.ReasonSilenceTimeout: "silence_timeout",
		capture.ReasonMaxDuration:    "max_duration",
		capture.ReasonAborted:        "aborted",
	}
	for r, want := range reasons {
		if got := r.String(); got != want {
			t.Errorf("TerminationReason(%d).String() = %q, want %q", int(r), got, want)
		}
	}

	outcomes := map[capture.Outcome]string{
		capture.OutcomeUnknown:             "unknown",
		capture.OutcomeDispatched:          "dispatched",
		capture.OutcomeNoOp:                "noop",
		capture.OutcomeTranscriptionFailed: "transcription_failed",
		capture.OutcomeAgentFailed:         "agent_failed",
		capture.OutcomeAborted:             "aborted",
	}
	for o, want := range outcomes {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}

	states := map[capture.State]string{
		capture.StateIdle:        "idle",
		capture.StateRecording:   "recording",
		capture.StateFinalizing:  "finalizing",
		capture.StateDispatching: "dispatching",
		capture.StateError:       "error",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
