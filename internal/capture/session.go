package capture

import (
	"time"

	"github.com/google/uuid"
)

// TerminationReason records why a command session stopped recording.
type TerminationReason int

const (
	// ReasonNone marks a session that is still recording.
	ReasonNone TerminationReason = iota

	// ReasonEndKeyword means the speaker said the configured end keyword.
	ReasonEndKeyword

	// ReasonSilenceTimeout means trailing silence reached the configured limit.
	ReasonSilenceTimeout

	// ReasonMaxDuration means the session hit the hard recording ceiling.
	ReasonMaxDuration

	// ReasonAborted means the session was cut short by a device fault or
	// shutdown rather than by the speaker.
	ReasonAborted
)

// String returns the snake_case form used in session log lines.
func (r TerminationReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonEndKeyword:
		return "end_keyword"
	case ReasonSilenceTimeout:
		return "silence_timeout"
	case ReasonMaxDuration:
		return "max_duration"
	case ReasonAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome records how the dispatch pipeline concluded for a session.
type Outcome int

const (
	// OutcomeUnknown marks a result whose outcome was never determined.
	OutcomeUnknown Outcome = iota

	// OutcomeDispatched means the transcript was submitted to the agent.
	OutcomeDispatched

	// OutcomeNoOp means the transcript was empty and nothing was submitted.
	OutcomeNoOp

	// OutcomeTranscriptionFailed means every transcriber failed; nothing was
	// submitted.
	OutcomeTranscriptionFailed

	// OutcomeAgentFailed means the transcript was ready but the agent launch
	// failed.
	OutcomeAgentFailed

	// OutcomeAborted means the session never reached the pipeline, or the
	// pipeline was cancelled by shutdown.
	OutcomeAborted
)

// String returns the snake_case form used in session log lines.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnknown:
		return "unknown"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeNoOp:
		return "noop"
	case OutcomeTranscriptionFailed:
		return "transcription_failed"
	case OutcomeAgentFailed:
		return "agent_failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session is one command recording, from wake acknowledgment to termination.
//
// Audio is append-only and all durations derive from sample counts, never
// from the wall clock, so behaviour is identical whether frames arrive in
// real time or are replayed instantly in tests. A Session is not safe for
// concurrent use; the capture loop owns it until it hands the session to the
// dispatcher, which then becomes the sole owner.
type Session struct {
	// ID uniquely identifies the session in logs and events.
	ID string

	// StartedAt is when the wake word was accepted.
	StartedAt time.Time

	// Rate is the PCM sample rate of the buffered audio in Hz.
	Rate int

	// Reason is set once when recording terminates.
	Reason TerminationReason

	samples    []int16
	silenceRun int // samples in the current trailing run of silent chunks
}

// NewSession returns an empty session for audio at the given sample rate.
func NewSession(rate int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Rate:      rate,
	}
}

// Append adds a classified chunk to the buffer. A voiced chunk resets the
// trailing-silence run; a silent one extends it.
func (s *Session) Append(samples []int16, voiced bool) {
	s.samples = append(s.samples, samples...)
	if voiced {
		s.silenceRun = 0
	} else {
		s.silenceRun += len(samples)
	}
}

// AppendUnclassified adds a chunk whose classification failed. The audio is
// kept but the trailing-silence run is left untouched, so a glitching
// classifier can neither terminate a session early nor keep it open forever.
func (s *Session) AppendUnclassified(samples []int16) {
	s.samples = append(s.samples, samples...)
}

// Samples returns the buffered audio. The slice is shared, not copied.
func (s *Session) Samples() []int16 { return s.samples }

// Duration returns the length of the buffered audio.
func (s *Session) Duration() time.Duration {
	return sampleDuration(len(s.samples), s.Rate)
}

// TrailingSilence returns the length of the current trailing silence run.
func (s *Session) TrailingSilence() time.Duration {
	return sampleDuration(s.silenceRun, s.Rate)
}

// TrimTrailingSilence drops the trailing silence run from the buffer and
// returns how much audio was removed. A session that was silent throughout
// trims down to an empty buffer.
func (s *Session) TrimTrailingSilence() time.Duration {
	n := s.silenceRun
	if n > len(s.samples) {
		n = len(s.samples)
	}
	s.samples = s.samples[:len(s.samples)-n]
	s.silenceRun = 0
	return sampleDuration(n, s.Rate)
}

// AbortResult builds the Result recorded for a session that was cut short
// before reaching the dispatch pipeline.
func (s *Session) AbortResult(cause error) Result {
	return Result{
		SessionID:     s.ID,
		StartedAt:     s.StartedAt,
		Reason:        ReasonAborted,
		Outcome:       OutcomeAborted,
		Err:           cause,
		AudioDuration: s.Duration(),
	}
}

// Result is the terminal record of a session, whether it completed the
// dispatch pipeline or was aborted. It is what the session logger persists
// and the event feed publishes.
type Result struct {
	// SessionID matches [Session.ID].
	SessionID string

	// StartedAt matches [Session.StartedAt].
	StartedAt time.Time

	// Reason is why recording stopped.
	Reason TerminationReason

	// Transcript is the cleaned transcript, possibly empty.
	Transcript string

	// Outcome is how the pipeline concluded.
	Outcome Outcome

	// Err carries the failure detail for non-dispatched outcomes, nil otherwise.
	Err error

	// ResponseSpoken reports whether a spoken confirmation was submitted.
	ResponseSpoken bool

	// AudioDuration is the length of the audio that was captured.
	AudioDuration time.Duration
}

func sampleDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
