// Package dispatch turns a completed capture session into an agent command.
//
// The Pipeline is the capture machine's Dispatcher: it transcribes the
// buffered utterance, strips the spoken end keyword, hands the text to the
// agent and optionally speaks a short confirmation. Every stage failure is
// folded into the returned [capture.Result]: Dispatch never panics across
// the machine boundary, and it never blocks on anything the agent does after
// submission was accepted.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/MrWong99/hark/internal/capture"
	"github.com/MrWong99/hark/internal/keyword"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/tts"
	"go.opentelemetry.io/otel/trace"
)

// defaultConfirmText is spoken after a successful hand-off when a Speaker is
// configured and no custom text is set.
const defaultConfirmText = "On it."

// confirmTimeout bounds detached confirmation playback.
const confirmTimeout = 15 * time.Second

// Agent accepts a transcribed command for execution. Submission is the whole
// contract: once Submit returns nil the command runs detached and its
// lifetime is not this package's concern.
type Agent interface {
	Submit(ctx context.Context, command string) error
}

// Config wires a Pipeline.
type Config struct {
	// Transcriber converts the session's PCM buffer into text. Required.
	Transcriber stt.Transcriber

	// Agent receives the final command text. Required.
	Agent Agent

	// Matcher strips a spoken end keyword from transcripts. Optional.
	Matcher *keyword.Matcher

	// Speaker, when set, speaks ConfirmText after a successful hand-off.
	// Playback is detached; Dispatch never waits for it.
	Speaker tts.Speaker

	// ConfirmText overrides the default confirmation sentence.
	ConfirmText string

	// Metrics receives stage instrumentation. Nil falls back to the
	// process-wide default.
	Metrics *observe.Metrics
}

// Pipeline implements [capture.Dispatcher].
type Pipeline struct {
	transcriber stt.Transcriber
	agent       Agent
	matcher     *keyword.Matcher
	speaker     tts.Speaker
	confirmText string
	metrics     *observe.Metrics
}

var _ capture.Dispatcher = (*Pipeline)(nil)

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Transcriber == nil {
		return nil, errors.New("dispatch: Transcriber is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("dispatch: Agent is required")
	}
	if cfg.ConfirmText == "" {
		cfg.ConfirmText = defaultConfirmText
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		transcriber: cfg.Transcriber,
		agent:       cfg.Agent,
		matcher:     cfg.Matcher,
		speaker:     cfg.Speaker,
		confirmText: cfg.ConfirmText,
		metrics:     cfg.Metrics,
	}, nil
}

// Dispatch runs the full pipeline on a finished session. The result always
// carries the session's identity, termination reason and audio duration;
// Outcome and Err describe how far the pipeline got. Cancellation of ctx
// surfaces as [capture.OutcomeAborted].
func (p *Pipeline) Dispatch(ctx context.Context, sess *capture.Session) (res capture.Result) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "dispatch.command", trace.WithAttributes(
		observe.Attr("session_id", sess.ID),
		observe.Attr("reason", sess.Reason.String()),
	))
	defer span.End()

	res = capture.Result{
		SessionID:     sess.ID,
		StartedAt:     sess.StartedAt,
		Reason:        sess.Reason,
		AudioDuration: sess.Duration(),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch panic recovered",
				"session_id", sess.ID, "panic", r, "stack", string(debug.Stack()))
			res.Err = fmt.Errorf("dispatch: panic: %v", r)
			if res.Outcome == capture.OutcomeUnknown {
				// Classify by the stage the pipeline reached.
				if res.Transcript == "" {
					res.Outcome = capture.OutcomeTranscriptionFailed
				} else {
					res.Outcome = capture.OutcomeAgentFailed
				}
			}
		}
		span.SetAttributes(observe.Attr("outcome", res.Outcome.String()))
		p.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	}()

	p.metrics.AudioDuration.Record(ctx, res.AudioDuration.Seconds())

	samples := sess.Samples()
	if len(samples) == 0 {
		observe.Logger(ctx).Info("session empty, nothing to dispatch", "session_id", sess.ID)
		res.Outcome = capture.OutcomeNoOp
		return res
	}

	text, err := p.transcribe(ctx, samples, sess.Rate)
	if err != nil {
		res.Err = err
		if ctx.Err() != nil {
			res.Outcome = capture.OutcomeAborted
		} else {
			res.Outcome = capture.OutcomeTranscriptionFailed
		}
		return res
	}

	text = strings.TrimSpace(text)
	if p.matcher != nil {
		text, _ = p.matcher.TrimTail(text)
	}
	res.Transcript = text
	if text == "" {
		observe.Logger(ctx).Info("transcript empty, nothing to dispatch", "session_id", sess.ID)
		res.Outcome = capture.OutcomeNoOp
		return res
	}

	if err := p.submit(ctx, text); err != nil {
		res.Err = fmt.Errorf("dispatch: submit: %w", err)
		res.Outcome = capture.OutcomeAgentFailed
		return res
	}
	res.Outcome = capture.OutcomeDispatched
	observe.Logger(ctx).Info("command dispatched", "session_id", sess.ID, "transcript", text)

	if p.speaker != nil {
		res.ResponseSpoken = true
		go p.confirm(sess.ID)
	}
	return res
}

// transcribe runs the STT stage and records per-provider metrics.
func (p *Pipeline) transcribe(ctx context.Context, samples []int16, rate int) (string, error) {
	ctx, span := observe.StartSpan(ctx, "dispatch.transcribe")
	defer span.End()

	start := time.Now()
	text, err := p.transcriber.Transcribe(ctx, samples, rate)
	elapsed := time.Since(start)
	p.metrics.STTDuration.Record(ctx, elapsed.Seconds())

	name := p.transcriber.Name()
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, name, "stt", "error")
		p.metrics.RecordProviderError(ctx, name, "stt")
		return "", fmt.Errorf("dispatch: transcribe: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, name, "stt", "ok")
	observe.Logger(ctx).Debug("utterance transcribed",
		"provider", name, "stt_duration", elapsed, "chars", len(text))
	return text, nil
}

// submit runs the agent hand-off stage.
func (p *Pipeline) submit(ctx context.Context, command string) error {
	ctx, span := observe.StartSpan(ctx, "dispatch.submit")
	defer span.End()
	return p.agent.Submit(ctx, command)
}

// confirm speaks the acknowledgement on a fresh context so playback survives
// the dispatch call it acknowledges.
func (p *Pipeline) confirm(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	name := "tts"
	if n, ok := p.speaker.(interface{ Name() string }); ok {
		name = n.Name()
	}

	start := time.Now()
	err := p.speaker.Speak(ctx, p.confirmText)
	p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, name, "tts", "error")
		p.metrics.RecordProviderError(ctx, name, "tts")
		slog.Warn("confirmation playback failed", "session_id", sessionID, "error", err)
		return
	}
	p.metrics.RecordProviderRequest(ctx, name, "tts", "ok")
}
