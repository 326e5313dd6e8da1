// Package capture implements the command-capture state machine that sits
// between the audio gateway and the dispatch pipeline.
//
// # Architecture
//
//  1. Idle: listening frames are fed to the wake detector; nothing else
//     happens until it fires.
//  2. Recording: the gateway is switched to chunked capture, a Session
//     accumulates audio, the VAD classifier maintains the trailing-silence
//     run, and the keyword spotter watches the tail for the end keyword.
//  3. Finalizing: recording terminated; trailing silence is trimmed and the
//     gateway returns to listening mode.
//  4. Dispatching: the session runs through the dispatch pipeline in a
//     separate goroutine while the loop keeps draining (and discarding)
//     frames, so the device never stalls and no wake event can fire.
//  5. Error: the device faulted; the session, if any, is aborted and the
//     machine re-acquires the device before returning to Idle.
//
// All mutable state is confined to the single goroutine running [Machine.Run].
// Wake events are structurally impossible outside Idle because frames are
// simply not classified in any other state. Side effects that belong to the
// host application (the acknowledgment chime, session logging, event
// publishing) are surfaced through [Hooks] rather than performed directly.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/vad"
	"github.com/MrWong99/hark/pkg/wake"
)

// Default recording limits.
const (
	DefaultSilenceTimeout = 2 * time.Second
	DefaultMaxDuration    = 30 * time.Second
)

// shutdownGrace bounds how long Run waits for an in-flight dispatch after
// its context is cancelled. The dispatch shares that context, so it normally
// unwinds well inside the grace period.
const shutdownGrace = 5 * time.Second

// State is the capture machine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateDispatching
	StateError
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateDispatching:
		return "dispatching"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Dispatcher runs a terminated session through transcription and agent
// submission. Implementations must not panic across this boundary; every
// failure mode is expressed in the returned [Result].
type Dispatcher interface {
	Dispatch(ctx context.Context, s *Session) Result
}

// Reacquirer restores the audio gateway after a device fault, leaving it in
// listening mode on success. Implementations bound their own retries; an
// error means the device is gone for good and the machine stops.
type Reacquirer interface {
	Reacquire(ctx context.Context) error
}

// KeywordSpotter watches recorded audio for the spoken end keyword.
// Feed must never block the caller; hits arrive asynchronously on Hits.
type KeywordSpotter interface {
	Feed(samples []int16, rate int)
	Hits() <-chan string
	Reset()
}

// Hooks are optional callbacks for side effects the machine does not perform
// itself. They run on the machine goroutine and must not block; anything
// slow (chime playback, network publishing) belongs in a goroutine of the
// hook's own.
type Hooks struct {
	// OnWake fires for every accepted wake event, before the session starts.
	OnWake func(ev wake.Event)

	// OnSessionStart fires once the recording stream is open. The host plays
	// the acknowledgment chime here.
	OnSessionStart func(s *Session)

	// OnStateChange fires for every state transition.
	OnStateChange func(from, to State)

	// OnResult fires exactly once per session, completed or aborted. The
	// host persists it to the session log here.
	OnResult func(r Result)
}

// Limits are the recording termination thresholds.
type Limits struct {
	// SilenceTimeout terminates a session once trailing silence reaches it.
	SilenceTimeout time.Duration

	// MaxDuration is the hard ceiling on total recorded audio.
	MaxDuration time.Duration
}

// Decide is the termination policy: given the accumulated totals after a
// chunk (or a keyword hit) it returns the reason recording must stop, or
// ok=false to keep recording.
//
// The checks are ordered so that the hard ceiling always wins: a session at
// max duration terminates with [ReasonMaxDuration] even if the end keyword
// was spotted on the same chunk, and a spotted keyword wins over an expired
// silence timeout.
func (l Limits) Decide(total, silence time.Duration, keywordHit bool) (reason TerminationReason, ok bool) {
	switch {
	case total >= l.MaxDuration:
		return ReasonMaxDuration, true
	case keywordHit:
		return ReasonEndKeyword, true
	case silence >= l.SilenceTimeout:
		return ReasonSilenceTimeout, true
	}
	return ReasonNone, false
}

// Config assembles a [Machine]'s collaborators and limits.
type Config struct {
	// Gateway is the exclusive owner of the input device. Required.
	Gateway audio.Gateway

	// Detector classifies listening frames for the wake word. Required.
	Detector wake.Detector

	// Classifier decides voiced/silent per recorded chunk. Required.
	Classifier vad.Classifier

	// Dispatcher runs terminated sessions. Required.
	Dispatcher Dispatcher

	// Spotter watches for the spoken end keyword. Optional; without it only
	// silence and max duration terminate sessions.
	Spotter KeywordSpotter

	// Reacquirer restores the gateway after device faults. Optional; without
	// it the machine makes a single direct re-listen attempt before giving up.
	Reacquirer Reacquirer

	// SilenceTimeout defaults to [DefaultSilenceTimeout] if zero.
	SilenceTimeout time.Duration

	// MaxDuration defaults to [DefaultMaxDuration] if zero.
	MaxDuration time.Duration

	// Hooks are the optional side-effect callbacks.
	Hooks Hooks
}

// Machine is the command-capture state machine. Create one with [New], drive
// it with [Machine.Run].
type Machine struct {
	gw         audio.Gateway
	detector   wake.Detector
	classifier vad.Classifier
	spotter    KeywordSpotter
	dispatcher Dispatcher
	reacquirer Reacquirer
	limits     Limits
	hooks      Hooks

	state atomic.Int32

	// The fields below belong to the Run goroutine exclusively.
	sess         *Session
	keywordHit   bool
	dispatching  bool
	pendingFault error
	dispatchDone chan Result
}

// New validates cfg and returns a Machine ready to run.
func New(cfg Config) (*Machine, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("capture: Gateway is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("capture: Detector is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("capture: Classifier is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("capture: Dispatcher is required")
	}

	limits := Limits{SilenceTimeout: cfg.SilenceTimeout, MaxDuration: cfg.MaxDuration}
	if limits.SilenceTimeout <= 0 {
		limits.SilenceTimeout = DefaultSilenceTimeout
	}
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = DefaultMaxDuration
	}

	return &Machine{
		gw:           cfg.Gateway,
		detector:     cfg.Detector,
		classifier:   cfg.Classifier,
		spotter:      cfg.Spotter,
		dispatcher:   cfg.Dispatcher,
		reacquirer:   cfg.Reacquirer,
		limits:       limits,
		hooks:        cfg.Hooks,
		dispatchDone: make(chan Result, 1),
	}, nil
}

// State reports the machine's current state. Safe to call from any goroutine.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Run drives the state machine until ctx is cancelled or the device is lost
// beyond recovery. It must be called at most once.
//
// On cancellation an in-flight session is aborted and logged, the dispatch
// pipeline is given a bounded grace period to finish, and the device is
// released.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.gw.EnterListening(ctx); err != nil {
		slog.Warn("initial device acquisition failed, retrying", "error", err)
		if err := m.reacquire(ctx); err != nil {
			return fmt.Errorf("capture: acquire input device: %w", err)
		}
	}
	slog.Info("command capture running",
		"silence_timeout", m.limits.SilenceTimeout,
		"max_duration", m.limits.MaxDuration,
		"spotter", m.spotter != nil,
	)

	for {
		select {
		case <-ctx.Done():
			return m.shutdown(ctx)

		case err, ok := <-m.gw.Faults():
			if !ok {
				return nil
			}
			if fatal := m.onFault(ctx, err); fatal != nil {
				return fatal
			}

		case res := <-m.dispatchDone:
			if fatal := m.onDispatchComplete(ctx, res); fatal != nil {
				return fatal
			}

		case text := <-m.spotterHits():
			if fatal := m.onSpotterHit(ctx, text); fatal != nil {
				return fatal
			}

		case f, ok := <-m.gw.Frames():
			if !ok {
				return nil
			}
			if fatal := m.onFrame(ctx, f); fatal != nil {
				return fatal
			}
		}
	}
}

// ─── Event handlers (Run goroutine only) ──────────────────────────────────────

// onFrame routes a captured frame according to the current state. Frames
// outside Idle and Recording are discarded on purpose: draining keeps the
// device path moving and discarding is what disarms wake detection.
func (m *Machine) onFrame(ctx context.Context, f audio.Frame) error {
	switch m.State() {
	case StateIdle:
		return m.classifyWakeFrame(ctx, f)
	case StateRecording:
		return m.recordChunk(ctx, f)
	default:
		return nil
	}
}

// classifyWakeFrame feeds one listening frame to the wake detector and starts
// a session on a hit. Per-frame detector errors skip the frame.
func (m *Machine) classifyWakeFrame(ctx context.Context, f audio.Frame) error {
	ev, hit, err := m.detector.Process(f.Samples)
	if err != nil {
		slog.Warn("wake detector error, frame skipped", "error", err)
		return nil
	}
	if !hit {
		return nil
	}
	return m.startSession(ctx, f, ev)
}

// startSession transitions Idle→Recording: recording stream, fresh session,
// acknowledgment via hook.
func (m *Machine) startSession(ctx context.Context, f audio.Frame, ev wake.Event) error {
	slog.Info("wake word detected", "keyword_index", ev.KeywordIndex)
	if m.hooks.OnWake != nil {
		m.hooks.OnWake(ev)
	}

	if err := m.gw.EnterRecording(ctx); err != nil {
		return m.onFault(ctx, err)
	}

	m.sess = NewSession(f.Rate)
	m.keywordHit = false
	if m.spotter != nil {
		m.spotter.Reset()
	}
	m.setState(StateRecording)
	slog.Info("command session started", "session_id", m.sess.ID)
	if m.hooks.OnSessionStart != nil {
		m.hooks.OnSessionStart(m.sess)
	}
	return nil
}

// recordChunk appends one recorded chunk, updates silence accounting through
// the classifier, feeds the spotter and applies the termination policy.
func (m *Machine) recordChunk(ctx context.Context, f audio.Frame) error {
	voiced, err := m.classifier.IsSpeech(f.Samples)
	if err != nil {
		slog.Warn("vad classifier error, chunk kept unclassified", "error", err)
		m.sess.AppendUnclassified(f.Samples)
	} else {
		m.sess.Append(f.Samples, voiced)
	}

	if m.spotter != nil {
		m.spotter.Feed(f.Samples, f.Rate)
	}

	if reason, ok := m.limits.Decide(m.sess.Duration(), m.sess.TrailingSilence(), m.keywordHit); ok {
		return m.finalize(ctx, reason)
	}
	return nil
}

// onSpotterHit handles an asynchronous end-keyword hit. Hits arriving outside
// Recording are stale and dropped.
func (m *Machine) onSpotterHit(ctx context.Context, text string) error {
	if m.State() != StateRecording || m.sess == nil {
		return nil
	}
	slog.Debug("end keyword spotted", "session_id", m.sess.ID, "tail", text)
	m.keywordHit = true
	if reason, ok := m.limits.Decide(m.sess.Duration(), m.sess.TrailingSilence(), true); ok {
		return m.finalize(ctx, reason)
	}
	return nil
}

// finalize transitions Recording→Finalizing→Dispatching: the session is
// sealed and handed to the dispatcher goroutine, then the gateway returns to
// listening so the wake stream is warm by the time the result arrives.
func (m *Machine) finalize(ctx context.Context, reason TerminationReason) error {
	m.setState(StateFinalizing)

	sess := m.sess
	m.sess = nil
	m.keywordHit = false
	if m.spotter != nil {
		m.spotter.Reset()
	}

	sess.Reason = reason
	trimmed := sess.TrimTrailingSilence()
	slog.Info("command captured",
		"session_id", sess.ID,
		"reason", reason,
		"duration", sess.Duration(),
		"trimmed_silence", trimmed,
	)

	m.dispatching = true
	m.setState(StateDispatching)
	go func() {
		m.dispatchDone <- m.dispatcher.Dispatch(ctx, sess)
	}()

	if err := m.gw.EnterListening(ctx); err != nil {
		// The captured command is already on its way; recover the device
		// once the result is in.
		slog.Warn("re-entering listening mode failed, deferring recovery", "error", err)
		m.pendingFault = err
	}
	return nil
}

// onDispatchComplete transitions Dispatching→Idle, delivering the result and
// running any deferred device recovery.
func (m *Machine) onDispatchComplete(ctx context.Context, res Result) error {
	m.dispatching = false
	m.emitResult(res)

	if pf := m.pendingFault; pf != nil {
		m.pendingFault = nil
		return m.onFault(ctx, pf)
	}

	m.setState(StateIdle)
	slog.Debug("wake detection re-armed", "session_id", res.SessionID)
	return nil
}

// onFault handles a device fault: the active session, if any, is aborted and
// logged, then the device is re-acquired. A non-nil return is fatal to Run.
// An in-flight dispatch is not disturbed; it no longer needs the device.
func (m *Machine) onFault(ctx context.Context, cause error) error {
	slog.Error("audio device fault", "error", cause)
	if m.sess != nil {
		m.abortSession(cause)
	}
	m.keywordHit = false
	m.setState(StateError)

	if err := m.reacquire(ctx); err != nil {
		return fmt.Errorf("capture: device lost and not re-acquired: %w", errors.Join(cause, err))
	}

	if m.dispatching {
		m.setState(StateDispatching)
	} else {
		m.setState(StateIdle)
	}
	slog.Info("audio device re-acquired")
	return nil
}

// shutdown aborts the active session, waits briefly for an in-flight
// dispatch and releases the device.
func (m *Machine) shutdown(ctx context.Context) error {
	slog.Info("command capture stopping")
	if m.sess != nil {
		m.abortSession(ctx.Err())
	}

	if m.dispatching {
		select {
		case res := <-m.dispatchDone:
			m.emitResult(res)
		case <-time.After(shutdownGrace):
			slog.Warn("dispatch still running at shutdown deadline, abandoning")
		}
	}

	if err := m.gw.Stop(); err != nil && !errors.Is(err, audio.ErrGatewayClosed) {
		slog.Warn("releasing input device", "error", err)
	}
	return ctx.Err()
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (m *Machine) abortSession(cause error) {
	res := m.sess.AbortResult(cause)
	slog.Warn("command session aborted",
		"session_id", m.sess.ID,
		"duration", m.sess.Duration(),
		"error", cause,
	)
	m.sess = nil
	m.keywordHit = false
	if m.spotter != nil {
		m.spotter.Reset()
	}
	m.emitResult(res)
}

func (m *Machine) emitResult(res Result) {
	slog.Info("session result",
		"session_id", res.SessionID,
		"reason", res.Reason,
		"outcome", res.Outcome,
		"transcript", res.Transcript,
		"spoken", res.ResponseSpoken,
	)
	if m.hooks.OnResult != nil {
		m.hooks.OnResult(res)
	}
}

func (m *Machine) reacquire(ctx context.Context) error {
	if m.reacquirer != nil {
		return m.reacquirer.Reacquire(ctx)
	}
	return m.gw.EnterListening(ctx)
}

// spotterHits returns the spotter's hit channel, or nil (blocking forever in
// a select) when no spotter is configured.
func (m *Machine) spotterHits() <-chan string {
	if m.spotter == nil {
		return nil
	}
	return m.spotter.Hits()
}

func (m *Machine) setState(to State) {
	from := State(m.state.Load())
	if from == to {
		return
	}
	m.state.Store(int32(to))
	slog.Debug("capture state", "from", from, "to", to)
	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(from, to)
	}
}
