// Package app wires the hark subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects every
// subsystem from the config, Run drives the capture machine and the optional
// observability server until the context ends, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithGateway, WithDetector, etc.). When an option is not provided, New
// creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hark/internal/agent"
	"github.com/MrWong99/hark/internal/capture"
	"github.com/MrWong99/hark/internal/config"
	"github.com/MrWong99/hark/internal/dispatch"
	"github.com/MrWong99/hark/internal/eventfeed"
	"github.com/MrWong99/hark/internal/health"
	"github.com/MrWong99/hark/internal/keyword"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/internal/resilience"
	"github.com/MrWong99/hark/internal/sessionlog"
	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/audio/portaudio"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/stt/openaicompat"
	"github.com/MrWong99/hark/pkg/provider/stt/whisper"
	"github.com/MrWong99/hark/pkg/provider/tts"
	"github.com/MrWong99/hark/pkg/provider/tts/httptts"
	"github.com/MrWong99/hark/pkg/provider/vad"
	"github.com/MrWong99/hark/pkg/provider/vad/energy"
	"github.com/MrWong99/hark/pkg/provider/vad/spectral"
	"github.com/MrWong99/hark/pkg/provider/vad/webrtc"
	"github.com/MrWong99/hark/pkg/wake"
	"github.com/MrWong99/hark/pkg/wake/porcupine"
)

const (
	// wakeDebounce is the refractory window after an accepted wake event.
	// The chime and the tail of the wake phrase itself can re-trigger a
	// sensitive model; two seconds absorbs both.
	wakeDebounce = 2 * time.Second

	// chimeTimeout bounds detached acknowledgment playback.
	chimeTimeout = 5 * time.Second

	// httpShutdownGrace bounds the observability server drain.
	httpShutdownGrace = 5 * time.Second

	// readHeaderTimeout guards the observability server against slow-header
	// clients.
	readHeaderTimeout = 5 * time.Second
)

// App owns all subsystem lifetimes and orchestrates the hark voice pipeline.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	gw          audio.Gateway
	player      audio.Player
	detector    wake.Detector
	classifier  vad.Classifier
	transcriber stt.Transcriber
	group       *resilience.TranscriberGroup
	native      *whisper.Native
	speaker     tts.Speaker
	agent       dispatch.Agent
	matcher     *keyword.Matcher
	spotter     capture.KeywordSpotter
	sessions    *sessionlog.Logger
	feed        *eventfeed.Feed
	machine     *capture.Machine
	httpSrv     *http.Server

	// sampleRate is the negotiated capture rate; the chime is synthesized
	// at the same rate.
	sampleRate int
	chime      []int16

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGateway injects an audio gateway instead of opening PortAudio.
func WithGateway(gw audio.Gateway) Option {
	return func(a *App) { a.gw = gw }
}

// WithPlayer injects an audio player instead of opening PortAudio output.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithDetector injects a wake detector instead of loading Porcupine.
func WithDetector(d wake.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithClassifier injects a VAD classifier instead of building one from config.
func WithClassifier(c vad.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithTranscriber injects a transcriber instead of building the failover
// group from config.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithSpeaker injects a TTS speaker instead of building one from config.
func WithSpeaker(s tts.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithAgent injects a command agent instead of creating the CLI launcher.
func WithAgent(ag dispatch.Agent) Option {
	return func(a *App) { a.agent = ag }
}

// WithSpotter injects an end-keyword spotter instead of building one from
// the native transcriber.
func WithSpotter(s capture.KeywordSpotter) Option {
	return func(a *App) { a.spotter = s }
}

// WithSessionLogger injects a session logger instead of creating one at
// log.session_file.
func WithSessionLogger(l *sessionlog.Logger) Option {
	return func(a *App) { a.sessions = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem; everything else is built from
// cfg.
//
// New performs all initialisation synchronously: wake model load, audio
// device setup, transcriber chain construction, agent launcher, session
// logger, capture machine, and the observability server when
// server.listen_addr is set. The input device is not opened until Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Wake detector ─────────────────────────────────────────────────
	if err := a.initDetector(); err != nil {
		return nil, fmt.Errorf("app: init wake detector: %w", err)
	}

	// ── 2. Audio device gateway + player ─────────────────────────────────
	if err := a.initAudio(); err != nil {
		return nil, fmt.Errorf("app: init audio: %w", err)
	}

	// ── 3. VAD classifier ────────────────────────────────────────────────
	if err := a.initClassifier(); err != nil {
		return nil, fmt.Errorf("app: init vad: %w", err)
	}

	// ── 4. Transcriber chain ─────────────────────────────────────────────
	if err := a.initTranscribers(); err != nil {
		return nil, fmt.Errorf("app: init stt: %w", err)
	}

	// ── 5. End keyword ───────────────────────────────────────────────────
	if err := a.initKeyword(); err != nil {
		return nil, fmt.Errorf("app: init keyword: %w", err)
	}

	// ── 6. Speaker ───────────────────────────────────────────────────────
	if err := a.initSpeaker(); err != nil {
		return nil, fmt.Errorf("app: init tts: %w", err)
	}

	// ── 7. Agent launcher ────────────────────────────────────────────────
	if err := a.initAgent(); err != nil {
		return nil, fmt.Errorf("app: init agent: %w", err)
	}

	// ── 8. Session logger ────────────────────────────────────────────────
	if err := a.initSessionLog(); err != nil {
		return nil, fmt.Errorf("app: init session log: %w", err)
	}

	// ── 9. Event feed + capture machine ──────────────────────────────────
	if err := a.initMachine(); err != nil {
		return nil, fmt.Errorf("app: init capture machine: %w", err)
	}

	// ── 10. Observability server ─────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initDetector loads the Porcupine keyword model and wraps it in the
// refractory debounce. A missing credential or keyword model is fatal here,
// before any device is touched.
func (a *App) initDetector() error {
	if a.detector != nil {
		return nil
	}

	if a.cfg.Wake.AccessKey == "" {
		return errors.New("wake.access_key is required; set it in the config or export PICOVOICE_ACCESS_KEY")
	}
	if _, err := os.Stat(a.cfg.Wake.KeywordPath); err != nil {
		return fmt.Errorf("wake keyword model %q: %w", a.cfg.Wake.KeywordPath, err)
	}

	popts := []porcupine.Option{porcupine.WithSensitivity(a.cfg.Wake.Sensitivity)}
	if a.cfg.Wake.ModelPath != "" {
		popts = append(popts, porcupine.WithModelPath(a.cfg.Wake.ModelPath))
	}
	det, err := porcupine.New(a.cfg.Wake.AccessKey, []string{a.cfg.Wake.KeywordPath}, popts...)
	if err != nil {
		return err
	}

	a.detector = wake.Debounce(det, wakeDebounce)
	a.closers = append(a.closers, a.detector.Close)
	return nil
}

// initAudio negotiates the capture rate, opens the PortAudio gateway and
// player, and synthesizes the acknowledgment chime.
func (a *App) initAudio() error {
	a.sampleRate = a.cfg.Audio.SampleRate
	if dr := a.detector.SampleRate(); dr > 0 && dr != a.sampleRate {
		slog.Warn("capture rate adjusted to the wake detector's requirement",
			"configured", a.sampleRate, "detector", dr)
		a.sampleRate = dr
	}
	a.chime = audio.Chime(a.sampleRate)

	if a.gw == nil {
		chunkLen := int(time.Duration(a.sampleRate) * a.cfg.Audio.RecordChunk / time.Second)
		gw, err := portaudio.New(portaudio.Config{
			DeviceName:     a.cfg.Audio.InputDevice,
			SampleRate:     a.sampleRate,
			ListenFrameLen: a.detector.FrameLength(),
			RecordChunkLen: chunkLen,
		})
		if err != nil {
			return err
		}
		a.gw = gw
		a.closers = append(a.closers, gw.Close)
	}

	if a.player == nil {
		p, err := portaudio.NewPlayer()
		if err != nil {
			return err
		}
		a.player = p
		a.closers = append(a.closers, p.Close)
	}
	return nil
}

// initClassifier builds the configured VAD engine.
func (a *App) initClassifier() error {
	if a.classifier != nil {
		return nil
	}

	switch a.cfg.Audio.VAD {
	case "webrtc":
		c, err := webrtc.New(a.sampleRate, a.cfg.Audio.VADAggressiveness)
		if err != nil {
			return err
		}
		a.classifier = c
	case "spectral":
		a.classifier = spectral.New()
	default:
		a.classifier = energy.New(energy.WithThreshold(a.cfg.Audio.SilenceThreshold))
	}
	a.closers = append(a.closers, a.classifier.Close)
	return nil
}

// initTranscribers builds the local-first failover chain: whisper server,
// then the native binding, then the OpenAI-compatible endpoint. Every
// backend sits behind its own circuit breaker.
func (a *App) initTranscribers() error {
	if a.transcriber != nil {
		return nil
	}

	var backends []stt.Transcriber

	if a.cfg.STT.WhisperURL != "" {
		w, err := whisper.New(a.cfg.STT.WhisperURL, whisper.WithLanguage(a.cfg.STT.Language))
		if err != nil {
			return err
		}
		backends = append(backends, w)
	}
	if a.cfg.STT.NativeModel != "" {
		n, err := whisper.NewNative(a.cfg.STT.NativeModel, whisper.WithNativeLanguage(a.cfg.STT.Language))
		if err != nil {
			return err
		}
		a.native = n
		a.closers = append(a.closers, n.Close)
		backends = append(backends, n)
	}
	if a.cfg.STT.OpenAIBaseURL != "" {
		if a.cfg.STT.OpenAIAPIKey == "" {
			slog.Warn("skipping OpenAI-compatible transcriber, no API key configured",
				"base_url", a.cfg.STT.OpenAIBaseURL)
		} else {
			o, err := openaicompat.New(a.cfg.STT.OpenAIAPIKey,
				openaicompat.WithBaseURL(a.cfg.STT.OpenAIBaseURL),
				openaicompat.WithLanguage(a.cfg.STT.Language))
			if err != nil {
				return err
			}
			backends = append(backends, o)
		}
	}

	if len(backends) == 0 {
		return errors.New("no transcription backend available")
	}
	if !a.cfg.STT.UseFallback {
		backends = backends[:1]
	}

	a.group = resilience.NewTranscriberGroup(backends[0], resilience.BreakerConfig{})
	for _, b := range backends[1:] {
		a.group.AddFallback(b)
	}
	a.transcriber = a.group
	return nil
}

// initKeyword builds the end-keyword matcher and, when the native model is
// loaded, the incremental audio spotter. Without a native model the spotter
// stays nil and sessions end on silence or the duration ceiling; the
// keyword is still stripped from final transcripts.
func (a *App) initKeyword() error {
	if a.cfg.Command.EndKeyword == "" {
		return nil
	}

	m, err := keyword.New(a.cfg.Command.EndKeyword)
	if err != nil {
		return err
	}
	a.matcher = m

	if a.spotter == nil && a.native != nil {
		a.spotter = keyword.NewSpotter(a.native, m,
			keyword.WithWindow(a.cfg.Command.KeywordWindow),
			keyword.WithInterval(a.cfg.Command.KeywordInterval))
	}
	return nil
}

// initSpeaker builds the TTS client when enabled.
func (a *App) initSpeaker() error {
	if a.speaker != nil || !a.cfg.TTS.Enabled {
		return nil
	}

	s, err := httptts.New(a.cfg.TTS.URL, a.player, httptts.WithVoice(a.cfg.TTS.Voice))
	if err != nil {
		return err
	}
	a.speaker = s
	return nil
}

// initAgent creates the detached terminal launcher.
func (a *App) initAgent() error {
	if a.agent != nil {
		return nil
	}

	cfg := agent.Config{
		Binary:     a.cfg.Agent.Binary,
		WorkingDir: a.cfg.Agent.WorkingDir,
		Terminal:   a.cfg.Agent.Terminal,
	}
	if a.cfg.Log.File != "" {
		cfg.PromptDir = filepath.Dir(a.cfg.Log.File)
	}
	l, err := agent.New(cfg)
	if err != nil {
		return err
	}
	a.agent = l
	return nil
}

// initSessionLog starts the history writer.
func (a *App) initSessionLog() error {
	if a.sessions != nil || a.cfg.Log.SessionFile == "" {
		return nil
	}

	l, err := sessionlog.New(a.cfg.Log.SessionFile)
	if err != nil {
		return err
	}
	a.sessions = l
	a.closers = append(a.closers, l.Close)
	return nil
}

// initMachine assembles the dispatch pipeline, the event feed and the
// capture machine with its side-effect hooks.
func (a *App) initMachine() error {
	pipeline, err := dispatch.New(dispatch.Config{
		Transcriber: a.transcriber,
		Agent:       a.agent,
		Matcher:     a.matcher,
		Speaker:     a.speaker,
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}

	a.feed = eventfeed.New()
	a.closers = append(a.closers, func() error {
		a.feed.Close()
		return nil
	})

	reacquirer, err := resilience.NewReacquirer(resilience.ReacquirerConfig{
		Gateway: a.gw,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	m, err := capture.New(capture.Config{
		Gateway:        a.gw,
		Detector:       a.detector,
		Classifier:     a.classifier,
		Dispatcher:     pipeline,
		Spotter:        a.spotter,
		Reacquirer:     reacquirer,
		SilenceTimeout: a.cfg.Command.SilenceTimeout,
		MaxDuration:    a.cfg.Command.MaxDuration,
		Hooks:          a.captureHooks(),
	})
	if err != nil {
		return err
	}
	a.machine = m
	return nil
}

// initServer assembles the observability mux when server.listen_addr is set.
func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	mux := http.NewServeMux()
	health.New(a.healthCheckers()...).Register(mux)
	a.feed.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Handler returns the observability HTTP handler, or nil when
// server.listen_addr is unset.
func (a *App) Handler() http.Handler {
	if a.httpSrv == nil {
		return nil
	}
	return a.httpSrv.Handler
}

// ─── Hooks ───────────────────────────────────────────────────────────────────

// captureHooks connects machine transitions to metrics, the chime, the
// session history and the event feed. Hooks run on the machine goroutine,
// so everything here is non-blocking; playback is detached.
func (a *App) captureHooks() capture.Hooks {
	return capture.Hooks{
		OnWake: func(ev wake.Event) {
			a.metrics.RecordWakeDetection(context.Background())
			a.feed.PublishWake(ev)
		},
		OnSessionStart: func(_ *capture.Session) {
			a.metrics.ActiveSessions.Add(context.Background(), 1)
			a.playChime()
		},
		OnStateChange: func(from, to capture.State) {
			a.feed.PublishStateChange(from, to)
		},
		OnResult: func(r capture.Result) {
			a.metrics.ActiveSessions.Add(context.Background(), -1)
			a.metrics.RecordSession(context.Background(), r.Reason.String(), r.Outcome.String())
			if a.sessions != nil {
				a.sessions.Record(r)
			}
			a.feed.PublishResult(r)
		},
	}
}

// playChime plays the acknowledgment tone without blocking the caller.
func (a *App) playChime() {
	if a.player == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), chimeTimeout)
		defer cancel()
		if err := a.player.Play(ctx, a.chime, a.sampleRate); err != nil {
			slog.Warn("chime playback failed", "error", err)
		}
	}()
}

// healthCheckers builds the /readyz probes: the transcriber chain, the
// speaker when TTS is enabled, and the input device.
func (a *App) healthCheckers() []health.Checker {
	sttCheck := health.Checker{
		Name:  "stt",
		Check: func(context.Context) error { return nil },
	}
	if hc, ok := a.transcriber.(stt.HealthChecker); ok {
		sttCheck.Check = hc.CheckHealth
	}
	if a.group != nil {
		sttCheck.Detail = func() map[string]string {
			states := a.group.BreakerStates()
			detail := make(map[string]string, len(states))
			for name, st := range states {
				detail[name] = st.String()
			}
			return detail
		}
	}
	checkers := []health.Checker{sttCheck}

	if a.speaker != nil {
		if hc, ok := a.speaker.(tts.HealthChecker); ok {
			checkers = append(checkers, health.Checker{Name: "tts", Check: hc.CheckHealth})
		}
	}

	checkers = append(checkers, health.Checker{
		Name: "audio",
		Check: func(context.Context) error {
			if a.gw.Mode() == audio.ModeClosed {
				return errors.New("input device closed")
			}
			return nil
		},
		Detail: func() map[string]string {
			return map[string]string{"mode": a.gw.Mode().String()}
		},
	})
	return checkers
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run opens the input device and blocks until ctx is cancelled or a
// subsystem fails fatally. The capture machine and the observability server
// run under one errgroup: either one failing stops the other.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.machine.Run(ctx)
	})

	if a.httpSrv != nil {
		g.Go(func() error {
			slog.Info("observability server listening", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: observability server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			// Event-feed sockets hold their handlers open; close them
			// first so Shutdown can drain.
			a.feed.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("hark running",
		"transcriber", a.transcriber.Name(),
		"spotter", a.spotter != nil,
		"tts", a.speaker != nil,
		"server", a.cfg.Server.ListenAddr,
	)
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
