package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

// ErrAllFailed is returned when every backend in a [TranscriberGroup] fails
// or sits behind an open breaker.
var ErrAllFailed = errors.New("all transcription backends failed")

// transcriberEntry pairs a backend with its dedicated circuit breaker.
type transcriberEntry struct {
	tr      stt.Transcriber
	breaker *CircuitBreaker
}

// TranscriberGroup implements [stt.Transcriber] with ordered failover: the
// primary backend is tried first, fallbacks follow in registration order,
// and backends behind an open breaker are skipped without waiting on them.
//
// Register all backends during wiring; afterwards the group is safe for
// concurrent use.
type TranscriberGroup struct {
	cfg     BreakerConfig
	entries []transcriberEntry
}

// Compile-time interface checks.
var (
	_ stt.Transcriber   = (*TranscriberGroup)(nil)
	_ stt.HealthChecker = (*TranscriberGroup)(nil)
)

// NewTranscriberGroup creates a group with primary as the preferred backend.
// cfg tunes the per-backend breakers; each breaker is named after its
// backend.
func NewTranscriberGroup(primary stt.Transcriber, cfg BreakerConfig) *TranscriberGroup {
	g := &TranscriberGroup{cfg: cfg}
	g.AddFallback(primary)
	return g
}

// AddFallback appends a backend. Fallbacks are tried in the order added,
// after the primary.
func (g *TranscriberGroup) AddFallback(tr stt.Transcriber) {
	cfg := g.cfg
	cfg.Name = tr.Name()
	g.entries = append(g.entries, transcriberEntry{
		tr:      tr,
		breaker: NewCircuitBreaker(cfg),
	})
}

// Transcribe implements [stt.Transcriber]. It returns the first successful
// backend's text, or [ErrAllFailed] wrapping the last error once every
// backend has been tried. A cancelled ctx stops the chain early; fallbacks
// would only inherit the dead context.
func (g *TranscriberGroup) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	var lastErr error
	for i := range g.entries {
		e := &g.entries[i]
		var text string
		err := e.breaker.Execute(func() error {
			var innerErr error
			text, innerErr = e.tr.Transcribe(ctx, samples, sampleRate)
			return innerErr
		})
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping transcription backend, circuit open",
				"backend", e.tr.Name())
		} else {
			slog.Warn("transcription backend failed, trying next",
				"backend", e.tr.Name(), "error", err)
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Name implements [stt.Transcriber]. A single-backend group answers with
// that backend's name.
func (g *TranscriberGroup) Name() string {
	if len(g.entries) == 1 {
		return g.entries[0].tr.Name()
	}
	names := make([]string, len(g.entries))
	for i := range g.entries {
		names[i] = g.entries[i].tr.Name()
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

// CheckHealth implements [stt.HealthChecker]: the group is ready when any
// backend is. A backend without a health probe counts as healthy.
func (g *TranscriberGroup) CheckHealth(ctx context.Context) error {
	var lastErr error
	for i := range g.entries {
		hc, ok := g.entries[i].tr.(stt.HealthChecker)
		if !ok {
			return nil
		}
		err := hc.CheckHealth(ctx)
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("%s: %w", g.entries[i].tr.Name(), err)
	}
	return lastErr
}

// BreakerStates reports each backend's breaker state, keyed by backend name.
// The readiness endpoint includes this in its detail payload.
func (g *TranscriberGroup) BreakerStates() map[string]BreakerState {
	out := make(map[string]BreakerState, len(g.entries))
	for i := range g.entries {
		out[g.entries[i].tr.Name()] = g.entries[i].breaker.State()
	}
	return out
}
