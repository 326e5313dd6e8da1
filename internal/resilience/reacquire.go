package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/hark/internal/capture"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/pkg/audio"
)

// Default device recovery parameters.
const (
	defaultMaxAttempts = 3
	defaultBackoff     = 1 * time.Second
	defaultMaxBackoff  = 5 * time.Second
)

// ReacquirerConfig configures a [Reacquirer].
type ReacquirerConfig struct {
	// Gateway is the device to recover. Required.
	Gateway audio.Gateway

	// MaxAttempts is how many times to try before giving up. Default: 3.
	MaxAttempts int

	// Backoff is the initial delay between attempts, doubling up to
	// MaxBackoff. Default: 1s.
	Backoff time.Duration

	// MaxBackoff caps the delay between attempts. Default: 5s.
	MaxBackoff time.Duration

	// Metrics receives reacquisition counts. Nil falls back to the
	// process-wide default.
	Metrics *observe.Metrics
}

// Reacquirer re-opens the audio device after a fault. On success the gateway
// is back in listening mode; on failure the capture machine treats the
// device as gone for good and exits.
type Reacquirer struct {
	gw          audio.Gateway
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	metrics     *observe.Metrics
}

// Compile-time interface check.
var _ capture.Reacquirer = (*Reacquirer)(nil)

// NewReacquirer creates a [Reacquirer]. Zero-value config fields take the
// documented defaults.
func NewReacquirer(cfg ReacquirerConfig) (*Reacquirer, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("resilience: Gateway is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Reacquirer{
		gw:          cfg.Gateway,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		maxBackoff:  cfg.MaxBackoff,
		metrics:     cfg.Metrics,
	}, nil
}

// Reacquire implements [capture.Reacquirer] with bounded exponential
// backoff. Cancellation of ctx aborts between attempts.
func (r *Reacquirer) Reacquire(ctx context.Context) error {
	backoff := r.backoff
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		slog.Info("attempting device reacquisition",
			"attempt", attempt, "max_attempts", r.maxAttempts)

		lastErr = r.gw.EnterListening(ctx)
		if lastErr == nil {
			r.metrics.RecordDeviceReacquisition(ctx, "ok")
			slog.Info("device reacquired", "attempt", attempt)
			return nil
		}
		slog.Warn("device reacquisition failed",
			"attempt", attempt, "backoff", backoff, "error", lastErr)

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			r.metrics.RecordDeviceReacquisition(ctx, "failed")
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}

	r.metrics.RecordDeviceReacquisition(ctx, "failed")
	return fmt.Errorf("resilience: device not reacquired after %d attempts: %w",
		r.maxAttempts, lastErr)
}
