package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/hark/internal/resilience"
	sttmock "github.com/MrWong99/hark/pkg/provider/stt/mock"
)

var (
	errPrimary  = errors.New("primary boom")
	errFallback = errors.New("fallback boom")
)

// bareTranscriber has no health probe, unlike the mock.
type bareTranscriber struct{ text string }

func (b *bareTranscriber) Transcribe(context.Context, []int16, int) (string, error) {
	return b.text, nil
}

func (b *bareTranscriber) Name() string { return "bare" }

func TestTranscriberGroup_PrimarySucceeds(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", Text: "turn on the lights"}
	fallback := &sttmock.Transcriber{NameResult: "openai", Text: "wrong backend"}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	samples := make([]int16, 1600)
	text, err := g.Transcribe(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "turn on the lights" {
		t.Errorf("text = %q, want primary's text", text)
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.CallCount())
	}

	calls := primary.Calls()
	if len(calls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(calls))
	}
	if len(calls[0].Samples) != 1600 || calls[0].SampleRate != 16000 {
		t.Errorf("primary got %d samples at %d Hz, want 1600 at 16000",
			len(calls[0].Samples), calls[0].SampleRate)
	}
}

func TestTranscriberGroup_FallsBackOnError(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", Err: errPrimary}
	fallback := &sttmock.Transcriber{NameResult: "openai", Text: "from fallback"}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	text, err := g.Transcribe(context.Background(), nil, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from fallback" {
		t.Errorf("text = %q, want fallback's text", text)
	}
	if primary.CallCount() != 1 || fallback.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1 primary and 1 fallback",
			primary.CallCount(), fallback.CallCount())
	}
}

func TestTranscriberGroup_OpenBreakerSkipsBackend(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", Err: errPrimary}
	fallback := &sttmock.Transcriber{NameResult: "openai", Text: "ok"}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{MaxFailures: 2})
	g.AddFallback(fallback)

	// Two failures open the primary's breaker; the third call must not
	// touch the primary at all.
	for range 3 {
		text, err := g.Transcribe(context.Background(), nil, 16000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "ok" {
			t.Fatalf("text = %q, want fallback's text", text)
		}
	}

	if primary.CallCount() != 2 {
		t.Errorf("primary called %d times, want 2 (breaker should skip it)", primary.CallCount())
	}
	if fallback.CallCount() != 3 {
		t.Errorf("fallback called %d times, want 3", fallback.CallCount())
	}

	states := g.BreakerStates()
	if states["whisper-local"] != resilience.BreakerOpen {
		t.Errorf("primary breaker = %v, want open", states["whisper-local"])
	}
	if states["openai"] != resilience.BreakerClosed {
		t.Errorf("fallback breaker = %v, want closed", states["openai"])
	}
}

func TestTranscriberGroup_AllFail(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", Err: errPrimary}
	fallback := &sttmock.Transcriber{NameResult: "openai", Err: errFallback}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	_, err := g.Transcribe(context.Background(), nil, 16000)
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTranscriberGroup_CancelledContextStopsChain(t *testing.T) {
	primary := &sttmock.Transcriber{
		NameResult: "whisper-local",
		Delay:      func(ctx context.Context) error { return ctx.Err() },
	}
	fallback := &sttmock.Transcriber{NameResult: "openai", Text: "never reached"}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Transcribe(ctx, nil, 16000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, resilience.ErrAllFailed) {
		t.Error("cancellation should not be reported as all-backends failure")
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback called %d times after cancel, want 0", fallback.CallCount())
	}
}

func TestTranscriberGroup_Name(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local"}
	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	if got := g.Name(); got != "whisper-local" {
		t.Errorf("single-backend Name() = %q, want %q", got, "whisper-local")
	}

	g.AddFallback(&sttmock.Transcriber{NameResult: "openai"})
	if got := g.Name(); got != "failover(whisper-local,openai)" {
		t.Errorf("Name() = %q, want %q", got, "failover(whisper-local,openai)")
	}
}

func TestTranscriberGroup_CheckHealth_AnyHealthy(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", HealthErr: errPrimary}
	fallback := &sttmock.Transcriber{NameResult: "openai"}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	if err := g.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth = %v, want nil while one backend is healthy", err)
	}
}

func TestTranscriberGroup_CheckHealth_AllUnhealthy(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", HealthErr: errPrimary}
	fallback := &sttmock.Transcriber{NameResult: "openai", HealthErr: errFallback}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(fallback)

	err := g.CheckHealth(context.Background())
	if !errors.Is(err, errFallback) {
		t.Fatalf("err = %v, want the last backend's health error", err)
	}
}

func TestTranscriberGroup_CheckHealth_NoProbeCountsHealthy(t *testing.T) {
	primary := &sttmock.Transcriber{NameResult: "whisper-local", HealthErr: errPrimary}

	g := resilience.NewTranscriberGroup(primary, resilience.BreakerConfig{})
	g.AddFallback(&bareTranscriber{text: "hi"})

	if err := g.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth = %v, want nil when a backend has no probe", err)
	}
}
