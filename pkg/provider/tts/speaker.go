// Package tts defines the Speaker interface for spoken confirmations.
//
// The dispatcher is hands-free by nature, so its only output back to the user
// is audio: a short acknowledgement after a command is handed to the agent.
// Speaker deliberately stays batch-shaped: confirmations are one sentence,
// and synthesis latency hides behind the already-running agent.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Speaker synthesizes text and plays it on the output device.
type Speaker interface {
	// Speak blocks until the utterance has been synthesized and handed to
	// the player, or ctx ends. Confirmations are best-effort: callers run
	// Speak detached and only log failures.
	Speak(ctx context.Context, text string) error
}

// HealthChecker is implemented by speakers that can probe their backend
// without synthesizing. The readiness endpoint type-asserts for it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
