// Package eventfeed streams capture lifecycle events to WebSocket
// subscribers.
//
// Every message is a JSON envelope with a "type" field ("state", "wake" or
// "result"), a timestamp and a type-specific "data" payload. Publishing
// never blocks: a subscriber that cannot keep up has events dropped rather
// than stalling the capture machine.
package eventfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/hark/internal/capture"
	"github.com/MrWong99/hark/pkg/wake"
	"github.com/coder/websocket"
)

// Message types on the feed.
const (
	TypeState  = "state"
	TypeWake   = "wake"
	TypeResult = "result"
)

const (
	// subscriberBuffer is how many pending events a subscriber may lag
	// behind before events are dropped for it.
	subscriberBuffer = 16

	// writeTimeout bounds a single WebSocket write.
	writeTimeout = 5 * time.Second
)

// StateChange reports a capture machine transition.
type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Wake reports a wake-word detection.
type Wake struct {
	KeywordIndex int `json:"keyword_index"`
}

// SessionResult reports a completed or aborted session.
type SessionResult struct {
	SessionID  string `json:"session_id"`
	Reason     string `json:"reason"`
	Outcome    string `json:"outcome"`
	Transcript string `json:"transcript,omitempty"`
	Spoken     bool   `json:"spoken"`
	Error      string `json:"error,omitempty"`
	AudioMs    int64  `json:"audio_ms"`
}

// envelope is the wire shape of a feed message.
type envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type subscriber struct {
	ch   chan []byte
	conn *websocket.Conn
}

// Feed fans events out to all connected WebSocket clients. The zero value is
// not usable; create one with [New].
type Feed struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// Compile-time interface check.
var _ http.Handler = (*Feed)(nil)

// New creates an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[*subscriber]struct{})}
}

// PublishStateChange broadcasts a capture machine transition.
func (f *Feed) PublishStateChange(from, to capture.State) {
	f.publish(envelope{
		Type: TypeState,
		Time: time.Now(),
		Data: StateChange{From: from.String(), To: to.String()},
	})
}

// PublishWake broadcasts a wake-word detection.
func (f *Feed) PublishWake(ev wake.Event) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	f.publish(envelope{
		Type: TypeWake,
		Time: at,
		Data: Wake{KeywordIndex: ev.KeywordIndex},
	})
}

// PublishResult broadcasts a session's terminal record.
func (f *Feed) PublishResult(res capture.Result) {
	data := SessionResult{
		SessionID:  res.SessionID,
		Reason:     res.Reason.String(),
		Outcome:    res.Outcome.String(),
		Transcript: res.Transcript,
		Spoken:     res.ResponseSpoken,
		AudioMs:    res.AudioDuration.Milliseconds(),
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	f.publish(envelope{Type: TypeResult, Time: time.Now(), Data: data})
}

func (f *Feed) publish(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Warn("event feed encode failed", "type", env.Type, "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for sub := range f.subs {
		select {
		case sub.ch <- data:
		default:
			// Subscriber is not draining; it loses this event.
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until the
// client disconnects or the feed is closed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("event feed accept failed", "error", err)
		return
	}

	sub := &subscriber{ch: make(chan []byte, subscriberBuffer), conn: conn}
	if !f.add(sub) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer f.remove(sub)
	slog.Debug("event feed subscriber connected", "remote", r.RemoteAddr)

	// The feed is write-only; CloseRead surfaces the client going away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// Register adds the /events route to mux.
func (f *Feed) Register(mux *http.ServeMux) {
	mux.Handle("GET /events", f)
}

// Close disconnects all subscribers and makes further publishes no-ops.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := make([]*subscriber, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

// SubscriberCount reports how many clients are currently connected.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) add(sub *subscriber) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.subs[sub] = struct{}{}
	return true
}

func (f *Feed) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}
