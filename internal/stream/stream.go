// Package stream subscribes to the API's live item streams.
//
// A Subscription holds one logical stream open for as long as its context
// lives. It reconnects with bounded exponential backoff after any failure
// and hands each payload to the caller exactly as received, except that a
// JSON array frame is split into one payload per element.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/abelbrown/divyadrishti/internal/otel"
)

// Transport selects the wire protocol.
type Transport string

const (
	SSE       Transport = "sse"
	WebSocket Transport = "ws"
)

// Valid reports whether t is a supported transport.
func (t Transport) Valid() bool {
	return t == SSE || t == WebSocket
}

// Names of the two live streams.
const (
	Trending = "trending"
	Metrics  = "metrics"
)

// Path returns the API path of a named stream.
func Path(name string) string {
	return "/stream/" + name
}

// Handler receives one payload. It runs on the subscription goroutine. Each
// payload is a fresh slice owned by the receiver, which may keep it or hand
// it to another goroutine.
type Handler func(payload []byte)

// State is reported on every connect and disconnect.
type State struct {
	Connected bool
	Attempt   int
	Err       error
}

// Options configures a Subscription.
type Options struct {
	Transport    Transport
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	IdleTimeout  time.Duration // ws read deadline; 0 disables
	HTTP         *http.Client  // SSE; must not set a total timeout
	Dialer       *websocket.Dialer
	Events       *otel.Logger
	OnState      func(State)
}

// Subscription is one named stream at one URL.
type Subscription struct {
	name string
	url  string
	opts Options
}

// New creates a subscription. The URL may use http(s) for either transport;
// it is rewritten to ws(s) for WebSocket.
func New(name, rawURL string, opts Options) (*Subscription, error) {
	if opts.Transport == "" {
		opts.Transport = SSE
	}
	if !opts.Transport.Valid() {
		return nil, fmt.Errorf("unknown stream transport %q", opts.Transport)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if opts.Transport == WebSocket {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	if opts.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 10 * time.Second
		opts.Dialer = &d
	}
	return &Subscription{name: name, url: u.String(), opts: opts}, nil
}

// Name returns the stream name.
func (s *Subscription) Name() string { return s.name }

// URL returns the resolved stream URL.
func (s *Subscription) URL() string { return s.url }

// Run delivers payloads to h until ctx is cancelled, reconnecting as needed.
// It always returns ctx.Err().
func (s *Subscription) Run(ctx context.Context, h Handler) error {
	b := &backoff.Backoff{
		Min:    s.opts.ReconnectMin,
		Max:    s.opts.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 1; ; attempt++ {
		delivered := false
		deliver := func(frame []byte) {
			delivered = true
			for _, p := range Split(frame) {
				h(p)
			}
		}
		connected := func() {
			s.report(State{Connected: true, Attempt: attempt})
			s.opts.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStreamConnect, Comp: "stream", Stream: s.name, Count: attempt})
		}

		var err error
		switch s.opts.Transport {
		case WebSocket:
			err = s.runWS(ctx, connected, deliver)
		default:
			err = s.runSSE(ctx, connected, deliver)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			b.Reset()
		}

		s.report(State{Connected: false, Attempt: attempt, Err: err})
		ev := otel.Event{Level: otel.LevelWarn, Kind: otel.KindStreamDisconnect, Comp: "stream", Stream: s.name, Count: attempt}
		if err != nil {
			ev.Err = err.Error()
		}
		delay := b.Duration()
		ev.Dur = delay
		s.opts.Events.Emit(ev)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Subscription) report(st State) {
	if s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}

// runSSE reads one SSE connection until it ends.
func (s *Subscription) runSSE(ctx context.Context, connected func(), deliver func([]byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.opts.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect: HTTP %d", resp.StatusCode)
	}
	connected()

	err = ReadEvents(resp.Body, func(ev Event) {
		if ev.Data != "" {
			deliver([]byte(ev.Data))
		}
	})
	if err == nil {
		return errors.New("stream closed by server")
	}
	return err
}

// runWS reads one WebSocket connection until it ends.
func (s *Subscription) runWS(ctx context.Context, connected func(), deliver func([]byte)) error {
	conn, resp, err := s.opts.Dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	connected()

	// ReadMessage does not observe ctx; closing the conn unblocks it.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		if s.opts.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("stream closed by server")
			}
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		deliver(data)
	}
}

// Split breaks a JSON array frame into its elements. Anything that is not a
// well-formed array, including a single object, is returned whole so the
// consumer can judge it.
func Split(frame []byte) [][]byte {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return [][]byte{frame}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return [][]byte{frame}
	}
	out := make([][]byte, len(elems))
	for i, e := range elems {
		out[i] = e
	}
	return out
}

// JoinURL joins an API base URL and a stream path.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
