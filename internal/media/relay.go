package media

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/internal/audio"
)

// ErrTransportDisconnected means the relay has no open channel to the
// provider media endpoint.
var ErrTransportDisconnected = errors.New("media transport disconnected")

// ConnState is the relay connection state machine. A transport loss moves
// Connected → Disconnected; if any call session is still active the relay
// makes a single bounded reconnect attempt (Reconnecting → Connected or
// GaveUp). There is no unbounded retry loop.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateReconnecting
	StateGaveUp
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Events receives relay-level notifications. The call session manager
// implements this; the relay never mutates session records itself, it only
// reports what happened on the wire.
type Events interface {
	StreamStarted(streamID, callID, conferenceName string)
	StreamStopped()
	ConferenceJoined(conferenceName string)
	DTMFReceived(digit string)
	TransportDown()
	TransportRestored()
	TransportGaveUp(err error)
}

// SessionGauge reports how many call sessions are currently active; the relay
// only retries the transport while at least one is.
type SessionGauge interface {
	ActiveSessions() int
}

// PlaybackChunk is decoded inbound audio queued for the output device.
type PlaybackChunk struct {
	ConferenceName string
	PCM            []byte
}

// Relay is the single long-lived duplex channel per client. It multiplexes
// audio for all concurrently active sessions and conferences over one
// transport connection; stream/conference bindings are updated atomically
// within a single dispatch.
type Relay struct {
	transport      Transport
	capture        *audio.Capture
	events         Events
	gauge          SessionGauge
	log            *slog.Logger
	reconnectDelay time.Duration

	mu        sync.Mutex
	state     ConnState
	conn      Conn
	closed    bool
	gen       int // connection generation; guards stale read loops
	streamSID string
	confName  string

	playback chan PlaybackChunk
}

// Config assembles a Relay. Events and Transport are required; Capture may be
// nil when the client has no capture device (listen-only).
type Config struct {
	Transport      Transport
	Capture        *audio.Capture
	Events         Events
	Gauge          SessionGauge
	ReconnectDelay time.Duration
	Log            *slog.Logger
}

func NewRelay(cfg Config) *Relay {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Relay{
		transport:      cfg.Transport,
		capture:        cfg.Capture,
		events:         cfg.Events,
		gauge:          cfg.Gauge,
		log:            log,
		reconnectDelay: delay,
		playback:       make(chan PlaybackChunk, 128),
	}
}

// Connect dials the media endpoint and performs the opening handshake.
// Connecting an already-connected relay is a no-op.
func (r *Relay) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrTransportDisconnected
	}
	if r.state == StateConnected {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	conn, err := r.transport.Dial(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return ErrTransportDisconnected
	}
	r.conn = conn
	r.state = StateConnected
	r.gen++
	gen := r.gen
	err = conn.WriteJSON(BrowserConnect{Timestamp: time.Now().UnixMilli()}.envelope())
	r.mu.Unlock()

	if err != nil {
		_ = conn.Close()
		return err
	}

	go r.readLoop(ctx, conn, gen)
	return nil
}

// State returns the current connection state.
func (r *Relay) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Connected reports whether the duplex channel is open.
func (r *Relay) Connected() bool { return r.State() == StateConnected }

// Playback is the queue of decoded inbound audio.
func (r *Relay) Playback() <-chan PlaybackChunk { return r.playback }

// ForwardAudio implements audio.FrameSink: a captured voiced frame goes out
// tagged with the active stream/conference binding.
func (r *Relay) ForwardAudio(payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateConnected || r.conn == nil {
		return ErrTransportDisconnected
	}
	msg := BrowserAudio{StreamSID: r.streamSID, ConferenceName: r.confName, Payload: payload}
	return r.conn.WriteJSON(msg.envelope())
}

// JoinConference requests a bridge join over the open channel. Subsequent
// outbound frames are tagged with the conference so they route to the bridge
// rather than a direct stream; the provider confirms with conference_joined.
func (r *Relay) JoinConference(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateConnected || r.conn == nil {
		return ErrTransportDisconnected
	}
	msg := ConferenceJoin{ConferenceName: name, Timestamp: time.Now().UnixMilli()}
	if err := r.conn.WriteJSON(msg.envelope()); err != nil {
		return err
	}
	r.confName = name
	return nil
}

// Close shuts the relay down for good; no reconnect follows. Idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.state = StateDisconnected
	conn := r.conn
	r.conn = nil
	r.streamSID = ""
	r.confName = ""
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if r.capture != nil {
		r.capture.Stop()
	}
}

func (r *Relay) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			r.connectionLost(ctx, gen)
			return
		}
		msg, perr := ParseInbound(data)
		if perr != nil {
			// Malformed or unknown inbound traffic never terminates the
			// connection.
			r.log.Debug("ignoring inbound message", "err", perr)
			continue
		}
		msg.dispatch(r)
	}
}

/* ===================== inbound dispatch ===================== */

func (r *Relay) OnStreamStart(m StreamStart) {
	r.mu.Lock()
	r.streamSID = m.StreamSID
	if m.ConferenceName != "" {
		r.confName = m.ConferenceName
	}
	r.mu.Unlock()

	// Capture start may block on a permission prompt; never under the lock.
	if r.capture != nil {
		if err := r.capture.Start(context.Background(), r); err != nil {
			r.log.Warn("capture start failed on stream start", "err", err)
		}
	}
	r.events.StreamStarted(m.StreamSID, m.CallSID, m.ConferenceName)
}

func (r *Relay) OnStreamStop(StreamStop) {
	r.mu.Lock()
	r.streamSID = ""
	r.confName = ""
	r.mu.Unlock()

	if r.capture != nil {
		r.capture.Stop()
	}
	r.events.StreamStopped()
}

func (r *Relay) OnAudio(m Audio) {
	pcm, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		r.log.Debug("dropping undecodable audio payload", "err", err)
		return
	}
	conf := m.ConferenceName
	if conf == "" {
		r.mu.Lock()
		conf = r.confName
		r.mu.Unlock()
	}
	select {
	case r.playback <- PlaybackChunk{ConferenceName: conf, PCM: pcm}:
	default:
		// Playback consumer is behind; dropping is preferable to stalling
		// the read loop.
	}
}

func (r *Relay) OnConferenceJoined(m ConferenceJoined) {
	r.mu.Lock()
	r.confName = m.ConferenceName
	r.mu.Unlock()
	r.events.ConferenceJoined(m.ConferenceName)
}

func (r *Relay) OnConnectedAck(ConnectedAck) {
	r.log.Debug("relay handshake acknowledged")
}

func (r *Relay) OnMark(m Mark) {
	r.log.Debug("relay mark", "name", m.Name)
}

func (r *Relay) OnDTMF(m DTMF) {
	r.events.DTMFReceived(m.Digit)
}

/* ===================== reconnect ===================== */

func (r *Relay) connectionLost(ctx context.Context, gen int) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.state = StateDisconnected
	r.conn = nil
	r.streamSID = ""
	r.confName = ""
	r.mu.Unlock()

	if r.capture != nil {
		r.capture.Stop()
	}
	r.events.TransportDown()

	if r.gauge == nil || r.gauge.ActiveSessions() == 0 {
		// No session needs the channel; stay down until the next Connect.
		return
	}

	r.mu.Lock()
	r.state = StateReconnecting
	r.mu.Unlock()

	go r.reconnectOnce(ctx)
}

// reconnectOnce makes the single bounded retry attempt. Call duration bounds
// total retry time, so there is no backoff schedule.
func (r *Relay) reconnectOnce(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.reconnectDelay):
	}

	if err := r.Connect(ctx); err != nil {
		r.mu.Lock()
		if !r.closed {
			r.state = StateGaveUp
		}
		r.mu.Unlock()
		r.events.TransportGaveUp(err)
		return
	}
	r.events.TransportRestored()
}
