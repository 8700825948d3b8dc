package media

import (
	"encoding/json"
	"fmt"
)

// Wire protocol: JSON messages with an "event" discriminator, exchanged over
// the relay websocket. Inbound messages are parsed into a closed set of typed
// values; adding a wire event means adding a type that implements Inbound,
// which forces a new InboundHandler method — handling cannot be forgotten
// silently.

// wireMessage is the flat JSON envelope for both directions.
type wireMessage struct {
	Event          string `json:"event"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	StreamSID      string `json:"streamSid,omitempty"`
	CallSID        string `json:"callSid,omitempty"`
	ConferenceName string `json:"conferenceName,omitempty"`
	Payload        string `json:"payload,omitempty"`
	Name           string `json:"name,omitempty"`
	Digit          string `json:"digit,omitempty"`
}

// Inbound is a provider-originated relay message.
type Inbound interface {
	dispatch(h InboundHandler)
}

// InboundHandler receives every inbound wire event. The dispatch is
// exhaustive: one method per event type.
type InboundHandler interface {
	OnStreamStart(StreamStart)
	OnStreamStop(StreamStop)
	OnAudio(Audio)
	OnConferenceJoined(ConferenceJoined)
	OnConnectedAck(ConnectedAck)
	OnMark(Mark)
	OnDTMF(DTMF)
}

// StreamStart binds a media stream (and optionally a conference) to the relay.
type StreamStart struct {
	StreamSID      string
	CallSID        string
	ConferenceName string
}

func (m StreamStart) dispatch(h InboundHandler) { h.OnStreamStart(m) }

// StreamStop unbinds the current stream.
type StreamStop struct{}

func (m StreamStop) dispatch(h InboundHandler) { h.OnStreamStop(m) }

// Audio carries an inbound base64 PCM payload for playback.
type Audio struct {
	ConferenceName string
	Payload        string
}

func (m Audio) dispatch(h InboundHandler) { h.OnAudio(m) }

// ConferenceJoined confirms a bridge join.
type ConferenceJoined struct {
	ConferenceName string
}

func (m ConferenceJoined) dispatch(h InboundHandler) { h.OnConferenceJoined(m) }

// ConnectedAck is the handshake acknowledgement; no state change.
type ConnectedAck struct{}

func (m ConnectedAck) dispatch(h InboundHandler) { h.OnConnectedAck(m) }

// Mark is a synchronization marker from the provider.
type Mark struct {
	Name string
}

func (m Mark) dispatch(h InboundHandler) { h.OnMark(m) }

// DTMF reports a keypad digit pressed on the remote leg.
type DTMF struct {
	Digit string
}

func (m DTMF) dispatch(h InboundHandler) { h.OnDTMF(m) }

// ErrUnknownEvent marks an inbound event name outside the protocol. The relay
// ignores these without terminating the connection.
type ErrUnknownEvent struct {
	Event string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("media: unknown wire event %q", e.Event)
}

// ParseInbound decodes one provider message. Malformed JSON or an unknown
// event name is an error the caller must tolerate.
func ParseInbound(data []byte) (Inbound, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("media: malformed message: %w", err)
	}
	switch w.Event {
	case "streamStart":
		return StreamStart{StreamSID: w.StreamSID, CallSID: w.CallSID, ConferenceName: w.ConferenceName}, nil
	case "streamStop":
		return StreamStop{}, nil
	case "audio":
		return Audio{ConferenceName: w.ConferenceName, Payload: w.Payload}, nil
	case "conference_joined":
		return ConferenceJoined{ConferenceName: w.ConferenceName}, nil
	case "connected_ack":
		return ConnectedAck{}, nil
	case "mark":
		return Mark{Name: w.Name}, nil
	case "dtmf":
		return DTMF{Digit: w.Digit}, nil
	default:
		return nil, ErrUnknownEvent{Event: w.Event}
	}
}

// Outbound is a client-originated relay message.
type Outbound interface {
	envelope() wireMessage
}

// BrowserConnect opens the relay session.
type BrowserConnect struct {
	Timestamp int64
}

func (m BrowserConnect) envelope() wireMessage {
	return wireMessage{Event: "browser_connect", Timestamp: m.Timestamp}
}

// BrowserAudio carries one captured voiced frame, tagged with the active
// stream or conference binding.
type BrowserAudio struct {
	StreamSID      string
	ConferenceName string
	Payload        string
}

func (m BrowserAudio) envelope() wireMessage {
	return wireMessage{
		Event:          "browser_audio",
		StreamSID:      m.StreamSID,
		ConferenceName: m.ConferenceName,
		Payload:        m.Payload,
	}
}

// ConferenceJoin requests a bridge join.
type ConferenceJoin struct {
	ConferenceName string
	Timestamp      int64
}

func (m ConferenceJoin) envelope() wireMessage {
	return wireMessage{Event: "conference_join", ConferenceName: m.ConferenceName, Timestamp: m.Timestamp}
}
