package main

import (
	"sync"

	"dialer-platform/internal/call"
)

// managerProxy forwards relay events to the call manager. The relay is built
// before the manager (the manager needs the relay as its media link), so the
// proxy holds the late-bound reference.
type managerProxy struct {
	mu sync.Mutex
	m  *call.Manager
}

func (p *managerProxy) set(m *call.Manager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m = m
}

func (p *managerProxy) get() *call.Manager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m
}

func (p *managerProxy) StreamStarted(streamID, callID, conferenceName string) {
	if m := p.get(); m != nil {
		m.StreamStarted(streamID, callID, conferenceName)
	}
}

func (p *managerProxy) StreamStopped() {
	if m := p.get(); m != nil {
		m.StreamStopped()
	}
}

func (p *managerProxy) ConferenceJoined(conferenceName string) {
	if m := p.get(); m != nil {
		m.ConferenceJoined(conferenceName)
	}
}

func (p *managerProxy) DTMFReceived(digit string) {
	if m := p.get(); m != nil {
		m.DTMFReceived(digit)
	}
}

func (p *managerProxy) TransportDown() {
	if m := p.get(); m != nil {
		m.TransportDown()
	}
}

func (p *managerProxy) TransportRestored() {
	if m := p.get(); m != nil {
		m.TransportRestored()
	}
}

func (p *managerProxy) TransportGaveUp(err error) {
	if m := p.get(); m != nil {
		m.TransportGaveUp(err)
	}
}

func (p *managerProxy) ActiveSessions() int {
	if m := p.get(); m != nil {
		return m.ActiveSessions()
	}
	return 0
}
