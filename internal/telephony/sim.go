package telephony

import (
	"context"
	"fmt"
	"sync"
)

// SimDialer is an in-memory provider useful for tests and early development.
// Calls are created in the queued state and advanced explicitly via
// SetStatus; nothing progresses on its own.
//
// NOTE: This is not intended for production; it exists so orchestration logic
// can be exercised without a carrier account.
type SimDialer struct {
	mu     sync.Mutex
	seq    int
	calls  map[string]Status
	placed []PlaceCallRequest

	// RejectNext makes the next PlaceCall fail with ErrProviderRejected.
	RejectNext bool

	// ConferencePerCall assigns a conference name to every placement,
	// simulating a two-leg bridged dial.
	ConferencePerCall bool
}

func NewSimDialer() *SimDialer {
	return &SimDialer{calls: make(map[string]Status)}
}

func (d *SimDialer) Name() string { return "sim" }

func (d *SimDialer) HealthCheck(ctx context.Context) error { return nil }

func (d *SimDialer) PlaceCall(ctx context.Context, req PlaceCallRequest) (Placement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.RejectNext {
		d.RejectNext = false
		return Placement{}, fmt.Errorf("sim: placement refused: %w", ErrProviderRejected)
	}

	d.seq++
	id := fmt.Sprintf("SIM%04d", d.seq)
	d.calls[id] = StatusQueued
	d.placed = append(d.placed, req)

	conf := req.ConferenceName
	if conf == "" && d.ConferencePerCall {
		conf = "conf-" + id
	}
	return Placement{CallID: id, Status: StatusQueued, ConferenceName: conf}, nil
}

func (d *SimDialer) CallStatus(ctx context.Context, callID string) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.calls[callID]
	if !ok {
		return "", fmt.Errorf("sim: unknown call %q", callID)
	}
	return s, nil
}

func (d *SimDialer) Hangup(ctx context.Context, callID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.calls[callID]
	if !ok {
		return false, nil
	}
	if !s.Terminal() {
		d.calls[callID] = StatusCompleted
	}
	return true, nil
}

// SetStatus scripts the provider-side status for a call.
func (d *SimDialer) SetStatus(callID string, s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[callID] = s
}

// Placed returns a copy of every placement request seen, in order.
func (d *SimDialer) Placed() []PlaceCallRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PlaceCallRequest, len(d.placed))
	copy(out, d.placed)
	return out
}
