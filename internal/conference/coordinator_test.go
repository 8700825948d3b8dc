package conference

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dialer-platform/internal/audio"
)

type fakeLink struct {
	mu        sync.Mutex
	connected bool
	joinErr   error
	joined    []string
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) JoinConference(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.joinErr != nil {
		return l.joinErr
	}
	l.joined = append(l.joined, name)
	return nil
}

func (l *fakeLink) ForwardAudio(string) error { return nil }

type idleSource struct{}

func (idleSource) Start(ctx context.Context) (<-chan []int16, error) {
	return make(chan []int16), nil
}
func (idleSource) Stop() {}

func newCoordinator(link *fakeLink) *Coordinator {
	cap := audio.NewCapture(audio.Config{RMSThreshold: 0.01}, idleSource{}, nil, nil)
	return NewCoordinator(link, cap, nil)
}

func TestJoinFailsFastWhenDisconnected(t *testing.T) {
	link := &fakeLink{connected: false}
	c := newCoordinator(link)

	err := c.Join(context.Background(), "conf-1")
	if !errors.Is(err, ErrRelayDisconnected) {
		t.Fatalf("err = %v, want ErrRelayDisconnected", err)
	}
	if len(link.joined) != 0 {
		t.Fatal("join was sent despite disconnected relay")
	}
	if c.Current() != "" {
		t.Fatal("binding recorded for a failed join")
	}
}

func TestJoinBindsAndStartsCapture(t *testing.T) {
	link := &fakeLink{connected: true}
	c := newCoordinator(link)

	if err := c.Join(context.Background(), "conf-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if c.Current() != "conf-1" {
		t.Fatalf("Current = %q, want conf-1", c.Current())
	}
	if len(link.joined) != 1 || link.joined[0] != "conf-1" {
		t.Fatalf("joins %v", link.joined)
	}
}

func TestJoinSameConferenceIsNoop(t *testing.T) {
	link := &fakeLink{connected: true}
	c := newCoordinator(link)

	if err := c.Join(context.Background(), "conf-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := c.Join(context.Background(), "conf-1"); err != nil {
		t.Fatalf("repeat Join: %v", err)
	}
	if len(link.joined) != 1 {
		t.Fatalf("join sent %d times, want once", len(link.joined))
	}
}

func TestJoinErrorDoesNotBind(t *testing.T) {
	link := &fakeLink{connected: true, joinErr: errors.New("write: broken pipe")}
	c := newCoordinator(link)

	if err := c.Join(context.Background(), "conf-1"); err == nil {
		t.Fatal("expected error from failed join")
	}
	if c.Current() != "" {
		t.Fatal("binding recorded despite send failure")
	}
}

func TestLeaveClearsBinding(t *testing.T) {
	link := &fakeLink{connected: true}
	c := newCoordinator(link)

	if err := c.Join(context.Background(), "conf-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	c.Leave()
	if c.Current() != "" {
		t.Fatal("binding survived Leave")
	}
	if err := c.Join(context.Background(), "conf-1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(link.joined) != 2 {
		t.Fatalf("rejoin after Leave should resend, joins %v", link.joined)
	}
}
