package conference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dialer-platform/internal/audio"
)

// ErrRelayDisconnected is returned when a join is requested while the media
// relay has no live transport. Joins never queue; the caller retries once the
// relay recovers.
var ErrRelayDisconnected = errors.New("media relay disconnected")

// Link is the relay surface the coordinator needs.
type Link interface {
	audio.FrameSink
	Connected() bool
	JoinConference(name string) error
}

// Coordinator places the client's audio leg into named conference rooms over
// the shared media relay.
type Coordinator struct {
	link    Link
	capture *audio.Capture
	log     *slog.Logger

	mu      sync.Mutex
	current string
}

func NewCoordinator(link Link, capture *audio.Capture, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{link: link, capture: capture, log: log}
}

// Join enters the named conference. The request fails fast when the relay is
// disconnected; it is never queued for later delivery. Joining the conference
// the client is already in is a no-op.
func (c *Coordinator) Join(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("conference name is required")
	}
	if !c.link.Connected() {
		return ErrRelayDisconnected
	}

	c.mu.Lock()
	if c.current == name {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.link.JoinConference(name); err != nil {
		return fmt.Errorf("join conference %s: %w", name, err)
	}

	c.mu.Lock()
	c.current = name
	c.mu.Unlock()

	// Outbound frames are tagged with the conference binding from here on;
	// make sure the microphone is actually flowing.
	if err := c.capture.Start(ctx, c.link); err != nil {
		c.log.Warn("capture unavailable after conference join", "conference", name, "error", err)
	}

	c.log.Info("joined conference", "conference", name)
	return nil
}

// Leave clears the local binding. The provider side tears the room down when
// the last participant drops; nothing to send from here.
func (c *Coordinator) Leave() {
	c.mu.Lock()
	c.current = ""
	c.mu.Unlock()
}

// Current returns the conference the client is bound to, if any.
func (c *Coordinator) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
