package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrMicrophoneUnavailable is returned when the capture device cannot be
// acquired: permission denied or device failure. Recoverable by user action.
var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// FrameSource abstracts the microphone device. Start acquires the device and
// returns a channel of fixed-size sample frames; the channel closes when the
// source stops. Acquiring the device may prompt the user for permission, so
// Start can block until the prompt is resolved.
type FrameSource interface {
	Start(ctx context.Context) (<-chan []int16, error)
	Stop()
}

// PermissionProbe reports whether microphone access is currently granted
// without triggering an acquisition prompt.
type PermissionProbe interface {
	QueryMicrophonePermission(ctx context.Context) (bool, error)
}

// FrameSink receives encoded voiced frames. The media relay implements this
// and tags each payload with the active stream/conference binding.
type FrameSink interface {
	ForwardAudio(payload string) error
}

// Config fixes the capture frame format and the silence gate.
type Config struct {
	SampleRate   int
	FrameSamples int

	// RMSThreshold gates silence: frames whose normalized RMS energy falls
	// below it are dropped, never forwarded.
	RMSThreshold float64
}

// Capture owns the single shared microphone across all call sessions.
// It is acquired once and reused; Stop releases the device and is safe to
// call at any time, including before the first Start.
type Capture struct {
	cfg    Config
	source FrameSource
	probe  PermissionProbe
	log    *slog.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}

	// framesForwarded counts voiced frames handed to the sink since the
	// capture session began. The status monitor reads it for audio-health
	// auditing.
	framesForwarded atomic.Int64
}

func NewCapture(cfg Config, source FrameSource, probe PermissionProbe, log *slog.Logger) *Capture {
	if log == nil {
		log = slog.Default()
	}
	return &Capture{cfg: cfg, source: source, probe: probe, log: log}
}

// Verify checks that microphone access is granted without starting capture.
// The session manager calls this before asking the provider to dial, so a
// call is never placed against a dead capture device.
func (c *Capture) Verify(ctx context.Context) error {
	if c.probe == nil {
		return nil
	}
	granted, err := c.probe.QueryMicrophonePermission(ctx)
	if err != nil {
		return errors.Join(ErrMicrophoneUnavailable, err)
	}
	if !granted {
		return ErrMicrophoneUnavailable
	}
	return nil
}

// Start acquires the device (prompting at most once per capture session) and
// begins forwarding voiced frames to sink. Starting an already-active capture
// is a no-op; the device is a single shared resource.
func (c *Capture) Start(ctx context.Context, sink FrameSink) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}

	frames, err := c.source.Start(ctx)
	if err != nil {
		c.mu.Unlock()
		return errors.Join(ErrMicrophoneUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.active = true
	c.cancel = cancel
	c.done = done
	c.framesForwarded.Store(0)
	c.mu.Unlock()

	go c.run(runCtx, frames, sink, done)
	return nil
}

func (c *Capture) run(ctx context.Context, frames <-chan []int16, sink FrameSink, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if RMSEnergy(frame) < c.cfg.RMSThreshold {
				continue // silence, not transmitted
			}
			if err := sink.ForwardAudio(EncodePayload(frame)); err != nil {
				c.log.Debug("audio frame dropped", "err", err)
				continue
			}
			c.framesForwarded.Add(1)
		}
	}
}

// Stop releases the device and halts forwarding. Idempotent; safe to call
// when capture was never started.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	c.source.Stop()
	<-done
}

// Active reports whether the device is currently held.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// FramesForwarded returns the count of voiced frames forwarded since Start.
func (c *Capture) FramesForwarded() int64 {
	return c.framesForwarded.Load()
}
