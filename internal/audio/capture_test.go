package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	ch      chan []int16
	stopped bool
	failErr error
}

func (s *fakeSource) Start(ctx context.Context) (<-chan []int16, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = make(chan []int16, 16)
	return s.ch, nil
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.ch)
	}
}

func (s *fakeSource) feed(frame []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch <- frame
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []string
}

func (s *recordingSink) ForwardAudio(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.payloads))
	copy(out, s.payloads)
	return out
}

type fakeProbe struct {
	granted bool
	err     error
}

func (p fakeProbe) QueryMicrophonePermission(ctx context.Context) (bool, error) {
	return p.granted, p.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestCapture_GatesSilentFrames(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	cap := NewCapture(Config{SampleRate: 8000, FrameSamples: 4, RMSThreshold: 0.1}, src, nil, nil)

	if err := cap.Start(context.Background(), sink); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cap.Stop()

	// Well below threshold (RMS ≈ 0.0003).
	src.feed([]int16{10, -10, 10, -10})
	// Well above threshold (RMS ≈ 0.5).
	voiced := []int16{16384, -16384, 16384, -16384}
	src.feed(voiced)

	waitFor(t, func() bool { return len(sink.all()) == 1 })

	got := sink.all()[0]
	want := base64.StdEncoding.EncodeToString(EncodePCM16LE(voiced))
	if got != want {
		t.Fatalf("forwarded payload not byte-exact: got %q want %q", got, want)
	}
	if cap.FramesForwarded() != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", cap.FramesForwarded())
	}
}

func TestCapture_ThresholdBoundaryForwards(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	// A frame of constant amplitude a has RMS exactly a/32768.
	cap := NewCapture(Config{FrameSamples: 4, RMSThreshold: float64(3277) / 32768.0}, src, nil, nil)

	if err := cap.Start(context.Background(), sink); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cap.Stop()

	src.feed([]int16{3277, 3277, 3277, 3277})
	waitFor(t, func() bool { return len(sink.all()) == 1 })
}

func TestCapture_StopIdempotentAndSafeWhenNeverStarted(t *testing.T) {
	src := &fakeSource{}
	cap := NewCapture(Config{RMSThreshold: 0.01}, src, nil, nil)

	// Never started: must not panic.
	cap.Stop()
	cap.Stop()

	if err := cap.Start(context.Background(), &recordingSink{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	cap.Stop()
	cap.Stop()
	if cap.Active() {
		t.Fatalf("capture still active after stop")
	}
}

func TestCapture_StartIsSharedAcrossSessions(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	cap := NewCapture(Config{RMSThreshold: 0.01}, src, nil, nil)

	if err := cap.Start(context.Background(), sink); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cap.Stop()

	// Second start while active is a no-op on the shared device.
	if err := cap.Start(context.Background(), sink); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !cap.Active() {
		t.Fatalf("capture should be active")
	}
}

func TestCapture_VerifyDenied(t *testing.T) {
	cap := NewCapture(Config{}, &fakeSource{}, fakeProbe{granted: false}, nil)
	if err := cap.Verify(context.Background()); !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Fatalf("expected ErrMicrophoneUnavailable, got %v", err)
	}

	cap = NewCapture(Config{}, &fakeSource{}, fakeProbe{granted: true}, nil)
	if err := cap.Verify(context.Background()); err != nil {
		t.Fatalf("expected nil for granted permission, got %v", err)
	}
}

func TestCapture_StartFailureSurfacesMicrophoneUnavailable(t *testing.T) {
	src := &fakeSource{failErr: errors.New("device busy")}
	cap := NewCapture(Config{}, src, nil, nil)
	err := cap.Start(context.Background(), &recordingSink{})
	if !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Fatalf("expected ErrMicrophoneUnavailable, got %v", err)
	}
	if cap.Active() {
		t.Fatalf("capture must stay inactive on acquisition failure")
	}
}
