package audio

import (
	"context"
	"sync"
)

// SilentSource is a FrameSource for deployments where no local capture
// device is wired in (server-side orchestration with the audio leg handled
// by the provider stream). It yields no frames.
type SilentSource struct {
	mu sync.Mutex
	ch chan []int16
}

func (s *SilentSource) Start(ctx context.Context) (<-chan []int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = make(chan []int16)
	return s.ch, nil
}

func (s *SilentSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
}

// StaticProbe answers permission queries with a fixed result.
type StaticProbe struct {
	Granted bool
}

func (p StaticProbe) QueryMicrophonePermission(ctx context.Context) (bool, error) {
	return p.Granted, nil
}
