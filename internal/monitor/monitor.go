package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/call"
	"dialer-platform/internal/notify"
	"dialer-platform/internal/telephony"
)

// Registry is the session-manager surface the monitor drives transitions
// through. Satisfied by *call.Manager.
type Registry interface {
	ApplyStatus(subjectID, callID string, status telephony.Status) (prev, next call.Status, changed bool)
	SubjectByCall(callID string) (string, bool)
	ActiveSessions() int
}

// TerminalFunc is invoked once per session when it reaches a terminal status
// through observation. The auto dialer hooks in here to advance its queue.
// Not called for explicit user hangups; those never reach the monitor.
type TerminalFunc func(subjectID string, status call.Status)

// TransitionFunc is invoked on every applied transition, terminal or not.
// The auto dialer uses it to arm and disarm its no-answer timeout.
type TransitionFunc func(subjectID string, status call.Status)

// Monitor owns one poll loop per active session. Status observations, whether
// polled or pushed via provider webhook, funnel through the same transition
// path so each state change is applied and announced exactly once.
type Monitor struct {
	provider telephony.Dialer
	registry Registry
	capture  *audio.Capture
	notifier notify.Sink
	interval time.Duration
	log      *slog.Logger

	mu           sync.Mutex
	loops        map[string]*loop // keyed by subject id
	onTerminal   TerminalFunc
	onTransition TransitionFunc
	closed       bool
}

type loop struct {
	callID string
	cancel context.CancelFunc
	done   chan struct{}

	// set once per session; guard the connected notification and the
	// audio-health warning against repeats
	connected bool
	audioWarn bool
	frameBase int64
}

func New(provider telephony.Dialer, registry Registry, capture *audio.Capture, notifier notify.Sink, interval time.Duration, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = notify.SlogSink{Log: log}
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		provider: provider,
		registry: registry,
		capture:  capture,
		notifier: notifier,
		interval: interval,
		log:      log,
		loops:    make(map[string]*loop),
	}
}

// SetTerminalHook registers the callback fired on observed terminal
// transitions. Must be called before the first StartPolling.
func (m *Monitor) SetTerminalHook(fn TerminalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminal = fn
}

// SetTransitionHook registers the callback fired on every applied transition.
// Must be called before the first StartPolling.
func (m *Monitor) SetTransitionHook(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// StartPolling begins watching callID on behalf of subjectID. A prior loop
// for the same subject is cancelled first, so a subject never has two
// watchers racing to apply transitions.
func (m *Monitor) StartPolling(subjectID, callID string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if prev, ok := m.loops[subjectID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{callID: callID, cancel: cancel, done: make(chan struct{})}
	m.loops[subjectID] = l
	m.mu.Unlock()

	go m.run(ctx, subjectID, l)
}

// CancelPolling stops the subject's watcher, if any. The session record is
// untouched; that is the caller's business.
func (m *Monitor) CancelPolling(subjectID string) {
	m.mu.Lock()
	l, ok := m.loops[subjectID]
	if ok {
		delete(m.loops, subjectID)
	}
	m.mu.Unlock()
	if ok {
		l.cancel()
	}
}

// Close stops every watcher.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	loops := make([]*loop, 0, len(m.loops))
	for _, l := range m.loops {
		loops = append(loops, l)
	}
	m.loops = make(map[string]*loop)
	m.mu.Unlock()
	for _, l := range loops {
		l.cancel()
	}
}

func (m *Monitor) run(ctx context.Context, subjectID string, l *loop) {
	defer close(l.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := m.provider.CallStatus(ctx, l.callID)
			if err != nil {
				// transient provider errors are retried on the next tick
				m.log.Debug("status poll failed", "call_id", l.callID, "error", err)
				continue
			}
			if m.observe(subjectID, l, status) {
				return
			}
		}
	}
}

// ObserveStatus accepts a pushed provider status (webhook delivery) and feeds
// it through the same transition path the poll loop uses.
func (m *Monitor) ObserveStatus(callID string, status telephony.Status) {
	subjectID, ok := m.registry.SubjectByCall(callID)
	if !ok {
		return
	}
	m.mu.Lock()
	l := m.loops[subjectID]
	m.mu.Unlock()
	if l == nil {
		return
	}
	if m.observe(subjectID, l, status) {
		l.cancel()
	}
}

// observe applies one status observation. The registry drops it when
// l.callID no longer matches the subject's session, so a tick in flight while
// the subject is redialed cannot leak the old call's status onto the new one.
// Returns true when the session reached a terminal state and the watcher
// should stop.
func (m *Monitor) observe(subjectID string, l *loop, status telephony.Status) bool {
	prev, next, changed := m.registry.ApplyStatus(subjectID, l.callID, status)

	if changed {
		m.log.Info("call status changed",
			"subject_id", subjectID,
			"call_id", l.callID,
			"from", prev,
			"to", next,
		)
		m.mu.Lock()
		transition := m.onTransition
		m.mu.Unlock()
		if transition != nil {
			transition(subjectID, next)
		}
	}

	m.mu.Lock()
	if changed && next == call.StatusInProgress && !l.connected {
		l.connected = true
		l.frameBase = m.capture.FramesForwarded()
		m.mu.Unlock()
		m.notifier.Notify(notify.KindConnected, "Call connected")
		return false
	}
	connected, warned, base := l.connected, l.audioWarn, l.frameBase
	m.mu.Unlock()

	// Audio health: a connected call that has never pushed a voiced frame
	// means the capture path is silently broken. Warn once.
	if connected && !warned && next == call.StatusInProgress && !changed {
		if m.capture.FramesForwarded() == base {
			m.mu.Lock()
			l.audioWarn = true
			m.mu.Unlock()
			m.notifier.Notify(notify.KindWarning, "No microphone audio detected on this call")
		}
	}

	if changed && next.Terminal() {
		m.finish(subjectID, next)
		return true
	}
	return false
}

func (m *Monitor) finish(subjectID string, status call.Status) {
	m.mu.Lock()
	delete(m.loops, subjectID)
	hook := m.onTerminal
	m.mu.Unlock()

	if m.registry.ActiveSessions() == 0 {
		m.capture.Stop()
	}

	switch status {
	case call.StatusCompleted:
		m.notifier.Notify(notify.KindCompleted, "Call ended")
	case call.StatusBusy:
		m.notifier.Notify(notify.KindBusy, "Line busy")
	case call.StatusNoAnswer:
		m.notifier.Notify(notify.KindNoAnswer, "No answer")
	case call.StatusFailed:
		m.notifier.Notify(notify.KindFailed, "Call failed")
	}

	if hook != nil {
		hook(subjectID, status)
	}
}
