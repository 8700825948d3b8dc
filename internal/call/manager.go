package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/config"
	"dialer-platform/internal/notify"
	"dialer-platform/internal/telephony"
)

var (
	// ErrAlreadyInCall is returned when an existing non-terminal session for
	// the subject could not be torn down before placing a new call.
	ErrAlreadyInCall = errors.New("subject already in an active call")

	// ErrInvalidArgument is returned for empty subject or phone number.
	ErrInvalidArgument = errors.New("invalid call argument")

	// ErrSessionNotFound is returned for operations on a missing session.
	ErrSessionNotFound = errors.New("call session not found")
)

// MediaLink is the slice of the media relay the manager drives. Satisfied by
// *media.Relay.
type MediaLink interface {
	audio.FrameSink
	Connect(ctx context.Context) error
	Connected() bool
	JoinConference(name string) error
}

// Poller starts and cancels the status watch for a placed call. Satisfied by
// the monitor scheduler; wired after construction to break the dependency
// cycle between the manager and the monitor.
type Poller interface {
	StartPolling(subjectID, callID string)
	CancelPolling(subjectID string)
}

type noopPoller struct{}

func (noopPoller) StartPolling(string, string) {}
func (noopPoller) CancelPolling(string)        {}

// Manager owns the set of active call sessions. All session mutation goes
// through it; the relay and monitor observe through narrow interfaces.
type Manager struct {
	dialer   telephony.Dialer
	relay    MediaLink
	capture  *audio.Capture
	notifier notify.Sink
	provider config.ProviderConfig
	ringSecs int
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session // keyed by subject id, non-terminal only
	byCall   map[string]string   // provider call id -> subject id
	poller   Poller
}

func NewManager(dialer telephony.Dialer, relay MediaLink, capture *audio.Capture, notifier notify.Sink, provider config.ProviderConfig, noAnswerSeconds int, log *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Func(func(notify.Kind, string) {})
	}
	return &Manager{
		dialer:   dialer,
		relay:    relay,
		capture:  capture,
		notifier: notifier,
		provider: provider,
		ringSecs: noAnswerSeconds,
		log:      log,
		sessions: make(map[string]*Session),
		byCall:   make(map[string]string),
		poller:   noopPoller{},
	}
}

// SetPoller wires the status monitor in after construction.
func (m *Manager) SetPoller(p Poller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p != nil {
		m.poller = p
	}
}

// Place dials phoneNumber on behalf of subjectID and registers the session.
// The microphone is verified before any provider traffic; an existing
// non-terminal session for the subject is hung up first.
func (m *Manager) Place(ctx context.Context, phoneNumber, subjectID string) (Session, error) {
	if phoneNumber == "" || subjectID == "" {
		return Session{}, fmt.Errorf("%w: phone number and subject id are required", ErrInvalidArgument)
	}

	if err := m.capture.Verify(ctx); err != nil {
		return Session{}, err
	}

	if m.hasActive(subjectID) {
		if !m.Hangup(ctx, subjectID) && m.hasActive(subjectID) {
			return Session{}, ErrAlreadyInCall
		}
	}

	if err := m.relay.Connect(ctx); err != nil {
		// Control plane proceeds; the relay retries the media path on its
		// own when streams bind.
		m.log.Warn("media link unavailable at dial time", "subject_id", subjectID, "error", err)
	}

	placement, err := m.dialer.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:                 phoneNumber,
		From:               m.provider.CallerID,
		StatusCallbackURL:  m.provider.StatusCallbackURL,
		RingTimeoutSeconds: m.ringSecs,
	})
	if err != nil {
		return Session{}, fmt.Errorf("place call for subject %s: %w", subjectID, err)
	}

	s := &Session{
		ID:             placement.CallID,
		SubjectID:      subjectID,
		PhoneNumber:    phoneNumber,
		Status:         FromProvider(placement.Status),
		ConferenceID:   placement.ConferenceName,
		SpeakerEnabled: true,
	}

	m.mu.Lock()
	m.sessions[subjectID] = s
	m.byCall[s.ID] = subjectID
	poller := m.poller
	snap := *s
	m.mu.Unlock()

	poller.StartPolling(subjectID, s.ID)

	m.log.Info("call placed",
		"subject_id", subjectID,
		"call_id", s.ID,
		"status", s.Status,
	)
	return snap, nil
}

// Hangup tears down the subject's session if one is active. It reports
// whether a session was actually torn down, so repeated hangups are safe.
func (m *Manager) Hangup(ctx context.Context, subjectID string) bool {
	return m.teardown(ctx, subjectID, StatusCompleted, notify.KindCompleted, "Call ended")
}

// HangupNoAnswer force-ends a call whose answer window expired. Same teardown
// as Hangup, but the user sees the no-answer outcome.
func (m *Manager) HangupNoAnswer(ctx context.Context, subjectID string) bool {
	return m.teardown(ctx, subjectID, StatusNoAnswer, notify.KindNoAnswer, "No answer")
}

func (m *Manager) teardown(ctx context.Context, subjectID string, status Status, kind notify.Kind, message string) bool {
	m.mu.Lock()
	s, ok := m.sessions[subjectID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	s.Status = status
	delete(m.sessions, subjectID)
	delete(m.byCall, s.ID)
	callID := s.ID
	remaining := len(m.sessions)
	poller := m.poller
	m.mu.Unlock()

	poller.CancelPolling(subjectID)

	if _, err := m.dialer.Hangup(ctx, callID); err != nil {
		m.log.Warn("provider hangup failed", "call_id", callID, "error", err)
	}
	if remaining == 0 {
		m.capture.Stop()
	}

	m.notifier.Notify(kind, message)
	m.log.Info("call hung up", "subject_id", subjectID, "call_id", callID, "status", status)
	return true
}

// HangupAll tears down every active session. Reports whether any existed.
func (m *Manager) HangupAll(ctx context.Context) bool {
	m.mu.Lock()
	subjects := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		subjects = append(subjects, id)
	}
	m.mu.Unlock()

	any := false
	for _, id := range subjects {
		if m.Hangup(ctx, id) {
			any = true
		}
	}
	return any
}

// ToggleMute flips (or sets, when mute is non-nil) the mute flag for the
// subject's session and routes the change to the shared microphone capture.
func (m *Manager) ToggleMute(ctx context.Context, subjectID string, mute *bool) bool {
	m.mu.Lock()
	s, ok := m.sessions[subjectID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if mute != nil {
		s.Muted = *mute
	} else {
		s.Muted = !s.Muted
	}
	muted := s.Muted
	streaming := s.AudioStreaming
	m.mu.Unlock()

	if muted {
		m.capture.Stop()
	} else if streaming {
		if err := m.capture.Start(ctx, m.relay); err != nil {
			m.log.Warn("unmute could not restart capture", "subject_id", subjectID, "error", err)
		}
	}
	m.log.Info("mute toggled", "subject_id", subjectID, "muted", muted)
	return true
}

// ToggleSpeaker flips (or sets) the speaker flag. Output routing is applied
// by the playback consumer; the manager only records the intent.
func (m *Manager) ToggleSpeaker(subjectID string, enabled *bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[subjectID]
	if !ok {
		return false
	}
	if enabled != nil {
		s.SpeakerEnabled = *enabled
	} else {
		s.SpeakerEnabled = !s.SpeakerEnabled
	}
	m.log.Info("speaker toggled", "subject_id", subjectID, "enabled", s.SpeakerEnabled)
	return true
}

// ApplyStatus records a provider status observation for the subject's
// session. The observation carries the call id it was fetched for; when a new
// call has replaced the subject's session, a late observation for the old
// call is dropped rather than applied to the wrong session. It returns the
// previous and new session status and whether a transition occurred. Terminal
// transitions remove the session from the active set; observations for
// unknown or already terminal sessions are no-ops.
func (m *Manager) ApplyStatus(subjectID, callID string, provider telephony.Status) (prev, next Status, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[subjectID]
	if !ok || s.ID != callID {
		return "", "", false
	}
	next = FromProvider(provider)
	prev = s.Status
	if next == prev {
		return prev, next, false
	}
	s.Status = next
	if next.Terminal() {
		delete(m.sessions, subjectID)
		delete(m.byCall, s.ID)
	}
	return prev, next, true
}

// Session returns a snapshot of the subject's active session.
func (m *Manager) Session(subjectID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[subjectID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SubjectByCall resolves a provider call id to the owning subject.
func (m *Manager) SubjectByCall(callID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCall[callID]
	return id, ok
}

// Sessions returns snapshots of all active sessions.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// ActiveSessions reports the number of non-terminal sessions. The relay uses
// this to decide whether a dropped transport is worth reconnecting.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) hasActive(subjectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[subjectID]
	return ok
}
