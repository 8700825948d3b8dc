package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/config"
	"dialer-platform/internal/notify"
	"dialer-platform/internal/telephony"
)

type fakeLink struct {
	mu        sync.Mutex
	connected bool
	dialErr   error
	joined    []string
	forwarded []string
}

func (l *fakeLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dialErr != nil {
		return l.dialErr
	}
	l.connected = true
	return nil
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) JoinConference(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joined = append(l.joined, name)
	return nil
}

func (l *fakeLink) ForwardAudio(payload string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.forwarded = append(l.forwarded, payload)
	return nil
}

type stubSource struct{}

func (stubSource) Start(ctx context.Context) (<-chan []int16, error) {
	ch := make(chan []int16)
	return ch, nil
}
func (stubSource) Stop() {}

type stubProbe struct{ granted bool }

func (p stubProbe) QueryMicrophonePermission(ctx context.Context) (bool, error) {
	return p.granted, nil
}

type recordingPoller struct {
	mu       sync.Mutex
	started  []string
	canceled []string
}

func (p *recordingPoller) StartPolling(subjectID, callID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, subjectID+":"+callID)
}

func (p *recordingPoller) CancelPolling(subjectID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = append(p.canceled, subjectID)
}

func newTestManager(t *testing.T, dialer telephony.Dialer, granted bool) (*Manager, *fakeLink, *recordingPoller, *notify.Recorder) {
	t.Helper()
	link := &fakeLink{}
	cap := audio.NewCapture(audio.Config{SampleRate: 8000, FrameSamples: 160, RMSThreshold: 0.01}, stubSource{}, stubProbe{granted: granted}, slog.Default())
	rec := &notify.Recorder{}
	m := NewManager(dialer, link, cap, rec, config.ProviderConfig{CallerID: "+15550001111"}, 30, slog.Default())
	p := &recordingPoller{}
	m.SetPoller(p)
	return m, link, p, rec
}

func TestPlaceRegistersSessionAndStartsPolling(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, p, _ := newTestManager(t, sim, true)

	s, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if s.ID == "" || s.Status != StatusConnecting {
		t.Fatalf("unexpected session %+v", s)
	}
	if got := m.ActiveSessions(); got != 1 {
		t.Fatalf("ActiveSessions = %d, want 1", got)
	}
	if len(p.started) != 1 || p.started[0] != "lead-1:"+s.ID {
		t.Fatalf("poller started %v", p.started)
	}
	if subj, ok := m.SubjectByCall(s.ID); !ok || subj != "lead-1" {
		t.Fatalf("SubjectByCall = %q, %v", subj, ok)
	}
}

func TestPlaceRejectedWhenMicrophoneDenied(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, _, _ := newTestManager(t, sim, false)

	_, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if !errors.Is(err, audio.ErrMicrophoneUnavailable) {
		t.Fatalf("err = %v, want ErrMicrophoneUnavailable", err)
	}
	if len(sim.Placed()) != 0 {
		t.Fatal("provider was dialed despite denied microphone")
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("session registered despite denied microphone")
	}
}

func TestPlaceWrapsProviderRejection(t *testing.T) {
	sim := telephony.NewSimDialer()
	sim.RejectNext = true
	m, _, _, _ := newTestManager(t, sim, true)

	_, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if !errors.Is(err, telephony.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("session registered despite provider rejection")
	}
}

func TestPlaceTearsDownExistingSessionForSubject(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, p, _ := newTestManager(t, sim, true)

	first, err := m.Place(context.Background(), "+15551111111", "lead-1")
	if err != nil {
		t.Fatalf("first Place: %v", err)
	}
	second, err := m.Place(context.Background(), "+15552222222", "lead-1")
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh provider call for the second placement")
	}
	if got := m.ActiveSessions(); got != 1 {
		t.Fatalf("ActiveSessions = %d, want exactly one per subject", got)
	}
	if status, _ := sim.CallStatus(context.Background(), first.ID); !status.Terminal() {
		t.Fatalf("first call not hung up with provider, status %s", status)
	}
	if len(p.canceled) != 1 || p.canceled[0] != "lead-1" {
		t.Fatalf("poller cancellations %v", p.canceled)
	}
}

func TestPlaceEmptyArguments(t *testing.T) {
	m, _, _, _ := newTestManager(t, telephony.NewSimDialer(), true)
	if _, err := m.Place(context.Background(), "", "lead-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty phone: err = %v", err)
	}
	if _, err := m.Place(context.Background(), "+15551234567", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty subject: err = %v", err)
	}
}

func TestHangupIsIdempotent(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, p, rec := newTestManager(t, sim, true)

	s, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !m.Hangup(context.Background(), "lead-1") {
		t.Fatal("first hangup reported no session")
	}
	if m.Hangup(context.Background(), "lead-1") {
		t.Fatal("second hangup reported a session")
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("session still active after hangup")
	}
	if status, _ := sim.CallStatus(context.Background(), s.ID); !status.Terminal() {
		t.Fatalf("provider call not terminated, status %s", status)
	}
	if len(p.canceled) != 1 {
		t.Fatalf("poll loop cancelations = %d, want 1", len(p.canceled))
	}
	if got := rec.Count(notify.KindCompleted); got != 1 {
		t.Fatalf("completed notifications = %d, want 1", got)
	}
}

func TestHangupAll(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, _, _ := newTestManager(t, sim, true)

	if m.HangupAll(context.Background()) {
		t.Fatal("HangupAll with no sessions reported work")
	}
	for _, subj := range []string{"lead-1", "lead-2", "lead-3"} {
		if _, err := m.Place(context.Background(), "+15551234567", subj); err != nil {
			t.Fatalf("Place %s: %v", subj, err)
		}
	}
	if !m.HangupAll(context.Background()) {
		t.Fatal("HangupAll reported no sessions")
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("sessions remain after HangupAll")
	}
}

func TestApplyStatusTransitions(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, _, _ := newTestManager(t, sim, true)

	s, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	prev, next, changed := m.ApplyStatus("lead-1", s.ID, telephony.StatusRinging)
	if !changed || prev != StatusConnecting || next != StatusRinging {
		t.Fatalf("ringing transition = (%s, %s, %v)", prev, next, changed)
	}
	if _, _, changed := m.ApplyStatus("lead-1", s.ID, telephony.StatusRinging); changed {
		t.Fatal("repeated observation reported a transition")
	}

	_, next, changed = m.ApplyStatus("lead-1", s.ID, telephony.StatusCanceled)
	if !changed || next != StatusCompleted {
		t.Fatalf("canceled should map to completed, got (%s, %v)", next, changed)
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("terminal transition left session in active set")
	}
	if _, _, changed := m.ApplyStatus("lead-1", s.ID, telephony.StatusFailed); changed {
		t.Fatal("observation after terminal reported a transition")
	}
	if _, ok := m.SubjectByCall(s.ID); ok {
		t.Fatal("terminal call id still resolvable")
	}
}

func TestHangupNoAnswerNotifiesNoAnswer(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, _, rec := newTestManager(t, sim, true)

	s, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !m.HangupNoAnswer(context.Background(), "lead-1") {
		t.Fatal("forced hangup reported no session")
	}
	if m.ActiveSessions() != 0 {
		t.Fatal("session still active after forced hangup")
	}
	if status, _ := sim.CallStatus(context.Background(), s.ID); !status.Terminal() {
		t.Fatalf("provider call not terminated, status %s", status)
	}
	if got := rec.Count(notify.KindNoAnswer); got != 1 {
		t.Fatalf("no_answer notifications = %d, want 1", got)
	}
	if got := rec.Count(notify.KindCompleted); got != 0 {
		t.Fatalf("completed notifications = %d, want 0 for an unanswered call", got)
	}
}

func TestApplyStatusDropsStaleCallID(t *testing.T) {
	sim := telephony.NewSimDialer()
	m, _, _, _ := newTestManager(t, sim, true)

	first, err := m.Place(context.Background(), "+15551111111", "lead-1")
	if err != nil {
		t.Fatalf("first Place: %v", err)
	}
	second, err := m.Place(context.Background(), "+15552222222", "lead-1")
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}

	// a poll tick for the replaced call must not touch the new session
	if _, _, changed := m.ApplyStatus("lead-1", first.ID, telephony.StatusCompleted); changed {
		t.Fatal("stale call observation applied to the new session")
	}
	s, ok := m.Session("lead-1")
	if !ok || s.ID != second.ID || s.Status != StatusConnecting {
		t.Fatalf("new session disturbed: %+v", s)
	}
	if _, _, changed := m.ApplyStatus("lead-1", second.ID, telephony.StatusRinging); !changed {
		t.Fatal("observation for the current call was dropped")
	}
}

func TestToggleMuteAndSpeaker(t *testing.T) {
	m, _, _, _ := newTestManager(t, telephony.NewSimDialer(), true)

	if m.ToggleMute(context.Background(), "lead-1", nil) {
		t.Fatal("mute toggled without a session")
	}
	if m.ToggleSpeaker("lead-1", nil) {
		t.Fatal("speaker toggled without a session")
	}

	if _, err := m.Place(context.Background(), "+15551234567", "lead-1"); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !m.ToggleMute(context.Background(), "lead-1", nil) {
		t.Fatal("mute toggle failed")
	}
	s, _ := m.Session("lead-1")
	if !s.Muted {
		t.Fatal("session not muted after toggle")
	}
	explicit := false
	m.ToggleMute(context.Background(), "lead-1", &explicit)
	if s, _ = m.Session("lead-1"); s.Muted {
		t.Fatal("explicit unmute ignored")
	}

	if !m.ToggleSpeaker("lead-1", nil) {
		t.Fatal("speaker toggle failed")
	}
	if s, _ = m.Session("lead-1"); s.SpeakerEnabled {
		t.Fatal("speaker still enabled after toggle")
	}
}

func TestStreamStartedBindsAndAutoJoinsConference(t *testing.T) {
	sim := telephony.NewSimDialer()
	sim.ConferencePerCall = true
	m, link, _, _ := newTestManager(t, sim, true)

	s, err := m.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if s.ConferenceID == "" {
		t.Fatal("bridged placement carried no conference")
	}

	m.StreamStarted("MS0001", s.ID, "")

	got, _ := m.Session("lead-1")
	if got.MediaStreamID != "MS0001" || !got.AudioStreaming {
		t.Fatalf("stream not bound: %+v", got)
	}
	if len(link.joined) != 1 || link.joined[0] != s.ConferenceID {
		t.Fatalf("auto-join calls %v, want [%s]", link.joined, s.ConferenceID)
	}
}

func TestStreamStartedUnknownCallIgnored(t *testing.T) {
	m, link, _, _ := newTestManager(t, telephony.NewSimDialer(), true)
	m.StreamStarted("MS0001", "CAnope", "conf-x")
	if len(link.joined) != 0 {
		t.Fatal("joined a conference for an unknown call")
	}
}

func TestTransportGaveUpNotifiesUser(t *testing.T) {
	m, _, _, rec := newTestManager(t, telephony.NewSimDialer(), true)
	m.TransportGaveUp(errors.New("dial tcp: refused"))
	if rec.Count(notify.KindError) != 1 {
		t.Fatal("expected one error notification")
	}
}
