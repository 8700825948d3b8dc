package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/call"
	"dialer-platform/internal/config"
	"dialer-platform/internal/notify"
	"dialer-platform/internal/telephony"
)

type fakeLink struct{}

func (l *fakeLink) Connect(ctx context.Context) error { return nil }
func (l *fakeLink) Connected() bool                   { return true }
func (l *fakeLink) JoinConference(string) error       { return nil }
func (l *fakeLink) ForwardAudio(string) error         { return nil }

type idleSource struct{}

func (idleSource) Start(ctx context.Context) (<-chan []int16, error) {
	return make(chan []int16), nil
}
func (idleSource) Stop() {}

type harness struct {
	sim     *telephony.SimDialer
	manager *call.Manager
	monitor *Monitor
	rec     *notify.Recorder
}

func newHarness(t *testing.T, provider telephony.Dialer, interval time.Duration) *harness {
	t.Helper()
	sim, _ := provider.(*telephony.SimDialer)
	cap := audio.NewCapture(audio.Config{RMSThreshold: 0.01}, idleSource{}, nil, nil)
	rec := &notify.Recorder{}
	mgr := call.NewManager(provider, &fakeLink{}, cap, rec, config.ProviderConfig{CallerID: "+15550001111"}, 30, slog.Default())
	mon := New(provider, mgr, cap, rec, interval, slog.Default())
	mgr.SetPoller(mon)
	t.Cleanup(mon.Close)
	return &harness{sim: sim, manager: mgr, monitor: mon, rec: rec}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollLoopDrivesCallToCompletion(t *testing.T) {
	h := newHarness(t, telephony.NewSimDialer(), 3*time.Millisecond)

	s, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	h.sim.SetStatus(s.ID, telephony.StatusRinging)
	waitFor(t, func() bool {
		got, ok := h.manager.Session("lead-1")
		return ok && got.Status == call.StatusRinging
	})

	h.sim.SetStatus(s.ID, telephony.StatusInProgress)
	waitFor(t, func() bool { return h.rec.Count(notify.KindConnected) == 1 })

	h.sim.SetStatus(s.ID, telephony.StatusCompleted)
	waitFor(t, func() bool { return h.rec.Count(notify.KindCompleted) == 1 })

	if h.manager.ActiveSessions() != 0 {
		t.Fatal("session still active after terminal observation")
	}
	// loop must have stopped; a late status change produces nothing
	h.sim.SetStatus(s.ID, telephony.StatusFailed)
	time.Sleep(20 * time.Millisecond)
	if h.rec.Count(notify.KindFailed) != 0 {
		t.Fatal("stopped watcher still produced notifications")
	}
}

func TestBusyProducesSingleNotificationAndHook(t *testing.T) {
	h := newHarness(t, telephony.NewSimDialer(), 3*time.Millisecond)

	var mu sync.Mutex
	var hooked []call.Status
	h.monitor.SetTerminalHook(func(subjectID string, status call.Status) {
		mu.Lock()
		defer mu.Unlock()
		hooked = append(hooked, status)
	})

	s, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	h.sim.SetStatus(s.ID, telephony.StatusBusy)

	waitFor(t, func() bool { return h.rec.Count(notify.KindBusy) == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := h.rec.Count(notify.KindBusy); got != 1 {
		t.Fatalf("busy notifications = %d, want exactly 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 1 || hooked[0] != call.StatusBusy {
		t.Fatalf("terminal hook calls %v", hooked)
	}
}

type flakyDialer struct {
	*telephony.SimDialer
	mu    sync.Mutex
	fails int
}

func (d *flakyDialer) CallStatus(ctx context.Context, callID string) (telephony.Status, error) {
	d.mu.Lock()
	if d.fails > 0 {
		d.fails--
		d.mu.Unlock()
		return "", errors.New("provider: 503")
	}
	d.mu.Unlock()
	return d.SimDialer.CallStatus(ctx, callID)
}

func TestPollFailuresAreRetried(t *testing.T) {
	flaky := &flakyDialer{SimDialer: telephony.NewSimDialer(), fails: 3}
	h := newHarness(t, flaky, 3*time.Millisecond)

	s, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	flaky.SimDialer.SetStatus(s.ID, telephony.StatusCompleted)

	waitFor(t, func() bool { return h.rec.Count(notify.KindCompleted) == 1 })
}

func TestWebhookObservationsFeedSamePath(t *testing.T) {
	// huge interval: the poll loop never ticks, only pushed statuses apply
	h := newHarness(t, telephony.NewSimDialer(), time.Minute)

	s, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	h.monitor.ObserveStatus(s.ID, telephony.StatusInProgress)
	h.monitor.ObserveStatus(s.ID, telephony.StatusInProgress)
	if got := h.rec.Count(notify.KindConnected); got != 1 {
		t.Fatalf("connected notifications = %d, want 1", got)
	}

	h.monitor.ObserveStatus(s.ID, telephony.StatusNoAnswer)
	if got := h.rec.Count(notify.KindNoAnswer); got != 1 {
		t.Fatalf("no-answer notifications = %d, want 1", got)
	}
	if h.manager.ActiveSessions() != 0 {
		t.Fatal("session survived terminal webhook")
	}

	// unknown call ids are dropped silently
	h.monitor.ObserveStatus("CAnope", telephony.StatusFailed)
	if h.rec.Count(notify.KindFailed) != 0 {
		t.Fatal("unknown call produced a notification")
	}
}

func TestSilentCallWarnsOnce(t *testing.T) {
	h := newHarness(t, telephony.NewSimDialer(), time.Minute)

	s, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	h.monitor.ObserveStatus(s.ID, telephony.StatusInProgress)
	// capture never forwarded a frame; repeated in-progress observations
	// trip the audio health warning exactly once
	h.monitor.ObserveStatus(s.ID, telephony.StatusInProgress)
	h.monitor.ObserveStatus(s.ID, telephony.StatusInProgress)

	if got := h.rec.Count(notify.KindWarning); got != 1 {
		t.Fatalf("audio warnings = %d, want exactly 1", got)
	}
}

func TestHangupStopsWatcherBeforeTerminalPoll(t *testing.T) {
	h := newHarness(t, telephony.NewSimDialer(), 3*time.Millisecond)

	_, err := h.manager.Place(context.Background(), "+15551234567", "lead-1")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !h.manager.Hangup(context.Background(), "lead-1") {
		t.Fatal("hangup found no session")
	}

	time.Sleep(20 * time.Millisecond)
	if got := h.rec.Count(notify.KindCompleted); got != 1 {
		t.Fatalf("completed notifications = %d, want exactly 1 (from hangup)", got)
	}
}
