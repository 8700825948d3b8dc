package audit

import (
	"context"
	"testing"
	"time"
)

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	err := svc.LogDialerControl(context.Background(), "team-1", "agent-1", "agent", "10.0.0.1", "auto dialer started")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, e.CreatedAt)
	}
	if e.Type != EventTypeDialerControl {
		t.Fatalf("unexpected type %q", e.Type)
	}
}

func TestAppend_RejectsMissingTeam(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeCallControl}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestLogCallControl_CarriesCallID(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogCallControl(context.Background(), "team-1", "agent-1", "supervisor", "10.0.0.2", "CA-123", "hangup all")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	events := repo.Events()
	if len(events) != 1 || events[0].CallID != "CA-123" {
		t.Fatalf("expected call id on event, got %+v", events)
	}
}
