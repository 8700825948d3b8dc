package reporting

import (
	"context"
	"testing"
	"time"

	"dialer-platform/internal/call"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecord_FillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = fixedClock(now)

	err := svc.Record(context.Background(), Attempt{
		AgentID:   "agent-1",
		ContactID: "contact-1",
		CallID:    "CA-1",
		Status:    call.StatusCompleted,
		StartedAt: now.Add(-90 * time.Second),
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	rows, err := repo.ListAttempts(context.Background(), "", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(rows))
	}
	a := rows[0]
	if a.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !a.EndedAt.Equal(now) {
		t.Fatalf("expected ended_at %v, got %v", now, a.EndedAt)
	}
	if a.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %d", a.DurationSeconds)
	}
}

func TestRecord_RejectsIncompleteAttempt(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Record(context.Background(), Attempt{AgentID: "agent-1"}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSummary_AggregatesByStatus(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	seed := []Attempt{
		{ID: "a1", AgentID: "agent-1", CallID: "CA-1", Status: call.StatusCompleted, StartedAt: base, EndedAt: base.Add(60 * time.Second), DurationSeconds: 60},
		{ID: "a2", AgentID: "agent-1", CallID: "CA-2", Status: call.StatusNoAnswer, StartedAt: base, EndedAt: base.Add(time.Minute), DurationSeconds: 0},
		{ID: "a3", AgentID: "agent-1", CallID: "CA-3", Status: call.StatusBusy, StartedAt: base, EndedAt: base.Add(2 * time.Minute), DurationSeconds: 0},
		{ID: "a4", AgentID: "agent-2", CallID: "CA-4", Status: call.StatusCompleted, StartedAt: base, EndedAt: base.Add(3 * time.Minute), DurationSeconds: 120},
	}
	for _, a := range seed {
		if err := repo.Append(context.Background(), a); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	sum, err := svc.Summary(context.Background(), SummaryRequest{
		Range: TimeRange{From: base.Add(-time.Hour), To: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if sum.TotalCalls != 4 || sum.CompletedCalls != 2 || sum.NoAnswerCalls != 1 || sum.BusyCalls != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.TotalDurationSeconds != 180 || sum.AverageDurationSeconds != 45 {
		t.Fatalf("unexpected durations: %+v", sum)
	}
	if sum.ConnectionRate != 0.5 {
		t.Fatalf("expected 0.5 connection rate, got %v", sum.ConnectionRate)
	}
}

func TestSummary_FiltersByAgent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	_ = repo.Append(context.Background(), Attempt{ID: "a1", AgentID: "agent-1", CallID: "CA-1", Status: call.StatusCompleted, EndedAt: base})
	_ = repo.Append(context.Background(), Attempt{ID: "a2", AgentID: "agent-2", CallID: "CA-2", Status: call.StatusFailed, EndedAt: base})

	sum, err := svc.Summary(context.Background(), SummaryRequest{
		AgentID: "agent-2",
		Range:   TimeRange{From: base.Add(-time.Hour), To: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if sum.TotalCalls != 1 || sum.FailedCalls != 1 {
		t.Fatalf("unexpected filtered summary: %+v", sum)
	}
}

func TestSummary_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	_, err := svc.Summary(context.Background(), SummaryRequest{
		Range: TimeRange{From: base, To: base},
	})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
