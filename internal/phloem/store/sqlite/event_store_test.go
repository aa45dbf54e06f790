package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/BrandonDHaskell/Phloem/server/internal/phloem/store/sqlite"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

func sampleEvent(id, tod string, v types.Violation, recorded time.Time) types.Event {
	return types.Event{
		ID:         id,
		Timestamp:  tod,
		At:         time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC),
		Violation:  v,
		FlowRate:   2.2,
		TotalWaste: 0.04,
		RecordedAt: recorded,
	}
}

// ── AppendEvent / ListEvents ─────────────────────────────────────────────

func TestEventStore_AppendAndListNewestFirst(t *testing.T) {
	conn := openTestDB(t)
	es := sqlitestore.NewEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		ev := sampleEvent(id, "23:00:0"+string(rune('0'+i)), types.ViolationNightLeak, now.Add(time.Duration(i)*time.Second))
		if err := es.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent(%s): %v", id, err)
		}
	}

	got, err := es.ListEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
	}

	limited, err := es.ListEvents(ctx, 2)
	if err != nil {
		t.Fatalf("ListEvents(2): %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "c" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestEventStore_ColumnsRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	es := sqlitestore.NewEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	recorded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := sampleEvent("ev-1", "01:30:00", types.ViolationCritical, recorded)
	in.FlowRate = 8.0
	if err := es.AppendEvent(ctx, in); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	got, err := es.ListEvents(ctx, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListEvents: %v (%d rows)", err, len(got))
	}
	ev := got[0]
	if ev.Timestamp != "01:30:00" || ev.Violation != types.ViolationCritical {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.FlowRate != 8.0 || ev.TotalWaste != 0.04 {
		t.Errorf("unexpected numbers flow=%v waste=%v", ev.FlowRate, ev.TotalWaste)
	}
	if !ev.RecordedAt.Equal(recorded) || !ev.At.Equal(in.At) {
		t.Errorf("times not preserved: recorded=%v at=%v", ev.RecordedAt, ev.At)
	}
}

func TestEventStore_RejectsUnknownViolation(t *testing.T) {
	conn := openTestDB(t)
	es := sqlitestore.NewEventStore(conn, newTestWriter(t, conn))

	err := es.AppendEvent(context.Background(), sampleEvent("x", "00:00:00", types.ViolationNone, time.Now()))
	if err == nil {
		t.Fatal("expected check constraint failure for NONE")
	}
}

func TestEventStore_DuplicateIDFails(t *testing.T) {
	conn := openTestDB(t)
	es := sqlitestore.NewEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	ev := sampleEvent("dup", "23:00:00", types.ViolationNightLeak, time.Now())
	if err := es.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("first AppendEvent: %v", err)
	}
	if err := es.AppendEvent(ctx, ev); err == nil {
		t.Fatal("expected unique constraint failure")
	}
}

// ── PruneOlderThan ───────────────────────────────────────────────────────

func TestEventStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	es := sqlitestore.NewEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = es.AppendEvent(ctx, sampleEvent("old", "23:00:00", types.ViolationNightLeak, now.Add(-48*time.Hour)))
	_ = es.AppendEvent(ctx, sampleEvent("new", "23:01:05", types.ViolationNightLeak, now))

	n, err := es.PruneOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}

	got, _ := es.ListEvents(ctx, 0)
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("expected only 'new' to remain, got %+v", got)
	}
}
