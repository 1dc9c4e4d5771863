package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "journal", "tapper.db"), 1)
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventRepositoryOrdersBySessionTime(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	in := []GameEvent{
		{ID: "e2", SessionID: "s1", Timestamp: base.Add(2 * time.Millisecond), EventType: "TAP_REJECTED", Payload: map[string]interface{}{"score": 3.0}},
		{ID: "e1", SessionID: "s1", Timestamp: base, EventType: "TAP_ACCEPTED", Payload: map[string]interface{}{"score": 1.0}},
		{ID: "e3", SessionID: "s2", Timestamp: base, EventType: "TAP_ACCEPTED", Payload: map[string]interface{}{}},
		{ID: "e4", SessionID: "s1", Timestamp: base.Add(time.Millisecond), EventType: "PURCHASE_SUCCEEDED", Track: "TAP", Payload: map[string]interface{}{}},
	}
	for _, e := range in {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append(%s): %v", e.ID, err)
		}
	}

	got, err := repo.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"e1", "e4", "e2"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("event %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp round trip: %v", got[0].Timestamp)
	}
	if got[0].Payload["score"] != 1.0 {
		t.Errorf("payload = %v", got[0].Payload)
	}
	if got[1].Track != "TAP" {
		t.Errorf("track = %q", got[1].Track)
	}

	taps, err := repo.GetBySessionAndType(ctx, "s1", "TAP_ACCEPTED")
	if err != nil || len(taps) != 1 {
		t.Fatalf("filtered = %v, %v", taps, err)
	}

	counts, err := repo.CountByType(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["TAP_ACCEPTED"] != 2 || counts["TAP_REJECTED"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestEventRepositoryRejectsDuplicateID(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	e := GameEvent{ID: "dup", SessionID: "s", Timestamp: time.Now(), EventType: "TAP_ACCEPTED"}
	if err := repo.Append(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := repo.Append(context.Background(), e); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()
	start := time.Unix(1700000000, 500)

	if err := repo.Start(ctx, SessionRecord{SessionID: "s1", StartedAt: start, FinalTapLevel: 1, FinalEnergyLevel: 1}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Start(ctx, SessionRecord{SessionID: "s2", StartedAt: start.Add(time.Second), FinalTapLevel: 1, FinalEnergyLevel: 1}); err != nil {
		t.Fatal(err)
	}

	rec, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndedAt != nil {
		t.Error("open session has an end time")
	}
	if !rec.StartedAt.Equal(start) {
		t.Errorf("started_at = %v", rec.StartedAt)
	}

	end := start.Add(time.Minute)
	if err := repo.End(ctx, "s1", end, 12345, 4, 2); err != nil {
		t.Fatal(err)
	}
	rec, _ = repo.Get(ctx, "s1")
	if rec.EndedAt == nil || !rec.EndedAt.Equal(end) {
		t.Errorf("ended_at = %v", rec.EndedAt)
	}
	if rec.FinalScore != 12345 || rec.FinalTapLevel != 4 || rec.FinalEnergyLevel != 2 {
		t.Errorf("final = %+v", rec)
	}

	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].SessionID != "s2" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestSessionRepositoryNotFound(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := repo.End(ctx, "ghost", time.Now(), 0, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("End err = %v, want ErrNotFound", err)
	}
}

func TestJournalPersistsSessionAndEvents(t *testing.T) {
	db := openTestDB(t)
	eventRepo := NewSQLiteEventRepository(db)
	sessionRepo := NewSQLiteSessionRepository(db)
	m := metrics.NewCollector()
	j := NewJournal(eventRepo, sessionRepo, m)

	el := events.NewEventLog(j)
	el.OnPersistError(func(e events.GameEvent, err error) {
		t.Errorf("persist %s: %v", e.Type, err)
	})

	s := player.NewState()
	el.Append(events.NewGameEvent("s1", events.EventTypeSessionStarted, *s))
	s.Score, s.Energy = 1, 999
	el.Append(events.NewGameEvent("s1", events.EventTypeTapAccepted, *s))
	buy := events.NewGameEvent("s1", events.EventTypePurchaseSucceeded, *s)
	buy.Track = player.TrackTap
	el.Append(buy)
	el.Append(events.NewGameEvent("s1", events.EventTypeSessionEnded, *s))
	el.Close()

	ctx := context.Background()
	stored, err := eventRepo.GetBySessionID(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 4 {
		t.Fatalf("stored %d events, want 4", len(stored))
	}
	if stored[1].EventType != "TAP_ACCEPTED" || stored[1].Payload["score"] != 1.0 {
		t.Errorf("tap row = %+v", stored[1])
	}
	if stored[2].Track != "TAP" {
		t.Errorf("purchase track = %q", stored[2].Track)
	}

	rec, err := sessionRepo.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndedAt == nil || rec.FinalScore != 1 {
		t.Errorf("session = %+v", rec)
	}

	if n := atomic.LoadInt64(&m.EventsWritten); n != 4 {
		t.Errorf("events written = %d, want 4", n)
	}
}

func TestJournalEndWithoutStartFails(t *testing.T) {
	db := openTestDB(t)
	j := NewJournal(NewSQLiteEventRepository(db), NewSQLiteSessionRepository(db), nil)

	err := j.Append(events.NewGameEvent("orphan", events.EventTypeSessionEnded, *player.NewState()))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
