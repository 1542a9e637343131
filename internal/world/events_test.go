package world

import (
	"testing"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestForcedEventExpires(t *testing.T) {
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1}, DefaultEvents())

	ev, ok := s.Start("timber_boom", t0)
	if !ok {
		t.Fatal("Start failed")
	}
	if !ev.EndsAt.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("ends at %v", ev.EndsAt)
	}
	if _, ok := s.Start("timber_boom", t0); ok {
		t.Error("started the same event twice")
	}
	if _, ok := s.Start("locusts", t0); ok {
		t.Error("started an unknown event")
	}

	mods := catalog.Fold(s.Effects())
	if mods.Production[catalog.Wood] != 0.2 {
		t.Errorf("wood bonus = %v", mods.Production[catalog.Wood])
	}

	started, completed := s.Advance(t0.Add(2 * time.Hour))
	if len(started) != 0 || len(completed) != 0 {
		t.Fatalf("early advance: %d started, %d completed", len(started), len(completed))
	}
	_, completed = s.Advance(t0.Add(3 * time.Hour))
	if len(completed) != 1 || completed[0].ID != ev.ID {
		t.Fatalf("completed = %+v", completed)
	}
	if len(s.Active()) != 0 {
		t.Error("event still active after expiry")
	}
}

func TestAdvanceRespectsMaxActive(t *testing.T) {
	defs := []EventDef{
		{Kind: "a", Duration: 100 * time.Hour, Weight: 1},
		{Kind: "b", Duration: 100 * time.Hour, Weight: 1},
		{Kind: "c", Duration: 100 * time.Hour, Weight: 1},
	}
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 1, MaxActive: 2, Seed: 5}, defs)
	s.Advance(t0)

	started, _ := s.Advance(t0.Add(10 * time.Hour))
	if len(started) != 2 {
		t.Fatalf("started %d events, want 2", len(started))
	}
	if started[0].Kind == started[1].Kind {
		t.Error("same kind started twice")
	}
	if !started[0].StartedAt.Equal(t0.Add(time.Hour)) || !started[1].StartedAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("start times %v, %v", started[0].StartedAt, started[1].StartedAt)
	}
}

func TestAdvanceCatchesUpInOrder(t *testing.T) {
	defs := []EventDef{{Kind: "short", Duration: 30 * time.Minute, Weight: 1}}
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 1, MaxActive: 1, Seed: 9}, defs)
	s.Advance(t0)

	// Every boundary starts the event and the next one expires it. The
	// event started at the last boundary is still running.
	started, completed := s.Advance(t0.Add(5 * time.Hour))
	if len(started) != 5 || len(completed) != 4 {
		t.Fatalf("%d started, %d completed, want 5 and 4", len(started), len(completed))
	}
	for i := 1; i < len(started); i++ {
		if !started[i].StartedAt.After(started[i-1].StartedAt) {
			t.Errorf("events out of order at %d", i)
		}
	}
}

func TestSchedulerStateRestore(t *testing.T) {
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1}, DefaultEvents())
	s.Advance(t0)
	s.Start("plague", t0)

	st := s.State()
	r := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1}, DefaultEvents())
	r.Restore(st)

	if len(r.Active()) != 1 || r.Active()[0].Kind != "plague" {
		t.Fatalf("restored active = %+v", r.Active())
	}
	if !r.State().NextRoll.Equal(st.NextRoll) {
		t.Errorf("next roll %v, want %v", r.State().NextRoll, st.NextRoll)
	}
	mods := catalog.Fold(r.Effects())
	if mods.Happiness != -10 || mods.Growth != -0.5 {
		t.Errorf("restored effects = %+v", mods)
	}
}

func TestSchedulerRestoreDropsUnknownEffects(t *testing.T) {
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1}, DefaultEvents())
	dropped := s.Restore(SchedulerState{Active: []ActiveEvent{{
		ID:      "ev-1",
		Kind:    "timber_boom",
		EndsAt:  t0.Add(time.Hour),
		Effects: []catalog.Effect{{Kind: "bogus_kind", Amount: 1}, catalog.ProductionBonus(catalog.Wood, 0.2)},
	}}})

	if len(dropped) != 1 || dropped[0].Kind != "bogus_kind" {
		t.Errorf("dropped = %+v", dropped)
	}
	mods := catalog.Fold(s.Effects())
	if mods.Production[catalog.Wood] != 0.2 {
		t.Errorf("wood bonus = %v, want 0.2", mods.Production[catalog.Wood])
	}
}

func TestActiveEventsAreCopies(t *testing.T) {
	s := NewScheduler(SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1}, DefaultEvents())
	ev, ok := s.Start("timber_boom", t0)
	if !ok {
		t.Fatal("timber_boom did not start")
	}
	ev.Effects[0].Amount = 10
	s.Active()[0].Effects[0].Amount = 10
	s.State().Active[0].Effects[0].Amount = 10

	if got := catalog.Fold(s.Effects()).Production[catalog.Wood]; got != 0.2 {
		t.Errorf("wood bonus = %v after editing copies, want 0.2", got)
	}
}
