package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/validation"
	"github.com/talgya/archipelago/internal/world"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	events []Event
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func testOptions() Options {
	return Options{
		Islands: []world.Island{{ID: "isl-01", Name: "Thera", Size: 10, Bonus: catalog.Amounts{}}},
		Events:  world.SchedulerConfig{RollEvery: time.Hour, Chance: 0, MaxActive: 2, Seed: 1},
		TaxRate: 0.05,
		Seed:    1,
		Start:   t0,
	}
}

func newTestGame(t *testing.T) (*Game, *recorder) {
	t.Helper()
	g := NewGame(testOptions())
	rec := &recorder{}
	g.Bus().Subscribe("", func(e Event) { rec.events = append(rec.events, e) })
	return g, rec
}

func found(t *testing.T, g *Game, name string) string {
	t.Helper()
	c, err := g.FoundCity(name, name+"-owner", "isl-01")
	if err != nil {
		t.Fatal(err)
	}
	return c.ID
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestBuildDeductsOnceAndCompletesOnce(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "athens")

	entry, err := g.BuildBuilding(id, catalog.LumberMill)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Target != 1 || entry.TotalDuration != 2*time.Minute {
		t.Errorf("entry = %+v", entry)
	}
	res, _ := g.Resources(id)
	if res[catalog.Wood] != 350 || res[catalog.Stone] != 280 {
		t.Fatalf("after enqueue wood %v stone %v, want 350 / 280", res[catalog.Wood], res[catalog.Stone])
	}

	if _, err := g.BuildBuilding(id, catalog.Farm); !validation.Is(err, validation.QueueFull) {
		t.Fatalf("second build err = %v, want queue_full", err)
	}
	if res2, _ := g.Resources(id); res2[catalog.Wood] != 350 {
		t.Errorf("rejected build changed wood to %v", res2[catalog.Wood])
	}

	g.Tick(t0.Add(time.Minute))
	if c, _ := g.City(id); c.BuildingLevel(catalog.LumberMill) != 0 {
		t.Fatal("completed before its end time")
	}
	g.Tick(t0.Add(2 * time.Minute))
	g.Tick(t0.Add(2 * time.Minute))

	c, _ := g.City(id)
	if c.BuildingLevel(catalog.LumberMill) != 1 || len(c.BuildQueue) != 0 {
		t.Errorf("level %d, queue %d", c.BuildingLevel(catalog.LumberMill), len(c.BuildQueue))
	}
	if n := rec.count(BuildingCompleted); n != 1 {
		t.Errorf("%d completion events, want 1", n)
	}
	if n := rec.count(BuildingStarted); n != 1 {
		t.Errorf("%d start events, want 1", n)
	}
}

func TestRejectedActionsChangeNothing(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "sparta")
	g.cities[id].Resources[catalog.Wood] = 10

	tests := []struct {
		name string
		run  func() error
		code validation.Code
	}{
		{"unknown building", func() error { _, err := g.BuildBuilding(id, "pyramid"); return err }, validation.UnknownKind},
		{"unknown city", func() error { _, err := g.BuildBuilding("nowhere", catalog.Farm); return err }, validation.NotFound},
		{"prerequisite", func() error { _, err := g.BuildBuilding(id, catalog.Temple); return err }, validation.PrerequisiteUnmet},
		{"tech prerequisite", func() error { _, err := g.BuildBuilding(id, catalog.Vineyard); return err }, validation.PrerequisiteUnmet},
		{"cannot afford", func() error { _, err := g.BuildBuilding(id, catalog.LumberMill); return err }, validation.InsufficientResources},
		{"unknown tech", func() error { _, err := g.StartResearch(id, "magic.fireball"); return err }, validation.UnknownKind},
		{"tech needs academy", func() error { _, err := g.StartResearch(id, "economy.crop_rotation"); return err }, validation.PrerequisiteUnmet},
		{"unknown unit", func() error { _, err := g.RecruitUnit(id, "dragon", 1); return err }, validation.UnknownKind},
		{"zero units", func() error { _, err := g.RecruitUnit(id, catalog.Spearman, 0); return err }, validation.InvalidArgument},
		{"locked unit", func() error { _, err := g.RecruitUnit(id, catalog.Horseman, 1); return err }, validation.PrerequisiteUnmet},
		{"needs barracks", func() error { _, err := g.RecruitUnit(id, catalog.Spearman, 1); return err }, validation.PrerequisiteUnmet},
		{"no marketplace", func() error { _, _, err := g.PlaceSellOrder(id, catalog.Wood, 1, 1); return err }, validation.PrerequisiteUnmet},
		{"unknown order", func() error { _, err := g.CancelOrder("x"); return err }, validation.NotFound},
		{"unknown entry", func() error { _, err := g.CancelBuilding(id, "x"); return err }, validation.NotFound},
	}

	before, _ := json.Marshal(g.State())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !validation.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
		})
	}
	after, _ := json.Marshal(g.State())
	if !bytes.Equal(before, after) {
		t.Error("a rejected action changed the game state")
	}
	if len(rec.events) != 0 {
		t.Errorf("rejected actions emitted %v", rec.kinds())
	}
}

func TestProductionThroughTick(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "corinth")
	c := g.cities[id]
	c.SetLevel(catalog.LumberMill, 1)
	c.SetLevel(catalog.Forum, 1)
	c.SetLevel(catalog.Tavern, 1)

	g.Tick(t0.Add(time.Hour))

	res, _ := g.Resources(id)
	if !near(res[catalog.Wood], 410) {
		t.Errorf("wood = %v, want 410", res[catalog.Wood])
	}
	if !near(res[catalog.Gold], 505) {
		t.Errorf("gold = %v, want 505", res[catalog.Gold])
	}
	eco, _ := g.Economy(id)
	if eco.MaxPopulation != 75 || eco.StorageCapacity != 1000 {
		t.Errorf("economy = %+v", eco)
	}
}

func TestCapacityClampAfterTick(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "argos")
	c := g.cities[id]
	c.SetLevel(catalog.LumberMill, 30)
	c.Resources[catalog.Wood] = 990

	g.Tick(t0.Add(24 * time.Hour))
	res, _ := g.Resources(id)
	if res[catalog.Wood] != 1000 {
		t.Errorf("wood = %v, want capped at 1000", res[catalog.Wood])
	}
}

func TestRecruitment(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "thebes")
	g.cities[id].SetLevel(catalog.Barracks, 1)

	entry, err := g.RecruitUnit(id, catalog.Spearman, 3)
	if err != nil {
		t.Fatal(err)
	}
	if entry.TotalDuration != 3*time.Minute {
		t.Errorf("duration = %v", entry.TotalDuration)
	}
	res, _ := g.Resources(id)
	if res[catalog.Wood] != 340 || res[catalog.Iron] != 120 || res[catalog.Gold] != 485 {
		t.Errorf("resources after recruit = %v", res)
	}

	g.Tick(t0.Add(3 * time.Minute))
	c, _ := g.City(id)
	if c.Land[catalog.Spearman] != 3 || len(c.RecruitQueue) != 0 {
		t.Errorf("land = %v, queue = %d", c.Land, len(c.RecruitQueue))
	}
	if rec.count(RecruitmentCompleted) != 1 {
		t.Errorf("events = %v", rec.kinds())
	}
}

func TestResearchUsesSpeedAndUnlocks(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "delphi")
	g.cities[id].SetLevel(catalog.Academy, 1)

	entry, err := g.StartResearch(id, "economy.crop_rotation")
	if err != nil {
		t.Fatal(err)
	}
	// 30 points × 10s ÷ 1.1 rounds to 273s.
	if entry.TotalDuration != 273*time.Second {
		t.Errorf("duration = %v, want 4m33s", entry.TotalDuration)
	}
	if _, err := g.StartResearch(id, "economy.crop_rotation"); !validation.Is(err, validation.AlreadyDone) {
		t.Errorf("duplicate research err = %v", err)
	}
	if _, err := g.StartResearch(id, "economy.saw_blades"); !validation.Is(err, validation.QueueFull) {
		t.Errorf("second research err = %v", err)
	}

	g.Tick(t0.Add(273 * time.Second))
	tech := g.Technologies()
	if !tech.Has("economy.crop_rotation") || len(tech.Queue) != 0 {
		t.Fatalf("technologies = %+v", tech)
	}
	if rec.count(ResearchCompleted) != 1 {
		t.Errorf("events = %v", rec.kinds())
	}
	if _, err := g.StartResearch(id, "economy.crop_rotation"); !validation.Is(err, validation.AlreadyDone) {
		t.Errorf("research after unlock err = %v", err)
	}

	g.cities[id].SetLevel(catalog.Farm, 1)
	eco, _ := g.Economy(id)
	if !near(eco.Production[catalog.Food], 12*1.1) {
		t.Errorf("food with crop rotation = %v, want 13.2", eco.Production[catalog.Food])
	}
}

func TestQueueCapacityAndCancel(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "megara")
	g.tech.Unlocked = append(g.tech.Unlocked, "economy.pulley")
	start, _ := g.Resources(id)

	first, err := g.BuildBuilding(id, catalog.LumberMill)
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.BuildBuilding(id, catalog.LumberMill)
	if err != nil {
		t.Fatalf("second slot: %v", err)
	}
	if second.Target != 2 || second.Cost[catalog.Wood] != 65 || second.Cost[catalog.Stone] != 26 {
		t.Errorf("second entry = %+v", second)
	}
	if _, err := g.BuildBuilding(id, catalog.Farm); !validation.Is(err, validation.QueueFull) {
		t.Errorf("third build err = %v", err)
	}

	if _, err := g.CancelBuilding(id, first.ID); !validation.Is(err, validation.InvalidArgument) {
		t.Errorf("cancel under a later level err = %v", err)
	}
	if _, err := g.CancelBuilding(id, second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CancelBuilding(id, first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CancelBuilding(id, first.ID); !validation.Is(err, validation.NotFound) {
		t.Errorf("double cancel err = %v", err)
	}

	end, _ := g.Resources(id)
	for _, r := range catalog.AllResources() {
		if end[r] != start[r] {
			t.Errorf("%s = %v after cancel, want %v", r, end[r], start[r])
		}
	}
	if rec.count(BuildingCancelled) != 2 {
		t.Errorf("events = %v", rec.kinds())
	}

	// A cancelled entry never completes.
	g.Tick(t0.Add(time.Hour))
	if c, _ := g.City(id); c.BuildingLevel(catalog.LumberMill) != 0 {
		t.Error("cancelled building was built")
	}
}

func TestCancelResearchAndRecruitment(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "elis")
	c := g.cities[id]
	c.SetLevel(catalog.Academy, 1)
	c.SetLevel(catalog.Barracks, 1)
	start, _ := g.Resources(id)

	r, err := g.StartResearch(id, "science.paper")
	if err != nil {
		t.Fatal(err)
	}
	u, err := g.RecruitUnit(id, catalog.Spearman, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.CancelResearch(r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CancelRecruitment(id, u.ID); err != nil {
		t.Fatal(err)
	}
	end, _ := g.Resources(id)
	for _, k := range catalog.AllResources() {
		if end[k] != start[k] {
			t.Errorf("%s = %v, want %v", k, end[k], start[k])
		}
	}
}

func TestMarketThroughGame(t *testing.T) {
	g, rec := newTestGame(t)
	seller := found(t, g, "miletus")
	buyer := found(t, g, "ephesus")
	g.cities[seller].SetLevel(catalog.Marketplace, 1)
	g.cities[buyer].SetLevel(catalog.Marketplace, 1)

	if _, _, err := g.PlaceSellOrder(seller, catalog.Wood, 100, 3); err != nil {
		t.Fatal(err)
	}
	_, trades, err := g.PlaceBuyOrder(buyer, catalog.Wood, 100, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].Price != 4 {
		t.Fatalf("trades = %+v", trades)
	}

	s, _ := g.Resources(seller)
	b, _ := g.Resources(buyer)
	if s[catalog.Wood] != 300 || !near(s[catalog.Gold], 880) {
		t.Errorf("seller = %v", s)
	}
	if b[catalog.Wood] != 500 || !near(b[catalog.Gold], 100) {
		t.Errorf("buyer = %v", b)
	}
	if rec.count(OrderPlaced) != 2 || rec.count(TradeExecuted) != 1 {
		t.Errorf("events = %v", rec.kinds())
	}
	if st := g.Status(); st.TaxCollected != 20 || st.OpenOrders != 0 {
		t.Errorf("status = %+v", st)
	}

	if _, _, err := g.PlaceBuyOrder(buyer, catalog.Stone, 100, 5); !validation.Is(err, validation.InsufficientResources) {
		t.Errorf("unaffordable buy err = %v", err)
	}
}

func TestAttackCommitsResult(t *testing.T) {
	g, rec := newTestGame(t)
	att := found(t, g, "macedon")
	def := found(t, g, "athens")
	g.cities[att].Land[catalog.Swordsman] = 20
	g.cities[def].Land[catalog.Spearman] = 5
	g.cities[def].Resources[catalog.Gold] = 900

	army := city.UnitStack{catalog.Swordsman: 20}
	before, _ := json.Marshal(g.State())
	preview, err := g.CalculateCombatOutcome(att, def, army)
	if err != nil {
		t.Fatal(err)
	}
	if after, _ := json.Marshal(g.State()); !bytes.Equal(before, after) {
		t.Fatal("preview changed the game")
	}
	// 280 attack against 5 × 12 × 0.5 moral.
	if !preview.Victory || preview.AttackPower != 280 || preview.DefensePower != 30 {
		t.Errorf("preview = %+v", preview)
	}

	res, err := g.Attack(att, def, army)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Victory || res.Loot[catalog.Gold] != 160 {
		t.Fatalf("result = %+v", res)
	}
	a, _ := g.City(att)
	d, _ := g.City(def)
	if a.Land[catalog.Swordsman] != 20-res.AttackerLosses[catalog.Swordsman] {
		t.Errorf("attacker swordsmen = %d, losses %v", a.Land[catalog.Swordsman], res.AttackerLosses)
	}
	if d.Land[catalog.Spearman] != 5-res.DefenderLosses[catalog.Spearman] {
		t.Errorf("defender spearmen = %d, losses %v", d.Land[catalog.Spearman], res.DefenderLosses)
	}
	if a.Resources[catalog.Gold] != 660 || d.Resources[catalog.Gold] != 740 {
		t.Errorf("gold after loot: attacker %v defender %v", a.Resources[catalog.Gold], d.Resources[catalog.Gold])
	}
	if rec.count(CombatResolved) != 1 {
		t.Errorf("events = %v", rec.kinds())
	}

	if _, err := g.Attack(att, def, city.UnitStack{catalog.Swordsman: 100}); !validation.Is(err, validation.InsufficientResources) {
		t.Errorf("oversized army err = %v", err)
	}
	if _, err := g.Attack(att, att, army); !validation.Is(err, validation.InvalidArgument) {
		t.Errorf("self attack err = %v", err)
	}
}

func TestTickEmitsGameUpdatedLast(t *testing.T) {
	g, rec := newTestGame(t)
	id := found(t, g, "rhodes")
	if _, err := g.BuildBuilding(id, catalog.Farm); err != nil {
		t.Fatal(err)
	}
	if _, err := g.StartWorldEvent("festival_season"); err != nil {
		t.Fatal(err)
	}
	rec.events = nil

	g.Tick(t0.Add(3 * time.Hour))

	kinds := rec.kinds()
	if len(kinds) != 3 {
		t.Fatalf("events = %v", kinds)
	}
	want := []EventKind{BuildingCompleted, WorldEventCompleted, GameUpdated}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	up := rec.events[2].Payload.(Updated)
	if up.Delta != 3*time.Hour || up.Snapshot == nil || !up.Snapshot.LastUpdate.Equal(t0.Add(3*time.Hour)) {
		t.Errorf("update = %+v", up)
	}
}

func TestTickBackwardsIsNoop(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "samos")
	g.Tick(t0.Add(time.Hour))
	before, _ := g.Resources(id)
	g.Tick(t0)
	after, _ := g.Resources(id)
	if before[catalog.Gold] != after[catalog.Gold] || !g.LastUpdate().Equal(t0.Add(time.Hour)) {
		t.Error("going back in time changed the game")
	}
}

func TestStateRoundTrip(t *testing.T) {
	g, _ := newTestGame(t)
	a := found(t, g, "knossos")
	b := found(t, g, "phaistos")
	g.cities[a].SetLevel(catalog.Marketplace, 1)
	g.cities[a].SetLevel(catalog.Academy, 1)
	g.cities[a].Land[catalog.Archer] = 4
	if _, err := g.BuildBuilding(b, catalog.Quarry); err != nil {
		t.Fatal(err)
	}
	if _, err := g.StartResearch(a, "science.paper"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.PlaceSellOrder(a, catalog.Stone, 50, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := g.StartWorldEvent("timber_boom"); err != nil {
		t.Fatal(err)
	}
	g.Tick(t0.Add(30 * time.Second))

	data, err := json.Marshal(g.State())
	if err != nil {
		t.Fatal(err)
	}
	var decoded GameState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	r := NewGame(testOptions())
	if err := r.Restore(&decoded); err != nil {
		t.Fatal(err)
	}
	again, _ := json.Marshal(r.State())
	if !bytes.Equal(data, again) {
		t.Errorf("round trip differs:\n%s\n%s", data, again)
	}

	// The restored game keeps running: the quarry finishes.
	r.Tick(t0.Add(time.Hour))
	if c, _ := r.City(b); c.BuildingLevel(catalog.Quarry) != 1 {
		t.Error("restored queue did not complete")
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "naxos")
	g.cities[id].SetLevel(catalog.LumberMill, 1)
	g.cities[id].SetLevel(catalog.Academy, 1)
	if _, err := g.BuildBuilding(id, catalog.Farm); err != nil {
		t.Fatal(err)
	}
	if _, err := g.StartResearch(id, "economy.crop_rotation"); err != nil {
		t.Fatal(err)
	}
	ev, err := g.StartWorldEvent("timber_boom")
	if err != nil {
		t.Fatal(err)
	}
	g.Tick(t0)

	econ, _ := g.Economy(id)
	wantWood := econ.Production[catalog.Wood]
	want, _ := json.Marshal(g.State())

	g.Bus().Subscribe(GameUpdated, func(e Event) {
		s := e.Payload.(Updated).Snapshot
		s.Islands[0].Bonus[catalog.Wood] = 5
		s.Cities[id].Resources[catalog.Gold] = 1e9
	})
	g.Bus().Subscribe(BuildingStarted, func(e Event) {
		e.Payload.(city.QueueEntry).Cost[catalog.Wood] = 1e9
	})

	ev.Effects[0].Amount = 10
	g.Islands()[0].Bonus[catalog.Wood] = 9
	s := g.State()
	s.Islands[0].Bonus[catalog.Wood] = 99
	s.WorldEvents.Active[0].Effects[0].Amount = 10
	s.Cities[id].BuildQueue[0].Cost[catalog.Wood] = 1e9
	s.ResearchQueue[0].Cost[catalog.Gold] = 1e9
	s.Technologies.Unlocked = append(s.Technologies.Unlocked, "economy.saw_blades")
	g.Status().WorldEvents[0].Effects[0].Amount = 10
	c, _ := g.City(id)
	c.BuildQueue[0].Cost[catalog.Stone] = 1e9
	econ.IslandBonus[catalog.Wood] = 7
	g.Tick(t0)

	if econ, _ := g.Economy(id); !near(econ.Production[catalog.Wood], wantWood) {
		t.Errorf("wood/h = %v after editing copies, want %v", econ.Production[catalog.Wood], wantWood)
	}
	if got, _ := json.Marshal(g.State()); !bytes.Equal(got, want) {
		t.Errorf("state changed through a copy:\n%s\n%s", want, got)
	}
}

func TestStartedEventDoesNotShareCost(t *testing.T) {
	g, _ := newTestGame(t)
	id := found(t, g, "paros")
	g.Bus().Subscribe(BuildingStarted, func(e Event) {
		e.Payload.(city.QueueEntry).Cost[catalog.Wood] = 1e9
	})
	entry, err := g.BuildBuilding(id, catalog.Farm)
	if err != nil {
		t.Fatal(err)
	}
	entry.Cost[catalog.Stone] = 1e9

	stored, _ := g.City(id)
	if got := stored.BuildQueue[0].Cost; got[catalog.Wood] == 1e9 || got[catalog.Stone] == 1e9 {
		t.Errorf("stored cost = %v", got)
	}
}

func TestRestoreDropsUnknownKinds(t *testing.T) {
	g, _ := newTestGame(t)
	found(t, g, "melos")
	s := g.State()
	s.Technologies.Unlocked = []catalog.TechKey{"economy.crop_rotation", "bogus.tech"}
	s.WorldEvents.Active = []world.ActiveEvent{{
		ID:      "ev-1",
		Kind:    "timber_boom",
		EndsAt:  t0.Add(time.Hour),
		Effects: []catalog.Effect{{Kind: "bogus_kind", Amount: 1}, catalog.ProductionBonus(catalog.Wood, 0.2)},
	}}

	r := NewGame(testOptions())
	if err := r.Restore(s); err != nil {
		t.Fatal(err)
	}
	r.Tick(t0.Add(time.Minute))

	if got := r.Technologies().Unlocked; len(got) != 1 || got[0] != "economy.crop_rotation" {
		t.Errorf("unlocked = %v", got)
	}
	if evs := r.Status().WorldEvents; len(evs) != 1 || len(evs[0].Effects) != 1 {
		t.Errorf("world events = %+v", evs)
	}
}

func TestLockReleasedWhenMutationPanics(t *testing.T) {
	g, _ := newTestGame(t)
	func() {
		defer func() { recover() }()
		g.mutate(func() error { panic("boom") })
	}()

	done := make(chan struct{})
	go func() {
		g.LastUpdate()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("game lock still held after a panicking mutation")
	}
}
