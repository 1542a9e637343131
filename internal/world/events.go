package world

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/archipelago/internal/catalog"
)

// EventDef is an ambient world event that can be rolled.
type EventDef struct {
	Kind     string           `json:"kind"`
	Name     string           `json:"name"`
	Duration time.Duration    `json:"duration"`
	Weight   float64          `json:"weight"`
	Effects  []catalog.Effect `json:"effects"`
}

// DefaultEvents is the built-in event table.
func DefaultEvents() []EventDef {
	return []EventDef{
		{Kind: "bountiful_harvest", Name: "Bountiful Harvest", Duration: 4 * time.Hour, Weight: 3,
			Effects: []catalog.Effect{catalog.ProductionBonus(catalog.Food, 0.25)}},
		{Kind: "timber_boom", Name: "Timber Boom", Duration: 3 * time.Hour, Weight: 2,
			Effects: []catalog.Effect{catalog.ProductionBonus(catalog.Wood, 0.2)}},
		{Kind: "mine_collapse", Name: "Mine Collapse", Duration: 2 * time.Hour, Weight: 1,
			Effects: []catalog.Effect{catalog.ProductionBonus(catalog.Iron, -0.2)}},
		{Kind: "plague", Name: "Plague", Duration: 6 * time.Hour, Weight: 1,
			Effects: []catalog.Effect{catalog.GrowthBonus(-0.5), catalog.HappinessBonus(-10)}},
		{Kind: "festival_season", Name: "Festival Season", Duration: 2 * time.Hour, Weight: 2,
			Effects: []catalog.Effect{catalog.HappinessBonus(10)}},
		{Kind: "good_vintage", Name: "Good Vintage", Duration: 5 * time.Hour, Weight: 1,
			Effects: []catalog.Effect{catalog.ProductionBonus(catalog.Wine, 0.3)}},
	}
}

// ActiveEvent is a world event currently in force.
type ActiveEvent struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind"`
	Name      string           `json:"name"`
	StartedAt time.Time        `json:"started_at"`
	EndsAt    time.Time        `json:"ends_at"`
	Effects   []catalog.Effect `json:"effects"`
}

// Clone returns a copy that shares no effects with ev.
func (ev ActiveEvent) Clone() ActiveEvent {
	ev.Effects = append([]catalog.Effect(nil), ev.Effects...)
	return ev
}

// SchedulerConfig controls how often events are rolled.
type SchedulerConfig struct {
	RollEvery time.Duration // Game time between rolls
	Chance    float64       // Probability a roll starts an event
	MaxActive int
	Seed      int64
}

// DefaultSchedulerConfig rolls once an hour with a one in four chance.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{RollEvery: time.Hour, Chance: 0.25, MaxActive: 2}
}

// maxRollsPerAdvance bounds the catch-up work after a long gap.
const maxRollsPerAdvance = 256

// Scheduler starts and expires world events. It is not safe for
// concurrent use.
type Scheduler struct {
	cfg      SchedulerConfig
	defs     []EventDef
	rng      *rand.Rand
	active   []ActiveEvent
	nextRoll time.Time
}

// SchedulerState is the serializable form of a Scheduler.
type SchedulerState struct {
	Active   []ActiveEvent `json:"active"`
	NextRoll time.Time     `json:"next_roll"`
}

// NewScheduler creates a scheduler over defs.
func NewScheduler(cfg SchedulerConfig, defs []EventDef) *Scheduler {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.RollEvery <= 0 {
		cfg.RollEvery = time.Hour
	}
	return &Scheduler{cfg: cfg, defs: defs, rng: rand.New(rand.NewSource(seed))}
}

// Advance expires events that ended by now and rolls for new ones at every
// roll boundary passed since the last call. Boundaries are processed in
// order so a long gap behaves like many short ticks.
func (s *Scheduler) Advance(now time.Time) (started, completed []ActiveEvent) {
	if s.nextRoll.IsZero() {
		s.nextRoll = now.Add(s.cfg.RollEvery)
	}
	rolls := 0
	for !s.nextRoll.After(now) && rolls < maxRollsPerAdvance {
		at := s.nextRoll
		completed = append(completed, s.expire(at)...)
		if ev, ok := s.roll(at); ok {
			started = append(started, ev)
		}
		s.nextRoll = s.nextRoll.Add(s.cfg.RollEvery)
		rolls++
	}
	if s.nextRoll.Before(now) {
		s.nextRoll = now.Add(s.cfg.RollEvery)
	}
	completed = append(completed, s.expire(now)...)
	return started, completed
}

func (s *Scheduler) expire(at time.Time) []ActiveEvent {
	var done []ActiveEvent
	kept := s.active[:0]
	for _, ev := range s.active {
		if !at.Before(ev.EndsAt) {
			done = append(done, ev)
			continue
		}
		kept = append(kept, ev)
	}
	s.active = kept
	return done
}

func (s *Scheduler) roll(at time.Time) (ActiveEvent, bool) {
	if len(s.defs) == 0 || len(s.active) >= s.cfg.MaxActive {
		return ActiveEvent{}, false
	}
	if s.rng.Float64() >= s.cfg.Chance {
		return ActiveEvent{}, false
	}

	var candidates []EventDef
	total := 0.0
	for _, d := range s.defs {
		if !s.isActive(d.Kind) && d.Weight > 0 {
			candidates = append(candidates, d)
			total += d.Weight
		}
	}
	if total == 0 {
		return ActiveEvent{}, false
	}
	pick := s.rng.Float64() * total
	def := candidates[len(candidates)-1]
	for _, d := range candidates {
		if pick < d.Weight {
			def = d
			break
		}
		pick -= d.Weight
	}

	return s.begin(def, at), true
}

func (s *Scheduler) begin(def EventDef, at time.Time) ActiveEvent {
	ev := ActiveEvent{
		ID:        uuid.NewString(),
		Kind:      def.Kind,
		Name:      def.Name,
		StartedAt: at,
		EndsAt:    at.Add(def.Duration),
		Effects:   append([]catalog.Effect(nil), def.Effects...),
	}
	s.active = append(s.active, ev)
	return ev.Clone()
}

func (s *Scheduler) isActive(kind string) bool {
	for _, ev := range s.active {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// Start forces an event of kind to begin at now. It reports false for an
// unknown or already active kind.
func (s *Scheduler) Start(kind string, now time.Time) (ActiveEvent, bool) {
	if s.isActive(kind) {
		return ActiveEvent{}, false
	}
	for _, d := range s.defs {
		if d.Kind != kind {
			continue
		}
		return s.begin(d, now), true
	}
	return ActiveEvent{}, false
}

// Effects returns the effects of every active event.
func (s *Scheduler) Effects() []catalog.Effect {
	var out []catalog.Effect
	for _, ev := range s.active {
		out = append(out, ev.Effects...)
	}
	return out
}

// Active returns a copy of the active events ordered by end time.
func (s *Scheduler) Active() []ActiveEvent {
	out := make([]ActiveEvent, len(s.active))
	for i, ev := range s.active {
		out[i] = ev.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out
}

// State captures the active events and the next roll time.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState{Active: s.Active(), NextRoll: s.nextRoll}
}

// Restore replaces the scheduler's state. Effects of a kind Fold does not
// handle are dropped and returned.
func (s *Scheduler) Restore(st SchedulerState) (dropped []catalog.Effect) {
	s.active = make([]ActiveEvent, 0, len(st.Active))
	for _, ev := range st.Active {
		kept := make([]catalog.Effect, 0, len(ev.Effects))
		for _, e := range ev.Effects {
			if !e.Kind.Known() {
				dropped = append(dropped, e)
				continue
			}
			kept = append(kept, e)
		}
		ev.Effects = kept
		s.active = append(s.active, ev)
	}
	s.nextRoll = st.NextRoll
	return dropped
}
