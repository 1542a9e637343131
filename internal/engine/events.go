package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/combat"
)

// EventKind names an entry in the game's event feed.
type EventKind string

const (
	BuildingStarted      EventKind = "building_started"
	BuildingCompleted    EventKind = "building_completed"
	BuildingCancelled    EventKind = "building_cancelled"
	ResearchStarted      EventKind = "research_started"
	ResearchCompleted    EventKind = "research_completed"
	ResearchCancelled    EventKind = "research_cancelled"
	RecruitmentStarted   EventKind = "recruitment_started"
	RecruitmentCompleted EventKind = "recruitment_completed"
	RecruitmentCancelled EventKind = "recruitment_cancelled"
	TradeExecuted        EventKind = "trade_executed"
	OrderPlaced          EventKind = "order_placed"
	OrderCancelled       EventKind = "order_cancelled"
	WorldEventStarted    EventKind = "world_event_started"
	WorldEventCompleted  EventKind = "world_event_completed"
	CombatResolved       EventKind = "combat_resolved"
	GameUpdated          EventKind = "game_updated"
)

// Event is one entry in the feed. Payload holds a concrete value per kind:
// city.QueueEntry for queue events, market.Trade, market.Order,
// market.Refund, world.ActiveEvent, CombatReport or Updated.
type Event struct {
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
	CityID  string    `json:"city_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// CombatReport is the payload of CombatResolved.
type CombatReport struct {
	AttackerCityID string         `json:"attacker_city_id"`
	DefenderCityID string         `json:"defender_city_id"`
	Army           city.UnitStack `json:"army"`
	Result         combat.Result  `json:"result"`
}

// Updated is the payload of GameUpdated. Snapshot is a deep copy taken at
// the end of the tick and stays in process.
type Updated struct {
	Delta    time.Duration `json:"delta"`
	Cities   int           `json:"cities"`
	Snapshot *GameState    `json:"-"`
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind EventKind
	fn   Handler
}

// Bus fans events out to subscribers synchronously, in registration order.
// Publishing from inside a handler queues the event behind the one being
// delivered instead of recursing, and events published concurrently are
// delivered one at a time by whichever goroutine is already dispatching.
type Bus struct {
	mu          sync.Mutex
	subs        []subscription
	nextID      uint64
	pending     []Event
	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of kind, or for every event when kind
// is empty. The returned func removes the subscription.
func (b *Bus) Subscribe(kind EventKind, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers events in order.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, events...)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	for len(b.pending) > 0 {
		ev := b.pending[0]
		b.pending = b.pending[1:]
		subs := append([]subscription(nil), b.subs...)
		b.mu.Unlock()
		for _, s := range subs {
			if s.kind == "" || s.kind == ev.Kind {
				deliver(s.fn, ev)
			}
		}
		b.mu.Lock()
	}
	b.pending = nil
	b.dispatching = false
	b.mu.Unlock()
}

// deliver calls fn, logging a panic instead of letting it stop the
// dispatch loop.
func deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "kind", ev.Kind, "panic", r)
		}
	}()
	fn(ev)
}
