package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/combat"
	"github.com/talgya/archipelago/internal/economy"
	"github.com/talgya/archipelago/internal/market"
	"github.com/talgya/archipelago/internal/validation"
	"github.com/talgya/archipelago/internal/world"
)

// StartingResources is the stockpile of a freshly founded city.
var StartingResources = catalog.Amounts{
	catalog.Gold:  500,
	catalog.Wood:  400,
	catalog.Stone: 300,
	catalog.Iron:  150,
	catalog.Food:  200,
}

// TechnologyState is the append-only ordered set of unlocked technologies.
type TechnologyState struct {
	Unlocked []catalog.TechKey `json:"unlocked"`
}

// Has reports whether key is unlocked.
func (t TechnologyState) Has(key catalog.TechKey) bool {
	for _, k := range t.Unlocked {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (t TechnologyState) Clone() TechnologyState {
	return TechnologyState{Unlocked: append([]catalog.TechKey(nil), t.Unlocked...)}
}

// Player owns cities. AllianceID is empty for players outside an alliance.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AllianceID string `json:"alliance_id,omitempty"`
}

// Alliance groups players for the alliance production bonus.
type Alliance struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GameState is the complete serializable game. It is a plain tree of
// values with no cycles.
type GameState struct {
	LastUpdate    time.Time             `json:"last_update"`
	Cities        map[string]*city.City `json:"cities"`
	Technologies  TechnologyState       `json:"technologies"`
	ResearchQueue []city.QueueEntry     `json:"research_queue"`
	Market        market.State          `json:"market"`
	Islands       []world.Island        `json:"islands"`
	WorldEvents   world.SchedulerState  `json:"world_events"`
	Players       map[string]Player     `json:"players"`
	Alliances     map[string]Alliance   `json:"alliances"`
}

// Options configures a new Game.
type Options struct {
	Catalog       *catalog.Catalog // nil means catalog.Default()
	Islands       []world.Island   // nil means a generated archipelago
	Gen           world.GenConfig
	Events        world.SchedulerConfig
	TaxRate       float64
	AllianceBonus float64
	Seed          int64 // Combat jitter seed (0 = random)
	Start         time.Time
}

// DefaultOptions returns the standard game settings starting now.
func DefaultOptions() Options {
	return Options{
		Gen:           world.DefaultGenConfig(),
		Events:        world.DefaultSchedulerConfig(),
		TaxRate:       market.DefaultTaxRate,
		AllianceBonus: 0.05,
		Start:         time.Now().UTC(),
	}
}

// Game owns the whole mutable state. Every mutation runs under one mutex;
// the events it produces are published on the bus after the mutex is
// released.
type Game struct {
	mu sync.Mutex

	catalog  *catalog.Catalog
	calc     *economy.Calculator
	resolver *combat.Resolver
	exchange *market.Exchange
	events   *world.Scheduler
	bus      *Bus
	rng      *rand.Rand

	allianceBonus float64

	lastUpdate time.Time
	cities     map[string]*city.City
	tech       TechnologyState
	research   []city.QueueEntry
	islands    []world.Island
	players    map[string]Player
	alliances  map[string]Alliance

	pending []Event
}

// NewGame creates an empty game.
func NewGame(opts Options) *Game {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	islands := opts.Islands
	if islands == nil {
		islands = world.GenerateIslands(opts.Gen)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}

	g := &Game{
		catalog:       cat,
		calc:          economy.NewCalculator(cat),
		resolver:      combat.NewResolver(cat),
		events:        world.NewScheduler(opts.Events, world.DefaultEvents()),
		bus:           NewBus(),
		rng:           rand.New(rand.NewSource(seed)),
		allianceBonus: opts.AllianceBonus,
		lastUpdate:    start,
		cities:        make(map[string]*city.City),
		islands:       islands,
		players:       make(map[string]Player),
		alliances:     make(map[string]Alliance),
	}
	g.exchange = market.NewExchange(cityLedger{g}, cat.BasePrices, opts.TaxRate)
	return g
}

// Bus returns the event bus.
func (g *Game) Bus() *Bus {
	return g.bus
}

// Catalog returns the tables the game runs on.
func (g *Game) Catalog() *catalog.Catalog {
	return g.catalog
}

// mutate runs fn under the game lock and then publishes whatever fn
// emitted. A rejected action must return its error before emitting.
func (g *Game) mutate(fn func() error) error {
	events, err := g.locked(fn)
	g.bus.Publish(events...)
	return err
}

// locked runs fn under the game lock and hands back the events it emitted.
// The lock is released even if fn panics.
func (g *Game) locked(fn func() error) (events []Event, err error) {
	g.mu.Lock()
	defer func() {
		events = g.pending
		g.pending = nil
		g.mu.Unlock()
	}()
	err = fn()
	return events, err
}

func (g *Game) emit(kind EventKind, cityID string, payload any) {
	g.pending = append(g.pending, Event{Kind: kind, At: g.lastUpdate, CityID: cityID, Payload: payload})
}

// now is the game time actions are stamped with: the time of the last tick.
func (g *Game) now() time.Time {
	return g.lastUpdate
}

// AddAlliance registers an alliance.
func (g *Game) AddAlliance(name string) Alliance {
	a := Alliance{ID: uuid.NewString(), Name: name}
	g.mutate(func() error {
		g.alliances[a.ID] = a
		return nil
	})
	return a
}

// AddPlayer registers or updates a player.
func (g *Game) AddPlayer(p Player) error {
	if p.ID == "" {
		return validation.Errorf(validation.InvalidArgument, "player id is required")
	}
	return g.mutate(func() error {
		if p.AllianceID != "" {
			if _, ok := g.alliances[p.AllianceID]; !ok {
				return validation.Errorf(validation.NotFound, "alliance %s not found", p.AllianceID)
			}
		}
		g.players[p.ID] = p
		return nil
	})
}

// FoundCity creates a city for owner on the given island. An empty island
// ID places it on the first island. Unknown owners are registered.
func (g *Game) FoundCity(name, owner, islandID string) (*city.City, error) {
	if name == "" || owner == "" {
		return nil, validation.Errorf(validation.InvalidArgument, "city name and owner are required")
	}
	var out *city.City
	err := g.mutate(func() error {
		if islandID == "" && len(g.islands) > 0 {
			islandID = g.islands[0].ID
		}
		if _, ok := world.FindIsland(g.islands, islandID); !ok {
			return validation.Errorf(validation.NotFound, "island %s not found", islandID)
		}
		if _, ok := g.players[owner]; !ok {
			g.players[owner] = Player{ID: owner, Name: owner}
		}
		c := city.New(uuid.NewString(), name, owner, islandID)
		c.Resources.Add(StartingResources)
		g.cities[c.ID] = c
		out = c.Clone()
		slog.Info("city founded", "city", c.ID, "name", name, "owner", owner, "island", islandID)
		return nil
	})
	return out, err
}

func (g *Game) city(id string) (*city.City, error) {
	c, ok := g.cities[id]
	if !ok {
		return nil, validation.Errorf(validation.NotFound, "city %s not found", id)
	}
	return c, nil
}

func (g *Game) cityIDs() []string {
	ids := make([]string, 0, len(g.cities))
	for id := range g.cities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// techEffects collects the effects of every unlocked technology.
func (g *Game) techEffects() []catalog.Effect {
	var out []catalog.Effect
	for _, key := range g.tech.Unlocked {
		if t, ok := g.catalog.Technologies[key]; ok {
			out = append(out, t.Effects...)
		}
	}
	return out
}

// globalEffects folds technologies and active world events.
func (g *Game) globalEffects() catalog.Modifiers {
	return catalog.Fold(append(g.techEffects(), g.events.Effects()...))
}

// modifiers derives the global inputs for one city. They are recomputed
// on every read so a completed research applies immediately.
func (g *Game) modifiers(c *city.City) economy.GlobalModifiers {
	mods := economy.GlobalModifiers{Effects: g.globalEffects()}
	if isl, ok := world.FindIsland(g.islands, c.IslandID); ok {
		mods.IslandBonus = isl.Bonus
	}
	if p, ok := g.players[c.Owner]; ok && p.AllianceID != "" {
		mods.AllianceBonus = g.allianceBonus
	}
	return mods
}

// researchSpeed is 1 plus the research speed of every city's buildings
// and of unlocked technologies.
func (g *Game) researchSpeed() float64 {
	bonus := g.globalEffects().ResearchSpeed
	for _, id := range g.cityIDs() {
		bonus += g.calc.BuildingModifiers(g.cities[id]).ResearchSpeed
	}
	return catalog.ResearchSpeedMultiplier(bonus)
}

// queueCapacity is one entry plus any QueueCapacity effects.
func (g *Game) queueCapacity(q catalog.QueueKind) int {
	return 1 + g.globalEffects().QueueCapacity[q]
}

// conditions evaluates prerequisites against one city and the shared
// technology state.
type conditions struct {
	c    *city.City
	tech TechnologyState
}

func (c conditions) BuildingLevel(kind catalog.BuildingKind) int { return c.c.BuildingLevel(kind) }
func (c conditions) HasTech(key catalog.TechKey) bool            { return c.tech.Has(key) }

func (g *Game) checkPrerequisites(c *city.City, reqs []catalog.Prerequisite) error {
	if p, unmet := catalog.FirstUnmet(reqs, conditions{c: c, tech: g.tech}); unmet {
		return validation.Errorf(validation.PrerequisiteUnmet, "requires %s", p)
	}
	return nil
}

func checkAffordable(c *city.City, cost catalog.Amounts) error {
	if r, short, missing := c.Resources.Missing(cost); missing {
		return validation.Errorf(validation.InsufficientResources, "city %s is short %.0f %s", c.ID, short, r)
	}
	return nil
}

// cityLedger settles market reservations against city stockpiles. Order
// owners are city IDs. The exchange only calls it under the game lock.
type cityLedger struct {
	g *Game
}

func (l cityLedger) Reserve(owner string, r catalog.ResourceKind, amount float64) error {
	c, err := l.g.city(owner)
	if err != nil {
		return err
	}
	cost := catalog.Amounts{r: amount}
	if err := checkAffordable(c, cost); err != nil {
		return err
	}
	c.Resources.Deduct(cost)
	return nil
}

func (l cityLedger) Credit(owner string, r catalog.ResourceKind, amount float64) {
	c, ok := l.g.cities[owner]
	if !ok {
		slog.Warn("market credit for missing city dropped", "city", owner, "resource", r, "amount", amount)
		return
	}
	c.Resources[r] += amount
}

// State returns a deep copy of the whole game.
func (g *Game) State() *GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Game) snapshot() *GameState {
	s := &GameState{
		LastUpdate:    g.lastUpdate,
		Cities:        make(map[string]*city.City, len(g.cities)),
		Technologies:  g.tech.Clone(),
		ResearchQueue: city.CloneEntries(g.research),
		Market:        g.exchange.State(),
		Islands:       world.CloneIslands(g.islands),
		WorldEvents:   g.events.State(),
		Players:       make(map[string]Player, len(g.players)),
		Alliances:     make(map[string]Alliance, len(g.alliances)),
	}
	for id, c := range g.cities {
		s.Cities[id] = c.Clone()
	}
	for id, p := range g.players {
		s.Players[id] = p
	}
	for id, a := range g.alliances {
		s.Alliances[id] = a
	}
	return s
}

// Restore replaces the game with s. Resting orders keep their
// reservations as saved; nothing is charged or matched again.
func (g *Game) Restore(s *GameState) error {
	if s == nil {
		return fmt.Errorf("restore: nil state")
	}
	return g.mutate(func() error {
		g.lastUpdate = s.LastUpdate
		g.cities = make(map[string]*city.City, len(s.Cities))
		for id, c := range s.Cities {
			if c == nil {
				continue
			}
			c = c.Clone()
			c.Normalize()
			g.cities[id] = c
		}
		g.tech = TechnologyState{}
		for _, key := range s.Technologies.Unlocked {
			if _, ok := g.catalog.Technologies[key]; !ok {
				slog.Warn("restore: dropping unknown technology", "key", key)
				continue
			}
			if !g.tech.Has(key) {
				g.tech.Unlocked = append(g.tech.Unlocked, key)
			}
		}
		g.research = city.CloneEntries(s.ResearchQueue)
		if len(s.Islands) > 0 {
			g.islands = world.CloneIslands(s.Islands)
		}
		g.exchange.Restore(s.Market)
		for _, e := range g.events.Restore(s.WorldEvents) {
			slog.Warn("restore: dropping world event effect of unknown kind", "kind", e.Kind)
		}
		g.players = make(map[string]Player, len(s.Players))
		for id, p := range s.Players {
			g.players[id] = p
		}
		g.alliances = make(map[string]Alliance, len(s.Alliances))
		for id, a := range s.Alliances {
			g.alliances[id] = a
		}
		slog.Info("game restored", "cities", len(g.cities), "last_update", g.lastUpdate)
		return nil
	})
}
