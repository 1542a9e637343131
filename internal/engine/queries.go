package engine

import (
	"time"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/market"
	"github.com/talgya/archipelago/internal/validation"
	"github.com/talgya/archipelago/internal/world"
)

// LastUpdate returns the game time of the last tick.
func (g *Game) LastUpdate() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUpdate
}

// City returns a copy of one city.
func (g *Game) City(id string) (*city.City, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.city(id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Cities returns copies of every city ordered by ID.
func (g *Game) Cities() []*city.City {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*city.City, 0, len(g.cities))
	for _, id := range g.cityIDs() {
		out = append(out, g.cities[id].Clone())
	}
	return out
}

// Resources returns a copy of a city's stockpile.
func (g *Game) Resources(cityID string) (city.ResourcePool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.city(cityID)
	if err != nil {
		return nil, err
	}
	return c.Resources.Clone(), nil
}

// CityEconomy is the derived economy of one city at the last tick.
type CityEconomy struct {
	CityID          string            `json:"city_id"`
	Production      city.ResourcePool `json:"production"` // Per hour
	StorageCapacity float64           `json:"storage_capacity"`
	Happiness       float64           `json:"happiness"`
	Population      float64           `json:"population"`
	MaxPopulation   float64           `json:"max_population"`
	IslandBonus     catalog.Amounts   `json:"island_bonus"`
}

// Economy reports a city's production rates, storage and happiness.
func (g *Game) Economy(cityID string) (CityEconomy, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.city(cityID)
	if err != nil {
		return CityEconomy{}, err
	}
	mods := g.modifiers(c)
	return CityEconomy{
		CityID:          c.ID,
		Production:      g.calc.ComputeProduction(c, mods),
		StorageCapacity: g.calc.StorageCapacity(c, mods),
		Happiness:       g.calc.Happiness(c, mods),
		Population:      c.Population,
		MaxPopulation:   g.calc.MaxPopulation(c),
		IslandBonus:     mods.IslandBonus.Clone(),
	}, nil
}

// Research is the shared technology progress.
type Research struct {
	TechnologyState
	Queue []city.QueueEntry `json:"queue"`
	Speed float64           `json:"speed"`
}

// Technologies returns the unlocked technologies and the research queue.
func (g *Game) Technologies() Research {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Research{
		TechnologyState: g.tech.Clone(),
		Queue:           city.CloneEntries(g.research),
		Speed:           g.researchSpeed(),
	}
}

// MarketView is the book and price of one resource.
type MarketView struct {
	Depth   market.Depth `json:"depth"`
	Price   float64      `json:"price"`
	History []float64    `json:"history"`
}

// Market returns the current book and price of r.
func (g *Game) Market(r catalog.ResourceKind) (MarketView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, err := g.exchange.Depth(r)
	if err != nil {
		return MarketView{}, err
	}
	return MarketView{Depth: d, Price: g.exchange.Price(r), History: g.exchange.History(r)}, nil
}

// Order returns a resting order.
func (g *Game) Order(id string) (market.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.exchange.Order(id)
	if !ok {
		return market.Order{}, validation.Errorf(validation.NotFound, "order %s not found", id)
	}
	return o, nil
}

// Islands returns the archipelago.
func (g *Game) Islands() []world.Island {
	g.mu.Lock()
	defer g.mu.Unlock()
	return world.CloneIslands(g.islands)
}

// Status is a compact summary of the game.
type Status struct {
	LastUpdate   time.Time           `json:"last_update"`
	Cities       int                 `json:"cities"`
	Players      int                 `json:"players"`
	Population   float64             `json:"population"`
	Unlocked     int                 `json:"technologies"`
	Researching  int                 `json:"researching"`
	OpenOrders   int                 `json:"open_orders"`
	TaxCollected float64             `json:"tax_collected"`
	WorldEvents  []world.ActiveEvent `json:"world_events"`
}

// Status summarizes the game.
func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Status{
		LastUpdate:   g.lastUpdate,
		Cities:       len(g.cities),
		Players:      len(g.players),
		Unlocked:     len(g.tech.Unlocked),
		Researching:  len(g.research),
		OpenOrders:   len(g.exchange.Orders()),
		TaxCollected: g.exchange.TaxCollected(),
		WorldEvents:  g.events.Active(),
	}
	for _, c := range g.cities {
		s.Population += c.Population
	}
	return s
}

// StartWorldEvent forces a world event to begin at the current game time.
func (g *Game) StartWorldEvent(kind string) (world.ActiveEvent, error) {
	var ev world.ActiveEvent
	err := g.mutate(func() error {
		var ok bool
		ev, ok = g.events.Start(kind, g.now())
		if !ok {
			return validation.Errorf(validation.InvalidArgument, "world event %q is unknown or already active", kind)
		}
		g.emit(WorldEventStarted, "", ev)
		return nil
	})
	return ev, err
}
