package catalog

import (
	"math"
	"time"
)

// BuildingKind identifies a building type. A city holds at most one of each.
type BuildingKind string

const (
	TownHall    BuildingKind = "town_hall"
	Forum       BuildingKind = "forum"
	Warehouse   BuildingKind = "warehouse"
	LumberMill  BuildingKind = "lumber_mill"
	Quarry      BuildingKind = "quarry"
	Mine        BuildingKind = "mine"
	Farm        BuildingKind = "farm"
	Vineyard    BuildingKind = "vineyard"
	Tavern      BuildingKind = "tavern"
	Temple      BuildingKind = "temple"
	Academy     BuildingKind = "academy"
	Library     BuildingKind = "library"
	Barracks    BuildingKind = "barracks"
	Shipyard    BuildingKind = "shipyard"
	Wall        BuildingKind = "wall"
	Marketplace BuildingKind = "marketplace"
)

// AllBuildingKinds returns every building kind in deterministic order.
func AllBuildingKinds() []BuildingKind {
	return []BuildingKind{
		TownHall, Forum, Warehouse,
		LumberMill, Quarry, Mine, Farm, Vineyard,
		Tavern, Temple, Academy, Library,
		Barracks, Shipyard, Wall, Marketplace,
	}
}

// Building is the static definition of a building type.
type Building struct {
	Kind       BuildingKind   `json:"kind" yaml:"kind"`
	Name       string         `json:"name" yaml:"name"`
	BaseCost   Amounts        `json:"base_cost" yaml:"base_cost"`
	CostGrowth float64        `json:"cost_growth" yaml:"cost_growth"` // Per-level multiplier, 1.2–1.8
	BaseTime   time.Duration  `json:"base_time" yaml:"base_time"`
	TimeGrowth float64        `json:"time_growth" yaml:"time_growth"`
	MaxLevel   int            `json:"max_level" yaml:"max_level"`
	Requires   []Prerequisite `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Production buildings output Produces at BaseRate per hour at level 1.
	Produces ResourceKind `json:"produces,omitempty" yaml:"produces,omitempty"`
	BaseRate float64      `json:"base_rate,omitempty" yaml:"base_rate,omitempty"`

	// PerLevel effects are multiplied by the current level.
	PerLevel []Effect `json:"per_level,omitempty" yaml:"per_level,omitempty"`
}

// CostAt returns the cost of upgrading to level.
func (b *Building) CostAt(level int) Amounts {
	if level < 1 {
		level = 1
	}
	f := math.Pow(b.CostGrowth, float64(level-1))
	out := make(Amounts, len(b.BaseCost))
	for r, v := range b.BaseCost {
		out[r] = math.Floor(v * f)
	}
	return out
}

// TimeAt returns the construction time for upgrading to level.
func (b *Building) TimeAt(level int) time.Duration {
	if level < 1 {
		level = 1
	}
	f := math.Pow(b.TimeGrowth, float64(level-1))
	return time.Duration(float64(b.BaseTime) * f).Round(time.Second)
}

// RequirementsAt returns the prerequisites for upgrading to level: the
// building's own list plus a town hall gate for anything past level 1.
func (b *Building) RequirementsAt(level int) []Prerequisite {
	reqs := append([]Prerequisite(nil), b.Requires...)
	if b.Kind != TownHall && level > 1 {
		reqs = append(reqs, NeedsBuilding(TownHall, (level+1)/2))
	}
	return reqs
}

// EffectsAt returns the effects contributed at the given level.
func (b *Building) EffectsAt(level int) []Effect {
	if level <= 0 {
		return nil
	}
	out := make([]Effect, 0, len(b.PerLevel))
	for _, e := range b.PerLevel {
		if e.Kind != EffectUnlockUnit {
			e.Amount *= float64(level)
		}
		out = append(out, e)
	}
	return out
}

func defaultBuildings() map[BuildingKind]*Building {
	list := []*Building{
		{
			Kind: TownHall, Name: "Town Hall",
			BaseCost:   Amounts{Wood: 120, Stone: 80},
			CostGrowth: 1.6, BaseTime: 10 * time.Minute, TimeGrowth: 1.5, MaxLevel: 20,
			Produces: Gold, BaseRate: 5,
		},
		{
			Kind: Forum, Name: "Forum",
			BaseCost:   Amounts{Wood: 80, Stone: 40},
			CostGrowth: 1.4, BaseTime: 6 * time.Minute, TimeGrowth: 1.35, MaxLevel: 20,
			PerLevel: []Effect{PopulationCap(25)},
		},
		{
			Kind: Warehouse, Name: "Warehouse",
			BaseCost:   Amounts{Wood: 100, Stone: 60},
			CostGrowth: 1.5, BaseTime: 5 * time.Minute, TimeGrowth: 1.4, MaxLevel: 20,
		},
		{
			Kind: LumberMill, Name: "Lumber Mill",
			BaseCost:   Amounts{Wood: 50, Stone: 20},
			CostGrowth: 1.3, BaseTime: 2 * time.Minute, TimeGrowth: 1.3, MaxLevel: 30,
			Produces: Wood, BaseRate: 10,
		},
		{
			Kind: Quarry, Name: "Quarry",
			BaseCost:   Amounts{Wood: 60, Stone: 10},
			CostGrowth: 1.3, BaseTime: 2 * time.Minute, TimeGrowth: 1.3, MaxLevel: 30,
			Produces: Stone, BaseRate: 8,
		},
		{
			Kind: Mine, Name: "Mine",
			BaseCost:   Amounts{Wood: 70, Stone: 40},
			CostGrowth: 1.35, BaseTime: 3 * time.Minute, TimeGrowth: 1.3, MaxLevel: 30,
			Produces: Iron, BaseRate: 6,
		},
		{
			Kind: Farm, Name: "Farm",
			BaseCost:   Amounts{Wood: 40, Stone: 20},
			CostGrowth: 1.25, BaseTime: 2 * time.Minute, TimeGrowth: 1.25, MaxLevel: 30,
			Produces: Food, BaseRate: 12,
		},
		{
			Kind: Vineyard, Name: "Vineyard",
			BaseCost:   Amounts{Wood: 90, Stone: 60, Gold: 50},
			CostGrowth: 1.45, BaseTime: 4 * time.Minute, TimeGrowth: 1.35, MaxLevel: 20,
			Requires: []Prerequisite{NeedsTech("economy.viticulture")},
			Produces: Wine, BaseRate: 4,
		},
		{
			Kind: Tavern, Name: "Tavern",
			BaseCost:   Amounts{Wood: 100, Stone: 40, Wine: 20},
			CostGrowth: 1.5, BaseTime: 5 * time.Minute, TimeGrowth: 1.4, MaxLevel: 10,
			PerLevel: []Effect{HappinessBonus(10)},
		},
		{
			Kind: Temple, Name: "Temple",
			BaseCost:   Amounts{Stone: 150, Gold: 100},
			CostGrowth: 1.7, BaseTime: 8 * time.Minute, TimeGrowth: 1.45, MaxLevel: 10,
			Requires: []Prerequisite{NeedsBuilding(TownHall, 3)},
			PerLevel: []Effect{HappinessBonus(5)},
		},
		{
			Kind: Academy, Name: "Academy",
			BaseCost:   Amounts{Wood: 150, Stone: 100},
			CostGrowth: 1.6, BaseTime: 8 * time.Minute, TimeGrowth: 1.45, MaxLevel: 15,
			PerLevel: []Effect{ResearchSpeed(0.1)},
		},
		{
			Kind: Library, Name: "Library",
			BaseCost:   Amounts{Wood: 200, Stone: 180, Gold: 100},
			CostGrowth: 1.8, BaseTime: 12 * time.Minute, TimeGrowth: 1.5, MaxLevel: 10,
			Requires: []Prerequisite{NeedsBuilding(Academy, 2)},
			PerLevel: []Effect{ResearchSpeed(0.2)},
		},
		{
			Kind: Barracks, Name: "Barracks",
			BaseCost:   Amounts{Wood: 120, Stone: 60, Iron: 40},
			CostGrowth: 1.4, BaseTime: 6 * time.Minute, TimeGrowth: 1.35, MaxLevel: 20,
		},
		{
			Kind: Shipyard, Name: "Shipyard",
			BaseCost:   Amounts{Wood: 250, Stone: 50, Iron: 60},
			CostGrowth: 1.5, BaseTime: 10 * time.Minute, TimeGrowth: 1.4, MaxLevel: 20,
			Requires: []Prerequisite{NeedsTech("seafaring.shipbuilding")},
		},
		{
			Kind: Wall, Name: "City Wall",
			BaseCost:   Amounts{Stone: 200, Iron: 20},
			CostGrowth: 1.55, BaseTime: 8 * time.Minute, TimeGrowth: 1.4, MaxLevel: 20,
			PerLevel: []Effect{DefenseFlat(100)},
		},
		{
			Kind: Marketplace, Name: "Marketplace",
			BaseCost:   Amounts{Wood: 150, Stone: 100},
			CostGrowth: 1.45, BaseTime: 6 * time.Minute, TimeGrowth: 1.35, MaxLevel: 10,
		},
	}
	out := make(map[BuildingKind]*Building, len(list))
	for _, b := range list {
		out[b.Kind] = b
	}
	return out
}
