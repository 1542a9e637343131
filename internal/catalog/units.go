package catalog

import "time"

// UnitKind identifies a recruitable unit type.
type UnitKind string

const (
	Spearman     UnitKind = "spearman"
	Swordsman    UnitKind = "swordsman"
	Archer       UnitKind = "archer"
	Horseman     UnitKind = "horseman"
	Ram          UnitKind = "ram"
	Catapult     UnitKind = "catapult"
	Trireme      UnitKind = "trireme"
	BallistaShip UnitKind = "ballista_ship"
)

// Domain decides which garrison a unit joins.
type Domain string

const (
	Land  Domain = "land"
	Naval Domain = "naval"
)

// Unit is the static definition of a unit type.
type Unit struct {
	Kind       UnitKind       `json:"kind" yaml:"kind"`
	Name       string         `json:"name" yaml:"name"`
	Domain     Domain         `json:"domain" yaml:"domain"`
	Attack     float64        `json:"attack" yaml:"attack"`
	Defense    float64        `json:"defense" yaml:"defense"`
	SiegePower float64        `json:"siege_power,omitempty" yaml:"siege_power,omitempty"` // Non-zero only for siege units
	Cost       Amounts        `json:"cost" yaml:"cost"`
	TrainTime  time.Duration  `json:"train_time" yaml:"train_time"`
	Requires   []Prerequisite `json:"requires,omitempty" yaml:"requires,omitempty"`
	Locked     bool           `json:"locked,omitempty" yaml:"locked,omitempty"` // Needs an UnlockUnit effect
}

// Siege reports whether the unit counts toward siege power.
func (u *Unit) Siege() bool {
	return u.SiegePower > 0
}

func defaultUnits() map[UnitKind]*Unit {
	list := []*Unit{
		{
			Kind: Spearman, Name: "Spearman", Domain: Land,
			Attack: 6, Defense: 12,
			Cost:      Amounts{Wood: 20, Iron: 10, Gold: 5},
			TrainTime: 60 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 1)},
		},
		{
			Kind: Swordsman, Name: "Swordsman", Domain: Land,
			Attack: 14, Defense: 10,
			Cost:      Amounts{Wood: 20, Iron: 40, Gold: 10},
			TrainTime: 90 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 2)},
		},
		{
			Kind: Archer, Name: "Archer", Domain: Land,
			Attack: 10, Defense: 6,
			Cost:      Amounts{Wood: 40, Iron: 10, Gold: 8},
			TrainTime: 75 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 3)},
		},
		{
			Kind: Horseman, Name: "Horseman", Domain: Land,
			Attack: 18, Defense: 8,
			Cost:      Amounts{Wood: 30, Iron: 40, Food: 30, Gold: 20},
			TrainTime: 150 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 4)},
			Locked:    true,
		},
		{
			Kind: Ram, Name: "Battering Ram", Domain: Land,
			Attack: 2, Defense: 4, SiegePower: 40,
			Cost:      Amounts{Wood: 150, Iron: 30, Gold: 25},
			TrainTime: 240 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 5)},
		},
		{
			Kind: Catapult, Name: "Catapult", Domain: Land,
			Attack: 8, Defense: 2, SiegePower: 90,
			Cost:      Amounts{Wood: 200, Stone: 50, Iron: 80, Gold: 40},
			TrainTime: 360 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Barracks, 8)},
			Locked:    true,
		},
		{
			Kind: Trireme, Name: "Trireme", Domain: Naval,
			Attack: 20, Defense: 20,
			Cost:      Amounts{Wood: 250, Iron: 50, Gold: 30},
			TrainTime: 300 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Shipyard, 1)},
			Locked:    true,
		},
		{
			Kind: BallistaShip, Name: "Ballista Ship", Domain: Naval,
			Attack: 16, Defense: 12, SiegePower: 60,
			Cost:      Amounts{Wood: 300, Iron: 120, Gold: 60},
			TrainTime: 480 * time.Second,
			Requires:  []Prerequisite{NeedsBuilding(Shipyard, 3)},
			Locked:    true,
		},
	}
	out := make(map[UnitKind]*Unit, len(list))
	for _, u := range list {
		out[u.Kind] = u
	}
	return out
}
