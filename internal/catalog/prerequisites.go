package catalog

import "fmt"

// Conditions answers the questions prerequisites ask about the world.
type Conditions interface {
	BuildingLevel(kind BuildingKind) int
	HasTech(key TechKey) bool
}

// Prerequisite is either a building-level predicate (Building >= Level)
// or a technology flag (Tech unlocked).
type Prerequisite struct {
	Building BuildingKind `json:"building,omitempty" yaml:"building,omitempty"`
	Level    int          `json:"level,omitempty" yaml:"level,omitempty"`
	Tech     TechKey      `json:"tech,omitempty" yaml:"tech,omitempty"`
}

// NeedsBuilding builds a building-level predicate.
func NeedsBuilding(kind BuildingKind, level int) Prerequisite {
	return Prerequisite{Building: kind, Level: level}
}

// NeedsTech builds a technology predicate.
func NeedsTech(key TechKey) Prerequisite {
	return Prerequisite{Tech: key}
}

// Satisfied evaluates the predicate.
func (p Prerequisite) Satisfied(c Conditions) bool {
	if p.Tech != "" && !c.HasTech(p.Tech) {
		return false
	}
	if p.Building != "" && c.BuildingLevel(p.Building) < p.Level {
		return false
	}
	return true
}

func (p Prerequisite) String() string {
	if p.Tech != "" {
		return fmt.Sprintf("technology %s", p.Tech)
	}
	return fmt.Sprintf("%s level %d", p.Building, p.Level)
}

// FirstUnmet returns the first prerequisite that does not hold.
func FirstUnmet(reqs []Prerequisite, c Conditions) (Prerequisite, bool) {
	for _, p := range reqs {
		if !p.Satisfied(c) {
			return p, true
		}
	}
	return Prerequisite{}, false
}
