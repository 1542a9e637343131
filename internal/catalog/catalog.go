package catalog

import (
	"sort"

	"github.com/talgya/archipelago/internal/validation"
)

// Catalog bundles every static table. A Catalog is read-only once built.
type Catalog struct {
	Buildings    map[BuildingKind]*Building
	Units        map[UnitKind]*Unit
	Technologies map[TechKey]*Technology
	BasePrices   map[ResourceKind]float64
}

// Default returns a fresh copy of the built-in tables.
func Default() *Catalog {
	prices := make(map[ResourceKind]float64, len(defaultBasePrices))
	for r, p := range defaultBasePrices {
		prices[r] = p
	}
	return &Catalog{
		Buildings:    defaultBuildings(),
		Units:        defaultUnits(),
		Technologies: defaultTechnologies(),
		BasePrices:   prices,
	}
}

// Building looks up a building definition.
func (c *Catalog) Building(kind BuildingKind) (*Building, error) {
	b, ok := c.Buildings[kind]
	if !ok {
		return nil, validation.Errorf(validation.UnknownKind, "unknown building %q", kind)
	}
	return b, nil
}

// Unit looks up a unit definition.
func (c *Catalog) Unit(kind UnitKind) (*Unit, error) {
	u, ok := c.Units[kind]
	if !ok {
		return nil, validation.Errorf(validation.UnknownKind, "unknown unit %q", kind)
	}
	return u, nil
}

// Technology looks up a technology definition.
func (c *Catalog) Technology(key TechKey) (*Technology, error) {
	t, ok := c.Technologies[key]
	if !ok {
		return nil, validation.Errorf(validation.UnknownKind, "unknown technology %q", key)
	}
	return t, nil
}

// BasePrice returns the fallback market price for r.
func (c *Catalog) BasePrice(r ResourceKind) float64 {
	return c.BasePrices[r]
}

// TechKeys returns every technology key sorted.
func (c *Catalog) TechKeys() []TechKey {
	keys := make([]TechKey, 0, len(c.Technologies))
	for k := range c.Technologies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// UnitKinds returns every unit kind sorted.
func (c *Catalog) UnitKinds() []UnitKind {
	kinds := make([]UnitKind, 0, len(c.Units))
	for k := range c.Units {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
