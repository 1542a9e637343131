// Package catalog holds the static game tables: resources, buildings,
// units and technologies, plus the pure level formulas derived from them.
package catalog

import "sort"

// ResourceKind identifies a stockpiled resource.
type ResourceKind string

const (
	Gold  ResourceKind = "gold" // Settlement currency, never traded
	Wood  ResourceKind = "wood"
	Stone ResourceKind = "stone"
	Iron  ResourceKind = "iron"
	Food  ResourceKind = "food"
	Wine  ResourceKind = "wine"
)

// AllResources returns every resource kind in deterministic order.
func AllResources() []ResourceKind {
	return []ResourceKind{Gold, Wood, Stone, Iron, Food, Wine}
}

// StorableResources returns the resources limited by warehouse capacity.
func StorableResources() []ResourceKind {
	return []ResourceKind{Wood, Stone, Iron, Food, Wine}
}

// IsResource reports whether r is a known resource kind.
func IsResource(r ResourceKind) bool {
	switch r {
	case Gold, Wood, Stone, Iron, Food, Wine:
		return true
	}
	return false
}

// Tradeable reports whether r may be listed on the market.
func Tradeable(r ResourceKind) bool {
	return IsResource(r) && r != Gold
}

// Capped reports whether r is clamped to storage capacity.
func Capped(r ResourceKind) bool {
	return IsResource(r) && r != Gold
}

// Amounts is a bag of resource quantities (costs, rates, loot).
type Amounts map[ResourceKind]float64

// Scale returns a copy with every amount multiplied by f.
func (a Amounts) Scale(f float64) Amounts {
	out := make(Amounts, len(a))
	for r, v := range a {
		out[r] = v * f
	}
	return out
}

// Clone returns an independent copy.
func (a Amounts) Clone() Amounts {
	out := make(Amounts, len(a))
	for r, v := range a {
		out[r] = v
	}
	return out
}

// Kinds returns the keys in sorted order.
func (a Amounts) Kinds() []ResourceKind {
	kinds := make([]ResourceKind, 0, len(a))
	for r := range a {
		kinds = append(kinds, r)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// defaultBasePrices are the market fallback prices in gold per unit.
var defaultBasePrices = map[ResourceKind]float64{
	Wood:  2,
	Stone: 3,
	Iron:  4,
	Food:  2,
	Wine:  5,
}
