// Package economy derives a city's production, storage, happiness and
// population growth from its buildings and the active modifiers.
package economy

import (
	"math"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
)

// Happiness and population constants.
const (
	BaseHappiness       = 50.0
	ContentThreshold    = 50.0 // At or above: full production
	UnhappyMultiplier   = 0.9
	GrowthThreshold     = 30.0 // Population grows only above this
	GrowthRate          = 0.5  // Per hour at happiness 100
	BasePopulation      = 50.0
	OverpopulationOnset = 0.9
	MaxHappiness        = 100.0
)

// GlobalModifiers are the inputs that do not come from the city's own
// buildings.
type GlobalModifiers struct {
	IslandBonus   catalog.Amounts   // Fractional bonus per resource
	AllianceBonus float64           // Fractional bonus on all production
	Effects       catalog.Modifiers // Folded technologies and world events
}

// Calculator evaluates the economy formulas against a catalog.
type Calculator struct {
	catalog *catalog.Catalog
}

// NewCalculator creates a calculator over the given tables.
func NewCalculator(cat *catalog.Catalog) *Calculator {
	return &Calculator{catalog: cat}
}

// BuildingModifiers folds the per-level effects of the city's buildings.
func (calc *Calculator) BuildingModifiers(c *city.City) catalog.Modifiers {
	var effects []catalog.Effect
	for _, kind := range catalog.AllBuildingKinds() {
		inst, ok := c.Buildings[kind]
		if !ok {
			continue
		}
		def, ok := calc.catalog.Buildings[kind]
		if !ok {
			continue
		}
		effects = append(effects, def.EffectsAt(inst.Level)...)
	}
	return catalog.Fold(effects)
}

// MaxPopulation is 50 + 25 per forum level, plus any other population cap
// effects.
func (calc *Calculator) MaxPopulation(c *city.City) float64 {
	return BasePopulation + calc.BuildingModifiers(c).PopulationCap
}

// Happiness is 50 plus building and global bonuses minus the
// overpopulation penalty, clamped to [0, 100].
func (calc *Calculator) Happiness(c *city.City, mods GlobalModifiers) float64 {
	bonus := calc.BuildingModifiers(c).Happiness + mods.Effects.Happiness
	maxPop := calc.MaxPopulation(c)
	penalty := 0.0
	if maxPop > 0 {
		penalty = math.Max(0, (c.Population/maxPop-OverpopulationOnset)*100)
	}
	return clamp(BaseHappiness+bonus-penalty, 0, MaxHappiness)
}

// HappinessMultiplier is a hard step: 1.0 when content, 0.9 otherwise.
func HappinessMultiplier(happiness float64) float64 {
	if happiness >= ContentThreshold {
		return 1.0
	}
	return UnhappyMultiplier
}

// StorageCapacity returns the per-resource cap from the warehouse level
// and storage bonuses.
func (calc *Calculator) StorageCapacity(c *city.City, mods GlobalModifiers) float64 {
	bonus := calc.BuildingModifiers(c).Storage + mods.Effects.Storage
	return catalog.StorageCapacity(c.BuildingLevel(catalog.Warehouse), bonus)
}

// ComputeProduction returns per-hour output by resource.
func (calc *Calculator) ComputeProduction(c *city.City, mods GlobalModifiers) city.ResourcePool {
	out := make(city.ResourcePool)
	happy := HappinessMultiplier(calc.Happiness(c, mods))
	for kind, inst := range c.Buildings {
		def, ok := calc.catalog.Buildings[kind]
		if !ok || def.Produces == "" || !catalog.IsResource(def.Produces) {
			continue
		}
		r := def.Produces
		rate := catalog.LevelRate(def.BaseRate, inst.Level) *
			(1 + mods.IslandBonus[r]) *
			(1 + mods.AllianceBonus) *
			happy *
			(1 + mods.Effects.Production[r])
		if rate > 0 {
			out[r] += rate
		}
	}
	return out
}

// Produce credits elapsed production to the pool and clamps every capped
// resource to storage capacity. It returns the amounts actually added.
func (calc *Calculator) Produce(c *city.City, mods GlobalModifiers, elapsed time.Duration) catalog.Amounts {
	added := make(catalog.Amounts)
	if elapsed <= 0 {
		return added
	}
	hours := elapsed.Seconds() / 3600
	before := c.Resources.Clone()
	for r, rate := range calc.ComputeProduction(c, mods) {
		c.Resources[r] += rate * hours
	}
	calc.Clamp(c, mods)
	for r, v := range c.Resources {
		if d := v - before[r]; d > 0 {
			added[r] = d
		}
	}
	return added
}

// Clamp caps every storable resource at capacity.
func (calc *Calculator) Clamp(c *city.City, mods GlobalModifiers) {
	capacity := calc.StorageCapacity(c, mods)
	for r, v := range c.Resources {
		if catalog.Capped(r) && v > capacity {
			c.Resources[r] = capacity
		}
		if v < 0 {
			c.Resources[r] = 0
		}
	}
}

// GrowPopulation advances population over elapsed while happiness is above
// the growth threshold, never past the maximum.
func (calc *Calculator) GrowPopulation(c *city.City, mods GlobalModifiers, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	h := calc.Happiness(c, mods)
	if h <= GrowthThreshold {
		return
	}
	maxPop := calc.MaxPopulation(c)
	if c.Population >= maxPop {
		return
	}
	multiplier := 1 + mods.Effects.Growth
	if multiplier < 0 {
		multiplier = 0
	}
	rate := c.Population * (h / 100) * GrowthRate * multiplier
	c.Population = math.Min(maxPop, c.Population+rate*elapsed.Hours())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
