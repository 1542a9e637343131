package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides adjusts a subset of the default tables. Nil fields keep the
// built-in value.
type Overrides struct {
	BasePrices   map[ResourceKind]float64         `yaml:"base_prices,omitempty"`
	Buildings    map[BuildingKind]BuildingOverride `yaml:"buildings,omitempty"`
	Units        map[UnitKind]UnitOverride         `yaml:"units,omitempty"`
	Technologies map[TechKey]TechOverride          `yaml:"technologies,omitempty"`
}

type BuildingOverride struct {
	BaseRate   *float64       `yaml:"base_rate,omitempty"`
	CostGrowth *float64       `yaml:"cost_growth,omitempty"`
	TimeGrowth *float64       `yaml:"time_growth,omitempty"`
	BaseTime   *time.Duration `yaml:"base_time,omitempty"`
	MaxLevel   *int           `yaml:"max_level,omitempty"`
}

type UnitOverride struct {
	Attack    *float64       `yaml:"attack,omitempty"`
	Defense   *float64       `yaml:"defense,omitempty"`
	TrainTime *time.Duration `yaml:"train_time,omitempty"`
}

type TechOverride struct {
	ResearchPoints *float64 `yaml:"research_points,omitempty"`
}

// LoadOverrides reads an overrides file. An empty path yields no overrides.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	if strings.TrimSpace(path) == "" {
		return o, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read catalog overrides: %w", err)
	}
	if err := yaml.Unmarshal(b, &o); err != nil {
		return o, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

// Apply writes the overrides into c, rejecting unknown keys and
// out-of-range growth curves.
func (c *Catalog) Apply(o Overrides) error {
	for r, p := range o.BasePrices {
		if !Tradeable(r) {
			return fmt.Errorf("base_prices: %q is not a tradeable resource", r)
		}
		if p <= 0 {
			return fmt.Errorf("base_prices.%s: must be positive", r)
		}
		c.BasePrices[r] = p
	}
	for kind, bo := range o.Buildings {
		b, ok := c.Buildings[kind]
		if !ok {
			return fmt.Errorf("buildings: unknown building %q", kind)
		}
		if bo.BaseRate != nil {
			if b.Produces == "" {
				return fmt.Errorf("buildings.%s: base_rate on a non-production building", kind)
			}
			b.BaseRate = *bo.BaseRate
		}
		if bo.CostGrowth != nil {
			if *bo.CostGrowth < 1.2 || *bo.CostGrowth > 1.8 {
				return fmt.Errorf("buildings.%s.cost_growth: %v outside [1.2, 1.8]", kind, *bo.CostGrowth)
			}
			b.CostGrowth = *bo.CostGrowth
		}
		if bo.TimeGrowth != nil {
			if *bo.TimeGrowth < 1 {
				return fmt.Errorf("buildings.%s.time_growth: must be at least 1", kind)
			}
			b.TimeGrowth = *bo.TimeGrowth
		}
		if bo.BaseTime != nil {
			b.BaseTime = *bo.BaseTime
		}
		if bo.MaxLevel != nil {
			if *bo.MaxLevel < 1 {
				return fmt.Errorf("buildings.%s.max_level: must be at least 1", kind)
			}
			b.MaxLevel = *bo.MaxLevel
		}
	}
	for kind, uo := range o.Units {
		u, ok := c.Units[kind]
		if !ok {
			return fmt.Errorf("units: unknown unit %q", kind)
		}
		if uo.Attack != nil {
			u.Attack = *uo.Attack
		}
		if uo.Defense != nil {
			u.Defense = *uo.Defense
		}
		if uo.TrainTime != nil {
			u.TrainTime = *uo.TrainTime
		}
	}
	for key, to := range o.Technologies {
		t, ok := c.Technologies[key]
		if !ok {
			return fmt.Errorf("technologies: unknown technology %q", key)
		}
		if to.ResearchPoints != nil {
			if *to.ResearchPoints <= 0 {
				return fmt.Errorf("technologies.%s.research_points: must be positive", key)
			}
			t.ResearchPoints = *to.ResearchPoints
		}
	}
	return nil
}

// Load returns the default catalog with the overrides file at path applied.
func Load(path string) (*Catalog, error) {
	o, err := LoadOverrides(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := c.Apply(o); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
