// Package combat resolves a battle between an attacking army and a
// defending city. Resolution is pure: the caller commits the result.
package combat

import (
	"math"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
)

// Casualty and siege constants.
const (
	AttackerMoral      = 100.0
	AttackerLossFactor = 0.3
	DefenderLossFactor = 0.4
	MinAttackerLoss    = 0.2
	MaxAttackerLoss    = 0.8
	MinDefenderLoss    = 0.1
	MaxDefenderLoss    = 0.9
	JitterMin          = 0.8
	JitterSpan         = 0.4 // Jitter is uniform in [0.8, 1.2]
	LootPerRatio       = 0.15
	MaxLootFraction    = 0.4
	ProtectedFraction  = 0.5
	MaxWallDamage      = 3
	WallResistPerLevel = 50.0
	WallResistBase     = 100.0
)

// Source supplies uniform numbers in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Defender describes the city being attacked.
type Defender struct {
	Happiness float64         // Defender moral, 0-100
	WallLevel int             // Current wall level
	WallFlat  float64         // Flat defense from walls
	Resources catalog.Amounts // Stockpile available to loot
	Capacity  float64         // Storage capacity per resource
}

// Bonuses are the fractional technology bonuses in play.
type Bonuses struct {
	Attack  float64 `json:"attack"`  // Attacker
	Siege   float64 `json:"siege"`   // Attacker
	Defense float64 `json:"defense"` // Defender
}

// Result is the outcome of one battle.
type Result struct {
	Victory          bool            `json:"victory"`
	AttackPower      float64         `json:"attack_power"`
	DefensePower     float64         `json:"defense_power"`
	PowerRatio       float64         `json:"power_ratio"`
	AttackerLossRate float64         `json:"attacker_loss_rate"`
	DefenderLossRate float64         `json:"defender_loss_rate"`
	AttackerLosses   city.UnitStack  `json:"attacker_losses"`
	DefenderLosses   city.UnitStack  `json:"defender_losses"`
	Loot             catalog.Amounts `json:"loot"`
	SiegePower       float64         `json:"siege_power"`
	WallDamage       int             `json:"wall_damage"`
}

// Resolver evaluates battles against a unit table.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver creates a resolver over the given tables.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// AttackPower is Σ(count × attack × moral/100) × (1 + bonus).
func (r *Resolver) AttackPower(army city.UnitStack, bonus float64) float64 {
	sum := 0.0
	for kind, n := range army {
		if u, ok := r.catalog.Units[kind]; ok && n > 0 {
			sum += float64(n) * u.Attack * AttackerMoral / 100
		}
	}
	return sum * (1 + bonus)
}

// DefensePower is Σ(count × defense × moral/100) × (1 + bonus) + wall.
func (r *Resolver) DefensePower(garrison city.UnitStack, moral, bonus, wallFlat float64) float64 {
	sum := 0.0
	for kind, n := range garrison {
		if u, ok := r.catalog.Units[kind]; ok && n > 0 {
			sum += float64(n) * u.Defense * moral / 100
		}
	}
	return sum*(1+bonus) + wallFlat
}

// SiegePower sums the siege units' power with the siege bonus applied.
func (r *Resolver) SiegePower(army city.UnitStack, bonus float64) float64 {
	sum := 0.0
	for kind, n := range army {
		if u, ok := r.catalog.Units[kind]; ok && u.Siege() && n > 0 {
			sum += float64(n) * u.SiegePower
		}
	}
	return sum * (1 + bonus)
}

// Resolve fights attacker against defender at target. A nil rng disables
// casualty jitter. Neither stack is modified.
func (r *Resolver) Resolve(attacker, defender city.UnitStack, target Defender, bonuses Bonuses, rng Source) Result {
	res := Result{
		AttackPower:  r.AttackPower(attacker, bonuses.Attack),
		DefensePower: r.DefensePower(defender, target.Happiness, bonuses.Defense, target.WallFlat),
		Loot:         make(catalog.Amounts),
	}
	res.Victory = res.AttackPower > res.DefensePower
	res.PowerRatio = powerRatio(res.AttackPower, res.DefensePower)

	res.AttackerLossRate = clamp(1/res.PowerRatio*AttackerLossFactor, MinAttackerLoss, MaxAttackerLoss)
	res.DefenderLossRate = clamp(res.PowerRatio*DefenderLossFactor, MinDefenderLoss, MaxDefenderLoss)
	res.AttackerLosses = losses(attacker, res.AttackerLossRate, rng)
	res.DefenderLosses = losses(defender, res.DefenderLossRate, rng)

	if !res.Victory {
		return res
	}

	lootFrac := math.Min(MaxLootFraction, res.PowerRatio*LootPerRatio)
	protected := target.Capacity * ProtectedFraction
	for _, kind := range target.Resources.Kinds() {
		exposed := target.Resources[kind] - protected
		if exposed <= 0 {
			continue
		}
		if take := math.Floor(exposed * lootFrac); take > 0 {
			res.Loot[kind] = take
		}
	}

	res.SiegePower = r.SiegePower(attacker, bonuses.Siege)
	if target.WallLevel > 0 && res.SiegePower > 0 {
		resist := float64(target.WallLevel)*WallResistPerLevel + WallResistBase
		dmg := int(math.Floor(res.SiegePower / resist))
		dmg = min(dmg, MaxWallDamage, target.WallLevel)
		res.WallDamage = dmg
	}
	return res
}

// powerRatio is attack ÷ defense. An undefended target gives the largest
// finite ratio when attacked at all and 0 otherwise; results must stay
// JSON encodable.
func powerRatio(attack, defense float64) float64 {
	if defense <= 0 {
		if attack > 0 {
			return math.MaxFloat64
		}
		return 0
	}
	return attack / defense
}

// losses applies rate to each kind with independent jitter, in sorted kind
// order so a seeded source gives repeatable results.
func losses(stack city.UnitStack, rate float64, rng Source) city.UnitStack {
	out := make(city.UnitStack)
	for _, kind := range stack.Kinds() {
		n := stack[kind]
		jitter := 1.0
		if rng != nil {
			jitter = JitterMin + JitterSpan*rng.Float64()
		}
		lost := int(math.Floor(float64(n) * rate * jitter))
		lost = max(0, min(lost, n))
		if lost > 0 {
			out[kind] = lost
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
