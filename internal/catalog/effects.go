package catalog

import "fmt"

// EffectKind tags the variant held by an Effect.
type EffectKind string

const (
	EffectProduction    EffectKind = "production"     // Resource: +Amount fraction of output
	EffectHappiness     EffectKind = "happiness"      // +Amount happiness points
	EffectUnlockUnit    EffectKind = "unlock_unit"    // Unit becomes recruitable
	EffectStorage       EffectKind = "storage"        // +Amount fraction of warehouse capacity
	EffectResearchSpeed EffectKind = "research_speed" // +Amount research speed
	EffectPopulationCap EffectKind = "population_cap" // +Amount max population
	EffectDefenseFlat   EffectKind = "defense_flat"   // +Amount flat defense power
	EffectAttack        EffectKind = "attack"         // +Amount fraction of attack power
	EffectDefense       EffectKind = "defense"        // +Amount fraction of defense power
	EffectSiege         EffectKind = "siege"          // +Amount fraction of siege power
	EffectQueueCapacity EffectKind = "queue_capacity" // Queue: +Amount concurrent entries
	EffectGrowth        EffectKind = "growth"         // +Amount fraction of population growth
)

// Known reports whether k is a kind Fold handles.
func (k EffectKind) Known() bool {
	switch k {
	case EffectProduction, EffectHappiness, EffectUnlockUnit, EffectStorage,
		EffectResearchSpeed, EffectPopulationCap, EffectDefenseFlat, EffectAttack,
		EffectDefense, EffectSiege, EffectQueueCapacity, EffectGrowth:
		return true
	}
	return false
}

// QueueKind names one of the three timed queues.
type QueueKind string

const (
	QueueBuilding    QueueKind = "building"
	QueueResearch    QueueKind = "research"
	QueueRecruitment QueueKind = "recruitment"
)

// Effect is one typed modifier contributed by a building level, a
// technology or an active world event. Which fields are meaningful
// depends on Kind.
type Effect struct {
	Kind     EffectKind   `json:"kind" yaml:"kind"`
	Resource ResourceKind `json:"resource,omitempty" yaml:"resource,omitempty"`
	Unit     UnitKind     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Queue    QueueKind    `json:"queue,omitempty" yaml:"queue,omitempty"`
	Amount   float64      `json:"amount,omitempty" yaml:"amount,omitempty"`
}

func (e Effect) String() string {
	switch e.Kind {
	case EffectProduction:
		return fmt.Sprintf("%s +%.0f%%", e.Resource, e.Amount*100)
	case EffectUnlockUnit:
		return fmt.Sprintf("unlock %s", e.Unit)
	case EffectQueueCapacity:
		return fmt.Sprintf("%s queue +%.0f", e.Queue, e.Amount)
	}
	return fmt.Sprintf("%s %+g", e.Kind, e.Amount)
}

// Constructors keep the tables below readable.

func ProductionBonus(r ResourceKind, frac float64) Effect {
	return Effect{Kind: EffectProduction, Resource: r, Amount: frac}
}

func HappinessBonus(points float64) Effect {
	return Effect{Kind: EffectHappiness, Amount: points}
}

func UnlockUnit(u UnitKind) Effect {
	return Effect{Kind: EffectUnlockUnit, Unit: u}
}

func StorageBonus(frac float64) Effect {
	return Effect{Kind: EffectStorage, Amount: frac}
}

func ResearchSpeed(amount float64) Effect {
	return Effect{Kind: EffectResearchSpeed, Amount: amount}
}

func PopulationCap(amount float64) Effect {
	return Effect{Kind: EffectPopulationCap, Amount: amount}
}

func DefenseFlat(amount float64) Effect {
	return Effect{Kind: EffectDefenseFlat, Amount: amount}
}

func AttackBonus(frac float64) Effect {
	return Effect{Kind: EffectAttack, Amount: frac}
}

func DefenseBonus(frac float64) Effect {
	return Effect{Kind: EffectDefense, Amount: frac}
}

func SiegeBonus(frac float64) Effect {
	return Effect{Kind: EffectSiege, Amount: frac}
}

func QueueCapacity(q QueueKind, extra int) Effect {
	return Effect{Kind: EffectQueueCapacity, Queue: q, Amount: float64(extra)}
}

func GrowthBonus(frac float64) Effect {
	return Effect{Kind: EffectGrowth, Amount: frac}
}

// Modifiers are the named totals produced by folding a list of effects.
type Modifiers struct {
	Production    map[ResourceKind]float64 `json:"production"`
	Happiness     float64                  `json:"happiness"`
	Units         map[UnitKind]bool        `json:"units"`
	Storage       float64                  `json:"storage"`
	ResearchSpeed float64                  `json:"research_speed"`
	PopulationCap float64                  `json:"population_cap"`
	DefenseFlat   float64                  `json:"defense_flat"`
	Attack        float64                  `json:"attack"`
	Defense       float64                  `json:"defense"`
	Siege         float64                  `json:"siege"`
	QueueCapacity map[QueueKind]int        `json:"queue_capacity"`
	Growth        float64                  `json:"growth"`
}

// Fold reduces effects into modifier totals. Every EffectKind is handled;
// an unknown kind is a programming error in the tables.
func Fold(effects []Effect) Modifiers {
	m := Modifiers{
		Production:    make(map[ResourceKind]float64),
		Units:         make(map[UnitKind]bool),
		QueueCapacity: make(map[QueueKind]int),
	}
	for _, e := range effects {
		switch e.Kind {
		case EffectProduction:
			m.Production[e.Resource] += e.Amount
		case EffectHappiness:
			m.Happiness += e.Amount
		case EffectUnlockUnit:
			m.Units[e.Unit] = true
		case EffectStorage:
			m.Storage += e.Amount
		case EffectResearchSpeed:
			m.ResearchSpeed += e.Amount
		case EffectPopulationCap:
			m.PopulationCap += e.Amount
		case EffectDefenseFlat:
			m.DefenseFlat += e.Amount
		case EffectAttack:
			m.Attack += e.Amount
		case EffectDefense:
			m.Defense += e.Amount
		case EffectSiege:
			m.Siege += e.Amount
		case EffectQueueCapacity:
			m.QueueCapacity[e.Queue] += int(e.Amount)
		case EffectGrowth:
			m.Growth += e.Amount
		default:
			panic(fmt.Sprintf("catalog: unhandled effect kind %q", e.Kind))
		}
	}
	return m
}
