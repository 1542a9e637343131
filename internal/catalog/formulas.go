package catalog

import (
	"math"
	"time"
)

// Formula constants.
const (
	BaseStorage          = 1000.0
	StoragePerLevel      = 500.0
	StorageExponent      = 1.2
	ResearchTimePerPoint = 10 * time.Second
	LevelRateStep        = 0.1 // Production gain per building level past 1
)

// StorageCapacity returns the per-resource cap for a warehouse level with a
// fractional storage bonus applied.
func StorageCapacity(warehouseLevel int, bonus float64) float64 {
	if warehouseLevel < 0 {
		warehouseLevel = 0
	}
	raw := BaseStorage + math.Floor(StoragePerLevel*math.Pow(float64(warehouseLevel), StorageExponent))
	return math.Floor(raw * (1 + bonus))
}

// LevelRate returns a production building's hourly output at level before
// any multipliers.
func LevelRate(baseRate float64, level int) float64 {
	if level <= 0 {
		return 0
	}
	return baseRate * (1 + LevelRateStep*float64(level-1))
}

// ResearchSpeedMultiplier turns the summed ResearchSpeed bonus of every
// city (academy 0.1 and library 0.2 per level) into the speed divisor.
func ResearchSpeedMultiplier(bonus float64) float64 {
	if bonus < 0 {
		bonus = 0
	}
	return 1 + bonus
}

// ResearchDuration is points × 10s ÷ speed, rounded to the second.
func ResearchDuration(points, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	d := time.Duration(points * float64(ResearchTimePerPoint) / speed)
	return d.Round(time.Second)
}

// RecruitCost is the unit cost times quantity.
func RecruitCost(u *Unit, qty int) Amounts {
	return u.Cost.Scale(float64(qty))
}

// RecruitDuration is the unit training time times quantity.
func RecruitDuration(u *Unit, qty int) time.Duration {
	return u.TrainTime * time.Duration(qty)
}
