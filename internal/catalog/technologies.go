package catalog

import "strings"

// TechKey is a technology identifier of the form "branch.id".
type TechKey string

// Branch returns the branch half of the key.
func (k TechKey) Branch() string {
	b, _, _ := strings.Cut(string(k), ".")
	return b
}

// Technology is a researchable upgrade. Unlocking is permanent.
type Technology struct {
	Key            TechKey        `json:"key" yaml:"key"`
	Name           string         `json:"name" yaml:"name"`
	ResearchPoints float64        `json:"research_points" yaml:"research_points"`
	Cost           Amounts        `json:"cost" yaml:"cost"`
	Requires       []Prerequisite `json:"requires,omitempty" yaml:"requires,omitempty"`
	Effects        []Effect       `json:"effects" yaml:"effects"`
}

func defaultTechnologies() map[TechKey]*Technology {
	list := []*Technology{
		// Economy
		{
			Key: "economy.crop_rotation", Name: "Crop Rotation", ResearchPoints: 30,
			Cost:     Amounts{Gold: 60},
			Requires: []Prerequisite{NeedsBuilding(Academy, 1)},
			Effects:  []Effect{GrowthBonus(0.2), ProductionBonus(Food, 0.1)},
		},
		{
			Key: "economy.storage_cellars", Name: "Storage Cellars", ResearchPoints: 40,
			Cost:     Amounts{Gold: 80, Wood: 50},
			Requires: []Prerequisite{NeedsBuilding(Academy, 1)},
			Effects:  []Effect{StorageBonus(0.25)},
		},
		{
			Key: "economy.saw_blades", Name: "Saw Blades", ResearchPoints: 45,
			Cost:     Amounts{Gold: 80, Iron: 30},
			Requires: []Prerequisite{NeedsBuilding(Academy, 1)},
			Effects:  []Effect{ProductionBonus(Wood, 0.15)},
		},
		{
			Key: "economy.viticulture", Name: "Viticulture", ResearchPoints: 60,
			Cost:     Amounts{Gold: 120},
			Requires: []Prerequisite{NeedsTech("economy.crop_rotation")},
			Effects:  []Effect{ProductionBonus(Wine, 0.05)},
		},
		{
			Key: "economy.pulley", Name: "Pulley", ResearchPoints: 80,
			Cost:     Amounts{Gold: 150, Wood: 100},
			Requires: []Prerequisite{NeedsBuilding(Academy, 2)},
			Effects:  []Effect{QueueCapacity(QueueBuilding, 1)},
		},
		// Science
		{
			Key: "science.paper", Name: "Paper", ResearchPoints: 50,
			Cost:     Amounts{Gold: 100, Wood: 40},
			Requires: []Prerequisite{NeedsBuilding(Academy, 1)},
			Effects:  []Effect{QueueCapacity(QueueResearch, 1)},
		},
		{
			Key: "science.architecture", Name: "Architecture", ResearchPoints: 120,
			Cost:     Amounts{Gold: 250, Stone: 150},
			Requires: []Prerequisite{NeedsTech("economy.pulley"), NeedsBuilding(Library, 1)},
			Effects:  []Effect{QueueCapacity(QueueBuilding, 1), StorageBonus(0.1)},
		},
		// Military
		{
			Key: "military.bronze_weapons", Name: "Bronze Weapons", ResearchPoints: 40,
			Cost:     Amounts{Gold: 80, Iron: 60},
			Requires: []Prerequisite{NeedsBuilding(Barracks, 1)},
			Effects:  []Effect{AttackBonus(0.1)},
		},
		{
			Key: "military.shield_wall", Name: "Shield Wall", ResearchPoints: 40,
			Cost:     Amounts{Gold: 80, Wood: 60},
			Requires: []Prerequisite{NeedsBuilding(Barracks, 1)},
			Effects:  []Effect{DefenseBonus(0.1)},
		},
		{
			Key: "military.horse_breeding", Name: "Horse Breeding", ResearchPoints: 70,
			Cost:     Amounts{Gold: 140, Food: 100},
			Requires: []Prerequisite{NeedsTech("economy.crop_rotation"), NeedsBuilding(Barracks, 2)},
			Effects:  []Effect{UnlockUnit(Horseman)},
		},
		{
			Key: "military.drill", Name: "Drill", ResearchPoints: 90,
			Cost:     Amounts{Gold: 180},
			Requires: []Prerequisite{NeedsTech("military.bronze_weapons")},
			Effects:  []Effect{QueueCapacity(QueueRecruitment, 1)},
		},
		{
			Key: "military.siege_engineering", Name: "Siege Engineering", ResearchPoints: 150,
			Cost:     Amounts{Gold: 300, Wood: 200, Iron: 100},
			Requires: []Prerequisite{NeedsTech("military.bronze_weapons"), NeedsBuilding(Academy, 3)},
			Effects:  []Effect{UnlockUnit(Catapult), SiegeBonus(0.25)},
		},
		// Seafaring
		{
			Key: "seafaring.shipbuilding", Name: "Shipbuilding", ResearchPoints: 60,
			Cost:     Amounts{Gold: 120, Wood: 150},
			Requires: []Prerequisite{NeedsBuilding(Academy, 1)},
			Effects:  []Effect{UnlockUnit(Trireme)},
		},
		{
			Key: "seafaring.naval_artillery", Name: "Naval Artillery", ResearchPoints: 160,
			Cost:     Amounts{Gold: 320, Iron: 150},
			Requires: []Prerequisite{NeedsTech("seafaring.shipbuilding"), NeedsTech("military.siege_engineering")},
			Effects:  []Effect{UnlockUnit(BallistaShip)},
		},
		// Culture
		{
			Key: "culture.festivals", Name: "Festivals", ResearchPoints: 50,
			Cost:     Amounts{Gold: 100, Wine: 30},
			Requires: []Prerequisite{NeedsBuilding(Tavern, 1)},
			Effects:  []Effect{HappinessBonus(5)},
		},
	}
	out := make(map[TechKey]*Technology, len(list))
	for _, t := range list {
		out[t.Key] = t
	}
	return out
}
