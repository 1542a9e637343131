// Package city holds the per-city state: stockpile, buildings, garrisons
// and the building and recruitment queues.
package city

import (
	"sort"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
)

// ResourcePool is a city's stockpile. Amounts are never negative.
type ResourcePool map[catalog.ResourceKind]float64

// Covers reports whether the pool can pay cost in full.
func (p ResourcePool) Covers(cost catalog.Amounts) bool {
	for r, v := range cost {
		if p[r] < v {
			return false
		}
	}
	return true
}

// Missing returns the first resource the pool is short of, if any.
func (p ResourcePool) Missing(cost catalog.Amounts) (catalog.ResourceKind, float64, bool) {
	for _, r := range cost.Kinds() {
		if p[r] < cost[r] {
			return r, cost[r] - p[r], true
		}
	}
	return "", 0, false
}

// Deduct subtracts cost. Callers check Covers first.
func (p ResourcePool) Deduct(cost catalog.Amounts) {
	for r, v := range cost {
		p[r] -= v
		if p[r] < 0 {
			p[r] = 0
		}
	}
}

// Add credits amounts to the pool.
func (p ResourcePool) Add(amounts catalog.Amounts) {
	for r, v := range amounts {
		p[r] += v
	}
}

// Clone returns an independent copy.
func (p ResourcePool) Clone() ResourcePool {
	out := make(ResourcePool, len(p))
	for r, v := range p {
		out[r] = v
	}
	return out
}

// BuildingInstance is one constructed building. Level never decrements.
type BuildingInstance struct {
	Kind     catalog.BuildingKind `json:"kind"`
	Level    int                  `json:"level"`
	Position int                  `json:"position"`
}

// UnitStack counts units by kind.
type UnitStack map[catalog.UnitKind]int

// Total returns the number of units in the stack.
func (s UnitStack) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Kinds returns the kinds with a positive count, sorted.
func (s UnitStack) Kinds() []catalog.UnitKind {
	kinds := make([]catalog.UnitKind, 0, len(s))
	for k, c := range s {
		if c > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Covers reports whether s holds at least the counts in other.
func (s UnitStack) Covers(other UnitStack) bool {
	for k, c := range other {
		if c < 0 || s[k] < c {
			return false
		}
	}
	return true
}

// Remove subtracts losses, dropping kinds that reach zero.
func (s UnitStack) Remove(losses UnitStack) {
	for k, c := range losses {
		s[k] -= c
		if s[k] <= 0 {
			delete(s, k)
		}
	}
}

// Clone returns an independent copy.
func (s UnitStack) Clone() UnitStack {
	out := make(UnitStack, len(s))
	for k, c := range s {
		out[k] = c
	}
	return out
}

// QueueEntry is a pending timed action. The same shape serves building,
// research and recruitment queues; Subject is the building kind, tech key
// or unit kind and Target the level or quantity.
type QueueEntry struct {
	ID            string            `json:"id"`
	Queue         catalog.QueueKind `json:"queue"`
	Subject       string            `json:"subject"`
	Target        int               `json:"target"`
	CityID        string            `json:"city_id"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	Cost          catalog.Amounts   `json:"cost"`
}

// Done reports whether the entry has reached its deadline at now.
func (e QueueEntry) Done(now time.Time) bool {
	return !now.Before(e.EndTime)
}

// Progress returns completion in [0, 1] at now.
func (e QueueEntry) Progress(now time.Time) float64 {
	if e.TotalDuration <= 0 || e.Done(now) {
		return 1
	}
	p := float64(now.Sub(e.StartTime)) / float64(e.TotalDuration)
	if p < 0 {
		return 0
	}
	return p
}

// City is one player settlement.
type City struct {
	ID         string                                    `json:"id"`
	Name       string                                    `json:"name"`
	Owner      string                                    `json:"owner"`
	IslandID   string                                    `json:"island_id"`
	Resources  ResourcePool                              `json:"resources"`
	Buildings  map[catalog.BuildingKind]BuildingInstance `json:"buildings"`
	Population float64                                   `json:"population"`
	Land       UnitStack                                 `json:"land"`
	Naval      UnitStack                                 `json:"naval"`

	BuildQueue   []QueueEntry `json:"build_queue"`
	RecruitQueue []QueueEntry `json:"recruit_queue"`
}

// StartingPopulation is the population of a freshly founded city.
const StartingPopulation = 40

// New founds a city with a level 1 town hall and an empty stockpile.
func New(id, name, owner, islandID string) *City {
	c := &City{
		ID:         id,
		Name:       name,
		Owner:      owner,
		IslandID:   islandID,
		Resources:  make(ResourcePool),
		Buildings:  make(map[catalog.BuildingKind]BuildingInstance),
		Population: StartingPopulation,
		Land:       make(UnitStack),
		Naval:      make(UnitStack),
	}
	c.SetLevel(catalog.TownHall, 1)
	return c
}

// BuildingLevel returns the level of kind, 0 if not built.
func (c *City) BuildingLevel(kind catalog.BuildingKind) int {
	return c.Buildings[kind].Level
}

// SetLevel sets a building's level, creating the instance in the next
// free position if needed.
func (c *City) SetLevel(kind catalog.BuildingKind, level int) {
	b, ok := c.Buildings[kind]
	if !ok {
		b = BuildingInstance{Kind: kind, Position: len(c.Buildings)}
	}
	b.Level = level
	c.Buildings[kind] = b
}

// Garrison returns the stack units of the given domain join.
func (c *City) Garrison(d catalog.Domain) UnitStack {
	if d == catalog.Naval {
		return c.Naval
	}
	return c.Land
}

// Queue returns the city-owned queue of kind. Research is global and
// returns nil.
func (c *City) Queue(kind catalog.QueueKind) []QueueEntry {
	switch kind {
	case catalog.QueueBuilding:
		return c.BuildQueue
	case catalog.QueueRecruitment:
		return c.RecruitQueue
	}
	return nil
}

// Normalize fills nil maps left by decoding.
func (c *City) Normalize() {
	if c.Resources == nil {
		c.Resources = make(ResourcePool)
	}
	if c.Buildings == nil {
		c.Buildings = make(map[catalog.BuildingKind]BuildingInstance)
	}
	if c.Land == nil {
		c.Land = make(UnitStack)
	}
	if c.Naval == nil {
		c.Naval = make(UnitStack)
	}
}

// Clone returns a deep copy that shares nothing with c.
func (c *City) Clone() *City {
	out := *c
	out.Resources = c.Resources.Clone()
	out.Buildings = make(map[catalog.BuildingKind]BuildingInstance, len(c.Buildings))
	for k, b := range c.Buildings {
		out.Buildings[k] = b
	}
	out.Land = c.Land.Clone()
	out.Naval = c.Naval.Clone()
	out.BuildQueue = CloneEntries(c.BuildQueue)
	out.RecruitQueue = CloneEntries(c.RecruitQueue)
	return &out
}

// Clone returns a copy that shares no cost map with e.
func (e QueueEntry) Clone() QueueEntry {
	e.Cost = e.Cost.Clone()
	return e
}

// CloneEntries deep-copies a queue.
func CloneEntries(q []QueueEntry) []QueueEntry {
	if q == nil {
		return nil
	}
	out := make([]QueueEntry, len(q))
	for i, e := range q {
		out[i] = e.Clone()
	}
	return out
}
