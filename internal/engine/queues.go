package engine

import (
	"log/slog"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
)

// AdvanceQueues completes every building and recruitment entry of c whose
// end time has passed, in queue order, and returns one event per
// completion. A completed entry is removed, so calling it again with the
// same now does nothing.
func AdvanceQueues(cat *catalog.Catalog, c *city.City, now time.Time) []Event {
	var events []Event

	var done []city.QueueEntry
	c.BuildQueue, done = splitDone(c.BuildQueue, now)
	for _, e := range done {
		kind := catalog.BuildingKind(e.Subject)
		// Queued upgrades can finish out of order when capacity allows
		// several at once; the level only moves forward.
		if e.Target > c.BuildingLevel(kind) {
			c.SetLevel(kind, e.Target)
		}
		events = append(events, Event{Kind: BuildingCompleted, At: e.EndTime, CityID: c.ID, Payload: e})
	}

	c.RecruitQueue, done = splitDone(c.RecruitQueue, now)
	for _, e := range done {
		kind := catalog.UnitKind(e.Subject)
		u, ok := cat.Units[kind]
		if !ok {
			slog.Warn("recruitment for unknown unit dropped", "city", c.ID, "unit", kind, "quantity", e.Target)
			continue
		}
		garrison := c.Garrison(u.Domain)
		garrison[kind] += e.Target
		events = append(events, Event{Kind: RecruitmentCompleted, At: e.EndTime, CityID: c.ID, Payload: e})
	}
	return events
}

// advanceResearch completes the global research queue.
func (g *Game) advanceResearch(now time.Time) {
	var done []city.QueueEntry
	g.research, done = splitDone(g.research, now)
	for _, e := range done {
		key := catalog.TechKey(e.Subject)
		if !g.tech.Has(key) {
			g.tech.Unlocked = append(g.tech.Unlocked, key)
		}
		g.pending = append(g.pending, Event{Kind: ResearchCompleted, At: e.EndTime, CityID: e.CityID, Payload: e})
	}
}

// splitDone partitions q into pending and finished entries, both in queue
// order.
func splitDone(q []city.QueueEntry, now time.Time) (pending, done []city.QueueEntry) {
	for _, e := range q {
		if e.Done(now) {
			done = append(done, e)
			continue
		}
		pending = append(pending, e)
	}
	return pending, done
}

// queuedLevels counts the entries of q building kind.
func queuedLevels(q []city.QueueEntry, kind catalog.BuildingKind) int {
	n := 0
	for _, e := range q {
		if e.Subject == string(kind) {
			n++
		}
	}
	return n
}

func findEntry(q []city.QueueEntry, id string) int {
	for i, e := range q {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func removeEntry(q []city.QueueEntry, i int) []city.QueueEntry {
	return append(q[:i:i], q[i+1:]...)
}
