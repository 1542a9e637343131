package engine

import "time"

// Tick advances the game to now: production and population growth then
// queues for each city, the shared research queue, world events, and
// finally one GameUpdated event. A long gap is processed as a single
// delta. A now earlier than the last update produces nothing but still
// publishes GameUpdated with a zero delta.
func (g *Game) Tick(now time.Time) {
	g.mutate(func() error {
		delta := now.Sub(g.lastUpdate)
		if delta < 0 {
			delta = 0
			now = g.lastUpdate
		}

		for _, id := range g.cityIDs() {
			c := g.cities[id]
			mods := g.modifiers(c)
			g.calc.Produce(c, mods, delta)
			g.calc.GrowPopulation(c, mods, delta)
			g.pending = append(g.pending, AdvanceQueues(g.catalog, c, now)...)
		}
		g.advanceResearch(now)

		started, completed := g.events.Advance(now)
		for _, ev := range completed {
			g.pending = append(g.pending, Event{Kind: WorldEventCompleted, At: ev.EndsAt, Payload: ev})
		}
		for _, ev := range started {
			g.pending = append(g.pending, Event{Kind: WorldEventStarted, At: ev.StartedAt, Payload: ev})
		}

		g.lastUpdate = now
		g.emit(GameUpdated, "", Updated{Delta: delta, Cities: len(g.cities), Snapshot: g.snapshot()})
		return nil
	})
}
