package persistence

import (
	"fmt"
	"sort"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/world"
)

// WarningKind classifies a ConsistencyWarning.
type WarningKind string

const (
	ChecksumMismatch WarningKind = "checksum_mismatch"
	DanglingIsland   WarningKind = "dangling_island"
	DanglingOwner    WarningKind = "dangling_owner"
	DanglingCity     WarningKind = "dangling_city"
	DanglingAlliance WarningKind = "dangling_alliance"
	TableMismatch    WarningKind = "table_mismatch"
	UnknownTech      WarningKind = "unknown_technology"
	UnknownEffect    WarningKind = "unknown_effect"
)

// ConsistencyWarning is a problem found while loading that did not stop
// the load.
type ConsistencyWarning struct {
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

// Check looks for references in s that point at nothing. Results are in a
// stable order. Technologies and effects the restored game will drop are
// reported too.
func Check(s *engine.GameState) []ConsistencyWarning {
	var out []ConsistencyWarning
	add := func(kind WarningKind, format string, args ...any) {
		out = append(out, ConsistencyWarning{Kind: kind, Detail: fmt.Sprintf(format, args...)})
	}

	ids := make([]string, 0, len(s.Cities))
	for id := range s.Cities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := s.Cities[id]
		if c == nil {
			add(DanglingCity, "city %s has no data", id)
			continue
		}
		if c.ID != id {
			add(DanglingCity, "city stored under %s has id %s", id, c.ID)
		}
		if _, ok := world.FindIsland(s.Islands, c.IslandID); !ok {
			add(DanglingIsland, "city %s is on unknown island %s", id, c.IslandID)
		}
		if _, ok := s.Players[c.Owner]; !ok {
			add(DanglingOwner, "city %s belongs to unknown player %s", id, c.Owner)
		}
		for _, q := range [][]city.QueueEntry{c.BuildQueue, c.RecruitQueue} {
			for _, e := range q {
				if e.CityID != id {
					add(DanglingCity, "%s entry %s in city %s points at city %s", e.Queue, e.ID, id, e.CityID)
				}
			}
		}
	}

	for _, e := range s.ResearchQueue {
		if _, ok := s.Cities[e.CityID]; !ok {
			add(DanglingCity, "research entry %s was paid by unknown city %s", e.ID, e.CityID)
		}
	}
	for _, o := range s.Market.Orders {
		if _, ok := s.Cities[o.OwnerID]; !ok {
			add(DanglingCity, "order %s belongs to unknown city %s", o.ID, o.OwnerID)
		}
	}

	techs := catalog.Default().Technologies
	for _, key := range s.Technologies.Unlocked {
		if _, ok := techs[key]; !ok {
			add(UnknownTech, "technology %s is not in the catalog", key)
		}
	}
	for _, ev := range s.WorldEvents.Active {
		for _, e := range ev.Effects {
			if !e.Kind.Known() {
				add(UnknownEffect, "world event %s has effect of unknown kind %q", ev.ID, e.Kind)
			}
		}
	}

	pids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		pids = append(pids, id)
	}
	sort.Strings(pids)
	for _, id := range pids {
		p := s.Players[id]
		if p.AllianceID == "" {
			continue
		}
		if _, ok := s.Alliances[p.AllianceID]; !ok {
			add(DanglingAlliance, "player %s is in unknown alliance %s", id, p.AllianceID)
		}
	}
	return out
}
