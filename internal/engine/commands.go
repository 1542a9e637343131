package engine

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/combat"
	"github.com/talgya/archipelago/internal/market"
	"github.com/talgya/archipelago/internal/validation"
)

// Every command validates fully before it deducts or enqueues anything, so
// a returned error means the game is unchanged.

// BuildBuilding queues the next level of kind in a city. Levels already
// queued count toward the next one.
func (g *Game) BuildBuilding(cityID string, kind catalog.BuildingKind) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		def, err := g.catalog.Building(kind)
		if err != nil {
			return err
		}
		target := c.BuildingLevel(kind) + queuedLevels(c.BuildQueue, kind) + 1
		if target > def.MaxLevel {
			return validation.Errorf(validation.AlreadyDone, "%s is at its maximum level %d", kind, def.MaxLevel)
		}
		if err := g.checkPrerequisites(c, def.RequirementsAt(target)); err != nil {
			return err
		}
		if n := g.queueCapacity(catalog.QueueBuilding); len(c.BuildQueue) >= n {
			return validation.Errorf(validation.QueueFull, "building queue holds %d", n)
		}
		cost := def.CostAt(target)
		if err := checkAffordable(c, cost); err != nil {
			return err
		}

		c.Resources.Deduct(cost)
		now := g.now()
		d := def.TimeAt(target)
		entry = city.QueueEntry{
			ID:            uuid.NewString(),
			Queue:         catalog.QueueBuilding,
			Subject:       string(kind),
			Target:        target,
			CityID:        c.ID,
			StartTime:     now,
			EndTime:       now.Add(d),
			TotalDuration: d,
			Cost:          cost,
		}
		c.BuildQueue = append(c.BuildQueue, entry)
		entry = entry.Clone()
		g.emit(BuildingStarted, c.ID, entry.Clone())
		return nil
	})
	return entry, err
}

// StartResearch queues a technology paid for by cityID. Research is shared
// by all cities; its duration is fixed when it starts.
func (g *Game) StartResearch(cityID string, key catalog.TechKey) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		tech, err := g.catalog.Technology(key)
		if err != nil {
			return err
		}
		if g.tech.Has(key) {
			return validation.Errorf(validation.AlreadyDone, "%s is already researched", key)
		}
		for _, e := range g.research {
			if e.Subject == string(key) {
				return validation.Errorf(validation.AlreadyDone, "%s is already being researched", key)
			}
		}
		if err := g.checkPrerequisites(c, tech.Requires); err != nil {
			return err
		}
		if n := g.queueCapacity(catalog.QueueResearch); len(g.research) >= n {
			return validation.Errorf(validation.QueueFull, "research queue holds %d", n)
		}
		if err := checkAffordable(c, tech.Cost); err != nil {
			return err
		}

		c.Resources.Deduct(tech.Cost)
		now := g.now()
		d := catalog.ResearchDuration(tech.ResearchPoints, g.researchSpeed())
		entry = city.QueueEntry{
			ID:            uuid.NewString(),
			Queue:         catalog.QueueResearch,
			Subject:       string(key),
			Target:        1,
			CityID:        c.ID,
			StartTime:     now,
			EndTime:       now.Add(d),
			TotalDuration: d,
			Cost:          tech.Cost.Clone(),
		}
		g.research = append(g.research, entry)
		entry = entry.Clone()
		g.emit(ResearchStarted, c.ID, entry.Clone())
		return nil
	})
	return entry, err
}

// RecruitUnit queues qty units of kind in a city.
func (g *Game) RecruitUnit(cityID string, kind catalog.UnitKind, qty int) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		if qty <= 0 {
			return validation.Errorf(validation.InvalidArgument, "quantity must be positive, got %d", qty)
		}
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		u, err := g.catalog.Unit(kind)
		if err != nil {
			return err
		}
		if u.Locked && !g.globalEffects().Units[kind] {
			return validation.Errorf(validation.PrerequisiteUnmet, "%s has not been unlocked", kind)
		}
		if err := g.checkPrerequisites(c, u.Requires); err != nil {
			return err
		}
		if n := g.queueCapacity(catalog.QueueRecruitment); len(c.RecruitQueue) >= n {
			return validation.Errorf(validation.QueueFull, "recruitment queue holds %d", n)
		}
		cost := catalog.RecruitCost(u, qty)
		if err := checkAffordable(c, cost); err != nil {
			return err
		}

		c.Resources.Deduct(cost)
		now := g.now()
		d := catalog.RecruitDuration(u, qty)
		entry = city.QueueEntry{
			ID:            uuid.NewString(),
			Queue:         catalog.QueueRecruitment,
			Subject:       string(kind),
			Target:        qty,
			CityID:        c.ID,
			StartTime:     now,
			EndTime:       now.Add(d),
			TotalDuration: d,
			Cost:          cost,
		}
		c.RecruitQueue = append(c.RecruitQueue, entry)
		entry = entry.Clone()
		g.emit(RecruitmentStarted, c.ID, entry.Clone())
		return nil
	})
	return entry, err
}

// CancelBuilding removes a queued building level and refunds its cost. Only
// the highest queued level of a building can be cancelled.
func (g *Game) CancelBuilding(cityID, entryID string) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		i := findEntry(c.BuildQueue, entryID)
		if i < 0 {
			return validation.Errorf(validation.NotFound, "building entry %s not found", entryID)
		}
		entry = c.BuildQueue[i]
		for _, later := range c.BuildQueue[i+1:] {
			if later.Subject == entry.Subject {
				return validation.Errorf(validation.InvalidArgument, "%s level %d is queued after this one", entry.Subject, later.Target)
			}
		}
		c.BuildQueue = removeEntry(c.BuildQueue, i)
		c.Resources.Add(entry.Cost)
		g.emit(BuildingCancelled, c.ID, entry)
		return nil
	})
	return entry, err
}

// CancelResearch removes a queued technology and refunds the paying city.
func (g *Game) CancelResearch(entryID string) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		i := findEntry(g.research, entryID)
		if i < 0 {
			return validation.Errorf(validation.NotFound, "research entry %s not found", entryID)
		}
		entry = g.research[i]
		g.research = removeEntry(g.research, i)
		if c, ok := g.cities[entry.CityID]; ok {
			c.Resources.Add(entry.Cost)
		} else {
			slog.Warn("research refund for missing city dropped", "city", entry.CityID, "tech", entry.Subject)
		}
		g.emit(ResearchCancelled, entry.CityID, entry)
		return nil
	})
	return entry, err
}

// CancelRecruitment removes a queued recruitment and refunds its cost.
func (g *Game) CancelRecruitment(cityID, entryID string) (city.QueueEntry, error) {
	var entry city.QueueEntry
	err := g.mutate(func() error {
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		i := findEntry(c.RecruitQueue, entryID)
		if i < 0 {
			return validation.Errorf(validation.NotFound, "recruitment entry %s not found", entryID)
		}
		entry = c.RecruitQueue[i]
		c.RecruitQueue = removeEntry(c.RecruitQueue, i)
		c.Resources.Add(entry.Cost)
		g.emit(RecruitmentCancelled, c.ID, entry)
		return nil
	})
	return entry, err
}

// PlaceBuyOrder offers gold for qty of a resource at up to limit each.
func (g *Game) PlaceBuyOrder(cityID string, r catalog.ResourceKind, qty, limit float64) (market.Order, []market.Trade, error) {
	return g.placeOrder(market.Buy, cityID, r, qty, limit)
}

// PlaceSellOrder offers qty of a resource for at least limit gold each.
func (g *Game) PlaceSellOrder(cityID string, r catalog.ResourceKind, qty, limit float64) (market.Order, []market.Trade, error) {
	return g.placeOrder(market.Sell, cityID, r, qty, limit)
}

func (g *Game) placeOrder(side market.Side, cityID string, r catalog.ResourceKind, qty, limit float64) (market.Order, []market.Trade, error) {
	var (
		order  market.Order
		trades []market.Trade
	)
	err := g.mutate(func() error {
		c, err := g.city(cityID)
		if err != nil {
			return err
		}
		if c.BuildingLevel(catalog.Marketplace) < 1 {
			return validation.Errorf(validation.PrerequisiteUnmet, "city %s has no marketplace", cityID)
		}
		order, trades, err = g.exchange.PlaceOrder(side, r, qty, limit, cityID, g.now())
		if err != nil {
			return err
		}
		g.emit(OrderPlaced, cityID, order)
		for _, t := range trades {
			g.emit(TradeExecuted, t.BuyerID, t)
		}
		return nil
	})
	return order, trades, err
}

// CancelOrder removes a resting order and refunds what it still reserves.
func (g *Game) CancelOrder(orderID string) (market.Refund, error) {
	var refund market.Refund
	err := g.mutate(func() error {
		var err error
		refund, err = g.exchange.CancelOrder(orderID)
		if err != nil {
			return err
		}
		g.emit(OrderCancelled, refund.Order.OwnerID, refund)
		return nil
	})
	return refund, err
}

// battle holds a validated engagement ready for the resolver.
type battle struct {
	attacker, defender *city.City
	defenders          city.UnitStack
	target             combat.Defender
	bonuses            combat.Bonuses
}

// prepareBattle checks that the attacking city holds army and gathers the
// defender's garrison, wall, moral and stockpile. Both land and naval
// garrisons defend.
func (g *Game) prepareBattle(attackerID, defenderID string, army city.UnitStack) (battle, error) {
	if attackerID == defenderID {
		return battle{}, validation.Errorf(validation.InvalidArgument, "a city cannot attack itself")
	}
	att, err := g.city(attackerID)
	if err != nil {
		return battle{}, err
	}
	def, err := g.city(defenderID)
	if err != nil {
		return battle{}, err
	}
	if army.Total() <= 0 {
		return battle{}, validation.Errorf(validation.InvalidArgument, "army is empty")
	}
	available := make(city.UnitStack)
	for kind, n := range army {
		u, err := g.catalog.Unit(kind)
		if err != nil {
			return battle{}, err
		}
		if n < 0 {
			return battle{}, validation.Errorf(validation.InvalidArgument, "negative count for %s", kind)
		}
		available[kind] = att.Garrison(u.Domain)[kind]
	}
	if !available.Covers(army) {
		return battle{}, validation.Errorf(validation.InsufficientResources, "city %s does not hold that army", attackerID)
	}

	defenders := def.Land.Clone()
	for kind, n := range def.Naval {
		defenders[kind] += n
	}
	attMods := g.modifiers(att)
	defMods := g.modifiers(def)
	defBuildings := g.calc.BuildingModifiers(def)

	return battle{
		attacker:  att,
		defender:  def,
		defenders: defenders,
		target: combat.Defender{
			Happiness: g.calc.Happiness(def, defMods),
			WallLevel: def.BuildingLevel(catalog.Wall),
			WallFlat:  defBuildings.DefenseFlat + defMods.Effects.DefenseFlat,
			Resources: catalog.Amounts(def.Resources.Clone()),
			Capacity:  g.calc.StorageCapacity(def, defMods),
		},
		bonuses: combat.Bonuses{
			Attack:  attMods.Effects.Attack,
			Siege:   attMods.Effects.Siege,
			Defense: defMods.Effects.Defense,
		},
	}, nil
}

// CalculateCombatOutcome previews an attack without jitter. Nothing is
// changed.
func (g *Game) CalculateCombatOutcome(attackerID, defenderID string, army city.UnitStack) (combat.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.prepareBattle(attackerID, defenderID, army)
	if err != nil {
		return combat.Result{}, err
	}
	return g.resolver.Resolve(army, b.defenders, b.target, b.bonuses, nil), nil
}

// Attack fights a battle and applies it: both sides lose units, a victor
// carries off loot and siege engines break wall levels.
func (g *Game) Attack(attackerID, defenderID string, army city.UnitStack) (combat.Result, error) {
	var res combat.Result
	err := g.mutate(func() error {
		b, err := g.prepareBattle(attackerID, defenderID, army)
		if err != nil {
			return err
		}
		res = g.resolver.Resolve(army, b.defenders, b.target, b.bonuses, g.rng)

		g.removeUnits(b.attacker, res.AttackerLosses)
		g.removeUnits(b.defender, res.DefenderLosses)
		if len(res.Loot) > 0 {
			b.defender.Resources.Deduct(res.Loot)
			b.attacker.Resources.Add(res.Loot)
		}
		if res.WallDamage > 0 {
			b.defender.SetLevel(catalog.Wall, b.defender.BuildingLevel(catalog.Wall)-res.WallDamage)
		}

		slog.Info("combat resolved", "attacker", attackerID, "defender", defenderID,
			"victory", res.Victory, "ratio", res.PowerRatio, "wall_damage", res.WallDamage)
		g.emit(CombatResolved, attackerID, CombatReport{
			AttackerCityID: attackerID,
			DefenderCityID: defenderID,
			Army:           army.Clone(),
			Result:         res,
		})
		return nil
	})
	return res, err
}

func (g *Game) removeUnits(c *city.City, losses city.UnitStack) {
	for kind, n := range losses {
		u, ok := g.catalog.Units[kind]
		if !ok {
			continue
		}
		c.Garrison(u.Domain).Remove(city.UnitStack{kind: n})
	}
}
