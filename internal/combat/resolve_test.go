package combat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
)

const (
	militia catalog.UnitKind = "militia"
	ram     catalog.UnitKind = "test_ram"
)

func testResolver() *Resolver {
	cat := catalog.Default()
	cat.Units[militia] = &catalog.Unit{Kind: militia, Domain: catalog.Land, Attack: 10, Defense: 5}
	cat.Units[ram] = &catalog.Unit{Kind: ram, Domain: catalog.Land, SiegePower: 100}
	return NewResolver(cat)
}

// fixed always returns the same value; 0.5 gives a jitter factor of 1.
type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

func TestResolveRatioTwo(t *testing.T) {
	r := testResolver()
	target := Defender{
		Happiness: 100,
		Resources: catalog.Amounts{catalog.Wood: 1500, catalog.Stone: 400},
		Capacity:  1500,
	}
	res := r.Resolve(city.UnitStack{militia: 100}, city.UnitStack{militia: 100}, target, Bonuses{}, fixed(0.5))

	if res.AttackPower != 1000 || res.DefensePower != 500 {
		t.Fatalf("powers = %v / %v, want 1000 / 500", res.AttackPower, res.DefensePower)
	}
	if !res.Victory {
		t.Error("expected victory")
	}
	if res.PowerRatio != 2 {
		t.Errorf("ratio = %v", res.PowerRatio)
	}
	if res.DefenderLossRate != 0.8 || res.AttackerLossRate != 0.2 {
		t.Errorf("loss rates = %v / %v, want 0.2 / 0.8", res.AttackerLossRate, res.DefenderLossRate)
	}
	if res.AttackerLosses[militia] != 20 || res.DefenderLosses[militia] != 80 {
		t.Errorf("losses = %v / %v", res.AttackerLosses, res.DefenderLosses)
	}
	if res.Loot[catalog.Wood] != 225 {
		t.Errorf("wood loot = %v, want 225", res.Loot[catalog.Wood])
	}
	if _, ok := res.Loot[catalog.Stone]; ok {
		t.Error("protected stone was looted")
	}
}

func TestResolveDefeatTakesNoLoot(t *testing.T) {
	r := testResolver()
	target := Defender{Happiness: 100, WallLevel: 1, Resources: catalog.Amounts{catalog.Wood: 1500}, Capacity: 1500}
	res := r.Resolve(city.UnitStack{militia: 10, ram: 10}, city.UnitStack{militia: 100}, target, Bonuses{}, nil)

	if res.Victory {
		t.Fatal("100 vs 500 should lose")
	}
	if len(res.Loot) != 0 || res.WallDamage != 0 {
		t.Errorf("defeat produced loot %v and wall damage %d", res.Loot, res.WallDamage)
	}
	if res.AttackerLossRate != MaxAttackerLoss {
		t.Errorf("attacker loss rate = %v", res.AttackerLossRate)
	}
}

func TestResolveEqualPowerIsDefeat(t *testing.T) {
	r := testResolver()
	res := r.Resolve(city.UnitStack{militia: 50}, city.UnitStack{militia: 100}, Defender{Happiness: 100}, Bonuses{}, nil)
	if res.AttackPower != res.DefensePower || res.Victory {
		t.Errorf("equal power: victory=%v", res.Victory)
	}
}

func TestWallDamage(t *testing.T) {
	r := testResolver()
	tests := []struct {
		wall  int
		rams  int
		bonus float64
		want  int
	}{
		{0, 10, 0, 0},
		{1, 10, 0, 1},    // floor(1000/150)=6, capped at the wall level
		{4, 10, 0, 3},    // floor(1000/300)=3
		{5, 10, 0, 2},    // floor(1000/350)=2
		{5, 10, 0.25, 3}, // floor(1250/350)=3
		{9, 1, 0, 0},
	}
	for _, tt := range tests {
		target := Defender{Happiness: 100, WallLevel: tt.wall}
		army := city.UnitStack{militia: 100, ram: tt.rams}
		res := r.Resolve(army, city.UnitStack{}, target, Bonuses{Siege: tt.bonus}, nil)
		if !res.Victory {
			t.Fatalf("wall %d: expected victory", tt.wall)
		}
		if res.WallDamage != tt.want {
			t.Errorf("wall %d rams %d bonus %v: damage = %d, want %d", tt.wall, tt.rams, tt.bonus, res.WallDamage, tt.want)
		}
	}
}

func TestUndefendedCity(t *testing.T) {
	r := testResolver()
	target := Defender{Happiness: 100, Resources: catalog.Amounts{catalog.Iron: 1000}, Capacity: 1000}
	res := r.Resolve(city.UnitStack{militia: 1}, nil, target, Bonuses{}, nil)
	if !res.Victory || math.IsInf(res.PowerRatio, 0) {
		t.Fatalf("victory=%v ratio=%v", res.Victory, res.PowerRatio)
	}
	if res.Loot[catalog.Iron] != 200 {
		t.Errorf("iron loot = %v, want 200 at the 0.4 cap", res.Loot[catalog.Iron])
	}

	res = r.Resolve(nil, nil, target, Bonuses{}, nil)
	if res.Victory || res.PowerRatio != 0 {
		t.Errorf("empty battle: victory=%v ratio=%v", res.Victory, res.PowerRatio)
	}
}

func TestTechAndMoralModifiers(t *testing.T) {
	r := testResolver()
	target := Defender{Happiness: 50, WallFlat: 100}
	res := r.Resolve(city.UnitStack{militia: 10}, city.UnitStack{militia: 10}, target, Bonuses{Attack: 0.1, Defense: 0.2}, nil)
	if math.Abs(res.AttackPower-110) > 1e-9 {
		t.Errorf("attack = %v, want 110", res.AttackPower)
	}
	// 10 × 5 × 0.5 × 1.2 + 100
	if math.Abs(res.DefensePower-130) > 1e-9 {
		t.Errorf("defense = %v, want 130", res.DefensePower)
	}
}

func TestResolveProperties(t *testing.T) {
	r := testResolver()
	rng := rand.New(rand.NewSource(42))
	kinds := []catalog.UnitKind{catalog.Spearman, catalog.Swordsman, catalog.Archer, catalog.Catapult, catalog.Trireme}

	randomStack := func() city.UnitStack {
		s := make(city.UnitStack)
		for _, k := range kinds {
			if rng.Intn(2) == 0 {
				s[k] = rng.Intn(200)
			}
		}
		return s
	}

	for i := 0; i < 500; i++ {
		att, def := randomStack(), randomStack()
		attCopy, defCopy := att.Clone(), def.Clone()
		target := Defender{
			Happiness: float64(rng.Intn(101)),
			WallLevel: rng.Intn(10),
			WallFlat:  float64(rng.Intn(500)),
			Resources: catalog.Amounts{catalog.Wood: float64(rng.Intn(3000))},
			Capacity:  1500,
		}
		res := r.Resolve(att, def, target, Bonuses{Attack: rng.Float64() * 0.3}, rng)

		if res.Victory != (res.AttackPower > res.DefensePower) {
			t.Fatalf("case %d: victory=%v with %v vs %v", i, res.Victory, res.AttackPower, res.DefensePower)
		}
		for k, n := range res.AttackerLosses {
			if n < 0 || n > att[k] {
				t.Fatalf("case %d: attacker lost %d of %d %s", i, n, att[k], k)
			}
		}
		for k, n := range res.DefenderLosses {
			if n < 0 || n > def[k] {
				t.Fatalf("case %d: defender lost %d of %d %s", i, n, def[k], k)
			}
		}
		if res.WallDamage < 0 || res.WallDamage > MaxWallDamage || res.WallDamage > target.WallLevel {
			t.Fatalf("case %d: wall damage %d at level %d", i, res.WallDamage, target.WallLevel)
		}
		if !att.Covers(attCopy) || !attCopy.Covers(att) || !def.Covers(defCopy) || !defCopy.Covers(def) {
			t.Fatalf("case %d: Resolve mutated its input", i)
		}
	}
}

func TestSeededJitterIsRepeatable(t *testing.T) {
	r := testResolver()
	army := city.UnitStack{catalog.Spearman: 120, catalog.Archer: 80, catalog.Swordsman: 60}
	garrison := city.UnitStack{catalog.Spearman: 150}
	a := r.Resolve(army, garrison, Defender{Happiness: 70}, Bonuses{}, rand.New(rand.NewSource(7)))
	b := r.Resolve(army, garrison, Defender{Happiness: 70}, Bonuses{}, rand.New(rand.NewSource(7)))
	for k := range army {
		if a.AttackerLosses[k] != b.AttackerLosses[k] {
			t.Errorf("%s losses differ: %d vs %d", k, a.AttackerLosses[k], b.AttackerLosses[k])
		}
	}
}
