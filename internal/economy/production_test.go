package economy

import (
	"math"
	"testing"
	"time"

	"github.com/talgya/archipelago/internal/catalog"
	"github.com/talgya/archipelago/internal/city"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func testCity() *city.City {
	c := city.New("c1", "Thera", "p1", "i1")
	c.SetLevel(catalog.Forum, 1)
	c.SetLevel(catalog.Tavern, 1)
	c.SetLevel(catalog.LumberMill, 1)
	return c
}

func TestComputeProductionBaseline(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := testCity()

	if got := calc.MaxPopulation(c); got != 75 {
		t.Fatalf("max population = %v, want 75", got)
	}
	if got := calc.Happiness(c, GlobalModifiers{}); got != 60 {
		t.Fatalf("happiness = %v, want 60", got)
	}
	rates := calc.ComputeProduction(c, GlobalModifiers{})
	if !approx(rates[catalog.Wood], 10) {
		t.Errorf("wood = %v/h, want 10", rates[catalog.Wood])
	}
	if !approx(rates[catalog.Gold], 5) {
		t.Errorf("gold = %v/h, want 5 from the town hall", rates[catalog.Gold])
	}
}

func TestComputeProductionMultipliers(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	tests := []struct {
		name  string
		level int
		mods  GlobalModifiers
		want  float64
	}{
		{"level 3", 3, GlobalModifiers{}, 12},
		{"island and alliance", 1, GlobalModifiers{
			IslandBonus:   catalog.Amounts{catalog.Wood: 0.2},
			AllianceBonus: 0.1,
		}, 13.2},
		{"tech bonus", 1, GlobalModifiers{
			Effects: catalog.Fold([]catalog.Effect{catalog.ProductionBonus(catalog.Wood, 0.15)}),
		}, 11.5},
		{"island bonus on another resource", 1, GlobalModifiers{
			IslandBonus: catalog.Amounts{catalog.Iron: 0.5},
		}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCity()
			c.SetLevel(catalog.LumberMill, tt.level)
			got := calc.ComputeProduction(c, tt.mods)[catalog.Wood]
			if !approx(got, tt.want) {
				t.Errorf("wood = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHappinessThresholdIsAStep(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := city.New("c1", "Thera", "p1", "i1")
	c.SetLevel(catalog.Forum, 1)
	c.SetLevel(catalog.LumberMill, 1)
	c.Population = 75 // penalty 10 → happiness 40

	h := calc.Happiness(c, GlobalModifiers{})
	if !approx(h, 40) {
		t.Fatalf("happiness = %v, want 40", h)
	}
	if got := calc.ComputeProduction(c, GlobalModifiers{})[catalog.Wood]; !approx(got, 9) {
		t.Errorf("wood = %v, want 9", got)
	}

	if HappinessMultiplier(50) != 1.0 || HappinessMultiplier(49.99) != 0.9 {
		t.Error("multiplier is not a hard step at 50")
	}
}

func TestHappinessClamped(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := testCity()
	mods := GlobalModifiers{Effects: catalog.Fold([]catalog.Effect{catalog.HappinessBonus(500)})}
	if got := calc.Happiness(c, mods); got != 100 {
		t.Errorf("happiness = %v, want 100", got)
	}
	mods = GlobalModifiers{Effects: catalog.Fold([]catalog.Effect{catalog.HappinessBonus(-500)})}
	if got := calc.Happiness(c, mods); got != 0 {
		t.Errorf("happiness = %v, want 0", got)
	}
}

func TestProduceScalesByElapsed(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := testCity()

	added := calc.Produce(c, GlobalModifiers{}, 30*time.Minute)
	if !approx(c.Resources[catalog.Wood], 5) {
		t.Errorf("wood after 30m = %v, want 5", c.Resources[catalog.Wood])
	}
	if !approx(added[catalog.Wood], 5) {
		t.Errorf("added = %v", added)
	}
	if added := calc.Produce(c, GlobalModifiers{}, 0); len(added) != 0 {
		t.Errorf("zero elapsed produced %v", added)
	}
}

func TestProduceNeverExceedsCapacity(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := testCity()
	c.SetLevel(catalog.Warehouse, 1)
	c.Resources[catalog.Wood] = 1490
	c.Resources[catalog.Gold] = 5000

	for i := 0; i < 5; i++ {
		calc.Produce(c, GlobalModifiers{}, 10*time.Hour)
		capacity := calc.StorageCapacity(c, GlobalModifiers{})
		for _, r := range catalog.StorableResources() {
			if c.Resources[r] > capacity {
				t.Fatalf("%s = %v exceeds capacity %v", r, c.Resources[r], capacity)
			}
		}
	}
	if c.Resources[catalog.Wood] != 1500 {
		t.Errorf("wood = %v, want 1500", c.Resources[catalog.Wood])
	}
	if c.Resources[catalog.Gold] <= 5000 {
		t.Errorf("gold is uncapped but stayed at %v", c.Resources[catalog.Gold])
	}
}

func TestStorageBonus(t *testing.T) {
	calc := NewCalculator(catalog.Default())
	c := testCity()
	c.SetLevel(catalog.Warehouse, 1)
	mods := GlobalModifiers{Effects: catalog.Fold([]catalog.Effect{catalog.StorageBonus(0.25)})}
	if got := calc.StorageCapacity(c, mods); got != 1875 {
		t.Errorf("capacity = %v, want 1875", got)
	}
}

func TestGrowPopulation(t *testing.T) {
	calc := NewCalculator(catalog.Default())

	c := testCity()
	calc.GrowPopulation(c, GlobalModifiers{}, time.Hour)
	if !approx(c.Population, 52) {
		t.Errorf("population = %v, want 52", c.Population)
	}

	calc.GrowPopulation(c, GlobalModifiers{}, 100*time.Hour)
	if c.Population != 75 {
		t.Errorf("population = %v, want capped at 75", c.Population)
	}

	sad := testCity()
	mods := GlobalModifiers{Effects: catalog.Fold([]catalog.Effect{catalog.HappinessBonus(-40)})}
	calc.GrowPopulation(sad, mods, time.Hour)
	if sad.Population != city.StartingPopulation {
		t.Errorf("population grew at happiness 20: %v", sad.Population)
	}
}
