package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/archipelago/internal/catalog"
)

// GenConfig holds archipelago generation parameters.
type GenConfig struct {
	Radius     int     // Sea grid radius
	Seed       int64   // Random seed (0 = random)
	SeaLevel   float64 // Elevation threshold for land (0.0–1.0)
	MaxIslands int
}

// DefaultGenConfig returns the standard archipelago.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:     12,
		SeaLevel:   0.55,
		MaxIslands: 16,
	}
}

// Island bonus bounds.
const (
	MinIslandBonus = -0.1
	MaxIslandBonus = 0.3
)

// Island is a connected patch of land. Bonus is the fractional production
// modifier every city on the island receives.
type Island struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Center HexCoord        `json:"center"`
	Size   int             `json:"size"`
	Bonus  catalog.Amounts `json:"bonus"`
}

// Clone returns a copy that shares no bonus map with isl.
func (isl Island) Clone() Island {
	if isl.Bonus != nil {
		isl.Bonus = isl.Bonus.Clone()
	}
	return isl
}

// CloneIslands deep-copies a list of islands.
func CloneIslands(islands []Island) []Island {
	if islands == nil {
		return nil
	}
	out := make([]Island, len(islands))
	for i, isl := range islands {
		out[i] = isl.Clone()
	}
	return out
}

var islandNames = []string{
	"Thera", "Naxos", "Paros", "Melos", "Delos", "Kythera", "Lesbos", "Chios",
	"Samos", "Ikaria", "Rhodes", "Kos", "Ithaca", "Zakynthos", "Aegina", "Andros",
	"Tinos", "Syros", "Serifos", "Sifnos",
}

type sample struct {
	elev, rain, temp float64
}

// GenerateIslands samples layered simplex noise over the sea grid, keeps
// the hexes above sea level and groups connected land into islands. The
// largest islands come first. At least one island is always returned.
func GenerateIslands(cfg GenConfig) []Island {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	land := make(map[HexCoord]sample)
	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			c := HexCoord{Q: q, R: r}
			if !InRadius(c, cfg.Radius) {
				continue
			}
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0
			elev := octaveNoise(elevNoise, x, y, 3, 0.18, 0.5)
			if elev < cfg.SeaLevel {
				continue
			}
			land[c] = sample{
				elev: (elev - cfg.SeaLevel) / (1 - cfg.SeaLevel),
				rain: octaveNoise(rainNoise, x, y, 2, 0.1, 0.5),
				temp: octaveNoise(tempNoise, x, y, 2, 0.08, 0.5),
			}
		}
	}

	islands := groupIslands(land)
	sort.SliceStable(islands, func(i, j int) bool { return islands[i].Size > islands[j].Size })
	if cfg.MaxIslands > 0 && len(islands) > cfg.MaxIslands {
		islands = islands[:cfg.MaxIslands]
	}
	if len(islands) == 0 {
		islands = []Island{{Size: 1, Bonus: catalog.Amounts{}}}
	}
	for i := range islands {
		islands[i].ID = fmt.Sprintf("isl-%02d", i+1)
		islands[i].Name = islandNames[i%len(islandNames)]
	}
	return islands
}

// groupIslands flood-fills connected land hexes, visiting coordinates in
// sorted order so a seed always gives the same islands.
func groupIslands(land map[HexCoord]sample) []Island {
	coords := make([]HexCoord, 0, len(land))
	for c := range land {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Q != coords[j].Q {
			return coords[i].Q < coords[j].Q
		}
		return coords[i].R < coords[j].R
	})

	seen := make(map[HexCoord]bool, len(land))
	var out []Island
	for _, start := range coords {
		if seen[start] {
			continue
		}
		var members []HexCoord
		stack := []HexCoord{start}
		seen[start] = true
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, c)
			for _, n := range c.Neighbors() {
				if _, ok := land[n]; ok && !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
		if len(members) < 2 {
			continue
		}
		out = append(out, summarize(members, land))
	}
	return out
}

func summarize(members []HexCoord, land map[HexCoord]sample) Island {
	var avg sample
	var sq, sr int
	for _, c := range members {
		s := land[c]
		avg.elev += s.elev
		avg.rain += s.rain
		avg.temp += s.temp
		sq += c.Q
		sr += c.R
	}
	n := float64(len(members))
	avg.elev /= n
	avg.rain /= n
	avg.temp /= n

	return Island{
		Center: HexCoord{Q: sq / len(members), R: sr / len(members)},
		Size:   len(members),
		Bonus:  deriveBonus(avg),
	}
}

// deriveBonus maps the island climate to resource modifiers: wet islands
// grow timber, high ones hold stone and ore, low wet ones feed people and
// warm dry ones grow vines.
func deriveBonus(s sample) catalog.Amounts {
	raw := catalog.Amounts{
		catalog.Wood:  s.rain*0.4 - 0.1,
		catalog.Stone: s.elev*0.45 - 0.1,
		catalog.Iron:  s.elev*0.35 - 0.05,
		catalog.Food:  (1-s.elev)*s.rain*0.5 - 0.05,
		catalog.Wine:  s.temp*(1-s.rain)*0.6 - 0.05,
	}
	out := make(catalog.Amounts, len(raw))
	for r, v := range raw {
		v = math.Max(MinIslandBonus, math.Min(MaxIslandBonus, v))
		out[r] = math.Round(v*100) / 100
	}
	return out
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// FindIsland returns the island with the given ID.
func FindIsland(islands []Island, id string) (Island, bool) {
	for _, isl := range islands {
		if isl.ID == id {
			return isl, true
		}
	}
	return Island{}, false
}
