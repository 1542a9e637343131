// Package world provides the archipelago map and the ambient world events
// that modify production for everyone while they last.
package world

// HexCoord is a position on the sea grid in axial coordinates. The third
// cube coordinate is s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

var neighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var out [6]HexCoord
	for i, d := range neighborDirections {
		out[i] = HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
	}
	return out
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S()-b.S()))
}

// InRadius reports whether c lies within radius of the origin.
func InRadius(c HexCoord, radius int) bool {
	return Distance(c, HexCoord{}) <= radius
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
