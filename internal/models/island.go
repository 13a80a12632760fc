package models

import (
	"math/rand"
	"time"
)

// CellResources are the resource types that can seed the island and be
// collected by players.
var CellResources = []string{"food", "wood", "stone"}

// HazardEffect is the closed set of movement-altering hazard behaviors.
type HazardEffect int

const (
	HazardSlip HazardEffect = iota
	HazardLaunch
	HazardFall
	HazardBounce
)

// String returns the wire name of the effect.
func (e HazardEffect) String() string {
	switch e {
	case HazardSlip:
		return "slip"
	case HazardLaunch:
		return "launch"
	case HazardFall:
		return "fall"
	case HazardBounce:
		return "bounce"
	default:
		return "unknown"
	}
}

// Hazard is a transient trap bound to a cell. It fires when an alive
// player lands on the cell and expires after a fixed age.
type Hazard struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Emoji   string       `json:"emoji"`
	Effect  HazardEffect `json:"effect"`
	SpawnAt time.Time    `json:"-"`
}

// PhysicsEffect is a presentation tag left on a cell after a collision
// or hazard, so the dashboard can animate it. It is not authoritative
// state and expires alongside hazards.
type PhysicsEffect struct {
	Kind      string    `json:"kind"` // "collision" or "hazard"
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"-"`
}

// Cell is one square of the island grid.
type Cell struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Terrain  string         `json:"terrain"`
	Resource string         `json:"resource,omitempty"`
	Hazard   *Hazard        `json:"hazard,omitempty"`
	Effect   *PhysicsEffect `json:"effect,omitempty"`
}

// Island is a size x size grid of cells, indexed [y][x].
type Island struct {
	Size  int       `json:"size"`
	Cells [][]*Cell `json:"cells"`
}

// NewIsland builds a fully initialized grid. Roughly 30% of cells get a
// random static resource.
func NewIsland(size int, rng *rand.Rand) *Island {
	cells := make([][]*Cell, size)
	for y := 0; y < size; y++ {
		row := make([]*Cell, size)
		for x := 0; x < size; x++ {
			c := &Cell{X: x, Y: y, Terrain: "grass"}
			if rng.Float64() < 0.3 {
				c.Resource = CellResources[rng.Intn(len(CellResources))]
			}
			row[x] = c
		}
		cells[y] = row
	}
	return &Island{Size: size, Cells: cells}
}

// At returns the cell at p, or nil when p is outside the grid.
func (i *Island) At(p Position) *Cell {
	if p.X < 0 || p.Y < 0 || p.X >= i.Size || p.Y >= i.Size {
		return nil
	}
	return i.Cells[p.Y][p.X]
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (i *Island) Clone() *Island {
	cells := make([][]*Cell, i.Size)
	for y, row := range i.Cells {
		cells[y] = make([]*Cell, i.Size)
		for x, c := range row {
			cp := *c
			if c.Hazard != nil {
				h := *c.Hazard
				cp.Hazard = &h
			}
			if c.Effect != nil {
				e := *c.Effect
				cp.Effect = &e
			}
			cells[y][x] = &cp
		}
	}
	return &Island{Size: i.Size, Cells: cells}
}

// Expire removes hazards older than hazardTTL and physics tags older
// than effectTTL. Called once per round.
func (i *Island) Expire(now time.Time, hazardTTL, effectTTL time.Duration) {
	for _, row := range i.Cells {
		for _, c := range row {
			if c.Hazard != nil && now.Sub(c.Hazard.SpawnAt) > hazardTTL {
				c.Hazard = nil
			}
			if c.Effect != nil && now.Sub(c.Effect.Timestamp) > effectTTL {
				c.Effect = nil
			}
		}
	}
}
