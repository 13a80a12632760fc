package models

import "math/rand"

// Animals is the fixed set of avatars assigned to joining players.
var Animals = []string{
	"bear", "fox", "rabbit", "deer", "wolf",
	"cat", "dog", "panda", "lion", "tiger",
}

// RandomAnimal picks an avatar for a new player.
func RandomAnimal(rng *rand.Rand) string {
	return Animals[rng.Intn(len(Animals))]
}

// Position is a cell coordinate on the island grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Inventory tracks collected resources and the two build flags.
type Inventory struct {
	Resources map[string]int `json:"resources"`
	Shelter   bool           `json:"shelter"`
	Weapon    bool           `json:"weapon"`
}

// NewInventory returns an empty inventory.
func NewInventory() Inventory {
	return Inventory{Resources: make(map[string]int)}
}

// Add grants count units of a resource.
func (inv *Inventory) Add(resource string, count int) {
	inv.Resources[resource] += count
}

// Player is one participant's in-world state. Owned by the session;
// never shared across goroutines.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Animal   string    `json:"animal"`
	Position Position  `json:"position"`
	Health   int       `json:"health"`
	Alive    bool      `json:"alive"`
	Inv      Inventory `json:"inventory"`

	// RegenBonus is a temporary per-round health regeneration granted
	// by the geyser endure outcome. Consumed at the start of the next
	// round.
	RegenBonus int `json:"-"`
}

// NewPlayer creates a player at full health on a random cell.
func NewPlayer(id, name string, islandSize int, rng *rand.Rand) *Player {
	return &Player{
		ID:     id,
		Name:   name,
		Animal: RandomAnimal(rng),
		Position: Position{
			X: rng.Intn(islandSize),
			Y: rng.Intn(islandSize),
		},
		Health: 100,
		Alive:  true,
		Inv:    NewInventory(),
	}
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Inv.Resources = make(map[string]int, len(p.Inv.Resources))
	for k, v := range p.Inv.Resources {
		cp.Inv.Resources[k] = v
	}
	return &cp
}

// AdjustHealth applies a signed health delta, clamping to [0,100] and
// flipping Alive when health reaches zero. Every health mutation in the
// engine goes through here.
func (p *Player) AdjustHealth(delta int) {
	p.Health += delta
	if p.Health > 100 {
		p.Health = 100
	}
	if p.Health <= 0 {
		p.Health = 0
		p.Alive = false
	}
}
