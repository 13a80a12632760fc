package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aaronzipp/survival-island/internal/models"
)

// HazardSpawnChance is the per-move probability of a fresh hazard
// appearing under a player's feet.
const HazardSpawnChance = 0.10

// HazardDef is a catalog entry for a spawnable hazard.
type HazardDef struct {
	Type        string
	Name        string
	Emoji       string
	Effect      models.HazardEffect
	Probability float64
}

// HazardCatalog lists every hazard type with its spawn weight.
var HazardCatalog = []HazardDef{
	{Type: "banana_peel", Name: "Banana Peel", Emoji: "🍌", Effect: models.HazardSlip, Probability: 0.1},
	{Type: "geyser", Name: "Hot Geyser", Emoji: "💧", Effect: models.HazardLaunch, Probability: 0.08},
	{Type: "pitfall", Name: "Hidden Pitfall", Emoji: "🕳️", Effect: models.HazardFall, Probability: 0.06},
	{Type: "bouncy_mushroom", Name: "Bouncy Mushroom", Emoji: "🍄", Effect: models.HazardBounce, Probability: 0.12},
}

// CollisionKind classifies what happens when a mover steps onto an
// occupied cell.
type CollisionKind int

const (
	CollisionPush CollisionKind = iota
	CollisionBounce
	CollisionStumble
	CollisionBlock
)

// String returns the wire name of the collision kind.
func (k CollisionKind) String() string {
	switch k {
	case CollisionPush:
		return "push"
	case CollisionBounce:
		return "bounce"
	case CollisionStumble:
		return "stumble"
	case CollisionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Movement records where one player ended up this round.
type Movement struct {
	PlayerID string          `json:"playerId"`
	From     models.Position `json:"from"`
	To       models.Position `json:"to"`
	Moved    bool            `json:"moved"`
}

// Collision records a resolved player-on-player collision.
type Collision struct {
	Kind        CollisionKind `json:"-"`
	KindName    string        `json:"kind"`
	MoverID     string        `json:"moverId"`
	OccupantID  string        `json:"occupantId"`
	Description string        `json:"description"`
	// OccupantTo is set for push collisions: where the occupant landed.
	OccupantTo *models.Position `json:"occupantTo,omitempty"`
}

// HazardHit records one hazard firing on one player.
type HazardHit struct {
	HazardType  string              `json:"hazardType"`
	Effect      models.HazardEffect `json:"-"`
	EffectName  string              `json:"effect"`
	PlayerID    string              `json:"playerId"`
	Description string              `json:"description"`
	// To is set when the hazard displaced the player.
	To *models.Position `json:"to,omitempty"`
	// Chain marks a hazard triggered by displacement rather than a
	// voluntary move.
	Chain bool `json:"chain"`
}

// ViralMoment is a derived annotation for spectators; never
// authoritative state.
type ViralMoment struct {
	Type        string   `json:"type"`
	PlayerIDs   []string `json:"playerIds"`
	Description string   `json:"description"`
}

// Highlight is a prioritized round summary entry for the dashboard.
type Highlight struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// PhysicsResult is everything the movement resolver produced for one
// round.
type PhysicsResult struct {
	Movements    []Movement    `json:"movements"`
	Collisions   []Collision   `json:"collisions"`
	HazardHits   []HazardHit   `json:"hazardHits"`
	ViralMoments []ViralMoment `json:"viralMoments"`
}

// Physics resolves movement rounds against one island grid.
type Physics struct {
	Island *models.Island
	RNG    *rand.Rand
}

// Step moves one cell in the given direction, clamped to the grid.
// Non-movement actions leave the position unchanged.
func (ph *Physics) Step(pos models.Position, action string) models.Position {
	size := ph.Island.Size
	switch action {
	case ActionNorth:
		pos.Y = max(0, pos.Y-1)
	case ActionSouth:
		pos.Y = min(size-1, pos.Y+1)
	case ActionEast:
		pos.X = min(size-1, pos.X+1)
	case ActionWest:
		pos.X = max(0, pos.X-1)
	}
	return pos
}

// MoveVoters applies the winning movement action to every player who
// voted for it, resolving collisions against all alive players, firing
// hazards, and chasing chain reactions. movers must be alive.
func (ph *Physics) MoveVoters(movers []*models.Player, all []*models.Player, action string) *PhysicsResult {
	res := &PhysicsResult{}

	for _, p := range movers {
		if !p.Alive {
			continue
		}
		from := p.Position
		target := ph.Step(p.Position, action)

		if occupant := ph.occupantAt(target, all, p.ID); occupant != nil {
			col := ph.resolveCollision(p, occupant, target)
			res.Collisions = append(res.Collisions, col)
			if col.Kind == CollisionPush || col.Kind == CollisionBounce {
				res.ViralMoments = append(res.ViralMoments, ViralMoment{
					Type:        "collision",
					PlayerIDs:   []string{p.ID, occupant.ID},
					Description: fmt.Sprintf("%s crashed into %s!", p.Name, occupant.Name),
				})
			}
			// A pushed occupant may land on a hazard.
			if col.OccupantTo != nil {
				ph.chainCheck(occupant, res)
			}
		} else {
			p.Position = target
		}

		if hit, ok := ph.checkHazard(p); ok {
			res.HazardHits = append(res.HazardHits, hit)
			if hit.To != nil {
				ph.chainCheck(p, res)
			}
			if isViralEffect(hit.Effect) {
				res.ViralMoments = append(res.ViralMoments, ViralMoment{
					Type:        "hazard",
					PlayerIDs:   []string{p.ID},
					Description: hit.Description,
				})
			}
		}

		res.Movements = append(res.Movements, Movement{
			PlayerID: p.ID,
			From:     from,
			To:       p.Position,
			Moved:    from != p.Position,
		})
	}

	ph.tagCells(res)
	return res
}

// occupantAt returns the alive player other than moverID standing on
// target, or nil.
func (ph *Physics) occupantAt(target models.Position, all []*models.Player, moverID string) *models.Player {
	for _, other := range all {
		if other.ID == moverID || !other.Alive {
			continue
		}
		if other.Position == target {
			return other
		}
	}
	return nil
}

// resolveCollision classifies and applies a collision between mover and
// occupant. Push 40%, bounce 30%, stumble 20%, block 10%.
func (ph *Physics) resolveCollision(mover, occupant *models.Player, target models.Position) Collision {
	kind := ph.drawCollisionKind()
	col := Collision{
		Kind:       kind,
		KindName:   kind.String(),
		MoverID:    mover.ID,
		OccupantID: occupant.ID,
	}

	switch kind {
	case CollisionPush:
		pushed := ph.Step(occupant.Position, pushDirection(mover.Position, occupant.Position))
		occupant.Position = pushed
		mover.Position = target
		col.OccupantTo = &pushed
		col.Description = fmt.Sprintf("%s pushed %s!", mover.Name, occupant.Name)
	case CollisionBounce:
		mover.AdjustHealth(-2)
		occupant.AdjustHealth(-2)
		col.Description = fmt.Sprintf("%s and %s bounced off each other!", mover.Name, occupant.Name)
	case CollisionStumble:
		mover.AdjustHealth(-5)
		occupant.AdjustHealth(-5)
		col.Description = fmt.Sprintf("%s and %s stumbled into each other!", mover.Name, occupant.Name)
	case CollisionBlock:
		col.Description = fmt.Sprintf("%s bumped into %s", mover.Name, occupant.Name)
	}
	return col
}

func (ph *Physics) drawCollisionKind() CollisionKind {
	draw := ph.RNG.Float64()
	switch {
	case draw < 0.4:
		return CollisionPush
	case draw < 0.7:
		return CollisionBounce
	case draw < 0.9:
		return CollisionStumble
	default:
		return CollisionBlock
	}
}

// pushDirection is the dominant axis from pusher toward pushed.
func pushDirection(pusher, pushed models.Position) string {
	dx := pushed.X - pusher.X
	dy := pushed.Y - pusher.Y
	if abs(dx) > abs(dy) {
		if dx > 0 {
			return ActionEast
		}
		return ActionWest
	}
	if dy > 0 {
		return ActionSouth
	}
	return ActionNorth
}

// checkHazard fires the hazard on the player's cell if present, or
// rolls the spawn chance for a fresh one. Returns false when nothing
// happened.
func (ph *Physics) checkHazard(p *models.Player) (HazardHit, bool) {
	cell := ph.Island.At(p.Position)
	if cell == nil {
		return HazardHit{}, false
	}
	if cell.Hazard == nil {
		if ph.RNG.Float64() >= HazardSpawnChance {
			return HazardHit{}, false
		}
		cell.Hazard = ph.spawnHazard()
	}
	return ph.applyHazard(p, cell.Hazard), true
}

// spawnHazard draws from the catalog weighted by probability.
func (ph *Physics) spawnHazard() *models.Hazard {
	total := 0.0
	for _, def := range HazardCatalog {
		total += def.Probability
	}
	draw := ph.RNG.Float64() * total
	def := HazardCatalog[0]
	for _, d := range HazardCatalog {
		draw -= d.Probability
		if draw <= 0 {
			def = d
			break
		}
	}
	return &models.Hazard{
		ID:      fmt.Sprintf("%s_%d", def.Type, time.Now().UnixMilli()),
		Name:    def.Name,
		Emoji:   def.Emoji,
		Effect:  def.Effect,
		SpawnAt: time.Now(),
	}
}

// applyHazard mutates the player according to the hazard effect and
// produces the narrative line.
func (ph *Physics) applyHazard(p *models.Player, h *models.Hazard) HazardHit {
	hit := HazardHit{
		HazardType: h.Name,
		Effect:     h.Effect,
		EffectName: h.Effect.String(),
		PlayerID:   p.ID,
	}

	directions := []string{ActionNorth, ActionSouth, ActionEast, ActionWest}

	switch h.Effect {
	case models.HazardSlip:
		dir := directions[ph.RNG.Intn(len(directions))]
		p.Position = ph.Step(p.Position, dir)
		p.AdjustHealth(-3)
		hit.To = &p.Position
		hit.Description = fmt.Sprintf("%s slipped on a banana peel and slid %s!", p.Name, dir)
	case models.HazardLaunch:
		p.Position = models.Position{
			X: ph.RNG.Intn(ph.Island.Size),
			Y: ph.RNG.Intn(ph.Island.Size),
		}
		p.AdjustHealth(-8)
		hit.To = &p.Position
		hit.Description = fmt.Sprintf("%s was launched across the island by a geyser!", p.Name)
	case models.HazardFall:
		p.AdjustHealth(-15)
		hit.Description = fmt.Sprintf("%s fell into a hidden pit!", p.Name)
	case models.HazardBounce:
		dir := directions[ph.RNG.Intn(len(directions))]
		p.Position = ph.Step(p.Position, dir)
		p.AdjustHealth(2)
		hit.To = &p.Position
		hit.Description = fmt.Sprintf("%s bounced off a super mushroom!", p.Name)
	}
	return hit
}

// chainCheck re-checks the hazard table after any displacement. A hit
// here is a chain reaction.
func (ph *Physics) chainCheck(p *models.Player, res *PhysicsResult) {
	hit, ok := ph.checkHazard(p)
	if !ok {
		return
	}
	hit.Chain = true
	res.HazardHits = append(res.HazardHits, hit)
	res.ViralMoments = append(res.ViralMoments, ViralMoment{
		Type:        "chain_reaction",
		PlayerIDs:   []string{p.ID},
		Description: "Chain reaction! " + hit.Description,
	})
}

func isViralEffect(e models.HazardEffect) bool {
	return e == models.HazardSlip || e == models.HazardLaunch || e == models.HazardBounce
}

// tagCells leaves transient physics markers on affected cells for the
// dashboard.
func (ph *Physics) tagCells(res *PhysicsResult) {
	now := time.Now()
	for _, col := range res.Collisions {
		if col.OccupantTo == nil {
			continue
		}
		if cell := ph.Island.At(*col.OccupantTo); cell != nil {
			cell.Effect = &models.PhysicsEffect{Kind: "collision", Timestamp: now}
		}
	}
	for _, hit := range res.HazardHits {
		if hit.To == nil {
			continue
		}
		if cell := ph.Island.At(*hit.To); cell != nil {
			cell.Effect = &models.PhysicsEffect{Kind: "hazard", Detail: hit.EffectName, Timestamp: now}
		}
	}
}

// GenerateHighlights derives spectator annotations from a resolved
// round.
func GenerateHighlights(res *PhysicsResult) []Highlight {
	var highlights []Highlight

	if len(res.Collisions) >= 2 {
		highlights = append(highlights, Highlight{
			Type:        "mass_collision",
			Priority:    "high",
			Description: "Multiple players collided simultaneously!",
		})
	}
	for _, m := range res.ViralMoments {
		if m.Type == "chain_reaction" {
			highlights = append(highlights, Highlight{
				Type:        "chain_reaction",
				Priority:    "medium",
				Description: m.Description,
			})
		}
	}
	comedy := 0
	for _, hit := range res.HazardHits {
		if hit.Effect == models.HazardSlip || hit.Effect == models.HazardBounce {
			comedy++
		}
	}
	if comedy > 0 {
		highlights = append(highlights, Highlight{
			Type:        "comedy_moment",
			Priority:    "medium",
			Description: "Hilarious hazard encounters!",
		})
	}
	return highlights
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
