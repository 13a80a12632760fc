package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aaronzipp/survival-island/internal/models"
)

// EffectKind is the closed set of things an event outcome can do to a
// player. Resolution dispatches on it exhaustively; there is no
// open-ended string lookup.
type EffectKind int

const (
	EffectHealth EffectKind = iota
	EffectResource
	EffectMove
	EffectRegen
)

// Effect is one concrete consequence for one player.
type Effect struct {
	PlayerID string
	Kind     EffectKind
	Value    int             // health delta, resource count, or regen amount
	Resource string          // set for EffectResource
	To       models.Position // set for EffectMove
}

// EventOption is one of the two choices presented on an event round.
type EventOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// EventDef is a catalog entry for a special event.
type EventDef struct {
	Type        string
	Name        string
	Emoji       string
	Description string
	Probability float64
	Options     [2]EventOption
}

// EventCatalog lists every special event, ordered by weight.
var EventCatalog = []EventDef{
	{
		Type: "storm", Name: "Storm", Emoji: "⛈️",
		Description: "A fierce storm approaches!",
		Probability: 0.3,
		Options: [2]EventOption{
			{ID: "shelter", Name: "Take shelter", Emoji: "🏠"},
			{ID: "brave", Name: "Brave it", Emoji: "💪"},
		},
	},
	{
		Type: "wildlife", Name: "Wild Animal", Emoji: "🐻",
		Description: "A wild bear blocks the path!",
		Probability: 0.25,
		Options: [2]EventOption{
			{ID: "fight", Name: "Fight", Emoji: "⚔️"},
			{ID: "flee", Name: "Flee", Emoji: "💨"},
		},
	},
	{
		Type: "treasure", Name: "Treasure Discovery", Emoji: "💎",
		Description: "Mysterious treasure appears!",
		Probability: 0.2,
		Options: [2]EventOption{
			{ID: "take", Name: "Take it", Emoji: "✋"},
			{ID: "ignore", Name: "Ignore it", Emoji: "🚶"},
		},
	},
	{
		Type: "quicksand", Name: "Quicksand Trap", Emoji: "🕳️",
		Description: "Players are stuck in quicksand!",
		Probability: 0.15,
		Options: [2]EventOption{
			{ID: "help", Name: "Help them", Emoji: "🤝"},
			{ID: "abandon", Name: "Abandon them", Emoji: "👋"},
		},
	},
	{
		Type: "geyser", Name: "Hot Geyser", Emoji: "💧",
		Description: "A hot geyser erupts nearby!",
		Probability: 0.1,
		Options: [2]EventOption{
			{ID: "dodge", Name: "Dodge", Emoji: "🏃"},
			{ID: "endure", Name: "Endure", Emoji: "🛡️"},
		},
	},
}

// ShouldTriggerEvent decides whether this round is an event round.
// The chance grows with the round number and the number of alive
// players: more players, more chaos.
func ShouldTriggerEvent(round, aliveCount int, rng *rand.Rand) bool {
	baseChance := 0.15 + float64(round)*0.02
	playerFactor := float64(aliveCount) / 10
	if playerFactor > 1.5 {
		playerFactor = 1.5
	}
	return rng.Float64() < baseChance*playerFactor
}

// Event is a generated event round. It lives for exactly one round.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Emoji       string         `json:"emoji"`
	Description string         `json:"description"`
	Options     [2]EventOption `json:"options"`
	Round       int            `json:"round"`
	AffectedIDs []string       `json:"affectedPlayerIds"`
	CreatedAt   time.Time      `json:"-"`
}

// NewEventRound draws an event from the catalog and selects the
// affected players.
func NewEventRound(round int, alive []*models.Player, rng *rand.Rand) *Event {
	def := selectEventDef(rng)
	return &Event{
		ID:          fmt.Sprintf("%s_%d_%d", def.Type, round, time.Now().UnixMilli()),
		Type:        def.Type,
		Name:        def.Name,
		Emoji:       def.Emoji,
		Description: def.Description,
		Options:     def.Options,
		Round:       round,
		AffectedIDs: selectAffected(def, alive, rng),
		CreatedAt:   time.Now(),
	}
}

// selectEventDef draws from the catalog weighted by each event's
// probability.
func selectEventDef(rng *rand.Rand) EventDef {
	total := 0.0
	for _, def := range EventCatalog {
		total += def.Probability
	}
	draw := rng.Float64() * total
	for _, def := range EventCatalog {
		draw -= def.Probability
		if draw <= 0 {
			return def
		}
	}
	return EventCatalog[0]
}

// selectAffected applies the per-event selection policy. Storm hits
// everyone; the rest hit a shuffled subset whose size scales with the
// alive count inside event-specific bounds.
func selectAffected(def EventDef, alive []*models.Player, rng *rand.Rand) []string {
	switch def.Type {
	case "storm":
		ids := make([]string, len(alive))
		for i, p := range alive {
			ids[i] = p.ID
		}
		return ids
	case "wildlife":
		return sampleIDs(alive, clampCount(len(alive)/4, 1, 3), rng)
	case "treasure":
		return sampleIDs(alive, clampCount(len(alive)/8, 1, 2), rng)
	case "quicksand":
		return sampleIDs(alive, clampCount(len(alive)/6, 1, 4), rng)
	case "geyser":
		return sampleIDs(alive, clampCount(len(alive)/7, 1, 3), rng)
	default:
		if len(alive) == 0 {
			return nil
		}
		return []string{alive[rng.Intn(len(alive))].ID}
	}
}

func clampCount(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// sampleIDs picks n distinct players by uniform shuffle.
func sampleIDs(players []*models.Player, n int, rng *rand.Rand) []string {
	if n > len(players) {
		n = len(players)
	}
	idx := rng.Perm(len(players))
	ids := make([]string, 0, n)
	for _, i := range idx[:n] {
		ids = append(ids, players[i].ID)
	}
	return ids
}

// EventResolution is the computed outcome of an event round.
type EventResolution struct {
	EventID       string         `json:"eventId"`
	WinningChoice string         `json:"winningChoice"`
	Counts        map[string]int `json:"voteCounts"`
	Effects       []Effect       `json:"-"`
	Messages      []string       `json:"messages"`
}

// ResolveEvent tallies the event votes and computes (but does not
// apply) the effects of the winning choice on the affected players.
func ResolveEvent(ev *Event, votes map[string]string, players map[string]*models.Player, islandSize int, rng *rand.Rand) EventResolution {
	// Votes for anything but the event's two options do not count.
	valid := make(map[string]string, len(votes))
	for pid, choice := range votes {
		if choice == ev.Options[0].ID || choice == ev.Options[1].ID {
			valid[pid] = choice
		}
	}
	tally := Tally(valid, rng)

	winning := tally.Winner
	if winning == "" {
		// Nobody voted: both options tie at zero, so the usual random
		// tie break applies.
		winning = ev.Options[rng.Intn(2)].ID
	}

	res := EventResolution{
		EventID:       ev.ID,
		WinningChoice: winning,
		Counts:        tally.Counts,
	}

	var affected []*models.Player
	for _, id := range ev.AffectedIDs {
		if p, ok := players[id]; ok && p.Alive {
			affected = append(affected, p)
		}
	}

	res.Effects, res.Messages = eventEffects(ev, winning, affected, islandSize, rng)
	return res
}

// eventEffects is the per-event, per-choice effect table.
func eventEffects(ev *Event, choice string, affected []*models.Player, islandSize int, rng *rand.Rand) ([]Effect, []string) {
	var effects []Effect
	var messages []string

	switch ev.Type {
	case "storm":
		if choice == "shelter" {
			for _, p := range affected {
				if p.Inv.Shelter {
					messages = append(messages, fmt.Sprintf("%s rode out the storm in a shelter", p.Name))
				} else {
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -15})
					messages = append(messages, fmt.Sprintf("%s had no shelter and was battered by the storm", p.Name))
				}
			}
		} else { // brave
			for _, p := range affected {
				effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -10})
				if rng.Float64() < 0.3 {
					resource := []string{"food", "wood"}[rng.Intn(2)]
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectResource, Resource: resource, Value: 2})
					messages = append(messages, fmt.Sprintf("%s found %s in the middle of the storm", p.Name, resource))
				} else {
					messages = append(messages, fmt.Sprintf("%s braved the storm and took damage", p.Name))
				}
			}
		}

	case "wildlife":
		if choice == "fight" {
			for _, p := range affected {
				if p.Inv.Weapon {
					effects = append(effects,
						Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -5},
						Effect{PlayerID: p.ID, Kind: EffectResource, Resource: "food", Value: 3})
					messages = append(messages, fmt.Sprintf("%s beat the beast with a weapon and took its food", p.Name))
				} else {
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -25})
					messages = append(messages, fmt.Sprintf("%s fought bare-handed and was mauled", p.Name))
				}
			}
		} else { // flee
			for _, p := range affected {
				effects = append(effects,
					Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -5},
					Effect{PlayerID: p.ID, Kind: EffectMove, To: models.Position{
						X: rng.Intn(islandSize), Y: rng.Intn(islandSize),
					}})
				messages = append(messages, fmt.Sprintf("%s fled to safer ground", p.Name))
			}
		}

	case "treasure":
		if choice == "take" {
			for _, p := range affected {
				if rng.Float64() < 0.7 {
					treasure := []string{"weapon", "food", "wood"}[rng.Intn(3)]
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectResource, Resource: treasure, Value: 2})
					messages = append(messages, fmt.Sprintf("%s discovered %s!", p.Name, treasure))
				} else {
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -10})
					messages = append(messages, fmt.Sprintf("%s sprung a trap and took damage", p.Name))
				}
			}
		} else { // ignore
			messages = append(messages, "The players ignored the treasure and played it safe")
		}

	case "quicksand":
		if choice == "help" {
			for _, p := range affected {
				effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: 5})
				messages = append(messages, fmt.Sprintf("%s was pulled free by teamwork", p.Name))
			}
		} else { // abandon
			for _, p := range affected {
				if rng.Float64() < 0.5 {
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -20})
					messages = append(messages, fmt.Sprintf("%s was left behind and hurt", p.Name))
				} else {
					messages = append(messages, fmt.Sprintf("%s clawed their own way out", p.Name))
				}
			}
		}

	case "geyser":
		if choice == "dodge" {
			for _, p := range affected {
				if rng.Float64() < 0.8 {
					messages = append(messages, fmt.Sprintf("%s deftly dodged the geyser", p.Name))
				} else {
					effects = append(effects, Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -10})
					messages = append(messages, fmt.Sprintf("%s could not dodge in time", p.Name))
				}
			}
		} else { // endure
			for _, p := range affected {
				effects = append(effects,
					Effect{PlayerID: p.ID, Kind: EffectHealth, Value: -15},
					Effect{PlayerID: p.ID, Kind: EffectRegen, Value: 2})
				messages = append(messages, fmt.Sprintf("%s endured the scalding water and came out tougher", p.Name))
			}
		}
	}

	return effects, messages
}

// ApplyEffects mutates players according to the computed effects.
// Positions from EffectMove are trusted to be in bounds (they are
// generated against the island size).
func ApplyEffects(effects []Effect, players map[string]*models.Player) {
	for _, e := range effects {
		p, ok := players[e.PlayerID]
		if !ok {
			continue
		}
		switch e.Kind {
		case EffectHealth:
			p.AdjustHealth(e.Value)
		case EffectResource:
			if e.Resource == "weapon" {
				p.Inv.Weapon = true
			} else {
				p.Inv.Add(e.Resource, e.Value)
			}
		case EffectMove:
			p.Position = e.To
		case EffectRegen:
			p.RegenBonus = e.Value
		}
	}
}
