package game

// Standard actions offered on a non-event round.
const (
	ActionNorth   = "north"
	ActionSouth   = "south"
	ActionEast    = "east"
	ActionWest    = "west"
	ActionCollect = "collect"
	ActionBuild   = "build"
)

// StandardActions in presentation order.
var StandardActions = []string{
	ActionNorth, ActionSouth, ActionEast, ActionWest,
	ActionCollect, ActionBuild,
}

// IsMovement reports whether the action is one of the four directions
// and therefore goes through the physics resolver.
func IsMovement(action string) bool {
	switch action {
	case ActionNorth, ActionSouth, ActionEast, ActionWest:
		return true
	}
	return false
}

// ShelterWoodCost is what a build action consumes.
const ShelterWoodCost = 2
