package session

// Transport is the engine's view of the connection layer: send to one
// participant or to everyone in the room. The engine is agnostic to
// the wire encoding; disconnects surface as Leave calls on the session.
// Implementations must serialize the payload before returning, because
// the session keeps mutating the objects it passes in.
type Transport interface {
	Send(participantID, event string, payload any)
	Broadcast(event string, payload any)
}

// Inbound messages. Everything that can mutate a session funnels
// through its inbox so the run loop is the only writer of session
// state.

type joinReq struct {
	ID    string
	Name  string
	Reply chan error
}

type leaveReq struct {
	ID string
}

type startReq struct {
	By    string
	Reply chan error
}

type voteReq struct {
	By     string
	Action string
	Reply  chan error
}

// Host commands accepted by hostCmdReq.
const (
	CmdSkipRound = "skip-round"
	CmdEndGame   = "end-game"
)

type hostCmdReq struct {
	By    string
	Cmd   string
	Reply chan error
}

type snapshotReq struct {
	Reply chan PublicState
}

// timerKind distinguishes the round-lifecycle timers. Each timer
// message carries the round it was armed in; a fired timer whose round
// no longer matches is stale and ignored, so a host skip can never
// race a pending auto-close into a double resolution.
type timerKind int

const (
	timerFirstRound timerKind = iota
	timerCloseVoting
	timerNextRound
	timerCleanup
)

type timerMsg struct {
	Kind  timerKind
	Round int
}
