package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aaronzipp/survival-island/internal/config"
	"github.com/aaronzipp/survival-island/internal/game"
	"github.com/aaronzipp/survival-island/internal/models"
	"github.com/aaronzipp/survival-island/internal/store"
)

// Status is the room-level state machine.
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusVoting  Status = "voting"
	StatusEnded   Status = "ended"
)

// ShrinkDamage is the penalty for standing outside the safe zone when
// the island shrinks.
const ShrinkDamage = 25

// Session is one game room. All mutable state below the inbox is owned
// exclusively by the Run goroutine; the exported methods are thin
// synchronous wrappers that post into the inbox and wait for a reply.
type Session struct {
	Code   string
	HostID string

	inbox    chan any
	quit     chan struct{}
	stopOnce sync.Once

	cfg       config.Config
	transport Transport
	store     store.Store
	rng       *rand.Rand

	status       Status
	round        int
	players      map[string]*models.Player
	joinOrder    []string
	island       *models.Island
	physics      *game.Physics
	votingActive bool
	votes        map[string]string
	currentEvent *game.Event

	// pending is the currently armed lifecycle timer, stopped when a
	// host command preempts it.
	pending *time.Timer

	// onEvict is called (from the run goroutine) when the session
	// should be removed from the registry.
	onEvict func(code string)
}

// New creates a session in lobby state. hostID identifies the
// participant with administrative control; the host is not part of the
// player roster.
func New(code, hostID string, cfg config.Config, transport Transport, st store.Store, seed int64, onEvict func(code string)) *Session {
	rng := game.NewRand(seed)
	island := models.NewIsland(cfg.IslandSize, rng)
	return &Session{
		Code:      code,
		HostID:    hostID,
		inbox:     make(chan any, 256),
		quit:      make(chan struct{}),
		cfg:       cfg,
		transport: transport,
		store:     st,
		rng:       rng,
		status:    StatusLobby,
		players:   make(map[string]*models.Player),
		island:    island,
		physics:   &game.Physics{Island: island, RNG: rng},
		votes:     make(map[string]string),
		onEvict:   onEvict,
	}
}

// Run drives the session until Stop. It is the sole owner of the
// session's mutable state.
func (s *Session) Run() {
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.inbox:
			s.handle(msg)
		}
	}
}

// Stop terminates the run loop. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Join adds a participant to the roster.
func (s *Session) Join(id, name string) error {
	return s.ask(joinReq{ID: id, Name: name, Reply: make(chan error, 1)})
}

// Leave removes a participant. Transport disconnects land here too.
func (s *Session) Leave(id string) {
	select {
	case s.inbox <- leaveReq{ID: id}:
	case <-s.quit:
	}
}

// Start begins the game. Host only.
func (s *Session) Start(by string) error {
	return s.ask(startReq{By: by, Reply: make(chan error, 1)})
}

// Vote submits or overwrites a participant's vote for the open round.
func (s *Session) Vote(by, action string) error {
	return s.ask(voteReq{By: by, Action: action, Reply: make(chan error, 1)})
}

// HostCommand executes a host control action (skip round, end game).
func (s *Session) HostCommand(by, cmd string) error {
	return s.ask(hostCmdReq{By: by, Cmd: cmd, Reply: make(chan error, 1)})
}

// Snapshot returns a copy of the public game state.
func (s *Session) Snapshot() PublicState {
	req := snapshotReq{Reply: make(chan PublicState, 1)}
	select {
	case s.inbox <- req:
	case <-s.quit:
		return PublicState{RoomCode: s.Code, Status: string(StatusEnded)}
	}
	select {
	case st := <-req.Reply:
		return st
	case <-s.quit:
		return PublicState{RoomCode: s.Code, Status: string(StatusEnded)}
	}
}

func (s *Session) ask(msg any) error {
	var reply chan error
	switch m := msg.(type) {
	case joinReq:
		reply = m.Reply
	case startReq:
		reply = m.Reply
	case voteReq:
		reply = m.Reply
	case hostCmdReq:
		reply = m.Reply
	}
	select {
	case s.inbox <- msg:
	case <-s.quit:
		return ErrRoomNotFound
	}
	select {
	case err := <-reply:
		return err
	case <-s.quit:
		return ErrRoomNotFound
	}
}

func (s *Session) handle(msg any) {
	switch m := msg.(type) {
	case joinReq:
		m.Reply <- s.handleJoin(m.ID, m.Name)
	case leaveReq:
		s.handleLeave(m.ID)
	case startReq:
		m.Reply <- s.handleStart(m.By)
	case voteReq:
		m.Reply <- s.handleVote(m.By, m.Action)
	case hostCmdReq:
		m.Reply <- s.handleHostCmd(m.By, m.Cmd)
	case snapshotReq:
		// Deep copy: the caller reads the snapshot outside the run
		// goroutine while this loop keeps mutating the originals.
		st := s.publicState()
		st.Island = s.island.Clone()
		players := make([]*models.Player, len(st.Players))
		for i, p := range st.Players {
			players[i] = p.Clone()
		}
		st.Players = players
		m.Reply <- st
	case timerMsg:
		s.handleTimer(m)
	}
}

func (s *Session) handleJoin(id, name string) error {
	if s.status != StatusLobby {
		return ErrGameInProgress
	}
	if len(s.players) >= s.cfg.MaxPlayers {
		return ErrRoomFull
	}
	if name == "" {
		name = fmt.Sprintf("Player%d", len(s.players)+1)
	}

	p := models.NewPlayer(id, name, s.cfg.IslandSize, s.rng)
	s.players[id] = p
	s.joinOrder = append(s.joinOrder, id)

	s.persist("add player", func(ctx context.Context) error {
		return s.store.AddPlayerRecord(ctx, s.Code, store.PlayerRecord{
			PlayerID: p.ID, Name: p.Name, Animal: p.Animal,
			X: p.Position.X, Y: p.Position.Y,
		})
	})

	s.transport.Send(id, "joined-room", map[string]any{
		"playerId":  p.ID,
		"player":    p,
		"gameState": s.publicState(),
	})
	s.transport.Broadcast("player-joined", map[string]any{
		"player":      p,
		"playerCount": len(s.players),
	})
	return nil
}

func (s *Session) handleLeave(id string) {
	if p, ok := s.players[id]; ok {
		delete(s.players, id)
		for i, pid := range s.joinOrder {
			if pid == id {
				s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
				break
			}
		}
		delete(s.votes, id)
		s.transport.Broadcast("player-left", map[string]any{
			"playerId":    p.ID,
			"playerCount": len(s.players),
		})
	}

	// The host leaving ends the game rather than stranding the room.
	if id == s.HostID && s.status != StatusEnded {
		s.endGame(nil)
		return
	}
	if len(s.players) == 0 && s.status != StatusEnded {
		s.evict()
	}
}

func (s *Session) handleStart(by string) error {
	if by != s.HostID {
		return ErrUnauthorized
	}
	if s.status != StatusLobby {
		return ErrGameInProgress
	}
	if len(s.alivePlayers()) < s.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}

	s.status = StatusPlaying
	s.round = 1
	s.persist("update status", func(ctx context.Context) error {
		return s.store.UpdateGameStatus(ctx, s.Code, string(StatusPlaying))
	})
	s.transport.Broadcast("game-started", map[string]any{
		"gameState": s.publicState(),
	})

	// Short delay so clients can render before the first round opens.
	s.schedule(timerFirstRound, s.cfg.StartDelay)
	return nil
}

func (s *Session) handleVote(by, action string) error {
	if !s.votingActive {
		return ErrVotingNotActive
	}
	p, ok := s.players[by]
	if !ok {
		return ErrUnknownPlayer
	}
	if !p.Alive {
		return ErrVotingNotActive
	}

	// Resubmission overwrites the previous choice.
	s.votes[by] = action

	s.transport.Send(by, "vote-confirmed", map[string]any{"action": action})
	s.transport.Broadcast("vote-update", map[string]any{
		"totalVotes":   len(s.votes),
		"totalPlayers": len(s.alivePlayers()),
	})
	return nil
}

func (s *Session) handleHostCmd(by, cmd string) error {
	if by != s.HostID {
		return ErrUnauthorized
	}
	switch cmd {
	case CmdSkipRound:
		if s.votingActive {
			s.stopPending()
			s.closeVoting()
		}
	case CmdEndGame:
		s.endGame(nil)
	}
	return nil
}

func (s *Session) handleTimer(m timerMsg) {
	switch m.Kind {
	case timerFirstRound, timerNextRound:
		if s.status != StatusPlaying || m.Round != s.round {
			return
		}
		s.startRound()
	case timerCloseVoting:
		// Stale when the round was already closed by a host skip.
		if !s.votingActive || m.Round != s.round {
			return
		}
		s.closeVoting()
	case timerCleanup:
		s.evict()
	}
}

// startRound opens one voting round.
func (s *Session) startRound() {
	s.status = StatusVoting
	s.votingActive = true
	s.votes = make(map[string]string)
	s.currentEvent = nil

	alive := s.alivePlayers()

	// Consume any regeneration buff granted last round.
	for _, p := range alive {
		if p.RegenBonus > 0 {
			p.AdjustHealth(p.RegenBonus)
			p.RegenBonus = 0
		}
	}

	payload := map[string]any{
		"roundNumber": s.round,
		"duration":    s.cfg.VotingDuration.Milliseconds(),
		"players":     alive,
	}

	if game.ShouldTriggerEvent(s.round, len(alive), s.rng) {
		ev := game.NewEventRound(s.round, alive, s.rng)
		s.currentEvent = ev
		payload["isEvent"] = true
		payload["event"] = ev
		payload["options"] = ev.Options[:]
	} else {
		payload["isEvent"] = false
		payload["options"] = game.StandardActions
	}

	s.transport.Broadcast("voting-start", payload)
	s.schedule(timerCloseVoting, s.cfg.VotingDuration)
}

// closeVoting tallies the round, mutates the world, broadcasts the
// outcome, and either ends the game or schedules the next round.
func (s *Session) closeVoting() {
	s.votingActive = false
	s.status = StatusPlaying

	var (
		winning    string
		counts     map[string]int
		messages   []string
		eventRes   *game.EventResolution
		physicsRes *game.PhysicsResult
		highlights []game.Highlight
	)

	if s.currentEvent != nil {
		res := game.ResolveEvent(s.currentEvent, s.votes, s.players, s.island.Size, s.rng)
		game.ApplyEffects(res.Effects, s.players)
		winning = res.WinningChoice
		counts = res.Counts
		messages = res.Messages
		eventRes = &res
	} else {
		tally := game.Tally(s.votes, s.rng)
		winning = tally.Winner
		counts = tally.Counts
		// Zero votes is legal; the round closes with no action.
		if winning != "" {
			physicsRes, messages = s.applyAction(winning)
			if physicsRes != nil {
				highlights = game.GenerateHighlights(physicsRes)
				for _, col := range physicsRes.Collisions {
					messages = append(messages, col.Description)
				}
				for _, hit := range physicsRes.HazardHits {
					messages = append(messages, hit.Description)
				}
			}
		}
	}

	if s.round%3 == 0 {
		messages = append(messages, s.shrinkIsland()...)
	}
	s.island.Expire(time.Now(), s.cfg.HazardTTL, s.cfg.HazardTTL)

	s.transport.Broadcast("voting-end", map[string]any{
		"winningAction": winning,
		"voteCounts":    counts,
		"isEvent":       s.currentEvent != nil,
		"eventResults":  eventRes,
		"messages":      messages,
		"physics":       physicsRes,
		"highlights":    highlights,
		"gameState":     s.publicState(),
	})
	s.persist("log round", func(ctx context.Context) error {
		return s.store.LogEvent(ctx, s.Code, "round-resolved", s.round, map[string]any{
			"winningAction": winning,
			"voteCounts":    counts,
		})
	})

	alive := s.alivePlayers()
	if len(alive) <= 1 {
		var winner *models.Player
		if len(alive) == 1 {
			winner = alive[0]
		}
		s.endGame(winner)
		return
	}

	s.round++
	s.schedule(timerNextRound, s.cfg.RoundBreak)
}

// applyAction mutates the world for a winning standard action. Only
// the players who voted for the winning action perform it.
func (s *Session) applyAction(action string) (*game.PhysicsResult, []string) {
	var actors []*models.Player
	for pid, choice := range s.votes {
		if choice != action {
			continue
		}
		if p, ok := s.players[pid]; ok && p.Alive {
			actors = append(actors, p)
		}
	}

	if game.IsMovement(action) {
		return s.physics.MoveVoters(actors, s.orderedPlayers(), action), nil
	}

	var messages []string
	switch action {
	case game.ActionCollect:
		for _, p := range actors {
			resource := models.CellResources[s.rng.Intn(len(models.CellResources))]
			p.Inv.Add(resource, 1)
			messages = append(messages, p.Name+" gathered "+resource)
		}
	case game.ActionBuild:
		for _, p := range actors {
			if p.Inv.Resources["wood"] >= game.ShelterWoodCost {
				p.Inv.Resources["wood"] -= game.ShelterWoodCost
				p.Inv.Shelter = true
				messages = append(messages, p.Name+" built a shelter")
			} else {
				messages = append(messages, p.Name+" did not have enough wood to build")
			}
		}
	}
	return nil, messages
}

// shrinkIsland damages every alive player outside the safe radius.
// Runs every 3rd round regardless of the winning action.
func (s *Session) shrinkIsland() []string {
	shrinkLevel := s.round / 3
	size := float64(s.cfg.IslandSize)
	safeRadius := math.Max(2, size/2-float64(shrinkLevel))
	center := size / 2

	var messages []string
	for _, p := range s.orderedPlayers() {
		if !p.Alive {
			continue
		}
		dx := float64(p.Position.X) - center
		dy := float64(p.Position.Y) - center
		if math.Sqrt(dx*dx+dy*dy) > safeRadius {
			p.AdjustHealth(-ShrinkDamage)
			msg := p.Name + " was caught outside the safe zone!"
			if !p.Alive {
				msg = p.Name + " was swallowed by the rising tide"
			}
			messages = append(messages, msg)
		}
	}
	return messages
}

func (s *Session) endGame(winner *models.Player) {
	if s.status == StatusEnded {
		return
	}
	s.status = StatusEnded
	s.votingActive = false
	s.stopPending()

	s.persist("update status", func(ctx context.Context) error {
		return s.store.UpdateGameStatus(ctx, s.Code, string(StatusEnded))
	})
	s.transport.Broadcast("game-ended", map[string]any{
		"winner":     winner,
		"finalState": s.publicState(),
	})

	// Keep the room around briefly so late clients can fetch the final
	// state, then evict unconditionally.
	s.schedule(timerCleanup, s.cfg.CleanupGrace)
}

func (s *Session) evict() {
	if s.onEvict != nil {
		s.onEvict(s.Code)
	}
	s.Stop()
}

// schedule arms a lifecycle timer that posts back into the inbox,
// stamped with the current round for staleness detection.
func (s *Session) schedule(kind timerKind, d time.Duration) {
	s.stopPending()
	round := s.round
	s.pending = time.AfterFunc(d, func() {
		select {
		case s.inbox <- timerMsg{Kind: kind, Round: round}:
		case <-s.quit:
		}
	})
}

func (s *Session) stopPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// persist runs a store call in the background; failures are logged and
// swallowed because in-memory state is the source of truth.
func (s *Session) persist(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("room %s: persistence (%s): %v", s.Code, what, err)
		}
	}()
}

func (s *Session) alivePlayers() []*models.Player {
	var alive []*models.Player
	for _, id := range s.joinOrder {
		if p := s.players[id]; p != nil && p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// orderedPlayers returns the full roster in join order.
func (s *Session) orderedPlayers() []*models.Player {
	players := make([]*models.Player, 0, len(s.players))
	for _, id := range s.joinOrder {
		if p := s.players[id]; p != nil {
			players = append(players, p)
		}
	}
	return players
}

// PublicState is the spectator-safe view of a session.
type PublicState struct {
	RoomCode     string           `json:"roomCode"`
	Status       string           `json:"status"`
	Round        int              `json:"round"`
	PlayerCount  int              `json:"playerCount"`
	MaxPlayers   int              `json:"maxPlayers"`
	VotingActive bool             `json:"votingActive"`
	Island       *models.Island   `json:"island"`
	Players      []*models.Player `json:"players"`
}

func (s *Session) publicState() PublicState {
	return PublicState{
		RoomCode:     s.Code,
		Status:       string(s.status),
		Round:        s.round,
		PlayerCount:  len(s.players),
		MaxPlayers:   s.cfg.MaxPlayers,
		VotingActive: s.votingActive,
		Island:       s.island,
		Players:      s.orderedPlayers(),
	}
}
