package session

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aaronzipp/survival-island/internal/config"
	"github.com/aaronzipp/survival-island/internal/game"
	"github.com/aaronzipp/survival-island/internal/models"
	"github.com/aaronzipp/survival-island/internal/store"
)

// pinnedSource always returns the same Int63 value, which pins
// Rand.Float64 to v/2^63. 1<<62 gives 0.5, 1<<55 gives about 0.004.
type pinnedSource struct{ v int64 }

func (s pinnedSource) Int63() int64 { return s.v }
func (s pinnedSource) Seed(int64)   {}

func pinnedRand(v int64) *rand.Rand {
	return rand.New(pinnedSource{v: v})
}

type recorded struct {
	To    string
	Event string
	Data  []byte
}

// fakeTransport records every message. Payloads are serialized on the
// way in, per the Transport contract, so later engine mutations cannot
// retroactively change what was "sent".
type fakeTransport struct {
	mu         sync.Mutex
	sends      []recorded
	broadcasts []recorded
}

func (tr *fakeTransport) Send(participantID, event string, payload any) {
	data, _ := json.Marshal(payload)
	tr.mu.Lock()
	tr.sends = append(tr.sends, recorded{To: participantID, Event: event, Data: data})
	tr.mu.Unlock()
}

func (tr *fakeTransport) Broadcast(event string, payload any) {
	data, _ := json.Marshal(payload)
	tr.mu.Lock()
	tr.broadcasts = append(tr.broadcasts, recorded{Event: event, Data: data})
	tr.mu.Unlock()
}

func (tr *fakeTransport) countBroadcasts(event string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := 0
	for _, r := range tr.broadcasts {
		if r.Event == event {
			n++
		}
	}
	return n
}

func (tr *fakeTransport) lastBroadcast(event string) (map[string]any, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i := len(tr.broadcasts) - 1; i >= 0; i-- {
		if tr.broadcasts[i].Event == event {
			var payload map[string]any
			if err := json.Unmarshal(tr.broadcasts[i].Data, &payload); err != nil {
				return nil, false
			}
			return payload, true
		}
	}
	return nil, false
}

func (tr *fakeTransport) sentTo(participantID, event string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, r := range tr.sends {
		if r.To == participantID && r.Event == event {
			return true
		}
	}
	return false
}

func testConfig() config.Config {
	return config.Config{
		IslandSize:     10,
		MaxPlayers:     8,
		MinPlayers:     1,
		VotingDuration: time.Hour,
		StartDelay:     time.Millisecond,
		RoundBreak:     time.Hour,
		HazardTTL:      5 * time.Second,
		CleanupGrace:   time.Hour,
	}
}

func newTestSession(cfg config.Config) (*Session, *fakeTransport) {
	tr := &fakeTransport{}
	s := New("ROOM01", "host", cfg, tr, store.Nop{}, 1, nil)
	return s, tr
}

// seedPlayer places a player deterministically before the run loop
// starts.
func seedPlayer(s *Session, id string, x, y int) *models.Player {
	if err := s.handleJoin(id, id); err != nil {
		panic(err)
	}
	p := s.players[id]
	p.Position = models.Position{X: x, Y: y}
	return p
}

// pinRandomness swaps the session's randomness for a constant draw.
// Must run before the run loop starts.
func pinRandomness(s *Session, v int64) {
	rng := pinnedRand(v)
	s.rng = rng
	s.physics.RNG = rng
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestJoinAndSnapshot(t *testing.T) {
	s, tr := newTestSession(testConfig())
	go s.Run()
	defer s.Stop()

	if err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("p2", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	st := s.Snapshot()
	if st.Status != string(StatusLobby) || st.PlayerCount != 2 {
		t.Errorf("snapshot = %s/%d players, want lobby/2", st.Status, st.PlayerCount)
	}
	if st.Players[0].Name != "Alice" {
		t.Errorf("join order lost: first player is %q", st.Players[0].Name)
	}
	if st.Players[1].Name != "Player2" {
		t.Errorf("blank name should default to Player2, got %q", st.Players[1].Name)
	}
	if !tr.sentTo("p1", "joined-room") {
		t.Error("joiner should receive a private joined-room message")
	}
	if tr.countBroadcasts("player-joined") != 2 {
		t.Errorf("expected 2 player-joined broadcasts, got %d", tr.countBroadcasts("player-joined"))
	}
}

func TestJoinRejections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	s, _ := newTestSession(cfg)
	go s.Run()
	defer s.Stop()

	if err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("p2", "Bob"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("join over capacity = %v, want ErrRoomFull", err)
	}

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Join("p3", "Carol"); !errors.Is(err, ErrGameInProgress) {
		t.Errorf("join after start = %v, want ErrGameInProgress", err)
	}
}

func TestStartRejections(t *testing.T) {
	cfg := testConfig()
	cfg.MinPlayers = 2
	s, _ := newTestSession(cfg)
	go s.Run()
	defer s.Stop()

	if err := s.Start("stranger"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("start by non-host = %v, want ErrUnauthorized", err)
	}
	if err := s.Start("host"); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("start with empty roster = %v, want ErrNotEnoughPlayers", err)
	}

	if err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("p2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start("host"); !errors.Is(err, ErrGameInProgress) {
		t.Errorf("double start = %v, want ErrGameInProgress", err)
	}
}

func TestVoteLifecycle(t *testing.T) {
	s, tr := newTestSession(testConfig())
	seedPlayer(s, "p1", 2, 2)
	seedPlayer(s, "p2", 7, 7)
	dead := seedPlayer(s, "p3", 8, 8)
	dead.AdjustHealth(-100)
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Vote("p1", game.ActionNorth); !errors.Is(err, ErrVotingNotActive) {
		t.Errorf("vote in lobby = %v, want ErrVotingNotActive", err)
	}

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	if err := s.Vote("ghost", game.ActionNorth); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("vote by unknown = %v, want ErrUnknownPlayer", err)
	}
	if err := s.Vote("p3", game.ActionNorth); !errors.Is(err, ErrVotingNotActive) {
		t.Errorf("vote by dead player = %v, want ErrVotingNotActive", err)
	}

	if err := s.Vote("p1", game.ActionNorth); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if !tr.sentTo("p1", "vote-confirmed") {
		t.Error("voter should receive a private confirmation")
	}

	// Resubmission overwrites, it does not double count.
	if err := s.Vote("p1", game.ActionSouth); err != nil {
		t.Fatalf("revote: %v", err)
	}
	update, ok := tr.lastBroadcast("vote-update")
	if !ok {
		t.Fatal("missing vote-update broadcast")
	}
	if update["totalVotes"].(float64) != 1 {
		t.Errorf("totalVotes = %v, want 1", update["totalVotes"])
	}
	if update["totalPlayers"].(float64) != 2 {
		t.Errorf("totalPlayers should count alive players only, got %v", update["totalPlayers"])
	}

	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}
	end, ok := tr.lastBroadcast("voting-end")
	if !ok {
		t.Fatal("missing voting-end broadcast")
	}
	if end["winningAction"] != game.ActionSouth {
		t.Errorf("winningAction = %v, want the overwritten vote", end["winningAction"])
	}
}

func TestMovementRoundResolution(t *testing.T) {
	s, tr := newTestSession(testConfig())
	seedPlayer(s, "p1", 2, 2)
	seedPlayer(s, "p2", 5, 0)
	seedPlayer(s, "p3", 7, 7)
	// A constant 0.5 draw keeps the round ordinary: no event, no hazard
	// spawns, no collisions possible at these positions.
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	open, _ := tr.lastBroadcast("voting-start")
	if open["isEvent"].(bool) {
		t.Fatal("expected an ordinary round")
	}
	if len(open["options"].([]any)) != len(game.StandardActions) {
		t.Errorf("an ordinary round offers the standard options, got %v", open["options"])
	}

	// Two north against one east: north wins, and only its voters move.
	for _, id := range []string{"p1", "p2"} {
		if err := s.Vote(id, game.ActionNorth); err != nil {
			t.Fatalf("vote %s: %v", id, err)
		}
	}
	if err := s.Vote("p3", game.ActionEast); err != nil {
		t.Fatalf("vote p3: %v", err)
	}
	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}

	end, ok := tr.lastBroadcast("voting-end")
	if !ok {
		t.Fatal("missing voting-end broadcast")
	}
	if end["winningAction"] != game.ActionNorth {
		t.Errorf("winningAction = %v, want north", end["winningAction"])
	}

	st := s.Snapshot()
	want := map[string]models.Position{
		"p1": {X: 2, Y: 1},
		"p2": {X: 5, Y: 0}, // already on the top edge, clamped
		"p3": {X: 7, Y: 7}, // voted for the losing action, stays put
	}
	for _, p := range st.Players {
		if p.Position != want[p.ID] {
			t.Errorf("%s at %+v, want %+v", p.ID, p.Position, want[p.ID])
		}
		if p.Health != 100 {
			t.Errorf("%s took damage on a clean move: %d", p.ID, p.Health)
		}
	}
	if st.Round != 2 {
		t.Errorf("round = %d, want 2 after one resolution", st.Round)
	}
}

func TestEventRoundStorm(t *testing.T) {
	s, tr := newTestSession(testConfig())
	sheltered := seedPlayer(s, "p1", 2, 2)
	sheltered.Inv.Shelter = true
	seedPlayer(s, "p2", 7, 7)
	// A constant draw of ~0.004 forces an event round and selects the
	// first catalog entry, the storm.
	pinRandomness(s, 1<<55)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	open, _ := tr.lastBroadcast("voting-start")
	if !open["isEvent"].(bool) {
		t.Fatal("expected an event round")
	}
	ev := open["event"].(map[string]any)
	if ev["type"] != "storm" {
		t.Fatalf("event type = %v, want storm", ev["type"])
	}
	if len(ev["affectedPlayerIds"].([]any)) != 2 {
		t.Errorf("a storm should affect everyone, got %v", ev["affectedPlayerIds"])
	}

	for _, id := range []string{"p1", "p2"} {
		if err := s.Vote(id, "shelter"); err != nil {
			t.Fatalf("vote %s: %v", id, err)
		}
	}
	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}

	end, _ := tr.lastBroadcast("voting-end")
	if end["winningAction"] != "shelter" || !end["isEvent"].(bool) {
		t.Errorf("voting-end = %v, want a resolved shelter event", end)
	}

	st := s.Snapshot()
	for _, p := range st.Players {
		switch p.ID {
		case "p1":
			if p.Health != 100 {
				t.Errorf("sheltered player took damage: %d", p.Health)
			}
		case "p2":
			if p.Health != 85 {
				t.Errorf("exposed player health = %d, want 85", p.Health)
			}
		}
	}
}

func TestZeroVoteRoundStillAdvances(t *testing.T) {
	s, tr := newTestSession(testConfig())
	seedPlayer(s, "p1", 2, 2)
	seedPlayer(s, "p2", 7, 7)
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}

	end, ok := tr.lastBroadcast("voting-end")
	if !ok {
		t.Fatal("a round with no votes must still close")
	}
	if end["winningAction"] != "" {
		t.Errorf("winningAction = %v, want empty", end["winningAction"])
	}

	st := s.Snapshot()
	if st.Round != 2 {
		t.Errorf("round = %d, want 2", st.Round)
	}
	for _, p := range st.Players {
		if p.Position != (models.Position{X: 2, Y: 2}) && p.Position != (models.Position{X: 7, Y: 7}) {
			t.Errorf("no-vote round moved %s to %+v", p.ID, p.Position)
		}
	}
}

func TestHostSkipResolvesExactlyOnce(t *testing.T) {
	cfg := testConfig()
	cfg.VotingDuration = 50 * time.Millisecond
	s, tr := newTestSession(cfg)
	seedPlayer(s, "p1", 2, 2)
	seedPlayer(s, "p2", 7, 7)
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	// Skip immediately, then let the auto-close timer fire stale.
	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := tr.countBroadcasts("voting-end"); n != 1 {
		t.Errorf("round resolved %d times, want exactly 1", n)
	}
}

func TestCollectBuildAndShrink(t *testing.T) {
	cfg := testConfig()
	cfg.RoundBreak = 10 * time.Millisecond
	s, tr := newTestSession(cfg)
	// p1 sits in a corner far outside any safe radius; p2 holds the
	// center.
	seedPlayer(s, "p1", 0, 0)
	seedPlayer(s, "p2", 5, 5)
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Rounds 1 and 2: everyone gathers. The pinned draw always yields
	// wood.
	for round := 1; round <= 2; round++ {
		waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == round })
		for _, id := range []string{"p1", "p2"} {
			if err := s.Vote(id, game.ActionCollect); err != nil {
				t.Fatalf("round %d vote %s: %v", round, id, err)
			}
		}
		if err := s.HostCommand("host", CmdSkipRound); err != nil {
			t.Fatalf("round %d skip: %v", round, err)
		}
	}

	st := s.Snapshot()
	for _, p := range st.Players {
		if p.Inv.Resources["wood"] != 2 {
			t.Fatalf("%s has %d wood after two gathers, want 2", p.ID, p.Inv.Resources["wood"])
		}
	}

	// Round 3: build, then the island shrinks.
	waitFor(t, "round 3 to open", func() bool { return tr.countBroadcasts("voting-start") == 3 })
	for _, id := range []string{"p1", "p2"} {
		if err := s.Vote(id, game.ActionBuild); err != nil {
			t.Fatalf("round 3 vote %s: %v", id, err)
		}
	}
	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("round 3 skip: %v", err)
	}

	st = s.Snapshot()
	for _, p := range st.Players {
		if !p.Inv.Shelter {
			t.Errorf("%s should have built a shelter", p.ID)
		}
		if p.Inv.Resources["wood"] != 0 {
			t.Errorf("%s should have spent all wood, has %d", p.ID, p.Inv.Resources["wood"])
		}
		switch p.ID {
		case "p1":
			if p.Health != 75 {
				t.Errorf("corner player health = %d, want 75 after the shrink", p.Health)
			}
		case "p2":
			if p.Health != 100 {
				t.Errorf("center player health = %d, want 100", p.Health)
			}
		}
	}
}

func TestEliminationEndsGame(t *testing.T) {
	s, tr := newTestSession(testConfig())
	frail := seedPlayer(s, "p1", 3, 2)
	frail.Health = 2
	seedPlayer(s, "p2", 2, 2)
	// 0.5 turns the collision into a bounce: -2 each, which kills p1.
	pinRandomness(s, 1<<62)
	go s.Run()
	defer s.Stop()

	if err := s.Start("host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "voting to open", func() bool { return tr.countBroadcasts("voting-start") == 1 })

	if err := s.Vote("p2", game.ActionEast); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := s.HostCommand("host", CmdSkipRound); err != nil {
		t.Fatalf("skip: %v", err)
	}

	end, ok := tr.lastBroadcast("game-ended")
	if !ok {
		t.Fatal("last player standing should end the game")
	}
	winner := end["winner"].(map[string]any)
	if winner["id"] != "p2" {
		t.Errorf("winner = %v, want p2", winner["id"])
	}

	st := s.Snapshot()
	if st.Status != string(StatusEnded) {
		t.Errorf("status = %s, want ended", st.Status)
	}
}

func TestHostLeaveEndsGame(t *testing.T) {
	s, tr := newTestSession(testConfig())
	seedPlayer(s, "p1", 2, 2)
	go s.Run()
	defer s.Stop()

	s.Leave("host")
	waitFor(t, "game to end", func() bool { return tr.countBroadcasts("game-ended") == 1 })

	st := s.Snapshot()
	if st.Status != string(StatusEnded) {
		t.Errorf("status = %s, want ended after host leave", st.Status)
	}
}

func TestEmptyLobbyEvicts(t *testing.T) {
	evicted := make(chan string, 1)
	tr := &fakeTransport{}
	s := New("ROOM01", "host", testConfig(), tr, store.Nop{}, 1, func(code string) {
		evicted <- code
	})
	go s.Run()

	if err := s.Join("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	s.Leave("p1")

	select {
	case code := <-evicted:
		if code != "ROOM01" {
			t.Errorf("evicted %q, want ROOM01", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("empty lobby should evict the room")
	}

	if err := s.Join("p2", "Bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("join after eviction = %v, want ErrRoomNotFound", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestSession(testConfig())
	seedPlayer(s, "p1", 2, 2)
	go s.Run()
	defer s.Stop()

	st1 := s.Snapshot()
	st1.Players[0].AdjustHealth(-50)
	st1.Island.At(models.Position{X: 0, Y: 0}).Terrain = "sand"

	st2 := s.Snapshot()
	if st2.Players[0].Health != 100 {
		t.Error("snapshot mutation leaked into the session's player state")
	}
	if st2.Island.At(models.Position{X: 0, Y: 0}).Terrain != "grass" {
		t.Error("snapshot mutation leaked into the session's island")
	}
}
