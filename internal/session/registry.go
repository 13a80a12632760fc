package session

import (
	"context"
	crand "crypto/rand"
	"log"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/aaronzipp/survival-island/internal/config"
	"github.com/aaronzipp/survival-island/internal/game"
	"github.com/aaronzipp/survival-island/internal/store"
)

// RoomCodeLength is the length of generated room codes.
const RoomCodeLength = 6

// RoomCodeChars are the characters used for room codes, excluding
// ambiguous ones.
const RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TransportProvider hands out a room-scoped Transport for a new
// session.
type TransportProvider interface {
	Room(code string) Transport
}

// Registry owns the lifecycle of every active session: creation with a
// unique room code, lookup, and eviction.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Session

	cfg        config.Config
	store      store.Store
	transports TransportProvider

	// OnRemove, when set, is called after a room is evicted so the
	// transport layer can drop its connections. Set before any room is
	// created.
	OnRemove func(code string)
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg config.Config, st store.Store, transports TransportProvider) *Registry {
	return &Registry{
		rooms:      make(map[string]*Session),
		cfg:        cfg,
		store:      st,
		transports: transports,
	}
}

// Create generates a unique room code, starts a session goroutine for
// it, and returns the session. hostID is the creating participant.
func (r *Registry) Create(hostID string) *Session {
	seed, err := game.NewSeed()
	if err != nil {
		// crypto/rand failing is effectively fatal elsewhere too; a
		// time-based seed keeps the game playable.
		log.Printf("seed generation failed, falling back to clock: %v", err)
		seed = time.Now().UnixNano()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = generateRoomCode()
		if _, exists := r.rooms[code]; !exists {
			break
		}
	}

	s := New(code, hostID, r.cfg, r.transports.Room(code), r.store, seed, r.evict)
	r.rooms[code] = s
	go s.Run()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.CreateGameRecord(ctx, code, r.cfg.MaxPlayers, r.cfg.IslandSize); err != nil {
			log.Printf("room %s: persistence (create game): %v", code, err)
		}
	}()

	log.Printf("room %s created", code)
	return s
}

// Get returns the session for a room code.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[code]
	return s, ok
}

// Remove evicts and stops the session for a room code.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	s, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()
	if ok {
		s.Stop()
		if r.OnRemove != nil {
			r.OnRemove(code)
		}
		log.Printf("room %s removed", code)
	}
}

// Len returns the number of active rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// evict is handed to sessions as their onEvict callback.
func (r *Registry) evict(code string) {
	r.Remove(code)
}

func generateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = RoomCodeChars[rand.Intn(len(RoomCodeChars))]
			continue
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code)
}
