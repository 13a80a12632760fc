// Package store persists game history on a best-effort basis. The
// engine works identically with persistence absent; every call is
// fire-and-forget and a failure never blocks or fails gameplay.
package store

import "context"

// PlayerRecord is the durable shape of a joining player.
type PlayerRecord struct {
	PlayerID string
	Name     string
	Animal   string
	X, Y     int
	IsHost   bool
}

// Store records game history. Implementations must be safe for
// concurrent use; callers ignore errors beyond logging them.
type Store interface {
	CreateGameRecord(ctx context.Context, roomCode string, maxPlayers, islandSize int) error
	UpdateGameStatus(ctx context.Context, roomCode, status string) error
	AddPlayerRecord(ctx context.Context, roomCode string, p PlayerRecord) error
	LogEvent(ctx context.Context, roomCode, eventType string, round int, payload any) error
	Close() error
}

// Nop is the in-memory-only mode: it records nothing.
type Nop struct{}

func (Nop) CreateGameRecord(context.Context, string, int, int) error    { return nil }
func (Nop) UpdateGameStatus(context.Context, string, string) error      { return nil }
func (Nop) AddPlayerRecord(context.Context, string, PlayerRecord) error { return nil }
func (Nop) LogEvent(context.Context, string, string, int, any) error    { return nil }
func (Nop) Close() error                                                { return nil }
