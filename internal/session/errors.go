package session

import "errors"

// ErrRoomNotFound indicates no session exists for the room code.
var ErrRoomNotFound = errors.New("room not found")

// ErrRoomFull indicates the roster is at capacity.
var ErrRoomFull = errors.New("room is full")

// ErrGameInProgress indicates a join or start arrived after the lobby
// closed.
var ErrGameInProgress = errors.New("game already in progress")

// ErrNotEnoughPlayers indicates the roster is below the configured
// minimum to start.
var ErrNotEnoughPlayers = errors.New("not enough players to start")

// ErrUnauthorized indicates a host-only command from a non-host.
var ErrUnauthorized = errors.New("only the host can do that")

// ErrVotingNotActive indicates a vote outside an open round, or from a
// player who is out of the game.
var ErrVotingNotActive = errors.New("voting is not active")

// ErrUnknownPlayer indicates a vote from a participant not in the
// roster.
var ErrUnknownPlayer = errors.New("unknown player")
