package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite implements Store on a local sqlite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and runs
// migrations.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps writers from blocking the game loop's readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			room_code TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL DEFAULT 'lobby',
			max_players INTEGER NOT NULL,
			island_size INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			room_code TEXT NOT NULL,
			player_id TEXT NOT NULL,
			player_name TEXT NOT NULL,
			animal_type TEXT NOT NULL,
			position_x INTEGER DEFAULT 0,
			position_y INTEGER DEFAULT 0,
			is_host INTEGER DEFAULT 0,
			joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_events (
			id TEXT PRIMARY KEY,
			room_code TEXT NOT NULL,
			event_type TEXT NOT NULL,
			round_number INTEGER,
			event_data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// CreateGameRecord inserts a new game row.
func (s *SQLite) CreateGameRecord(ctx context.Context, roomCode string, maxPlayers, islandSize int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, room_code, max_players, island_size) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), roomCode, maxPlayers, islandSize)
	return err
}

// UpdateGameStatus records a status transition.
func (s *SQLite) UpdateGameStatus(ctx context.Context, roomCode, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE room_code = ?`,
		status, roomCode)
	return err
}

// AddPlayerRecord records a player joining a game.
func (s *SQLite) AddPlayerRecord(ctx context.Context, roomCode string, p PlayerRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, room_code, player_id, player_name, animal_type, position_x, position_y, is_host)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), roomCode, p.PlayerID, p.Name, p.Animal, p.X, p.Y, boolToInt(p.IsHost))
	return err
}

// LogEvent appends an arbitrary game event as JSON.
func (s *SQLite) LogEvent(ctx context.Context, roomCode, eventType string, round int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_events (id, room_code, event_type, round_number, event_data) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), roomCode, eventType, round, string(data))
	return err
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
