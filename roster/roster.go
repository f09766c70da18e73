// Package roster keeps each member's declared character for the guild roster. One
// character per member per guild; setting again overwrites.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoCharacter is returned when a member has not registered a character.
var ErrNoCharacter = errors.New("no character registered")

// Character is one member's roster entry.
type Character struct {
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Archetype string    `json:"archetype,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Store persists characters rows.
type Store struct {
	DB *sql.DB
}

// Set registers or replaces the member's character.
func (s *Store) Set(ctx context.Context, ch Character) error {
	if ch.GuildID == "" || ch.UserID == "" || ch.Name == "" {
		return fmt.Errorf("guild_id, user_id and name required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO characters (guild_id, user_id, name, archetype, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			name=EXCLUDED.name, archetype=EXCLUDED.archetype, notes=EXCLUDED.notes, updated_at=NOW()`,
		ch.GuildID, ch.UserID, ch.Name, nullable(ch.Archetype), nullable(ch.Notes))
	if err != nil {
		return fmt.Errorf("upsert character: %w", err)
	}
	return nil
}

// Get returns the member's character, or ErrNoCharacter.
func (s *Store) Get(ctx context.Context, guildID, userID string) (*Character, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT guild_id, user_id, name, archetype, notes, created_at, updated_at
		FROM characters WHERE guild_id=$1 AND user_id=$2`, guildID, userID)
	ch, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCharacter
	}
	return ch, err
}

// Delete removes the member's character. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, guildID, userID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM characters WHERE guild_id=$1 AND user_id=$2`, guildID, userID)
	return err
}

// List returns the guild roster ordered by character name.
func (s *Store) List(ctx context.Context, guildID string) ([]Character, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT guild_id, user_id, name, archetype, notes, created_at, updated_at
		FROM characters WHERE guild_id=$1 ORDER BY name`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(r rowScanner) (*Character, error) {
	var ch Character
	var archetype, notes sql.NullString
	var updated sql.NullTime
	if err := r.Scan(&ch.GuildID, &ch.UserID, &ch.Name, &archetype, &notes, &ch.CreatedAt, &updated); err != nil {
		return nil, err
	}
	ch.Archetype, ch.Notes = archetype.String, notes.String
	if updated.Valid {
		ch.UpdatedAt = updated.Time
	}
	return &ch, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
