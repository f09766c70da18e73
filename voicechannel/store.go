package voicechannel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TempChannel is one persisted temporary-channel row. Exactly one row exists per live
// channel id while the channel is active.
type TempChannel struct {
	ID         string
	OwnerID    string
	GuildID    string
	Name       string
	InviteCode string // empty when invite creation failed
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// ChannelStore is the persistence contract the Manager consumes. *Store implements it
// over Postgres; tests substitute an in-memory version.
type ChannelStore interface {
	Insert(ctx context.Context, ch TempChannel) error
	SelectAllActive(ctx context.Context, guildID string) ([]TempChannel, error)
	DeleteByID(ctx context.Context, id string) error
	SelectByID(ctx context.Context, id string) (*TempChannel, error)
	SelectByInviteCode(ctx context.Context, code string) (*TempChannel, error)
}

// Store persists temp_channels rows.
type Store struct {
	DB *sql.DB
}

// Insert writes a new row for a freshly created channel.
func (s *Store) Insert(ctx context.Context, ch TempChannel) error {
	invite := sql.NullString{String: ch.InviteCode, Valid: ch.InviteCode != ""}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO temp_channels (id, owner_id, guild_id, name, invite_code, expires_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ch.ID, ch.OwnerID, ch.GuildID, ch.Name, invite, ch.ExpiresAt, ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert temp channel %s: %w", ch.ID, err)
	}
	return nil
}

// SelectAllActive returns every tracked row, optionally scoped to a guild.
func (s *Store) SelectAllActive(ctx context.Context, guildID string) ([]TempChannel, error) {
	query := `SELECT id, owner_id, guild_id, name, invite_code, expires_at, created_at FROM temp_channels`
	args := []any{}
	if guildID != "" {
		query += ` WHERE guild_id=$1`
		args = append(args, guildID)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select temp channels: %w", err)
	}
	defer rows.Close()

	var out []TempChannel
	for rows.Next() {
		ch, err := scanTempChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// DeleteByID removes a row. Deleting an absent id is not an error.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM temp_channels WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete temp channel %s: %w", id, err)
	}
	return nil
}

// SelectByID returns a single row, or nil when absent.
func (s *Store) SelectByID(ctx context.Context, id string) (*TempChannel, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, guild_id, name, invite_code, expires_at, created_at
		 FROM temp_channels WHERE id=$1`, id)
	return scanOneTempChannel(row)
}

// SelectByInviteCode resolves a guest invite code to its channel, or nil when no tracked
// channel carries that code.
func (s *Store) SelectByInviteCode(ctx context.Context, code string) (*TempChannel, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, guild_id, name, invite_code, expires_at, created_at
		 FROM temp_channels WHERE invite_code=$1`, code)
	return scanOneTempChannel(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTempChannel(r rowScanner) (TempChannel, error) {
	var ch TempChannel
	var invite sql.NullString
	var created sql.NullTime
	if err := r.Scan(&ch.ID, &ch.OwnerID, &ch.GuildID, &ch.Name, &invite, &ch.ExpiresAt, &created); err != nil {
		return TempChannel{}, fmt.Errorf("scan temp channel: %w", err)
	}
	ch.InviteCode = invite.String
	ch.CreatedAt = created.Time
	return ch, nil
}

func scanOneTempChannel(row *sql.Row) (*TempChannel, error) {
	ch, err := scanTempChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}
