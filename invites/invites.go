// Package invites attributes guild joins to the invite that was used. The API does not
// say which invite a new member came through, so the tracker keeps a use-count snapshot
// of every guild invite and diffs it when a member joins.
package invites

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	dbpkg "github.com/onnwee/guildkeeper/db"
	"github.com/onnwee/guildkeeper/platform"
	"github.com/onnwee/guildkeeper/telemetry"
)

// InviteLister is the REST surface the tracker needs.
type InviteLister interface {
	ListGuildInvites(ctx context.Context, guildID string) ([]platform.GuildInvite, error)
}

// Tracker snapshots guild invites and records who joined through which one.
type Tracker struct {
	Lister  InviteLister
	DB      *sql.DB
	GuildID string
}

// NewTracker wires an invite tracker.
func NewTracker(lister InviteLister, db *sql.DB, guildID string) *Tracker {
	return &Tracker{Lister: lister, DB: db, GuildID: guildID}
}

// Snapshot refreshes the stored use counts for every active guild invite. Invites that
// no longer exist upstream are removed so a revoked invite cannot match a later join.
func (t *Tracker) Snapshot(ctx context.Context) error {
	invs, err := t.Lister.ListGuildInvites(ctx, t.GuildID)
	if err != nil {
		return fmt.Errorf("list guild invites: %w", err)
	}
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM guild_invites WHERE guild_id=$1`, t.GuildID); err != nil {
		return fmt.Errorf("clear invite snapshot: %w", err)
	}
	for _, inv := range invs {
		_, err := tx.ExecContext(ctx, `INSERT INTO guild_invites (code, guild_id, inviter_id, uses, max_uses, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW())
			ON CONFLICT (code) DO UPDATE SET uses=EXCLUDED.uses, max_uses=EXCLUDED.max_uses, updated_at=NOW()`,
			inv.Code, t.GuildID, inv.Inviter.ID, inv.Uses, inv.MaxUses, inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert invite %s: %w", inv.Code, err)
		}
	}
	return tx.Commit()
}

// Attribution is the outcome of matching one join against the snapshot.
type Attribution struct {
	UserID    string
	Code      string
	InviterID string
	Matched   bool
}

// OnMemberAdd diffs current invite uses against the snapshot to find which invite the
// new member used, records the join, and refreshes the snapshot. When zero or multiple
// invites gained uses since the last snapshot the join is recorded unattributed.
func (t *Tracker) OnMemberAdd(ctx context.Context, userID string) (*Attribution, error) {
	logger := slog.With(slog.String("component", "invites"), slog.String("user", userID))

	invs, err := t.Lister.ListGuildInvites(ctx, t.GuildID)
	if err != nil {
		return nil, fmt.Errorf("list guild invites: %w", err)
	}

	prev := map[string]int{}
	rows, err := t.DB.QueryContext(ctx, `SELECT code, uses FROM guild_invites WHERE guild_id=$1`, t.GuildID)
	if err != nil {
		return nil, fmt.Errorf("load invite snapshot: %w", err)
	}
	for rows.Next() {
		var code string
		var uses int
		if err := rows.Scan(&code, &uses); err != nil {
			rows.Close()
			return nil, err
		}
		prev[code] = uses
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var bumped []platform.GuildInvite
	for _, inv := range invs {
		if inv.Uses > prev[inv.Code] {
			bumped = append(bumped, inv)
		}
	}

	att := &Attribution{UserID: userID}
	if len(bumped) == 1 {
		att.Code = bumped[0].Code
		att.InviterID = bumped[0].Inviter.ID
		att.Matched = true
	}

	var code, inviter sql.NullString
	if att.Matched {
		code = sql.NullString{String: att.Code, Valid: true}
		inviter = sql.NullString{String: att.InviterID, Valid: att.InviterID != ""}
	}
	if _, err := t.DB.ExecContext(ctx, `INSERT INTO invite_joins (guild_id, user_id, code, inviter_id, joined_at)
		VALUES ($1,$2,$3,$4,NOW())`, t.GuildID, userID, code, inviter); err != nil {
		return nil, fmt.Errorf("record invite join: %w", err)
	}

	if att.Matched {
		if telemetry.JoinsAttributed != nil {
			telemetry.JoinsAttributed.Inc()
		}
		logger.Info("join attributed", slog.String("code", att.Code), slog.String("inviter", att.InviterID))
	} else {
		if telemetry.JoinsUnmatched != nil {
			telemetry.JoinsUnmatched.Inc()
		}
		logger.Info("join unmatched", slog.Int("candidates", len(bumped)))
	}

	if err := t.Snapshot(ctx); err != nil {
		logger.Warn("refresh invite snapshot", slog.Any("err", err))
	}
	return att, nil
}

// Join is one attributed (or unattributed) guild join.
type Join struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code,omitempty"`
	InviterID string    `json:"inviter_id,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

// RecentJoins returns the newest joins for the guild, most recent first.
func (t *Tracker) RecentJoins(ctx context.Context, limit int) ([]Join, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := t.DB.QueryContext(ctx, `SELECT user_id, code, inviter_id, joined_at FROM invite_joins
		WHERE guild_id=$1 ORDER BY joined_at DESC LIMIT $2`, t.GuildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Join
	for rows.Next() {
		var j Join
		var code, inviter sql.NullString
		if err := rows.Scan(&j.UserID, &code, &inviter, &j.JoinedAt); err != nil {
			return nil, err
		}
		j.Code, j.InviterID = code.String, inviter.String
		out = append(out, j)
	}
	return out, rows.Err()
}

// StartRefreshJob periodically re-snapshots guild invites so drift from missed events
// stays bounded. Interval can be overridden with INVITE_REFRESH_INTERVAL.
func StartRefreshJob(ctx context.Context, t *Tracker, interval time.Duration) {
	if v := os.Getenv("INVITE_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	run := func() {
		if err := t.Snapshot(ctx); err != nil {
			slog.Error("invite refresh", slog.Any("err", err))
			return
		}
		if err := dbpkg.SetKVTime(ctx, t.DB, "job_invite_refresh_last", time.Now()); err != nil {
			slog.Debug("invite refresh kv", slog.Any("err", err))
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("invite refresh job started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
