package invites

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/guildkeeper/platform"
	"github.com/onnwee/guildkeeper/testutil"
)

type fakeLister struct {
	invites []platform.GuildInvite
}

func (f *fakeLister) ListGuildInvites(ctx context.Context, guildID string) ([]platform.GuildInvite, error) {
	return f.invites, nil
}

func cleanGuild(t *testing.T, ctx context.Context, tr *Tracker) {
	t.Helper()
	for _, q := range []string{
		`DELETE FROM invite_joins WHERE guild_id=$1`,
		`DELETE FROM guild_invites WHERE guild_id=$1`,
	} {
		if _, err := tr.DB.ExecContext(ctx, q, tr.GuildID); err != nil {
			t.Fatalf("clean guild rows: %v", err)
		}
	}
}

func inv(code, inviterID string, uses int) platform.GuildInvite {
	var gi platform.GuildInvite
	gi.Code = code
	gi.Uses = uses
	gi.CreatedAt = time.Now().UTC()
	gi.Inviter.ID = inviterID
	return gi
}

func TestOnMemberAddAttributesSingleBump(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	lister := &fakeLister{invites: []platform.GuildInvite{
		inv("aaa", "host-1", 3),
		inv("bbb", "host-2", 7),
	}}
	tr := NewTracker(lister, database, "guild-invtest-match")
	cleanGuild(t, ctx, tr)
	if err := tr.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	lister.invites = []platform.GuildInvite{
		inv("aaa", "host-1", 3),
		inv("bbb", "host-2", 8),
	}
	att, err := tr.OnMemberAdd(ctx, "newbie")
	if err != nil {
		t.Fatalf("OnMemberAdd: %v", err)
	}
	if !att.Matched || att.Code != "bbb" || att.InviterID != "host-2" {
		t.Errorf("attribution = %+v, want match on bbb/host-2", att)
	}

	joins, err := tr.RecentJoins(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJoins: %v", err)
	}
	if len(joins) != 1 || joins[0].UserID != "newbie" || joins[0].Code != "bbb" {
		t.Errorf("joins = %+v", joins)
	}
}

func TestOnMemberAddAmbiguousBumpIsUnmatched(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	lister := &fakeLister{invites: []platform.GuildInvite{
		inv("aaa", "host-1", 1),
		inv("bbb", "host-2", 1),
	}}
	tr := NewTracker(lister, database, "guild-invtest-ambiguous")
	cleanGuild(t, ctx, tr)
	if err := tr.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Two invites gained uses between snapshots, so neither can be credited.
	lister.invites = []platform.GuildInvite{
		inv("aaa", "host-1", 2),
		inv("bbb", "host-2", 2),
	}
	att, err := tr.OnMemberAdd(ctx, "newbie")
	if err != nil {
		t.Fatalf("OnMemberAdd: %v", err)
	}
	if att.Matched {
		t.Errorf("attribution = %+v, want unmatched", att)
	}

	joins, err := tr.RecentJoins(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJoins: %v", err)
	}
	if len(joins) != 1 || joins[0].Code != "" {
		t.Errorf("joins = %+v, want one unattributed join", joins)
	}
}

func TestOnMemberAddNewInviteCountsFromZero(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	lister := &fakeLister{invites: nil}
	tr := NewTracker(lister, database, "guild-invtest-fresh")
	cleanGuild(t, ctx, tr)
	if err := tr.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// An invite created after the snapshot with one use is still a single bump.
	lister.invites = []platform.GuildInvite{inv("zzz", "host-9", 1)}
	att, err := tr.OnMemberAdd(ctx, "newbie")
	if err != nil {
		t.Fatalf("OnMemberAdd: %v", err)
	}
	if !att.Matched || att.Code != "zzz" {
		t.Errorf("attribution = %+v, want match on zzz", att)
	}
}
