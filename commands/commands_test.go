package commands

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/guildkeeper/ceremony"
	"github.com/onnwee/guildkeeper/gateway"
	"github.com/onnwee/guildkeeper/roster"
	"github.com/onnwee/guildkeeper/testutil"
	"github.com/onnwee/guildkeeper/voicechannel"
)

type stubPlatform struct {
	mu     sync.Mutex
	moves  []string
	grants []string
}

func (s *stubPlatform) CreateVoiceChannel(ctx context.Context, name, parentID, ownerID string, memberRoleIDs []string) (voicechannel.ChannelRef, error) {
	return voicechannel.ChannelRef{ID: "chan-" + ownerID, Name: name}, nil
}
func (s *stubPlatform) DeleteChannel(ctx context.Context, channelID, reason string) error { return nil }
func (s *stubPlatform) CreateInvite(ctx context.Context, channelID string, maxAgeSec, maxUses int) (voicechannel.InviteRef, error) {
	return voicechannel.InviteRef{Code: "inv", URL: "https://discord.gg/inv"}, nil
}
func (s *stubPlatform) MoveMember(ctx context.Context, userID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, userID+"->"+channelID)
	return nil
}
func (s *stubPlatform) GrantConnect(ctx context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, userID+"@"+channelID)
	return nil
}
func (s *stubPlatform) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	return true, nil
}
func (s *stubPlatform) ChannelMemberCount(ctx context.Context, channelID string) (int, error) {
	return 1, nil
}
func (s *stubPlatform) SendChannelMessage(ctx context.Context, channelID, content string) error {
	return nil
}
func (s *stubPlatform) SendDirectMessage(ctx context.Context, userID, content string) error {
	return nil
}
func (s *stubPlatform) MemberDisplayName(ctx context.Context, userID string) (string, error) {
	return userID, nil
}

type stubStore struct{}

func (stubStore) Insert(ctx context.Context, ch voicechannel.TempChannel) error { return nil }
func (stubStore) DeleteByID(ctx context.Context, id string) error               { return nil }
func (stubStore) SelectAllActive(ctx context.Context, guildID string) ([]voicechannel.TempChannel, error) {
	return nil, nil
}
func (stubStore) SelectByID(ctx context.Context, id string) (*voicechannel.TempChannel, error) {
	return nil, nil
}
func (stubStore) SelectByInviteCode(ctx context.Context, code string) (*voicechannel.TempChannel, error) {
	return nil, nil
}

type stubReplier struct {
	mu      sync.Mutex
	replies []string
}

func (s *stubReplier) CreateMessage(ctx context.Context, channelID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, content)
	return nil
}

func (s *stubReplier) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return ""
	}
	return s.replies[len(s.replies)-1]
}

func newRouter(p *stubPlatform, rep *stubReplier) *Router {
	mgr := voicechannel.NewManager(p, stubStore{}, voicechannel.Options{GuildID: "guild-1", TTL: time.Hour})
	return &Router{
		Prefix:  "!",
		GuildID: "guild-1",
		Manager: mgr,
		Mover:   p,
		Replier: rep,
	}
}

func guildMsg(author, content string) gateway.Message {
	var m gateway.Message
	m.GuildID = "guild-1"
	m.ChannelID = "text-1"
	m.Content = content
	m.Author.ID = author
	return m
}

func TestVoiceGotoMovesCaller(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)
	ctx := context.Background()

	if _, err := r.Manager.Create(ctx, "alice"); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	p.mu.Lock()
	p.moves = nil
	p.mu.Unlock()

	r.HandleMessage(ctx, guildMsg("bob", "!voice goto alice"))

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.moves) != 1 || p.moves[0] != "bob->chan-alice" {
		t.Errorf("moves = %v", p.moves)
	}
}

func TestVoiceGotoUnknownHost(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)

	r.HandleMessage(context.Background(), guildMsg("bob", "!voice goto nobody"))

	if !strings.Contains(rep.last(), "No active channel") {
		t.Errorf("reply = %q", rep.last())
	}
}

func TestVoiceGuestGrantsAccess(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)
	ctx := context.Background()

	if _, err := r.Manager.Create(ctx, "alice"); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	msg := guildMsg("alice", "!voice guest @bob")
	msg.Mentions = append(msg.Mentions, struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}{ID: "bob", Username: "bob"})
	r.HandleMessage(ctx, msg)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.grants) != 1 || p.grants[0] != "bob@chan-alice" {
		t.Errorf("grants = %v", p.grants)
	}
}

func TestVoiceGuestWithoutChannel(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)

	msg := guildMsg("alice", "!voice guest @bob")
	msg.Mentions = append(msg.Mentions, struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}{ID: "bob", Username: "bob"})
	r.HandleMessage(context.Background(), msg)

	if !strings.Contains(rep.last(), "don't have an active channel") {
		t.Errorf("reply = %q", rep.last())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.grants) != 0 {
		t.Errorf("grants = %v, want none", p.grants)
	}
}

func TestIgnoresBotsAndNonPrefix(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)
	ctx := context.Background()

	m := guildMsg("bot-1", "!voice goto alice")
	m.Author.Bot = true
	r.HandleMessage(ctx, m)
	r.HandleMessage(ctx, guildMsg("bob", "hello there"))

	if got := rep.last(); got != "" {
		t.Errorf("reply = %q, want none", got)
	}
}

func TestDMRoutesToCeremony(t *testing.T) {
	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)
	ctx := context.Background()

	roles := &recordingRoles{}
	dm := &recordingDM{}
	r.Ceremony = ceremony.New("guild-1", roles, dm, &ceremony.Step{
		Prompt:  "Pick",
		Options: []ceremony.Option{{Label: "One", RoleID: "role-1", RoleName: "One"}},
	})
	if err := r.Ceremony.Begin(ctx, "alice"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var m gateway.Message
	m.Content = "1"
	m.Author.ID = "alice"
	r.HandleMessage(ctx, m)

	if len(roles.assigned) != 1 || roles.assigned[0] != "alice:role-1" {
		t.Errorf("assigned = %v", roles.assigned)
	}
}

func TestCharCommands(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	if _, err := database.ExecContext(ctx, `DELETE FROM characters WHERE guild_id='guild-1'`); err != nil {
		t.Fatalf("clean characters: %v", err)
	}

	p := &stubPlatform{}
	rep := &stubReplier{}
	r := newRouter(p, rep)
	r.Roster = &roster.Store{DB: database}

	r.HandleMessage(ctx, guildMsg("alice", "!char set Seraphine / bard"))
	if !strings.Contains(rep.last(), "Seraphine") {
		t.Errorf("set reply = %q", rep.last())
	}

	r.HandleMessage(ctx, guildMsg("alice", "!char show"))
	if !strings.Contains(rep.last(), "Seraphine") || !strings.Contains(rep.last(), "bard") {
		t.Errorf("show reply = %q", rep.last())
	}

	r.HandleMessage(ctx, guildMsg("alice", "!char clear"))
	r.HandleMessage(ctx, guildMsg("alice", "!char show"))
	if !strings.Contains(rep.last(), "No character") {
		t.Errorf("show after clear = %q", rep.last())
	}
}

type recordingRoles struct {
	assigned []string
}

func (f *recordingRoles) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	f.assigned = append(f.assigned, userID+":"+roleID)
	return nil
}

type recordingDM struct {
	sent []string
}

func (f *recordingDM) SendDM(ctx context.Context, userID, content string) error {
	f.sent = append(f.sent, content)
	return nil
}
