package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/onnwee/guildkeeper/testutil"
)

func TestCreateVoiceChannel(t *testing.T) {
	mock := testutil.NewMockDiscordServer(t)
	var got struct {
		Name                 string                `json:"name"`
		Type                 int                   `json:"type"`
		ParentID             string                `json:"parent_id"`
		PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites"`
	}
	mock.Handlers["POST /guilds/guild-1/channels"] = func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bot test-token" {
			t.Errorf("Authorization = %q, want bot token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"id": "chan-9", "name": got.Name, "type": 2, "guild_id": "guild-1",
		})
	}

	c := &Client{BaseURL: mock.URL, BotToken: "test-token"}
	ch, err := c.CreateVoiceChannel(context.Background(), "guild-1", "Voice Hall", "cat-1", []PermissionOverwrite{
		{ID: "guild-1", Type: OverwriteRole, Deny: Perms(PermConnect)},
	})
	if err != nil {
		t.Fatalf("CreateVoiceChannel: %v", err)
	}
	if ch.ID != "chan-9" {
		t.Errorf("channel id = %q, want chan-9", ch.ID)
	}
	if got.Type != ChannelTypeGuildVoice || got.ParentID != "cat-1" {
		t.Errorf("request body type=%d parent=%q, want voice type under cat-1", got.Type, got.ParentID)
	}
	if len(got.PermissionOverwrites) != 1 || got.PermissionOverwrites[0].Deny != "1048576" {
		t.Errorf("overwrites = %+v, want connect deny for @everyone", got.PermissionOverwrites)
	}
}

func TestCreateChannelInviteURL(t *testing.T) {
	mock := testutil.NewMockDiscordServer(t)
	mock.MockInviteCreate("chan-1", "abc123")

	c := &Client{BaseURL: mock.URL, BotToken: "t"}
	inv, err := c.CreateChannelInvite(context.Background(), "chan-1", 86400, 0)
	if err != nil {
		t.Fatalf("CreateChannelInvite: %v", err)
	}
	if inv.URL != "https://discord.gg/abc123" {
		t.Errorf("URL = %q", inv.URL)
	}
}

func TestDeleteChannelAuditReason(t *testing.T) {
	mock := testutil.NewMockDiscordServer(t)
	var reason string
	mock.Handlers["DELETE /channels/chan-1"] = func(w http.ResponseWriter, r *http.Request) {
		reason = r.Header.Get("X-Audit-Log-Reason")
		w.WriteHeader(http.StatusOK)
	}

	c := &Client{BaseURL: mock.URL, BotToken: "t"}
	if err := c.DeleteChannel(context.Background(), "chan-1", "expired temp channel"); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if reason != "expired temp channel" {
		t.Errorf("audit reason = %q", reason)
	}
}

func TestAPIErrorNotFound(t *testing.T) {
	mock := testutil.NewMockDiscordServer(t)

	c := &Client{BaseURL: mock.URL, BotToken: "t"}
	_, err := c.GetChannel(context.Background(), "gone")
	if err == nil {
		t.Fatal("expected error on unknown channel")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
}

func TestMemberDisplayNamePrecedence(t *testing.T) {
	cases := []struct {
		name string
		m    Member
		want string
	}{
		{"nick wins", memberWith("Nickname", "Global", "username"), "Nickname"},
		{"global next", memberWith("", "Global", "username"), "Global"},
		{"username last", memberWith("", "", "username"), "username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.m.DisplayName(); got != tc.want {
				t.Errorf("DisplayName = %q, want %q", got, tc.want)
			}
		})
	}
}

func memberWith(nick, global, username string) Member {
	var m Member
	m.Nick = nick
	m.User.GlobalName = global
	m.User.Username = username
	return m
}
