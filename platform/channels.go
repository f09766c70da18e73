package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Channel types used by the bot.
const (
	ChannelTypeGuildVoice = 2
)

// Permission bits used when building overwrites.
const (
	PermViewChannel    uint64 = 1 << 10
	PermConnect        uint64 = 1 << 20
	PermSpeak          uint64 = 1 << 21
	PermMuteMembers    uint64 = 1 << 22
	PermDeafenMembers  uint64 = 1 << 23
	PermMoveMembers    uint64 = 1 << 24
	PermManageChannels uint64 = 1 << 4
)

// Overwrite target types.
const (
	OverwriteRole   = 0
	OverwriteMember = 1
)

// PermissionOverwrite is a per-role or per-member allow/deny pair. Allow and Deny are
// decimal bitfield strings on the wire.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow,omitempty"`
	Deny  string `json:"deny,omitempty"`
}

// Perms formats a permission bitfield the way the API expects it.
func Perms(bits uint64) string { return strconv.FormatUint(bits, 10) }

// Channel is the subset of channel fields the bot reads.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	GuildID  string `json:"guild_id"`
	ParentID string `json:"parent_id"`
}

// CreateVoiceChannel creates a guild voice channel under parentID with the given overwrites.
func (c *Client) CreateVoiceChannel(ctx context.Context, guildID, name, parentID string, overwrites []PermissionOverwrite) (*Channel, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guildID empty")
	}
	body := struct {
		Name                 string                `json:"name"`
		Type                 int                   `json:"type"`
		ParentID             string                `json:"parent_id,omitempty"`
		PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites,omitempty"`
	}{Name: name, Type: ChannelTypeGuildVoice, ParentID: parentID, PermissionOverwrites: overwrites}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", body, &ch, ""); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChannel fetches a channel by id. A 404 surfaces as an APIError (IsNotFound).
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch, ""); err != nil {
		return nil, err
	}
	return &ch, nil
}

// DeleteChannel deletes a channel, attaching reason to the audit log.
func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil, reason)
}

// Invite is a channel invite with its shareable URL.
type Invite struct {
	Code string `json:"code"`
	URL  string `json:"-"`
}

// CreateChannelInvite creates a unique invite for a channel. maxAgeSec bounds the invite
// lifetime; maxUses of 0 means unlimited uses within that window.
func (c *Client) CreateChannelInvite(ctx context.Context, channelID string, maxAgeSec, maxUses int) (*Invite, error) {
	body := struct {
		MaxAge  int  `json:"max_age"`
		MaxUses int  `json:"max_uses"`
		Unique  bool `json:"unique"`
	}{MaxAge: maxAgeSec, MaxUses: maxUses, Unique: true}
	var inv Invite
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/invites", body, &inv, ""); err != nil {
		return nil, err
	}
	inv.URL = "https://discord.gg/" + inv.Code
	return &inv, nil
}

// GuildInvite is an invite listed on the guild, used for join attribution.
type GuildInvite struct {
	Code      string    `json:"code"`
	Uses      int       `json:"uses"`
	MaxUses   int       `json:"max_uses"`
	CreatedAt time.Time `json:"created_at"`
	Inviter   struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"inviter"`
}

// ListGuildInvites lists all active invites for the guild.
func (c *Client) ListGuildInvites(ctx context.Context, guildID string) ([]GuildInvite, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guildID empty")
	}
	var invites []GuildInvite
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/invites", nil, &invites, ""); err != nil {
		return nil, err
	}
	return invites, nil
}

// PutMemberPermission sets a per-member allow overwrite on a channel.
func (c *Client) PutMemberPermission(ctx context.Context, channelID, userID string, allow uint64) error {
	body := struct {
		Type  int    `json:"type"`
		Allow string `json:"allow"`
	}{Type: OverwriteMember, Allow: Perms(allow)}
	return c.do(ctx, http.MethodPut, "/channels/"+channelID+"/permissions/"+userID, body, nil, "")
}
