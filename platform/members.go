package platform

import (
	"context"
	"fmt"
	"net/http"
)

// Member is the subset of guild member fields the bot reads.
type Member struct {
	Nick string `json:"nick"`
	User struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	} `json:"user"`
	Roles []string `json:"roles"`
}

// DisplayName returns the name members see in the guild: nickname, then global
// display name, then the account username.
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// GetGuildMember fetches a guild member by user id.
func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	if guildID == "" || userID == "" {
		return nil, fmt.Errorf("guildID/userID empty")
	}
	var m Member
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &m, ""); err != nil {
		return nil, err
	}
	return &m, nil
}

// MoveMember moves a connected member into the given voice channel. Fails if the member
// is not connected to voice.
func (c *Client) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	body := struct {
		ChannelID string `json:"channel_id"`
	}{ChannelID: channelID}
	return c.do(ctx, http.MethodPatch, "/guilds/"+guildID+"/members/"+userID, body, nil, "")
}

// AddMemberRole grants a role to a guild member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return c.do(ctx, http.MethodPut, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil, reason)
}

// RemoveMemberRole revokes a role from a guild member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return c.do(ctx, http.MethodDelete, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil, reason)
}

// CreateMessage posts a plain-text message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) error {
	body := struct {
		Content string `json:"content"`
	}{Content: content}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil, "")
}

// SendDM opens (or reuses) the DM channel with a user and posts content there.
// Users can disable DMs; callers should treat failure as non-fatal.
func (c *Client) SendDM(ctx context.Context, userID, content string) error {
	body := struct {
		RecipientID string `json:"recipient_id"`
	}{RecipientID: userID}
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", body, &ch, ""); err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	return c.CreateMessage(ctx, ch.ID, content)
}
