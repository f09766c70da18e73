package platform

import (
	"context"

	"github.com/onnwee/guildkeeper/gateway"
	"github.com/onnwee/guildkeeper/voicechannel"
)

// GuestAllow is the overwrite granted to an invited guest.
const GuestAllow = PermViewChannel | PermConnect | PermSpeak

// ownerAllow gives the channel owner control over their own room.
const ownerAllow = PermViewChannel | PermConnect | PermSpeak |
	PermMuteMembers | PermDeafenMembers | PermMoveMembers | PermManageChannels

// memberAllow is what trusted member roles get in every temp channel.
const memberAllow = PermViewChannel | PermConnect | PermSpeak

// GuildPlatform adapts the REST client and the live voice tracker to the channel
// manager's needs. Member counts come from the tracker because the REST API does not
// expose voice occupancy.
type GuildPlatform struct {
	Client  *Client
	Voice   *gateway.VoiceTracker
	GuildID string
}

var _ voicechannel.Platform = (*GuildPlatform)(nil)

// CreateVoiceChannel provisions a voice channel locked down to the owner and the
// configured member roles. The @everyone role (same id as the guild) is denied connect
// so guests only enter through an invite or an explicit grant.
func (p *GuildPlatform) CreateVoiceChannel(ctx context.Context, name, parentID, ownerID string, memberRoleIDs []string) (voicechannel.ChannelRef, error) {
	overwrites := []PermissionOverwrite{
		{ID: p.GuildID, Type: OverwriteRole, Deny: Perms(PermConnect)},
		{ID: ownerID, Type: OverwriteMember, Allow: Perms(ownerAllow)},
	}
	for _, roleID := range memberRoleIDs {
		overwrites = append(overwrites, PermissionOverwrite{
			ID: roleID, Type: OverwriteRole, Allow: Perms(memberAllow),
		})
	}
	ch, err := p.Client.CreateVoiceChannel(ctx, p.GuildID, name, parentID, overwrites)
	if err != nil {
		return voicechannel.ChannelRef{}, err
	}
	return voicechannel.ChannelRef{ID: ch.ID, Name: ch.Name}, nil
}

func (p *GuildPlatform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return p.Client.DeleteChannel(ctx, channelID, reason)
}

func (p *GuildPlatform) CreateInvite(ctx context.Context, channelID string, maxAgeSec, maxUses int) (voicechannel.InviteRef, error) {
	inv, err := p.Client.CreateChannelInvite(ctx, channelID, maxAgeSec, maxUses)
	if err != nil {
		return voicechannel.InviteRef{}, err
	}
	return voicechannel.InviteRef{Code: inv.Code, URL: inv.URL}, nil
}

func (p *GuildPlatform) MoveMember(ctx context.Context, userID, channelID string) error {
	return p.Client.MoveMember(ctx, p.GuildID, userID, channelID)
}

func (p *GuildPlatform) GrantConnect(ctx context.Context, channelID, userID string) error {
	return p.Client.PutMemberPermission(ctx, channelID, userID, GuestAllow)
}

// ChannelExists distinguishes a deleted channel (404) from a transient failure.
func (p *GuildPlatform) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	_, err := p.Client.GetChannel(ctx, channelID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *GuildPlatform) ChannelMemberCount(ctx context.Context, channelID string) (int, error) {
	return p.Voice.Count(channelID), nil
}

func (p *GuildPlatform) SendChannelMessage(ctx context.Context, channelID, content string) error {
	return p.Client.CreateMessage(ctx, channelID, content)
}

func (p *GuildPlatform) SendDirectMessage(ctx context.Context, userID, content string) error {
	return p.Client.SendDM(ctx, userID, content)
}

func (p *GuildPlatform) MemberDisplayName(ctx context.Context, userID string) (string, error) {
	m, err := p.Client.GetGuildMember(ctx, p.GuildID, userID)
	if err != nil {
		return "", err
	}
	return m.DisplayName(), nil
}
