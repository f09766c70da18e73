// Package commands routes prefix chat commands to the managers behind them. It is thin
// glue: parse the message, call into the owning package, reply with one short line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/guildkeeper/ceremony"
	"github.com/onnwee/guildkeeper/gateway"
	"github.com/onnwee/guildkeeper/roster"
	"github.com/onnwee/guildkeeper/voicechannel"
)

// Replier posts a message back to the channel a command came from.
type Replier interface {
	CreateMessage(ctx context.Context, channelID, content string) error
}

// Mover moves a connected member into a voice channel.
type Mover interface {
	MoveMember(ctx context.Context, userID, channelID string) error
}

// Router dispatches prefix commands from guild messages and forwards DM replies to the
// role ceremony.
type Router struct {
	Prefix   string
	GuildID  string
	Manager  *voicechannel.Manager
	Mover    Mover
	Roster   *roster.Store
	Ceremony *ceremony.Ceremony
	Replier  Replier
}

// HandleMessage is wired as the gateway's OnMessage handler.
func (r *Router) HandleMessage(ctx context.Context, msg gateway.Message) {
	if msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		if r.Ceremony != nil {
			r.Ceremony.HandleReply(ctx, msg.Author.ID, msg.Content)
		}
		return
	}
	if !strings.HasPrefix(msg.Content, r.Prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(msg.Content, r.Prefix))
	if len(fields) == 0 {
		return
	}

	logger := slog.With(slog.String("component", "commands"),
		slog.String("command", fields[0]), slog.String("user", msg.Author.ID))

	var reply string
	switch fields[0] {
	case "voice":
		reply = r.voice(ctx, msg, fields[1:])
	case "char":
		reply = r.char(ctx, msg, fields[1:])
	case "roles":
		reply = r.roles(ctx, msg)
	default:
		return
	}
	if reply == "" {
		return
	}
	if err := r.Replier.CreateMessage(ctx, msg.ChannelID, reply); err != nil {
		logger.Warn("command reply", slog.Any("err", err))
	}
}

func (r *Router) voice(ctx context.Context, msg gateway.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: " + r.Prefix + "voice goto <host> | " + r.Prefix + "voice guest @user"
	}
	switch args[0] {
	case "goto":
		if len(args) < 2 {
			return "Who do you want to join? Try " + r.Prefix + "voice goto <host name>."
		}
		query := strings.Join(args[1:], " ")
		channelID, ok := r.Manager.ResolveByOwnerName(ctx, query)
		if !ok {
			return fmt.Sprintf("No active channel hosted by %q.", query)
		}
		if err := r.Mover.MoveMember(ctx, msg.Author.ID, channelID); err != nil {
			return "Couldn't move you. Join any voice channel first, then try again."
		}
		return ""
	case "guest":
		if len(msg.Mentions) == 0 {
			return "Mention who you want to invite: " + r.Prefix + "voice guest @user."
		}
		channelID, ok := r.Manager.ChannelOwnedBy(msg.Author.ID)
		if !ok {
			return "You don't have an active channel. Join the lobby to get one."
		}
		guest := msg.Mentions[0]
		if err := r.Manager.GrantGuestAccess(ctx, guest.ID, channelID); err != nil {
			if errors.Is(err, voicechannel.ErrNotManaged) {
				return "That channel isn't managed here."
			}
			return "Couldn't grant access right now. Try again in a moment."
		}
		return fmt.Sprintf("%s can now join your channel.", guest.Username)
	default:
		return "Unknown voice command. Try goto or guest."
	}
}

func (r *Router) char(ctx context.Context, msg gateway.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: " + r.Prefix + "char set <name> | show | clear"
	}
	switch args[0] {
	case "set":
		if len(args) < 2 {
			return "What's the character called? " + r.Prefix + "char set <name>."
		}
		// Everything after "set" is the name; an optional "/ archetype" suffix splits it.
		rest := strings.Join(args[1:], " ")
		name, archetype := rest, ""
		if i := strings.Index(rest, "/"); i >= 0 {
			name = strings.TrimSpace(rest[:i])
			archetype = strings.TrimSpace(rest[i+1:])
		}
		ch := roster.Character{GuildID: msg.GuildID, UserID: msg.Author.ID, Name: name, Archetype: archetype}
		if err := r.Roster.Set(ctx, ch); err != nil {
			return "Couldn't save that. Try again in a moment."
		}
		return fmt.Sprintf("Registered **%s**.", name)
	case "show":
		userID := msg.Author.ID
		if len(msg.Mentions) > 0 {
			userID = msg.Mentions[0].ID
		}
		ch, err := r.Roster.Get(ctx, msg.GuildID, userID)
		if errors.Is(err, roster.ErrNoCharacter) {
			return "No character registered."
		}
		if err != nil {
			return "Couldn't look that up right now."
		}
		if ch.Archetype != "" {
			return fmt.Sprintf("**%s** (%s)", ch.Name, ch.Archetype)
		}
		return fmt.Sprintf("**%s**", ch.Name)
	case "clear":
		if err := r.Roster.Delete(ctx, msg.GuildID, msg.Author.ID); err != nil {
			return "Couldn't clear that right now."
		}
		return "Character cleared."
	default:
		return "Unknown char command. Try set, show or clear."
	}
}

func (r *Router) roles(ctx context.Context, msg gateway.Message) string {
	if r.Ceremony == nil {
		return "Role picking isn't set up here."
	}
	if err := r.Ceremony.Begin(ctx, msg.Author.ID); err != nil {
		return "I couldn't DM you. Check your privacy settings and try again."
	}
	return "Check your DMs."
}

// HandleMemberAdd starts the role ceremony for members joining the guild.
func (r *Router) HandleMemberAdd(ctx context.Context, m gateway.MemberAdd) {
	if m.User.Bot || r.Ceremony == nil {
		return
	}
	if err := r.Ceremony.Begin(ctx, m.User.ID); err != nil {
		slog.Debug("welcome ceremony dm", slog.String("user", m.User.ID), slog.Any("err", err))
	}
}
