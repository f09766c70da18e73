// Package ceremony walks new members through a short DM dialogue and assigns the role
// they end up picking. The dialogue is a static step tree; the only state is an
// in-memory per-user cursor that expires if the member stops answering.
package ceremony

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Step is one prompt in the dialogue with its numbered options.
type Step struct {
	Prompt  string
	Options []Option
}

// Option either descends into another step or terminates with a role grant.
type Option struct {
	Label    string
	Next     *Step
	RoleID   string
	RoleName string
}

// RoleAssigner grants a role to a guild member.
type RoleAssigner interface {
	AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error
}

// DMSender delivers a direct message to a user.
type DMSender interface {
	SendDM(ctx context.Context, userID, content string) error
}

// DefaultCursorTTL bounds how long an unanswered dialogue stays open.
const DefaultCursorTTL = 30 * time.Minute

type cursor struct {
	step *Step
	at   time.Time
}

// Ceremony runs the dialogue for one guild.
type Ceremony struct {
	GuildID string
	Roles   RoleAssigner
	DM      DMSender
	Root    *Step
	TTL     time.Duration

	mu      sync.Mutex
	cursors map[string]cursor
	now     func() time.Time
}

// New wires a ceremony over the given dialogue tree.
func New(guildID string, roles RoleAssigner, dm DMSender, root *Step) *Ceremony {
	return &Ceremony{
		GuildID: guildID,
		Roles:   roles,
		DM:      dm,
		Root:    root,
		TTL:     DefaultCursorTTL,
		cursors: make(map[string]cursor),
		now:     time.Now,
	}
}

// Begin opens the dialogue with a user, replacing any stale cursor.
func (c *Ceremony) Begin(ctx context.Context, userID string) error {
	if c.Root == nil {
		return fmt.Errorf("no dialogue configured")
	}
	if err := c.DM.SendDM(ctx, userID, render(c.Root)); err != nil {
		return fmt.Errorf("open ceremony dm: %w", err)
	}
	c.mu.Lock()
	c.cursors[userID] = cursor{step: c.Root, at: c.now()}
	c.mu.Unlock()
	return nil
}

// HandleReply consumes one DM reply. Replies with no open cursor are ignored so the
// ceremony never hijacks unrelated DMs. Returns true when the reply belonged to an
// active dialogue.
func (c *Ceremony) HandleReply(ctx context.Context, userID, content string) bool {
	c.mu.Lock()
	cur, ok := c.cursors[userID]
	if ok && c.now().Sub(cur.at) > c.ttl() {
		delete(c.cursors, userID)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	logger := slog.With(slog.String("component", "ceremony"), slog.String("user", userID))

	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || n < 1 || n > len(cur.step.Options) {
		if err := c.DM.SendDM(ctx, userID, "Please answer with one of the numbers.\n\n"+render(cur.step)); err != nil {
			logger.Warn("ceremony reprompt", slog.Any("err", err))
		}
		return true
	}
	opt := cur.step.Options[n-1]

	if opt.Next != nil {
		c.mu.Lock()
		c.cursors[userID] = cursor{step: opt.Next, at: c.now()}
		c.mu.Unlock()
		if err := c.DM.SendDM(ctx, userID, render(opt.Next)); err != nil {
			logger.Warn("ceremony prompt", slog.Any("err", err))
		}
		return true
	}

	c.mu.Lock()
	delete(c.cursors, userID)
	c.mu.Unlock()

	if err := c.Roles.AddMemberRole(ctx, c.GuildID, userID, opt.RoleID, "role ceremony"); err != nil {
		logger.Error("assign ceremony role", slog.String("role", opt.RoleID), slog.Any("err", err))
		if err := c.DM.SendDM(ctx, userID, "Something went wrong assigning your role. Ping a mod and we'll sort it."); err != nil {
			logger.Warn("ceremony failure dm", slog.Any("err", err))
		}
		return true
	}
	if err := c.DM.SendDM(ctx, userID, fmt.Sprintf("Welcome! You now carry **%s**.", opt.RoleName)); err != nil {
		logger.Warn("ceremony confirm dm", slog.Any("err", err))
	}
	logger.Info("ceremony role assigned", slog.String("role", opt.RoleID))
	return true
}

// Active reports whether the user has an open, unexpired dialogue.
func (c *Ceremony) Active(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.cursors[userID]
	return ok && c.now().Sub(cur.at) <= c.ttl()
}

func (c *Ceremony) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultCursorTTL
}

func render(s *Step) string {
	var b strings.Builder
	b.WriteString(s.Prompt)
	for i, opt := range s.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Label)
	}
	return b.String()
}
