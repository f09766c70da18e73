// Package lobby watches the designated lobby voice channel and provisions a temporary
// channel for anyone who joins it.
package lobby

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onnwee/guildkeeper/gateway"
	"github.com/onnwee/guildkeeper/voicechannel"
)

// Mover moves a connected member into a voice channel.
type Mover interface {
	MoveMember(ctx context.Context, userID, channelID string) error
}

// Listener reacts to voice state updates. Joining the lobby channel triggers channel
// creation; owners who rejoin get moved back to their existing channel.
type Listener struct {
	Manager        *voicechannel.Manager
	Mover          Mover
	LobbyChannelID string

	mu       sync.Mutex
	inflight map[string]struct{}

	// wg tracks spawned creations so tests and shutdown can wait for them.
	wg sync.WaitGroup
}

// NewListener wires a lobby listener.
func NewListener(mgr *voicechannel.Manager, mover Mover, lobbyChannelID string) *Listener {
	return &Listener{
		Manager:        mgr,
		Mover:          mover,
		LobbyChannelID: lobbyChannelID,
		inflight:       make(map[string]struct{}),
	}
}

// HandleVoiceState is called synchronously from the gateway read loop, so the actual
// provisioning runs on its own goroutine. A per-user in-flight guard drops the duplicate
// events the gateway emits while the first creation is still running.
func (l *Listener) HandleVoiceState(ctx context.Context, vs gateway.VoiceState) {
	if l.LobbyChannelID == "" || vs.ChannelID != l.LobbyChannelID {
		return
	}
	l.mu.Lock()
	if _, busy := l.inflight[vs.UserID]; busy {
		l.mu.Unlock()
		return
	}
	l.inflight[vs.UserID] = struct{}{}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.inflight, vs.UserID)
			l.mu.Unlock()
		}()
		l.provision(ctx, vs.UserID)
	}()
}

// Wait blocks until all in-flight provisioning goroutines finish.
func (l *Listener) Wait() { l.wg.Wait() }

func (l *Listener) provision(ctx context.Context, userID string) {
	logger := slog.With(slog.String("component", "lobby"), slog.String("user", userID))

	res, err := l.Manager.Create(ctx, userID)
	if err != nil {
		var owns *voicechannel.AlreadyOwnsError
		if errors.As(err, &owns) {
			if mvErr := l.Mover.MoveMember(ctx, userID, owns.ChannelID); mvErr != nil {
				logger.Warn("move to existing channel", slog.String("channel", owns.ChannelID), slog.Any("err", mvErr))
			}
			return
		}
		logger.Error("provision temp channel", slog.Any("err", err))
		return
	}
	if len(res.Diagnostics) > 0 {
		logger.Info("temp channel created (degraded)",
			slog.String("channel", res.Channel.ID),
			slog.Int("failed_steps", len(res.Diagnostics)))
		return
	}
	logger.Info("temp channel created", slog.String("channel", res.Channel.ID))
}
