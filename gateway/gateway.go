// Package gateway maintains the bot's websocket session with the Discord gateway:
// identify, heartbeat, dispatch fan-out, and reconnect with capped backoff. It also
// tracks live voice occupancy from VOICE_STATE_UPDATE events (see VoiceTracker).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/guildkeeper/telemetry"
)

// URLResolver resolves the websocket URL to dial; the REST client implements it.
type URLResolver interface {
	GetGatewayURL(ctx context.Context) (string, error)
}

// Session is one bot gateway connection. Run blocks until ctx is canceled, reconnecting
// on every error.
type Session struct {
	resolver URLResolver
	token    string
	intents  int
	handlers Handlers
	voice    *VoiceTracker

	mu   sync.Mutex // guards conn writes
	conn *websocket.Conn
	seq  int64
}

// NewSession wires a session with the default intent set for the bot's features.
func NewSession(resolver URLResolver, token string, handlers Handlers) *Session {
	return &Session{
		resolver: resolver,
		token:    token,
		intents: IntentGuilds | IntentGuildMembers | IntentGuildInvites |
			IntentGuildVoiceStates | IntentGuildMessages | IntentMessageContent,
		handlers: handlers,
		voice:    NewVoiceTracker(),
	}
}

// Voice returns the session's voice-state tracker.
func (s *Session) Voice() *VoiceTracker { return s.voice }

// SetHandlers replaces the event handlers. Call before Run; the handler set needs the
// voice tracker, which only exists once the session does.
func (s *Session) SetHandlers(h Handlers) { s.handlers = h }

// Run connects and serves the session until ctx is canceled. Connection failures back
// off from 1s to 60s, doubling per attempt and resetting after a healthy session.
func (s *Session) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 60 * time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		err := s.runOnce(ctx)
		telemetry.UpdateGatewayGauge(false)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		if telemetry.GatewayReconnects != nil {
			telemetry.GatewayReconnects.Inc()
		}
		slog.Warn("gateway session ended; reconnecting",
			slog.Any("err", err), slog.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Session) runOnce(ctx context.Context) error {
	url, err := s.resolver.GetGatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("resolve gateway url: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.seq = 0
	s.mu.Unlock()
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("close gateway conn", slog.Any("err", err))
		}
	}()

	// Close the socket when ctx is canceled so the blocked reader unblocks.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchdogDone:
		}
	}()

	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	if hd.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval %d", hd.HeartbeatInterval)
	}

	if err := s.identify(); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go s.heartbeatLoop(ctx, time.Duration(hd.HeartbeatInterval)*time.Millisecond, heartbeatDone)

	telemetry.UpdateGatewayGauge(true)
	slog.Info("gateway session established")

	for {
		var p payload
		if err := conn.ReadJSON(&p); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if p.S != 0 {
			s.mu.Lock()
			s.seq = p.S
			s.mu.Unlock()
		}
		switch p.Op {
		case opDispatch:
			s.dispatch(ctx, p.T, p.D)
		case opHeartbeat:
			if err := s.sendHeartbeat(); err != nil {
				return fmt.Errorf("requested heartbeat: %w", err)
			}
		case opReconnect:
			return fmt.Errorf("server requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("invalid session")
		case opHeartbeatACK:
			// nothing to do
		}
	}
}

func (s *Session) identify() error {
	var d identifyData
	d.Token = s.token
	d.Intents = s.intents
	d.Properties.OS = "linux"
	d.Properties.Browser = "guildkeeper"
	d.Properties.Device = "guildkeeper"
	return s.writeJSON(payload{Op: opIdentify, D: mustMarshal(d)})
}

func (s *Session) heartbeatLoop(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(); err != nil {
				slog.Debug("heartbeat send failed", slog.Any("err", err))
				return
			}
		}
	}
}

func (s *Session) sendHeartbeat() error {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	return s.writeJSON(payload{Op: opHeartbeat, D: mustMarshal(seq)})
}

func (s *Session) writeJSON(p payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("no connection")
	}
	return s.conn.WriteJSON(p)
}

func (s *Session) dispatch(ctx context.Context, t string, d json.RawMessage) {
	switch t {
	case "READY":
		var rd readyData
		if err := json.Unmarshal(d, &rd); err != nil {
			slog.Warn("decode READY", slog.Any("err", err))
			return
		}
		slog.Info("gateway ready", slog.String("session", rd.SessionID))
		if s.handlers.OnReady != nil {
			s.handlers.OnReady(ctx)
		}
	case "GUILD_CREATE":
		var gc guildCreateData
		if err := json.Unmarshal(d, &gc); err != nil {
			slog.Warn("decode GUILD_CREATE", slog.Any("err", err))
			return
		}
		s.voice.Seed(gc.VoiceStates)
		slog.Info("guild snapshot received",
			slog.String("guild", gc.ID), slog.Int("voice_states", len(gc.VoiceStates)))
	case "VOICE_STATE_UPDATE":
		var vs VoiceState
		if err := json.Unmarshal(d, &vs); err != nil {
			slog.Warn("decode VOICE_STATE_UPDATE", slog.Any("err", err))
			return
		}
		s.voice.Set(vs.UserID, vs.ChannelID)
		if s.handlers.OnVoiceStateUpdate != nil {
			s.handlers.OnVoiceStateUpdate(ctx, vs)
		}
	case "GUILD_MEMBER_ADD":
		var ma MemberAdd
		if err := json.Unmarshal(d, &ma); err != nil {
			slog.Warn("decode GUILD_MEMBER_ADD", slog.Any("err", err))
			return
		}
		if s.handlers.OnMemberAdd != nil {
			s.handlers.OnMemberAdd(ctx, ma)
		}
	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(d, &msg); err != nil {
			slog.Warn("decode MESSAGE_CREATE", slog.Any("err", err))
			return
		}
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(ctx, msg)
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
