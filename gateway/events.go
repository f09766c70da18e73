package gateway

import (
	"context"
	"encoding/json"
)

// Gateway opcodes the session handles.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Gateway intents. The bot subscribes only to what its features consume.
const (
	IntentGuilds           = 1 << 0
	IntentGuildMembers     = 1 << 1
	IntentGuildInvites     = 1 << 6
	IntentGuildVoiceStates = 1 << 7
	IntentGuildMessages    = 1 << 9
	IntentMessageContent   = 1 << 15
)

// payload is the gateway frame envelope.
type payload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string `json:"token"`
	Intents    int    `json:"intents"`
	Properties struct {
		OS      string `json:"os"`
		Browser string `json:"browser"`
		Device  string `json:"device"`
	} `json:"properties"`
}

// VoiceState is one member's voice connection. An empty ChannelID means the member left
// voice (the wire value is null).
type VoiceState struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

type readyData struct {
	SessionID string `json:"session_id"`
}

type guildCreateData struct {
	ID          string       `json:"id"`
	VoiceStates []VoiceState `json:"voice_states"`
}

// MemberAdd is a GUILD_MEMBER_ADD dispatch.
type MemberAdd struct {
	GuildID string `json:"guild_id"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"user"`
}

// Message is the subset of a MESSAGE_CREATE dispatch the command layer reads.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
	Mentions []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"mentions"`
}

// Handlers receives dispatched events. Handlers run synchronously on the session's read
// loop; long work should be handed to a goroutine by the handler itself.
type Handlers struct {
	OnReady            func(ctx context.Context)
	OnVoiceStateUpdate func(ctx context.Context, vs VoiceState)
	OnMemberAdd        func(ctx context.Context, m MemberAdd)
	OnMessage          func(ctx context.Context, msg Message)
}
