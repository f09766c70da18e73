package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockDiscordServer creates a test server that mocks Discord REST API responses.
// Handlers are keyed by "METHOD /path".
type MockDiscordServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockDiscordServer creates a new mock Discord API server
func NewMockDiscordServer(t *testing.T) *MockDiscordServer {
	t.Helper()
	m := &MockDiscordServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"code": 10003, "message": "Unknown Channel",
		})
	}))
	t.Cleanup(m.Close)
	return m
}

// RespondJSON registers a handler that writes body as JSON for "METHOD /path".
func (m *MockDiscordServer) RespondJSON(method, path string, status int, body interface{}) {
	m.Handlers[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
		}
	}
}

// MockChannelCreate adds a handler for guild channel creation
func (m *MockDiscordServer) MockChannelCreate(guildID, channelID, name string) {
	m.RespondJSON(http.MethodPost, "/guilds/"+guildID+"/channels", http.StatusCreated, map[string]interface{}{
		"id": channelID, "name": name, "type": 2, "guild_id": guildID,
	})
}

// MockInviteCreate adds a handler for channel invite creation
func (m *MockDiscordServer) MockInviteCreate(channelID, code string) {
	m.RespondJSON(http.MethodPost, "/channels/"+channelID+"/invites", http.StatusOK, map[string]interface{}{
		"code": code,
	})
}

// MockMember adds a handler for the guild member lookup endpoint
func (m *MockDiscordServer) MockMember(guildID, userID, nick, username string) {
	m.RespondJSON(http.MethodGet, "/guilds/"+guildID+"/members/"+userID, http.StatusOK, map[string]interface{}{
		"nick": nick,
		"user": map[string]string{"id": userID, "username": username},
	})
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint
func (m *MockDiscordServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.RespondJSON(http.MethodPost, "/oauth2/token", http.StatusOK, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"token_type":   "Bearer",
	})
}
