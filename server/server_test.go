package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/guildkeeper/voicechannel"
)

type stubPlatform struct{}

func (stubPlatform) CreateVoiceChannel(ctx context.Context, name, parentID, ownerID string, memberRoleIDs []string) (voicechannel.ChannelRef, error) {
	return voicechannel.ChannelRef{ID: "chan-" + ownerID, Name: name}, nil
}
func (stubPlatform) DeleteChannel(ctx context.Context, channelID, reason string) error { return nil }
func (stubPlatform) CreateInvite(ctx context.Context, channelID string, maxAgeSec, maxUses int) (voicechannel.InviteRef, error) {
	return voicechannel.InviteRef{Code: "inv", URL: "https://discord.gg/inv"}, nil
}
func (stubPlatform) MoveMember(ctx context.Context, userID, channelID string) error    { return nil }
func (stubPlatform) GrantConnect(ctx context.Context, channelID, userID string) error  { return nil }
func (stubPlatform) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	return true, nil
}
func (stubPlatform) ChannelMemberCount(ctx context.Context, channelID string) (int, error) {
	return 1, nil
}
func (stubPlatform) SendChannelMessage(ctx context.Context, channelID, content string) error {
	return nil
}
func (stubPlatform) SendDirectMessage(ctx context.Context, userID, content string) error { return nil }
func (stubPlatform) MemberDisplayName(ctx context.Context, userID string) (string, error) {
	return userID, nil
}

type stubStore struct{}

func (stubStore) Insert(ctx context.Context, ch voicechannel.TempChannel) error { return nil }
func (stubStore) DeleteByID(ctx context.Context, id string) error               { return nil }
func (stubStore) SelectAllActive(ctx context.Context, guildID string) ([]voicechannel.TempChannel, error) {
	return nil, nil
}
func (stubStore) SelectByID(ctx context.Context, id string) (*voicechannel.TempChannel, error) {
	return nil, nil
}
func (stubStore) SelectByInviteCode(ctx context.Context, code string) (*voicechannel.TempChannel, error) {
	return nil, nil
}

func newTestMux(t *testing.T) (http.Handler, *Handlers) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr := voicechannel.NewManager(stubPlatform{}, stubStore{}, voicechannel.Options{GuildID: "guild-1", TTL: time.Hour})
	h := NewHandlers(nil, mgr, nil, nil, "guild-1")
	return NewMux(ctx, h), h
}

func TestChannelsListing(t *testing.T) {
	mux, h := newTestMux(t)
	if _, err := h.manager.Create(context.Background(), "alice"); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/channels", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "chan-alice" || got[0]["owner_id"] != "alice" {
		t.Errorf("channels = %v", got)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "sekrit")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sweep", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
	req.Header.Set("X-Admin-Token", "sekrit")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}
}

func TestAdminChannelDelete(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	mux, h := newTestMux(t)
	ctx := context.Background()
	if _, err := h.manager.Create(ctx, "alice"); err != nil {
		t.Fatalf("seed channel: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/channels/chan-alice", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("delete tracked: status = %d, want 200", rec.Code)
	}
	if _, ok := h.manager.OwnerOf("chan-alice"); ok {
		t.Error("channel still tracked after admin delete")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/channels/chan-ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown: status = %d, want 404", rec.Code)
	}
}

func TestAdminRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	mux, _ := newTestMux(t)

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sweep", nil))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", last)
	}
}

func TestCORSPreflight(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/channels", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS origin header")
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q", got)
	}
}
