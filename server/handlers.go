package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	dbpkg "github.com/onnwee/guildkeeper/db"
	"github.com/onnwee/guildkeeper/invites"
	"github.com/onnwee/guildkeeper/roster"
	"github.com/onnwee/guildkeeper/voicechannel"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db      *sql.DB
	manager *voicechannel.Manager
	invites *invites.Tracker
	roster  *roster.Store
	guildID string
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, mgr *voicechannel.Manager, tracker *invites.Tracker, rosterStore *roster.Store, guildID string) *Handlers {
	return &Handlers{
		db:      db,
		manager: mgr,
		invites: tracker,
		roster:  rosterStore,
		guildID: guildID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort response write
}

// HandleStatus reports operational state: tracked channels and job bookkeeping.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"guild_id":         h.guildID,
		"tracked_channels": h.manager.Cache().Len(),
		"time":             time.Now().UTC(),
	}
	for _, key := range []string{"job_voice_sweep_last", "job_voice_sweep_cleaned", "job_invite_refresh_last"} {
		if v, err := dbpkg.GetKV(r.Context(), h.db, key); err == nil && v != "" {
			status[key] = v
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// trackedChannel is one row of the /channels listing.
type trackedChannel struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name,omitempty"`
	InviteCode string    `json:"invite_code,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// HandleChannels lists tracked temp channels, joining cache state with stored rows.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	out := []trackedChannel{}
	for channelID, ownerID := range h.manager.Cache().Snapshot() {
		tc := trackedChannel{ID: channelID, OwnerID: ownerID}
		if row, err := h.manager.StoredChannel(r.Context(), channelID); err == nil && row != nil {
			tc.Name = row.Name
			tc.InviteCode = row.InviteCode
			tc.ExpiresAt = row.ExpiresAt
		}
		out = append(out, tc)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRoster lists the guild's character roster.
func (h *Handlers) HandleRoster(w http.ResponseWriter, r *http.Request) {
	list, err := h.roster.List(r.Context(), h.guildID)
	if err != nil {
		http.Error(w, "roster unavailable", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []roster.Character{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleInviteJoins lists recent attributed joins. ?limit=N caps the page.
func (h *Handlers) HandleInviteJoins(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	joins, err := h.invites.RecentJoins(r.Context(), limit)
	if err != nil {
		http.Error(w, "joins unavailable", http.StatusInternalServerError)
		return
	}
	if joins == nil {
		joins = []invites.Join{}
	}
	writeJSON(w, http.StatusOK, joins)
}
