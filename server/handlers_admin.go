package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/guildkeeper/telemetry"
	"github.com/onnwee/guildkeeper/voicechannel"
)

// HandleAdminSweep forces a reconcile pass outside the scheduled interval.
func (h *Handlers) HandleAdminSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cleaned, err := h.manager.Reconcile(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("forced sweep failed", slog.Any("err", err))
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleaned": cleaned})
}

// HandleAdminChannel serves DELETE /admin/channels/{id}: force delete one tracked channel.
func (h *Handlers) HandleAdminChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channelID := strings.TrimPrefix(r.URL.Path, "/admin/channels/")
	if channelID == "" || strings.Contains(channelID, "/") {
		http.Error(w, "channel id required", http.StatusBadRequest)
		return
	}
	if err := h.manager.ForceDelete(r.Context(), channelID); err != nil {
		if errors.Is(err, voicechannel.ErrNotManaged) {
			http.Error(w, "not a managed channel", http.StatusNotFound)
			return
		}
		telemetry.LoggerWithCorr(r.Context()).Error("force delete failed", slog.String("channel", channelID), slog.Any("err", err))
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": channelID})
}
