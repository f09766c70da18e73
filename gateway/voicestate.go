package gateway

import "sync"

// VoiceTracker mirrors the guild's live voice occupancy from gateway events. It is the
// only way to answer "how many members are connected to channel X" without a privileged
// REST surface, so the sweep's emptiness check depends on it.
type VoiceTracker struct {
	mu        sync.RWMutex
	byChannel map[string]map[string]struct{} // channelID -> set of userIDs
	byUser    map[string]string              // userID -> channelID
}

// NewVoiceTracker returns an empty tracker.
func NewVoiceTracker() *VoiceTracker {
	return &VoiceTracker{
		byChannel: make(map[string]map[string]struct{}),
		byUser:    make(map[string]string),
	}
}

// Set records a member's current voice channel. An empty channelID records a disconnect.
func (t *VoiceTracker) Set(userID, channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.byUser[userID]; ok {
		if set, ok := t.byChannel[prev]; ok {
			delete(set, userID)
			if len(set) == 0 {
				delete(t.byChannel, prev)
			}
		}
		delete(t.byUser, userID)
	}
	if channelID == "" {
		return
	}
	set, ok := t.byChannel[channelID]
	if !ok {
		set = make(map[string]struct{})
		t.byChannel[channelID] = set
	}
	set[userID] = struct{}{}
	t.byUser[userID] = channelID
}

// Seed replaces tracked state with a guild snapshot (GUILD_CREATE voice_states).
func (t *VoiceTracker) Seed(states []VoiceState) {
	t.mu.Lock()
	t.byChannel = make(map[string]map[string]struct{})
	t.byUser = make(map[string]string)
	t.mu.Unlock()
	for _, vs := range states {
		t.Set(vs.UserID, vs.ChannelID)
	}
}

// Count returns the number of members connected to a channel.
func (t *VoiceTracker) Count(channelID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byChannel[channelID])
}

// ChannelOf returns the channel a user is connected to, if any.
func (t *VoiceTracker) ChannelOf(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.byUser[userID]
	return ch, ok
}
