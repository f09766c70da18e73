package voicechannel

import "sync"

// OwnershipCache maps live channel ids to their owner's user id. It is a derived
// projection of the temp_channels table, rebuilt at startup, and is the fast path for
// "is this channel managed" and "which channel does this user own" queries.
type OwnershipCache struct {
	mu     sync.RWMutex
	owners map[string]string // channelID -> ownerID
}

// NewOwnershipCache returns an empty cache.
func NewOwnershipCache() *OwnershipCache {
	return &OwnershipCache{owners: make(map[string]string)}
}

// Put records or overwrites the owner of a channel.
func (c *OwnershipCache) Put(channelID, ownerID string) {
	c.mu.Lock()
	c.owners[channelID] = ownerID
	c.mu.Unlock()
}

// Remove forgets a channel. Removing an absent id is a no-op.
func (c *OwnershipCache) Remove(channelID string) {
	c.mu.Lock()
	delete(c.owners, channelID)
	c.mu.Unlock()
}

// OwnerOf returns the owner of a tracked channel.
func (c *OwnershipCache) OwnerOf(channelID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[channelID]
	return owner, ok
}

// ChannelOwnedBy returns the channel owned by a user. The linear scan is fine at the
// expected cardinality (tens of channels). If more than one channel somehow maps to the
// same owner, the first hit wins; the single-channel-per-owner invariant makes this a
// defensive case only.
func (c *OwnershipCache) ChannelOwnedBy(ownerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for channelID, owner := range c.owners {
		if owner == ownerID {
			return channelID, true
		}
	}
	return "", false
}

// Len returns the number of tracked channels.
func (c *OwnershipCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.owners)
}

// Snapshot returns a copy of the channelID -> ownerID mapping.
func (c *OwnershipCache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.owners))
	for k, v := range c.owners {
		out[k] = v
	}
	return out
}
