// Package voicechannel manages temporary guild voice channels.
//
// It provides:
//   - Manager: creates one temporary channel per owner, grants invite-based
//     guest access, resolves channels by host display name, and reconciles
//     live platform state against the persisted rows.
//   - OwnershipCache: an in-memory, rebuildable projection mapping channel id
//     to owner id. The persisted temp_channels table is the source of truth;
//     the cache only exists to answer ownership queries without a round trip.
//   - StartSweepJob: a periodic reconciliation pass deleting channels that are
//     expired, orphaned (live channel gone), or empty.
//
// Channels live at most VOICE_TTL after creation regardless of occupancy. The
// expiry is fixed at creation time and never extended. A deleted channel id is
// never reused.
package voicechannel
