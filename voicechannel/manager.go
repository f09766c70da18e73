package voicechannel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/guildkeeper/telemetry"
)

// ChannelRef identifies a live voice channel.
type ChannelRef struct {
	ID   string
	Name string
}

// InviteRef is a guest invite for one channel.
type InviteRef struct {
	Code string
	URL  string
}

// Platform is the live-platform contract the Manager consumes. The production
// implementation combines the REST client with the gateway voice-state tracker.
type Platform interface {
	CreateVoiceChannel(ctx context.Context, name, parentID, ownerID string, memberRoleIDs []string) (ChannelRef, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	CreateInvite(ctx context.Context, channelID string, maxAgeSec, maxUses int) (InviteRef, error)
	MoveMember(ctx context.Context, userID, channelID string) error
	GrantConnect(ctx context.Context, channelID, userID string) error
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	ChannelMemberCount(ctx context.Context, channelID string) (int, error)
	SendChannelMessage(ctx context.Context, channelID, content string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
	MemberDisplayName(ctx context.Context, userID string) (string, error)
}

// Options configures a Manager.
type Options struct {
	GuildID       string
	CategoryID    string
	TTL           time.Duration
	MemberRoleIDs []string
	Label         string
}

// Manager owns the temporary voice-channel lifecycle: creation, guest access, lookup,
// and the reconcile pass the sweep job drives.
type Manager struct {
	platform Platform
	store    ChannelStore
	cache    *OwnershipCache
	opts     Options
	now      func() time.Time
}

// NewManager wires a Manager with an empty cache. Call LoadFromStore to rebuild the
// cache from persisted rows before serving traffic.
func NewManager(p Platform, s ChannelStore, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Label == "" {
		opts.Label = "Voice"
	}
	return &Manager{
		platform: p,
		store:    s,
		cache:    NewOwnershipCache(),
		opts:     opts,
		now:      time.Now,
	}
}

// Cache exposes the ownership cache for read-mostly callers (ops surface, commands).
func (m *Manager) Cache() *OwnershipCache { return m.cache }

// CreateResult reports a successful creation. Diagnostics carries per-step outcomes of
// the best-effort side effects (persist, invite, move, messaging); a failed step does not
// fail the creation.
type CreateResult struct {
	Channel     ChannelRef
	InviteURL   string
	ExpiresAt   time.Time
	Diagnostics []Diagnostic
}

// Create provisions a temporary voice channel owned by ownerID. If the user already owns
// an active channel it returns *AlreadyOwnsError (errors.Is-matchable against
// ErrAlreadyOwns) so the caller can redirect them instead. Only the live channel creation
// itself is fatal; every later step degrades gracefully.
func (m *Manager) Create(ctx context.Context, ownerID string) (*CreateResult, error) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "voice_create"), slog.String("owner", ownerID))

	if existing, ok := m.cache.ChannelOwnedBy(ownerID); ok {
		if telemetry.CreatesRejected != nil {
			telemetry.CreatesRejected.Inc()
		}
		return nil, &AlreadyOwnsError{ChannelID: existing}
	}

	start := m.now()
	var diags []Diagnostic

	displayName, err := m.platform.MemberDisplayName(ctx, ownerID)
	if err != nil {
		// Fall back to the raw id; the channel name is cosmetic.
		displayName = ownerID
		diags = append(diags, Diagnostic{Step: "resolve display name", Err: err})
	}
	name := fmt.Sprintf("%s - %s", m.opts.Label, displayName)

	ch, err := m.platform.CreateVoiceChannel(ctx, name, m.opts.CategoryID, ownerID, m.opts.MemberRoleIDs)
	if err != nil {
		if telemetry.CreatesFailed != nil {
			telemetry.CreatesFailed.Inc()
		}
		return nil, &PlatformError{Op: "create voice channel", Err: err}
	}

	createdAt := m.now()
	expiresAt := createdAt.Add(m.opts.TTL)

	// Track ownership before any suspending call so duplicate triggers see the channel.
	m.cache.Put(ch.ID, ownerID)
	telemetry.SetTrackedChannels(m.cache.Len())

	var inviteURL, inviteCode string
	if inv, err := m.platform.CreateInvite(ctx, ch.ID, int(m.opts.TTL.Seconds()), 0); err != nil {
		diags = append(diags, Diagnostic{Step: "create invite", Err: err})
	} else {
		inviteURL, inviteCode = inv.URL, inv.Code
	}

	row := TempChannel{
		ID:         ch.ID,
		OwnerID:    ownerID,
		GuildID:    m.opts.GuildID,
		Name:       ch.Name,
		InviteCode: inviteCode,
		ExpiresAt:  expiresAt,
		CreatedAt:  createdAt,
	}
	if err := m.store.Insert(ctx, row); err != nil {
		// Do not roll back the live channel: it stays usable for the owner and the row
		// is recovered on the next restart load if the write eventually succeeds.
		logger.Error("persist temp channel failed; channel invisible to sweep until restart",
			slog.String("channel", ch.ID), slog.Any("err", err))
		diags = append(diags, Diagnostic{Step: "persist row", Err: err})
	}

	if err := m.platform.MoveMember(ctx, ownerID, ch.ID); err != nil {
		diags = append(diags, Diagnostic{Step: "move owner", Err: err})
	}

	msg := fmt.Sprintf("%s is yours until %s.", ch.Name, expiresAt.UTC().Format(time.RFC1123))
	if inviteURL != "" {
		msg += " Guests can join via " + inviteURL
	}
	if err := m.platform.SendChannelMessage(ctx, ch.ID, msg); err != nil {
		diags = append(diags, Diagnostic{Step: "channel message", Err: err})
	}
	if err := m.platform.SendDirectMessage(ctx, ownerID, msg); err != nil {
		// DMs are commonly disabled; not worth more than a diagnostic.
		diags = append(diags, Diagnostic{Step: "owner dm", Err: err})
	}

	if telemetry.ChannelsCreated != nil {
		telemetry.ChannelsCreated.Inc()
	}
	if telemetry.CreateDuration != nil {
		telemetry.CreateDuration.Observe(m.now().Sub(start).Seconds())
	}
	for _, d := range Failed(diags) {
		logger.Warn("create side effect failed", slog.String("step", d.Step), slog.Any("err", d.Err))
	}
	logger.Info("temporary voice channel created",
		slog.String("channel", ch.ID),
		slog.Time("expires_at", expiresAt),
		slog.Int("degraded_steps", len(Failed(diags))))

	return &CreateResult{Channel: ch, InviteURL: inviteURL, ExpiresAt: expiresAt, Diagnostics: diags}, nil
}

// GrantGuestAccess grants userID a connect/speak overwrite on a tracked channel. Unknown
// channel ids fail with ErrNotManaged before any platform call; this pathway must not be
// usable to touch arbitrary channels.
func (m *Manager) GrantGuestAccess(ctx context.Context, userID, channelID string) error {
	if _, ok := m.cache.OwnerOf(channelID); !ok {
		return ErrNotManaged
	}
	if err := m.platform.GrantConnect(ctx, channelID, userID); err != nil {
		return &PlatformError{Op: "grant connect", Err: err}
	}
	return nil
}

// OwnerOf reports the tracked owner of a channel.
func (m *Manager) OwnerOf(channelID string) (string, bool) {
	return m.cache.OwnerOf(channelID)
}

// ChannelOwnedBy reports the channel a user owns, if any.
func (m *Manager) ChannelOwnedBy(ownerID string) (string, bool) {
	return m.cache.ChannelOwnedBy(ownerID)
}

// ResolveByOwnerName finds the first tracked channel whose owner's display name contains
// query (case-insensitive). Iteration order over the cache is unspecified, which is
// acceptable at the expected cardinality.
func (m *Manager) ResolveByOwnerName(ctx context.Context, query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}
	for channelID, ownerID := range m.cache.Snapshot() {
		name, err := m.platform.MemberDisplayName(ctx, ownerID)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(name), q) {
			return channelID, true
		}
	}
	return "", false
}

// ResolveByInviteCode maps a guest invite code to its tracked channel, or nil when no
// tracked channel carries the code.
func (m *Manager) ResolveByInviteCode(ctx context.Context, code string) (*TempChannel, error) {
	return m.store.SelectByInviteCode(ctx, code)
}

// StoredChannel returns the persisted row for a channel, or nil when the channel runs in
// degraded mode without one.
func (m *Manager) StoredChannel(ctx context.Context, channelID string) (*TempChannel, error) {
	return m.store.SelectByID(ctx, channelID)
}

// LoadFromStore rebuilds the ownership cache from persisted rows. Rows already past their
// expiry are left out; the first sweep deletes them.
func (m *Manager) LoadFromStore(ctx context.Context) error {
	rows, err := m.store.SelectAllActive(ctx, m.opts.GuildID)
	if err != nil {
		return fmt.Errorf("load temp channels: %w", err)
	}
	now := m.now()
	loaded := 0
	for _, row := range rows {
		if !row.ExpiresAt.After(now) {
			continue
		}
		m.cache.Put(row.ID, row.OwnerID)
		loaded++
	}
	telemetry.SetTrackedChannels(m.cache.Len())
	slog.Info("ownership cache rebuilt", slog.Int("loaded", loaded), slog.Int("skipped_expired", len(rows)-loaded))
	return nil
}

// Reconcile is the sweep: for every persisted row it deletes channels that are orphaned
// (live channel gone), expired, or empty, removing row, cache entry, and live channel.
// Rows are processed independently; one row's failure is logged and the pass continues.
// Returns the number of channels cleaned.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	logger := slog.Default().With(slog.String("component", "voice_sweep"))
	if telemetry.SweepCycles != nil {
		telemetry.SweepCycles.Inc()
	}

	rows, err := m.store.SelectAllActive(ctx, m.opts.GuildID)
	if err != nil {
		return 0, fmt.Errorf("sweep select: %w", err)
	}

	now := m.now()
	cleaned := 0
	for _, row := range rows {
		reason, skip := m.classify(ctx, logger, row, now)
		if skip {
			continue
		}
		if reason == "" {
			continue
		}
		if m.cleanup(ctx, logger, row, reason) {
			cleaned++
		}
	}

	telemetry.SetTrackedChannels(m.cache.Len())
	logger.Info("sweep completed", slog.Int("rows", len(rows)), slog.Int("cleaned", cleaned))
	return cleaned, nil
}

// classify decides the deletion reason for one row. skip is true when a transient check
// failure means the row should be retried next pass.
func (m *Manager) classify(ctx context.Context, logger *slog.Logger, row TempChannel, now time.Time) (reason string, skip bool) {
	exists, err := m.platform.ChannelExists(ctx, row.ID)
	if err != nil {
		logger.Warn("existence check failed", slog.String("channel", row.ID), slog.Any("err", err))
		if telemetry.SweepErrors != nil {
			telemetry.SweepErrors.Inc()
		}
		return "", true
	}
	if !exists {
		return "orphaned", false
	}
	if !now.Before(row.ExpiresAt) {
		return "expired", false
	}
	count, err := m.platform.ChannelMemberCount(ctx, row.ID)
	if err != nil {
		logger.Warn("member count failed", slog.String("channel", row.ID), slog.Any("err", err))
		if telemetry.SweepErrors != nil {
			telemetry.SweepErrors.Inc()
		}
		return "", true
	}
	if count == 0 {
		return "empty", false
	}
	return "", false
}

// cleanup deletes one row: persisted row first, then cache entry, then the live channel
// when it still exists. Reports whether the row was cleaned.
func (m *Manager) cleanup(ctx context.Context, logger *slog.Logger, row TempChannel, reason string) bool {
	if err := m.store.DeleteByID(ctx, row.ID); err != nil {
		// Leave the cache entry so the row is retried next pass.
		logger.Warn("row delete failed", slog.String("channel", row.ID), slog.Any("err", err))
		if telemetry.SweepErrors != nil {
			telemetry.SweepErrors.Inc()
		}
		return false
	}
	m.cache.Remove(row.ID)

	if reason != "orphaned" {
		if err := m.platform.DeleteChannel(ctx, row.ID, "temporary channel "+reason); err != nil {
			// Row and cache entry are already gone; the live channel needs manual removal.
			logger.Warn("live channel delete failed", slog.String("channel", row.ID), slog.Any("err", err))
			if telemetry.SweepErrors != nil {
				telemetry.SweepErrors.Inc()
			}
		}
	}

	telemetry.SweptByReason(reason)
	logger.Info("temporary channel cleaned",
		slog.String("channel", row.ID),
		slog.String("owner", row.OwnerID),
		slog.String("reason", reason))
	return true
}

// ForceDelete removes a tracked channel regardless of expiry or occupancy. Used by the
// admin surface. Fails with ErrNotManaged for unknown ids.
func (m *Manager) ForceDelete(ctx context.Context, channelID string) error {
	if _, ok := m.cache.OwnerOf(channelID); !ok {
		return ErrNotManaged
	}
	if err := m.store.DeleteByID(ctx, channelID); err != nil {
		return err
	}
	m.cache.Remove(channelID)
	telemetry.SetTrackedChannels(m.cache.Len())
	if err := m.platform.DeleteChannel(ctx, channelID, "removed by administrator"); err != nil {
		return &PlatformError{Op: "delete channel", Err: err}
	}
	return nil
}
