package voicechannel

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"time"

	dbpkg "github.com/onnwee/guildkeeper/db"
	"github.com/onnwee/guildkeeper/telemetry"
)

// StartSweepJob runs the reconcile pass once immediately and then on a fixed interval
// until ctx is canceled. dbc, when non-nil, receives job bookkeeping in the kv table so
// the ops surface can report the last run.
//
// Env knobs:
//
//	SWEEP_INTERVAL (overrides interval, e.g. 10m)
func StartSweepJob(ctx context.Context, mgr *Manager, dbc *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	slog.Info("voice sweep job starting", slog.Duration("interval", interval))

	// Kick an immediate run so stale rows from a previous process don't linger.
	sweepOnce(ctx, mgr, dbc)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("voice sweep job stopped")
			return
		case <-ticker.C:
			sweepOnce(ctx, mgr, dbc)
		}
	}
}

func sweepOnce(ctx context.Context, mgr *Manager, dbc *sql.DB) {
	var cleaned int
	var err error
	telemetry.TimeFunc(telemetry.SweepDuration, func() {
		cleaned, err = mgr.Reconcile(ctx)
	})
	if err != nil {
		slog.Warn("voice sweep failed", slog.Any("err", err))
		return
	}
	if dbc != nil {
		if kvErr := dbpkg.SetKVTime(ctx, dbc, "job_voice_sweep_last", time.Now()); kvErr != nil {
			slog.Debug("record sweep last-run", slog.Any("err", kvErr))
		}
		if kvErr := dbpkg.SetKV(ctx, dbc, "job_voice_sweep_cleaned", strconv.Itoa(cleaned)); kvErr != nil {
			slog.Debug("record sweep cleaned count", slog.Any("err", kvErr))
		}
	}
}
