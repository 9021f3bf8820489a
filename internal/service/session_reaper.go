package service

import (
    "context"
    "log"
    "time"

    "github.com/iliyamo/streampass-platform/internal/repository"
)

// SessionReaper reclaims playback sessions whose heartbeat has gone
// silent for longer than the stale window.  It runs on a fixed
// interval inside the server process and shares the store with live
// request handlers without any in-process lock; a sweep racing a
// BeginSession for the same pass is resolved by whichever write lands
// last, which the protocol accepts.
type SessionReaper struct {
    passes       SessionStore
    staleWindow  time.Duration
    activeWindow time.Duration
    interval     time.Duration
    now          Clock
}

// NewSessionReaper constructs a reaper.  Defaults: 2 minute stale
// window, 30 second active window (for stats bucketing), 5 minute
// sweep interval.
func NewSessionReaper(passes SessionStore, staleWindow, activeWindow, interval time.Duration) *SessionReaper {
    if passes == nil {
        panic("nil store passed to NewSessionReaper")
    }
    if staleWindow <= 0 {
        staleWindow = 2 * time.Minute
    }
    if activeWindow <= 0 {
        activeWindow = 30 * time.Second
    }
    if interval <= 0 {
        interval = 5 * time.Minute
    }
    return &SessionReaper{
        passes:       passes,
        staleWindow:  staleWindow,
        activeWindow: activeWindow,
        interval:     interval,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// WithClock replaces the reaper's time source.  Test hook.
func (r *SessionReaper) WithClock(now Clock) *SessionReaper {
    r.now = now
    return r
}

// Run sweeps on the configured interval until ctx is cancelled.  Sweep
// failures are logged and retried on the next tick; they never stop
// the loop.
func (r *SessionReaper) Run(ctx context.Context) {
    log.Printf("reaper: sweeping every %s (stale window %s)", r.interval, r.staleWindow)
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            log.Printf("reaper: stopped")
            return
        case <-ticker.C:
            n, err := r.CleanupStaleSessions(ctx, r.staleWindow)
            if err != nil {
                log.Printf("reaper: sweep failed: %v", err)
                continue
            }
            if n > 0 {
                log.Printf("reaper: reclaimed %d stale session(s)", n)
            }
        }
    }
}

// CleanupStaleSessions resets every pass whose session heartbeat
// stopped before now-threshold, or that is flagged in-session with no
// heartbeat recorded at all.  One bulk conditional UPDATE; idempotent.
// Returns the number of sessions reclaimed.
func (r *SessionReaper) CleanupStaleSessions(ctx context.Context, threshold time.Duration) (int64, error) {
    if threshold <= 0 {
        threshold = r.staleWindow
    }
    return r.passes.ReleaseStaleSessions(ctx, r.now().Add(-threshold))
}

// Stats returns the operational session counters: total open sessions,
// sessions heartbeated inside the active window, and sessions silent
// past the stale window.  Read-only, no side effects.
func (r *SessionReaper) Stats(ctx context.Context) (repository.SessionStats, error) {
    now := r.now()
    return r.passes.CountSessions(ctx, now.Add(-r.activeWindow), now.Add(-r.staleWindow))
}
