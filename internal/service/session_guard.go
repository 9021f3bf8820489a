package service

import (
    "context"
    "time"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/repository"
    "github.com/iliyamo/streampass-platform/internal/utils"
)

// SessionStore is the slice of the streampass repository the guard and
// reaper need: pass lookup plus the conditional session writes.
type SessionStore interface {
    GetByPublicID(ctx context.Context, publicID string) (*model.Streampass, error)
    HasActiveSessionConflict(ctx context.Context, holderID, eventID, excludePassID uint64, activeSince time.Time) (bool, error)
    ActivateSession(ctx context.Context, passID uint64, token string, now time.Time) error
    TouchSession(ctx context.Context, passID uint64, token string, now time.Time) error
    ClearSession(ctx context.Context, passID uint64, token string) error
    ReleaseStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
    CountSessions(ctx context.Context, recentCutoff, staleCutoff time.Time) (repository.SessionStats, error)
}

// SessionGuard enforces at most one concurrent playback session per
// holder per event.  State is three columns on the pass row; "stale" is
// never persisted, it is derived at read time from last_active_at.  A
// session whose heartbeat is older than the active window does not
// block a new one, so a crashed player can reconnect long before the
// reaper's slower cleanup cycle reclaims the leftover row.  No locks:
// the guard runs on horizontally scaled processes and relies on the
// store's conditional writes, which makes the begin/reaper race an
// accepted eventual-consistency race.
type SessionGuard struct {
    passes       SessionStore
    activeWindow time.Duration
    now          Clock
}

// NewSessionGuard constructs a guard with the given conflict window.
// activeWindow must stay shorter than the reaper's stale window; the
// protocol depends on that ordering, not on any lock.
func NewSessionGuard(passes SessionStore, activeWindow time.Duration) *SessionGuard {
    if passes == nil {
        panic("nil store passed to NewSessionGuard")
    }
    if activeWindow <= 0 {
        activeWindow = 30 * time.Second
    }
    return &SessionGuard{
        passes:       passes,
        activeWindow: activeWindow,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// WithClock replaces the guard's time source.  Test hook.
func (s *SessionGuard) WithClock(now Clock) *SessionGuard {
    s.now = now
    return s
}

// BeginSession opens a playback session on the pass and returns the
// opaque token the player must echo in heartbeats.  Fails with
// repository.ErrForbidden when the caller does not own the pass and
// ErrSessionConflict when another pass of the same holder has a
// recently active session for the same event.
func (s *SessionGuard) BeginSession(ctx context.Context, passPublicID string, holderID uint64) (string, error) {
    p, err := s.passes.GetByPublicID(ctx, passPublicID)
    if err != nil {
        return "", err
    }
    if p.HolderUserID == nil || *p.HolderUserID != holderID {
        return "", repository.ErrForbidden
    }

    now := s.now()
    conflict, err := s.passes.HasActiveSessionConflict(ctx, holderID, p.EventID, p.ID, now.Add(-s.activeWindow))
    if err != nil {
        return "", err
    }
    if conflict {
        return "", ErrSessionConflict
    }

    token, err := utils.NewSessionToken()
    if err != nil {
        return "", err
    }
    if err := s.passes.ActivateSession(ctx, p.ID, token, now); err != nil {
        return "", err
    }
    return token, nil
}

// Heartbeat refreshes the session's last_active_at.  The token check
// and the refresh are one conditional UPDATE, so a heartbeat that
// races an end-session or a reaper sweep affects zero rows and comes
// back as ErrInvalidSessionToken.
func (s *SessionGuard) Heartbeat(ctx context.Context, passPublicID string, holderID uint64, token string) error {
    p, err := s.passes.GetByPublicID(ctx, passPublicID)
    if err != nil {
        return err
    }
    if p.HolderUserID == nil || *p.HolderUserID != holderID {
        return repository.ErrForbidden
    }
    if token == "" {
        return ErrInvalidSessionToken
    }
    if err := s.passes.TouchSession(ctx, p.ID, token, s.now()); err != nil {
        if err == repository.ErrSessionTokenMismatch {
            return ErrInvalidSessionToken
        }
        return err
    }
    return nil
}

// EndSession closes the session, clearing the session fields.  Same
// token semantics as Heartbeat.
func (s *SessionGuard) EndSession(ctx context.Context, passPublicID string, holderID uint64, token string) error {
    p, err := s.passes.GetByPublicID(ctx, passPublicID)
    if err != nil {
        return err
    }
    if p.HolderUserID == nil || *p.HolderUserID != holderID {
        return repository.ErrForbidden
    }
    if token == "" {
        return ErrInvalidSessionToken
    }
    if err := s.passes.ClearSession(ctx, p.ID, token); err != nil {
        if err == repository.ErrSessionTokenMismatch {
            return ErrInvalidSessionToken
        }
        return err
    }
    return nil
}
