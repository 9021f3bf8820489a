package service

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/repository"
)

// fakeSessionStore simulates the session columns of a single competing
// pass: otherLastActive is the heartbeat time of the holder's other
// session for the same event, if any.
type fakeSessionStore struct {
    pass            *model.Streampass
    otherLastActive *time.Time

    activatedToken string
    activatedAt    time.Time
    touched        []time.Time
    cleared        bool
    releasedCutoff time.Time
    releasedCount  int64
    stats          repository.SessionStats
}

func (f *fakeSessionStore) GetByPublicID(ctx context.Context, publicID string) (*model.Streampass, error) {
    if f.pass == nil || f.pass.PublicID != publicID {
        return nil, repository.ErrStreampassNotFound
    }
    return f.pass, nil
}

func (f *fakeSessionStore) HasActiveSessionConflict(ctx context.Context, holderID, eventID, excludePassID uint64, activeSince time.Time) (bool, error) {
    return f.otherLastActive != nil && !f.otherLastActive.Before(activeSince), nil
}

func (f *fakeSessionStore) ActivateSession(ctx context.Context, passID uint64, token string, now time.Time) error {
    f.activatedToken = token
    f.activatedAt = now
    return nil
}

func (f *fakeSessionStore) TouchSession(ctx context.Context, passID uint64, token string, now time.Time) error {
    if f.pass.SessionToken == nil || *f.pass.SessionToken != token {
        return repository.ErrSessionTokenMismatch
    }
    f.touched = append(f.touched, now)
    return nil
}

func (f *fakeSessionStore) ClearSession(ctx context.Context, passID uint64, token string) error {
    if f.pass.SessionToken == nil || *f.pass.SessionToken != token {
        return repository.ErrSessionTokenMismatch
    }
    f.cleared = true
    return nil
}

func (f *fakeSessionStore) ReleaseStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
    f.releasedCutoff = cutoff
    return f.releasedCount, nil
}

func (f *fakeSessionStore) CountSessions(ctx context.Context, recentCutoff, staleCutoff time.Time) (repository.SessionStats, error) {
    return f.stats, nil
}

func ownedPass(holder uint64) *model.Streampass {
    h := holder
    return &model.Streampass{ID: 9, PublicID: "pass-1", EventID: 3, HolderUserID: &h}
}

func frozenClock(at time.Time) Clock {
    return func() time.Time { return at }
}

func TestBeginSessionIssuesToken(t *testing.T) {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    store := &fakeSessionStore{pass: ownedPass(7)}
    guard := NewSessionGuard(store, 30*time.Second).WithClock(frozenClock(now))

    token, err := guard.BeginSession(context.Background(), "pass-1", 7)
    require.NoError(t, err)
    require.NotEmpty(t, token)
    require.Equal(t, token, store.activatedToken)
    require.Equal(t, now, store.activatedAt)
}

func TestBeginSessionBlockedByRecentHeartbeat(t *testing.T) {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    // The other session heartbeated 10s ago, well inside the 30s window.
    recent := now.Add(-10 * time.Second)
    store := &fakeSessionStore{pass: ownedPass(7), otherLastActive: &recent}
    guard := NewSessionGuard(store, 30*time.Second).WithClock(frozenClock(now))

    _, err := guard.BeginSession(context.Background(), "pass-1", 7)
    require.ErrorIs(t, err, ErrSessionConflict)
}

func TestBeginSessionAllowedAfterActiveWindow(t *testing.T) {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    // 31s of silence: the session still exists but no longer blocks.
    // The leftover row is the reaper's problem, not this caller's.
    quiet := now.Add(-31 * time.Second)
    store := &fakeSessionStore{pass: ownedPass(7), otherLastActive: &quiet}
    guard := NewSessionGuard(store, 30*time.Second).WithClock(frozenClock(now))

    token, err := guard.BeginSession(context.Background(), "pass-1", 7)
    require.NoError(t, err)
    require.NotEmpty(t, token)
}

func TestBeginSessionNotOwner(t *testing.T) {
    store := &fakeSessionStore{pass: ownedPass(7)}
    guard := NewSessionGuard(store, 30*time.Second)

    _, err := guard.BeginSession(context.Background(), "pass-1", 8)
    require.ErrorIs(t, err, repository.ErrForbidden)
}

func TestHeartbeatValidatesToken(t *testing.T) {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    pass := ownedPass(7)
    tok := "session-token"
    pass.SessionToken = &tok
    store := &fakeSessionStore{pass: pass}
    guard := NewSessionGuard(store, 30*time.Second).WithClock(frozenClock(now))

    require.NoError(t, guard.Heartbeat(context.Background(), "pass-1", 7, "session-token"))
    require.Equal(t, []time.Time{now}, store.touched)

    err := guard.Heartbeat(context.Background(), "pass-1", 7, "someone-elses-token")
    require.ErrorIs(t, err, ErrInvalidSessionToken)

    err = guard.Heartbeat(context.Background(), "pass-1", 7, "")
    require.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestEndSessionClears(t *testing.T) {
    pass := ownedPass(7)
    tok := "session-token"
    pass.SessionToken = &tok
    store := &fakeSessionStore{pass: pass}
    guard := NewSessionGuard(store, 30*time.Second)

    require.NoError(t, guard.EndSession(context.Background(), "pass-1", 7, "session-token"))
    require.True(t, store.cleared)
}

func TestReaperCutoffUsesStaleWindow(t *testing.T) {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    store := &fakeSessionStore{pass: ownedPass(7), releasedCount: 2}
    reaper := NewSessionReaper(store, 2*time.Minute, 30*time.Second, 5*time.Minute).WithClock(frozenClock(now))

    n, err := reaper.CleanupStaleSessions(context.Background(), 0)
    require.NoError(t, err)
    require.Equal(t, int64(2), n)
    require.Equal(t, now.Add(-2*time.Minute), store.releasedCutoff)

    // An explicit threshold overrides the configured window.
    _, err = reaper.CleanupStaleSessions(context.Background(), 10*time.Minute)
    require.NoError(t, err)
    require.Equal(t, now.Add(-10*time.Minute), store.releasedCutoff)
}

func TestReaperStats(t *testing.T) {
    store := &fakeSessionStore{
        pass:  ownedPass(7),
        stats: repository.SessionStats{Active: 5, RecentlyActive: 3, Stale: 1},
    }
    reaper := NewSessionReaper(store, 2*time.Minute, 30*time.Second, 5*time.Minute)

    st, err := reaper.Stats(context.Background())
    require.NoError(t, err)
    require.Equal(t, int64(5), st.Active)
    require.Equal(t, int64(3), st.RecentlyActive)
    require.Equal(t, int64(1), st.Stale)
}
