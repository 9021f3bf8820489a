// Package repository contains data access logic for streampasses. A
// streampass is the durable access grant created by a successful
// redemption: it binds a holder (registered user or bare gift email) to
// one event and carries the single-playback-session state used by the
// session guard and reaper. All timestamp comparisons are performed in
// UTC; callers pass explicit cutoff times so staleness windows stay
// testable.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/streampass-platform/internal/model"
)

// ErrStreampassNotFound indicates that a streampass was not located in the DB.
var ErrStreampassNotFound = errors.New("streampass not found")

// ErrSessionTokenMismatch indicates a session operation carried a token
// that does not match the one recorded on the pass, or the pass has no
// open session at all.
var ErrSessionTokenMismatch = errors.New("session token mismatch")

// SessionStats summarises playback session state across all passes.
// RecentlyActive counts sessions whose last heartbeat is inside the
// short conflict window; Stale counts sessions silent past the reaper
// threshold and due for cleanup.
type SessionStats struct {
    Active         int64 `json:"active_sessions"`
    RecentlyActive int64 `json:"recently_active"`
    Stale          int64 `json:"stale_sessions"`
}

const streampassCols = `id, public_id, event_id, holder_user_id, recipient_email, origin,
       payment_method, payment_reference, has_converted, in_session, session_token,
       last_active_at, created_at, updated_at`

// StreamPassRepo manages persistence for streampasses.
type StreamPassRepo struct {
    db *sql.DB
}

// NewStreamPassRepo returns a new StreamPassRepo bound to the provided database.
func NewStreamPassRepo(db *sql.DB) *StreamPassRepo { return &StreamPassRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories, which the grant issuer
// needs when it writes passes, gift records and the audit row as one
// atomic unit.
func (r *StreamPassRepo) DB() *sql.DB {
    return r.db
}

func scanStreampass(row *sql.Row) (*model.Streampass, error) {
    var (
        s       model.Streampass
        holder  sql.NullInt64
        email   sql.NullString
        token   sql.NullString
        lastAct sql.NullTime
    )
    err := row.Scan(&s.ID, &s.PublicID, &s.EventID, &holder, &email, &s.Origin,
        &s.PaymentMethod, &s.PaymentReference, &s.HasConverted, &s.InSession, &token,
        &lastAct, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if holder.Valid {
        v := uint64(holder.Int64)
        s.HolderUserID = &v
    }
    if email.Valid {
        v := email.String
        s.RecipientEmail = &v
    }
    if token.Valid {
        v := token.String
        s.SessionToken = &v
    }
    if lastAct.Valid {
        v := lastAct.Time
        s.LastActiveAt = &v
    }
    return &s, nil
}

// FindExisting looks up a pass by its idempotency tuple: payment method,
// payment reference, event and holder. Redemption replays hit this
// before any side effect, so a retried webhook or a double-submitted
// client returns the already-issued pass instead of creating a second
// one. Returns (nil, nil) when no pass exists.
func (r *StreamPassRepo) FindExisting(ctx context.Context, method, reference string, eventID uint64, holder model.Holder) (*model.Streampass, error) {
    q := `SELECT ` + streampassCols + ` FROM streampasses
          WHERE payment_method = ? AND payment_reference = ? AND event_id = ?`
    args := []interface{}{method, reference, eventID}
    if holder.Registered() {
        q += ` AND holder_user_id = ?`
        args = append(args, holder.UserID)
    } else {
        q += ` AND recipient_email = ?`
        args = append(args, holder.Email)
    }
    q += ` LIMIT 1`
    s, err := scanStreampass(r.db.QueryRowContext(ctx, q, args...))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    return s, err
}

// FindAnyByReference returns any pass issued for the given payment, or
// (nil, nil) when none exists. Gift redemptions use this as their
// replay guard: the whole fan-out commits atomically, so one surviving
// pass for the reference means the payment was already processed.
func (r *StreamPassRepo) FindAnyByReference(ctx context.Context, method, reference string, eventID uint64) (*model.Streampass, error) {
    q := `SELECT ` + streampassCols + ` FROM streampasses
          WHERE payment_method = ? AND payment_reference = ? AND event_id = ?
          ORDER BY id ASC LIMIT 1`
    s, err := scanStreampass(r.db.QueryRowContext(ctx, q, method, reference, eventID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    return s, err
}

// CreateMultipleTx inserts one row per pass within the provided
// transaction. The caller is responsible for committing or rolling
// back; a failure on any row leaves the whole batch uncommitted, which
// is what keeps multi-recipient gift redemptions all-or-nothing.
// Passing an empty slice has no effect and returns nil.
func (r *StreamPassRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, passes []model.Streampass) error {
    if len(passes) == 0 {
        return nil
    }
    query := `INSERT INTO streampasses
        (public_id, event_id, holder_user_id, recipient_email, origin, payment_method, payment_reference, has_converted)
        VALUES `
    args := make([]interface{}, 0, len(passes)*8)
    for i, p := range passes {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?)"
        var holder interface{}
        if p.HolderUserID != nil {
            holder = *p.HolderUserID
        }
        var email interface{}
        if p.RecipientEmail != nil {
            email = *p.RecipientEmail
        }
        args = append(args, p.PublicID, p.EventID, holder, email, p.Origin, p.PaymentMethod, p.PaymentReference, p.HasConverted)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// GetByPublicID fetches a pass by the opaque UUID exposed to clients.
func (r *StreamPassRepo) GetByPublicID(ctx context.Context, publicID string) (*model.Streampass, error) {
    q := `SELECT ` + streampassCols + ` FROM streampasses WHERE public_id = ? LIMIT 1`
    s, err := scanStreampass(r.db.QueryRowContext(ctx, q, publicID))
    if err == sql.ErrNoRows {
        return nil, ErrStreampassNotFound
    }
    return s, err
}

// ListByHolder returns all passes bound to the given registered user,
// newest first.
func (r *StreamPassRepo) ListByHolder(ctx context.Context, userID uint64) ([]model.Streampass, error) {
    q := `SELECT ` + streampassCols + ` FROM streampasses WHERE holder_user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Streampass
    for rows.Next() {
        var (
            s       model.Streampass
            holder  sql.NullInt64
            email   sql.NullString
            token   sql.NullString
            lastAct sql.NullTime
        )
        if err := rows.Scan(&s.ID, &s.PublicID, &s.EventID, &holder, &email, &s.Origin,
            &s.PaymentMethod, &s.PaymentReference, &s.HasConverted, &s.InSession, &token,
            &lastAct, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        if holder.Valid {
            v := uint64(holder.Int64)
            s.HolderUserID = &v
        }
        if email.Valid {
            v := email.String
            s.RecipientEmail = &v
        }
        if token.Valid {
            v := token.String
            s.SessionToken = &v
        }
        if lastAct.Valid {
            v := lastAct.Time
            s.LastActiveAt = &v
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// ConvertPendingTx binds every unconverted pass addressed to the given
// email to the newly verified user. The has_converted filter makes the
// update idempotent and one-way: rows already converted are never
// touched again, so calling this twice converts zero the second time.
// It runs inside the caller's transaction so the conversion commits or
// aborts together with the account verification that triggered it.
func (r *StreamPassRepo) ConvertPendingTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE streampasses
         SET holder_user_id = ?, has_converted = 1
         WHERE recipient_email = ? AND has_converted = 0`,
        userID, email)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// HasActiveSessionConflict reports whether the holder already has an
// open, recently heartbeated session for the same event on a different
// pass. Sessions whose last heartbeat predates activeSince do not
// block: a stale session is left for the reaper, but the holder may
// reconnect immediately through a new BeginSession.
func (r *StreamPassRepo) HasActiveSessionConflict(ctx context.Context, holderID, eventID, excludePassID uint64, activeSince time.Time) (bool, error) {
    var n int64
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM streampasses
         WHERE holder_user_id = ? AND event_id = ? AND id <> ?
           AND in_session = 1 AND last_active_at >= ?`,
        holderID, eventID, excludePassID, activeSince.UTC()).Scan(&n)
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ActivateSession opens a playback session on the pass: sets in_session,
// records the opaque token and stamps last_active_at. Invariants are
// carried by the write itself; the exclusivity check happens in the
// session guard before this call.
func (r *StreamPassRepo) ActivateSession(ctx context.Context, passID uint64, token string, now time.Time) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE streampasses SET in_session = 1, session_token = ?, last_active_at = ? WHERE id = ?`,
        token, now.UTC(), passID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrStreampassNotFound
    }
    return nil
}

// TouchSession refreshes last_active_at for an open session. The WHERE
// clause validates the token and the in_session flag in the same
// statement, so a heartbeat racing an end-session or a reaper sweep
// simply affects zero rows and surfaces ErrSessionTokenMismatch.
func (r *StreamPassRepo) TouchSession(ctx context.Context, passID uint64, token string, now time.Time) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE streampasses SET last_active_at = ? WHERE id = ? AND in_session = 1 AND session_token = ?`,
        now.UTC(), passID, token)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSessionTokenMismatch
    }
    return nil
}

// ClearSession closes an open session, clearing all three session
// fields. Token validation happens in the WHERE clause, same as
// TouchSession.
func (r *StreamPassRepo) ClearSession(ctx context.Context, passID uint64, token string) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE streampasses
         SET in_session = 0, session_token = NULL, last_active_at = NULL
         WHERE id = ? AND in_session = 1 AND session_token = ?`,
        passID, token)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSessionTokenMismatch
    }
    return nil
}

// ReleaseStaleSessions resets every pass whose session heartbeat
// stopped before the cutoff (or never recorded a heartbeat at all).
// One bulk conditional UPDATE; individual rows are not distinguished.
// Returns the number of sessions reclaimed.
func (r *StreamPassRepo) ReleaseStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE streampasses
         SET in_session = 0, session_token = NULL, last_active_at = NULL
         WHERE in_session = 1 AND (last_active_at < ? OR last_active_at IS NULL)`,
        cutoff.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// CountSessions gathers the operational session counters in one round
// trip: total open sessions, sessions heartbeated since recentCutoff,
// and sessions silent since before staleCutoff. Read-only.
func (r *StreamPassRepo) CountSessions(ctx context.Context, recentCutoff, staleCutoff time.Time) (SessionStats, error) {
    var st SessionStats
    err := r.db.QueryRowContext(ctx,
        `SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN last_active_at >= ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN last_active_at < ? OR last_active_at IS NULL THEN 1 ELSE 0 END), 0)
         FROM streampasses WHERE in_session = 1`,
        recentCutoff.UTC(), staleCutoff.UTC()).Scan(&st.Active, &st.RecentlyActive, &st.Stale)
    return st, err
}
