package repository

import (
    "context"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "github.com/iliyamo/streampass-platform/internal/model"
)

func passRows() *sqlmock.Rows {
    return sqlmock.NewRows([]string{
        "id", "public_id", "event_id", "holder_user_id", "recipient_email", "origin",
        "payment_method", "payment_reference", "has_converted", "in_session", "session_token",
        "last_active_at", "created_at", "updated_at",
    })
}

func TestConvertPendingTxSkipsConverted(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    // The has_converted = 0 filter is what makes conversion one-way: a
    // second call for the same email must touch zero rows.
    mock.ExpectBegin()
    mock.ExpectExec(`UPDATE streampasses\s+SET holder_user_id = \?, has_converted = 1\s+WHERE recipient_email = \? AND has_converted = 0`).
        WithArgs(uint64(7), "ada@example.com").
        WillReturnResult(sqlmock.NewResult(0, 2))
    mock.ExpectExec(`UPDATE streampasses`).
        WithArgs(uint64(7), "ada@example.com").
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectCommit()

    tx, err := db.BeginTx(context.Background(), nil)
    if err != nil {
        t.Fatalf("BeginTx: %v", err)
    }
    repo := NewStreamPassRepo(db)
    n, err := repo.ConvertPendingTx(context.Background(), tx, "ada@example.com", 7)
    if err != nil {
        t.Fatalf("ConvertPendingTx: %v", err)
    }
    if n != 2 {
        t.Fatalf("expected 2 passes converted, got %d", n)
    }
    n, err = repo.ConvertPendingTx(context.Background(), tx, "ada@example.com", 7)
    if err != nil {
        t.Fatalf("ConvertPendingTx replay: %v", err)
    }
    if n != 0 {
        t.Fatalf("replay converted %d passes, want 0", n)
    }
    if err := tx.Commit(); err != nil {
        t.Fatalf("Commit: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestTouchSessionTokenMismatch(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    mock.ExpectExec(`UPDATE streampasses SET last_active_at = \? WHERE id = \? AND in_session = 1 AND session_token = \?`).
        WithArgs(now, uint64(5), "wrong-token").
        WillReturnResult(sqlmock.NewResult(0, 0))

    repo := NewStreamPassRepo(db)
    err = repo.TouchSession(context.Background(), 5, "wrong-token", now)
    if err != ErrSessionTokenMismatch {
        t.Fatalf("expected ErrSessionTokenMismatch, got %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestReleaseStaleSessionsCutoff(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    cutoff := time.Date(2026, 3, 1, 11, 58, 0, 0, time.UTC)
    // Rows with a NULL last_active_at count as stale too: a session that
    // never heartbeated must not survive forever.
    mock.ExpectExec(`UPDATE streampasses\s+SET in_session = 0, session_token = NULL, last_active_at = NULL\s+WHERE in_session = 1 AND \(last_active_at < \? OR last_active_at IS NULL\)`).
        WithArgs(cutoff).
        WillReturnResult(sqlmock.NewResult(0, 3))

    repo := NewStreamPassRepo(db)
    n, err := repo.ReleaseStaleSessions(context.Background(), cutoff)
    if err != nil {
        t.Fatalf("ReleaseStaleSessions: %v", err)
    }
    if n != 3 {
        t.Fatalf("expected 3 released, got %d", n)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestHasActiveSessionConflictExcludesOwnPass(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    since := time.Date(2026, 3, 1, 11, 59, 30, 0, time.UTC)
    mock.ExpectQuery(`SELECT COUNT\(\*\) FROM streampasses\s+WHERE holder_user_id = \? AND event_id = \? AND id <> \?\s+AND in_session = 1 AND last_active_at >= \?`).
        WithArgs(uint64(7), uint64(3), uint64(9), since).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

    repo := NewStreamPassRepo(db)
    conflict, err := repo.HasActiveSessionConflict(context.Background(), 7, 3, 9, since)
    if err != nil {
        t.Fatalf("HasActiveSessionConflict: %v", err)
    }
    if !conflict {
        t.Fatalf("expected a conflict")
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestFindExistingByHolderVariant(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    created := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
    mock.ExpectQuery(`SELECT .+ FROM streampasses\s+WHERE payment_method = \? AND payment_reference = \? AND event_id = \? AND holder_user_id = \? LIMIT 1`).
        WithArgs("paystack", "ref-1", uint64(3), uint64(7)).
        WillReturnRows(passRows().AddRow(
            1, "0d9c8f4e", 3, 7, nil, "SELF",
            "paystack", "ref-1", true, false, nil,
            nil, created, created,
        ))

    repo := NewStreamPassRepo(db)
    p, err := repo.FindExisting(context.Background(), "paystack", "ref-1", 3, model.RegisteredHolder(7))
    if err != nil {
        t.Fatalf("FindExisting: %v", err)
    }
    if p == nil || p.PublicID != "0d9c8f4e" {
        t.Fatalf("unexpected pass: %+v", p)
    }
    if p.HolderUserID == nil || *p.HolderUserID != 7 {
        t.Fatalf("holder not bound: %+v", p)
    }

    // No row -> (nil, nil), not an error: absence just means the
    // redemption proceeds.
    mock.ExpectQuery(`SELECT .+ FROM streampasses`).
        WithArgs("paystack", "ref-2", uint64(3), uint64(7)).
        WillReturnRows(passRows())
    p, err = repo.FindExisting(context.Background(), "paystack", "ref-2", 3, model.RegisteredHolder(7))
    if err != nil {
        t.Fatalf("FindExisting miss: %v", err)
    }
    if p != nil {
        t.Fatalf("expected nil pass on miss, got %+v", p)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}

func TestCountSessions(t *testing.T) {
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    defer db.Close()

    recent := time.Date(2026, 3, 1, 11, 59, 30, 0, time.UTC)
    stale := time.Date(2026, 3, 1, 11, 58, 0, 0, time.UTC)
    mock.ExpectQuery(`SELECT\s+COUNT\(\*\),`).
        WithArgs(recent, stale).
        WillReturnRows(sqlmock.NewRows([]string{"total", "recent", "stale"}).AddRow(5, 2, 1))

    repo := NewStreamPassRepo(db)
    st, err := repo.CountSessions(context.Background(), recent, stale)
    if err != nil {
        t.Fatalf("CountSessions: %v", err)
    }
    if st.Active != 5 || st.RecentlyActive != 2 || st.Stale != 1 {
        t.Fatalf("unexpected stats: %+v", st)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Fatalf("unmet expectations: %v", err)
    }
}
