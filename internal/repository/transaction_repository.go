package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/streampass-platform/internal/model"
)

// TransactionRepo writes the append-only redemption audit trail.  Rows
// are inserted exactly once per redemption attempt and never updated or
// deleted afterwards, so the repository deliberately exposes no update
// methods.
type TransactionRepo struct {
    db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the provided database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const insertTransaction = `INSERT INTO transactions
    (user_id, event_id, payment_method, payment_reference, amount, currency, is_gift, status)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// CreateTx records a redemption outcome within the provided transaction.
// Used for SUCCESSFUL rows so the audit commits atomically with the
// passes it accounts for.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
    res, err := tx.ExecContext(ctx, insertTransaction,
        t.UserID, t.EventID, t.PaymentMethod, t.PaymentReference, t.Amount, t.Currency, t.IsGift, t.Status)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// Create records a redemption outcome outside any transaction.  Used
// for FAILED rows, which must survive the aborted redemption they
// describe.  Callers treat errors as best-effort and only log them.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
    res, err := r.db.ExecContext(ctx, insertTransaction,
        t.UserID, t.EventID, t.PaymentMethod, t.PaymentReference, t.Amount, t.Currency, t.IsGift, t.Status)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// ListByUser returns the caller's redemption history, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, user_id, event_id, payment_method, payment_reference, amount, currency, is_gift, status, created_at
         FROM transactions WHERE user_id = ? ORDER BY created_at DESC`,
        userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Transaction
    for rows.Next() {
        var t model.Transaction
        if err := rows.Scan(&t.ID, &t.UserID, &t.EventID, &t.PaymentMethod, &t.PaymentReference,
            &t.Amount, &t.Currency, &t.IsGift, &t.Status, &t.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}
