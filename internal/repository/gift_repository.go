package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/streampass-platform/internal/model"
)

// GiftRepo provides data access to the gift_records table.  Gift
// records are bookkeeping parallel to gifted streampasses: one row per
// recipient, created in the same transaction as the pass, used for
// receipts and reconciliation.  Conversion state mirrors the pass and
// follows the same exactly-once rule.
type GiftRepo struct {
    db *sql.DB
}

// NewGiftRepo returns a new GiftRepo bound to the provided database.
func NewGiftRepo(db *sql.DB) *GiftRepo { return &GiftRepo{db: db} }

// CreateMultipleTx inserts gift records within the provided transaction.
// The caller must commit or roll back.  Passing an empty slice has no
// effect and returns nil.
func (r *GiftRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, gifts []model.GiftRecord) error {
    if len(gifts) == 0 {
        return nil
    }
    query := `INSERT INTO gift_records
        (pass_public_id, event_id, buyer_user_id, recipient_email, recipient_name, recipient_user_id, has_converted)
        VALUES `
    args := make([]interface{}, 0, len(gifts)*7)
    for i, g := range gifts {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?)"
        var recipient interface{}
        if g.RecipientUserID != nil {
            recipient = *g.RecipientUserID
        }
        args = append(args, g.PassPublicID, g.EventID, g.BuyerUserID, g.RecipientEmail, g.RecipientName, recipient, g.HasConverted)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// ConvertPendingTx binds every unconverted gift record addressed to the
// given email to the newly verified user.  Same idempotency rule as the
// pass conversion: the has_converted filter means a second call with
// the same email converts zero rows.
func (r *GiftRepo) ConvertPendingTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx,
        `UPDATE gift_records
         SET recipient_user_id = ?, has_converted = 1
         WHERE recipient_email = ? AND has_converted = 0`,
        userID, email)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ListByBuyer returns every gift the user has sent, newest first.  Used
// by the reconciliation view so buyers can see which recipients have
// claimed their pass.
func (r *GiftRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.GiftRecord, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, pass_public_id, event_id, buyer_user_id, recipient_email, recipient_name,
                recipient_user_id, has_converted, created_at, updated_at
         FROM gift_records WHERE buyer_user_id = ? ORDER BY created_at DESC`,
        buyerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.GiftRecord
    for rows.Next() {
        var (
            g         model.GiftRecord
            recipient sql.NullInt64
        )
        if err := rows.Scan(&g.ID, &g.PassPublicID, &g.EventID, &g.BuyerUserID, &g.RecipientEmail,
            &g.RecipientName, &recipient, &g.HasConverted, &g.CreatedAt, &g.UpdatedAt); err != nil {
            return nil, err
        }
        if recipient.Valid {
            v := uint64(recipient.Int64)
            g.RecipientUserID = &v
        }
        out = append(out, g)
    }
    return out, rows.Err()
}
