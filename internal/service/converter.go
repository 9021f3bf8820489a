package service

import (
    "context"
    "database/sql"
    "fmt"
)

// ConvertiblePassStore converts email-addressed passes to a registered holder.
type ConvertiblePassStore interface {
    ConvertPendingTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (int64, error)
}

// ConvertibleGiftStore converts the matching gift bookkeeping rows.
type ConvertibleGiftStore interface {
    ConvertPendingTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (int64, error)
}

// ConversionResult reports how many rows a conversion touched.  Both
// counts are zero on a replay, since conversion is exactly-once per
// grant.
type ConversionResult struct {
    PassesConverted int64 `json:"passes_converted"`
    GiftsConverted  int64 `json:"gifts_converted"`
}

// GiftConverter binds gift passes bought for an email address to the
// account that later verifies that email.  The identity flows
// (registration, login with a verified email) invoke it; conversion is
// irreversible and happens exactly once per grant, enforced by the
// has_converted filters in the stores.
type GiftConverter struct {
    db     *sql.DB
    passes ConvertiblePassStore
    gifts  ConvertibleGiftStore
}

// NewGiftConverter wires the converter over the shared DB handle.
func NewGiftConverter(db *sql.DB, passes ConvertiblePassStore, gifts ConvertibleGiftStore) *GiftConverter {
    if db == nil || passes == nil || gifts == nil {
        panic("nil dependency passed to NewGiftConverter")
    }
    return &GiftConverter{db: db, passes: passes, gifts: gifts}
}

// ConvertTx converts pending passes and gift records inside the
// caller's transaction, so account creation and conversion commit or
// abort together.
func (c *GiftConverter) ConvertTx(ctx context.Context, tx *sql.Tx, email string, userID uint64) (ConversionResult, error) {
    var res ConversionResult
    n, err := c.passes.ConvertPendingTx(ctx, tx, email, userID)
    if err != nil {
        return res, fmt.Errorf("convert passes: %w", err)
    }
    res.PassesConverted = n
    m, err := c.gifts.ConvertPendingTx(ctx, tx, email, userID)
    if err != nil {
        return res, fmt.Errorf("convert gifts: %w", err)
    }
    res.GiftsConverted = m
    return res, nil
}

// Convert runs ConvertTx in its own transaction.  Used on login, where
// no surrounding transaction exists.
func (c *GiftConverter) Convert(ctx context.Context, email string, userID uint64) (ConversionResult, error) {
    tx, err := c.db.BeginTx(ctx, nil)
    if err != nil {
        return ConversionResult{}, fmt.Errorf("begin conversion tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    res, err := c.ConvertTx(ctx, tx, email, userID)
    if err != nil {
        return ConversionResult{}, err
    }
    if err := tx.Commit(); err != nil {
        return ConversionResult{}, fmt.Errorf("commit conversion: %w", err)
    }
    committed = true
    return res, nil
}
