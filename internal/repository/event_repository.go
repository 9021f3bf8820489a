// This file defines the repository for pay-per-view events and their
// per-currency prices. Prices are stored in currency minor units so the
// grant issuer can compare verified payment amounts with exact integer
// equality.
package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/streampass-platform/internal/model"
)

// ErrEventNotFound indicates that an event was not located in the DB.
var ErrEventNotFound = errors.New("event not found")

// ErrPriceNotFound indicates the event has no price in the requested currency.
var ErrPriceNotFound = errors.New("price not found for currency")

// EventRepo manages persistence for events and event prices.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning event creation and its prices.
func (r *EventRepo) DB() *sql.DB {
    return r.db
}

// GetByID fetches an event by id.  Soft-deleted events are returned
// with IsDeleted set; callers decide whether a deleted event is an
// error for their operation (redemption rejects it, admin views keep it).
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
    var e model.Event
    err := r.db.QueryRowContext(ctx,
        `SELECT id, title, description, starts_at, is_deleted, created_at, updated_at
         FROM events WHERE id = ? LIMIT 1`, id).
        Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrEventNotFound
    }
    if err != nil {
        return nil, err
    }
    return &e, nil
}

// ListVisible returns all non-deleted events ordered by start time.
// Backs the public browse endpoints.
func (r *EventRepo) ListVisible(ctx context.Context) ([]model.Event, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, title, description, starts_at, is_deleted, created_at, updated_at
         FROM events WHERE is_deleted = 0 ORDER BY starts_at ASC`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Event
    for rows.Next() {
        var e model.Event
        if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

// CreateTx inserts an event and its prices using the provided
// transaction.  The caller must commit or roll back.  On success the
// generated IDs are populated on the given structs.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event, prices []model.EventPrice) error {
    res, err := tx.ExecContext(ctx,
        `INSERT INTO events (title, description, starts_at) VALUES (?, ?, ?)`,
        e.Title, e.Description, e.StartsAt.UTC())
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    for i := range prices {
        prices[i].EventID = e.ID
        pres, err := tx.ExecContext(ctx,
            `INSERT INTO event_prices (event_id, currency, amount) VALUES (?, ?, ?)`,
            prices[i].EventID, prices[i].Currency, prices[i].Amount)
        if err != nil {
            return err
        }
        pid, err := pres.LastInsertId()
        if err != nil {
            return err
        }
        prices[i].ID = uint64(pid)
    }
    return nil
}

// PriceFor resolves the unit price of one streampass for the event in
// the given currency.
func (r *EventRepo) PriceFor(ctx context.Context, eventID uint64, currency string) (int64, error) {
    var amount int64
    err := r.db.QueryRowContext(ctx,
        `SELECT amount FROM event_prices WHERE event_id = ? AND currency = ? LIMIT 1`,
        eventID, currency).Scan(&amount)
    if err == sql.ErrNoRows {
        return 0, ErrPriceNotFound
    }
    if err != nil {
        return 0, err
    }
    return amount, nil
}

// PricesByEvent returns all prices configured for an event.
func (r *EventRepo) PricesByEvent(ctx context.Context, eventID uint64) ([]model.EventPrice, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, event_id, currency, amount, created_at FROM event_prices WHERE event_id = ?`,
        eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.EventPrice
    for rows.Next() {
        var p model.EventPrice
        if err := rows.Scan(&p.ID, &p.EventID, &p.Currency, &p.Amount, &p.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// SoftDelete hides an event from purchase and playback without losing
// the rows already sold against it.
func (r *EventRepo) SoftDelete(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx, `UPDATE events SET is_deleted = 1 WHERE id = ? AND is_deleted = 0`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrEventNotFound
    }
    return nil
}
