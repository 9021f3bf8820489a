package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/payment"
    "github.com/iliyamo/streampass-platform/internal/queue"
    "github.com/iliyamo/streampass-platform/internal/repository"
)

// Clock supplies the current time.  Services take it as a field so
// staleness windows can be tested without sleeping.
type Clock func() time.Time

// PassStore is the slice of the streampass repository the issuer needs.
type PassStore interface {
    FindExisting(ctx context.Context, method, reference string, eventID uint64, holder model.Holder) (*model.Streampass, error)
    FindAnyByReference(ctx context.Context, method, reference string, eventID uint64) (*model.Streampass, error)
    CreateMultipleTx(ctx context.Context, tx *sql.Tx, passes []model.Streampass) error
}

// GiftStore persists gift bookkeeping rows alongside gifted passes.
type GiftStore interface {
    CreateMultipleTx(ctx context.Context, tx *sql.Tx, gifts []model.GiftRecord) error
}

// TransactionLog appends redemption audit rows.
type TransactionLog interface {
    CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error
    Create(ctx context.Context, t *model.Transaction) error
}

// EventStore resolves events and their per-currency prices.
type EventStore interface {
    GetByID(ctx context.Context, id uint64) (*model.Event, error)
    PriceFor(ctx context.Context, eventID uint64, currency string) (int64, error)
}

// IdentityStore resolves buyer profiles and recipient accounts.
type IdentityStore interface {
    GetByID(ctx context.Context, id uint64) (repository.User, error)
    FindIDByEmail(ctx context.Context, email string) (uint64, error)
}

// GrantIssuer turns one verified payment into one or more streampasses,
// atomically, exactly once.  The write set of a redemption (passes,
// gift records, SUCCESSFUL audit row) commits as a single transaction;
// notifications go out after commit and never block or undo it.
type GrantIssuer struct {
    db        *sql.DB
    passes    PassStore
    gifts     GiftStore
    txlog     TransactionLog
    events    EventStore
    users     IdentityStore
    verifiers *payment.Registry
    notifier  Notifier
    now       Clock
}

// NewGrantIssuer wires the issuer.  db must be the same handle the
// stores write through, since the issuer opens the transaction they
// participate in.
func NewGrantIssuer(db *sql.DB, passes PassStore, gifts GiftStore, txlog TransactionLog,
    events EventStore, users IdentityStore, verifiers *payment.Registry, notifier Notifier) *GrantIssuer {
    if db == nil || passes == nil || txlog == nil || events == nil || users == nil || verifiers == nil {
        panic("nil dependency passed to NewGrantIssuer")
    }
    return &GrantIssuer{
        db:        db,
        passes:    passes,
        gifts:     gifts,
        txlog:     txlog,
        events:    events,
        users:     users,
        verifiers: verifiers,
        notifier:  notifier,
        now:       func() time.Time { return time.Now().UTC() },
    }
}

// WithClock replaces the issuer's time source.  Test hook.
func (g *GrantIssuer) WithClock(now Clock) *GrantIssuer {
    g.now = now
    return g
}

// Redeem verifies the referenced payment and converts it into durable
// streampasses.  Safe to retry with the same arguments: a replayed
// reference returns the already-issued pass without new side effects.
//
// Failure behaviour: once the event, buyer and amount are established,
// any failure leaves behind a FAILED audit row (written outside the
// aborted transaction, best effort).  No partial passes are ever
// visible; the fan-out commits entirely or not at all.
func (g *GrantIssuer) Redeem(ctx context.Context, method, reference string) (*model.Streampass, error) {
    verifier, err := g.verifiers.Lookup(method)
    if err != nil {
        return nil, ErrPaymentInvalid
    }
    vp, err := verifier.Verify(ctx, reference)
    if err != nil || vp == nil {
        return nil, ErrPaymentInvalid
    }

    // Replay guard before any side effect.  For self purchases the
    // idempotency key is (method, reference, event, buyer); a gift
    // fan-out commits atomically, so any surviving pass for the
    // reference means the whole payment was already processed.
    if len(vp.Recipients) == 0 {
        existing, err := g.passes.FindExisting(ctx, method, reference, vp.EventID, model.RegisteredHolder(vp.BuyerID))
        if err != nil {
            return nil, fmt.Errorf("idempotency check: %w", err)
        }
        if existing != nil {
            return existing, nil
        }
    } else {
        existing, err := g.passes.FindAnyByReference(ctx, method, reference, vp.EventID)
        if err != nil {
            return nil, fmt.Errorf("idempotency check: %w", err)
        }
        if existing != nil {
            return existing, nil
        }
    }

    event, err := g.events.GetByID(ctx, vp.EventID)
    if err != nil {
        return nil, err
    }
    if event.IsDeleted {
        return nil, repository.ErrEventNotFound
    }

    unitPrice, err := g.events.PriceFor(ctx, vp.EventID, vp.Currency)
    if err != nil {
        if errors.Is(err, repository.ErrPriceNotFound) {
            // Unpriced currency: the amount can never match.
            g.auditFailure(ctx, vp, method, reference)
            return nil, ErrAmountMismatch
        }
        return nil, err
    }
    expected := unitPrice
    if n := len(vp.Recipients); n > 0 {
        expected = unitPrice * int64(n)
    }
    if vp.Amount != expected {
        g.auditFailure(ctx, vp, method, reference)
        return nil, ErrAmountMismatch
    }

    buyer, err := g.users.GetByID(ctx, vp.BuyerID)
    if err != nil || buyer.Email == "" {
        return nil, ErrHolderNotFound
    }

    passes, gifts, err := g.buildGrants(ctx, vp, method, reference)
    if err != nil {
        g.auditFailure(ctx, vp, method, reference)
        return nil, err
    }

    tx, err := g.db.BeginTx(ctx, nil)
    if err != nil {
        g.auditFailure(ctx, vp, method, reference)
        return nil, fmt.Errorf("begin redemption tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := g.passes.CreateMultipleTx(ctx, tx, passes); err != nil {
        g.auditFailure(ctx, vp, method, reference)
        return nil, fmt.Errorf("create passes: %w", err)
    }
    if len(gifts) > 0 {
        if err := g.gifts.CreateMultipleTx(ctx, tx, gifts); err != nil {
            g.auditFailure(ctx, vp, method, reference)
            return nil, fmt.Errorf("create gift records: %w", err)
        }
    }
    audit := &model.Transaction{
        UserID:           vp.BuyerID,
        EventID:          vp.EventID,
        PaymentMethod:    method,
        PaymentReference: reference,
        Amount:           vp.Amount,
        Currency:         vp.Currency,
        IsGift:           len(vp.Recipients) > 0,
        Status:           model.TxStatusSuccessful,
    }
    if err := g.txlog.CreateTx(ctx, tx, audit); err != nil {
        g.auditFailure(ctx, vp, method, reference)
        return nil, fmt.Errorf("record transaction: %w", err)
    }
    if err := tx.Commit(); err != nil {
        g.auditFailure(ctx, vp, method, reference)
        return nil, fmt.Errorf("commit redemption: %w", err)
    }
    committed = true

    // Post-commit, fire and forget.  The passes are durable at this
    // point; a lost email must not fail the purchase.
    g.dispatchNotifications(buyer, event, vp, passes)

    return &passes[0], nil
}

// buildGrants constructs the pass (and gift record) rows for the
// redemption.  Gift recipients whose email already belongs to a
// registered account are bound to it immediately; the rest are
// addressed by email and converted when they sign up.
func (g *GrantIssuer) buildGrants(ctx context.Context, vp *payment.VerifiedPayment, method, reference string) ([]model.Streampass, []model.GiftRecord, error) {
    if len(vp.Recipients) == 0 {
        buyerID := vp.BuyerID
        return []model.Streampass{{
            PublicID:         uuid.NewString(),
            EventID:          vp.EventID,
            HolderUserID:     &buyerID,
            Origin:           model.OriginSelf,
            PaymentMethod:    method,
            PaymentReference: reference,
            HasConverted:     true,
        }}, nil, nil
    }

    passes := make([]model.Streampass, 0, len(vp.Recipients))
    gifts := make([]model.GiftRecord, 0, len(vp.Recipients))
    for _, rc := range vp.Recipients {
        email := strings.ToLower(strings.TrimSpace(rc.Email))
        if email == "" {
            return nil, nil, ErrHolderNotFound
        }
        p := model.Streampass{
            PublicID:         uuid.NewString(),
            EventID:          vp.EventID,
            Origin:           model.OriginGift,
            PaymentMethod:    method,
            PaymentReference: reference,
        }
        gr := model.GiftRecord{
            PassPublicID:   p.PublicID,
            EventID:        vp.EventID,
            BuyerUserID:    vp.BuyerID,
            RecipientEmail: email,
            RecipientName:  rc.Name,
        }
        existingID, err := g.users.FindIDByEmail(ctx, email)
        if err != nil {
            return nil, nil, fmt.Errorf("resolve recipient %s: %w", email, err)
        }
        if existingID != 0 {
            // Pre-converted: the recipient already has an account.
            id := existingID
            p.HolderUserID = &id
            p.HasConverted = true
            gr.RecipientUserID = &id
            gr.HasConverted = true
        }
        mail := email
        p.RecipientEmail = &mail
        passes = append(passes, p)
        gifts = append(gifts, gr)
    }
    return passes, gifts, nil
}

// auditFailure writes a FAILED transaction row outside any transaction
// so the audit survives the abort.  Best effort: a failure here is
// logged and swallowed.
func (g *GrantIssuer) auditFailure(ctx context.Context, vp *payment.VerifiedPayment, method, reference string) {
    t := &model.Transaction{
        UserID:           vp.BuyerID,
        EventID:          vp.EventID,
        PaymentMethod:    method,
        PaymentReference: reference,
        Amount:           vp.Amount,
        Currency:         vp.Currency,
        IsGift:           len(vp.Recipients) > 0,
        Status:           model.TxStatusFailed,
    }
    if err := g.txlog.Create(ctx, t); err != nil {
        log.Printf("issuer: failed to record FAILED transaction for %s/%s: %v", method, reference, err)
    }
}

// dispatchNotifications queues the buyer receipt plus one message per
// gift recipient.  Runs in a goroutine per message with its own
// timeout; ordering among recipients is unspecified.
func (g *GrantIssuer) dispatchNotifications(buyer repository.User, event *model.Event, vp *payment.VerifiedPayment, passes []model.Streampass) {
    if g.notifier == nil {
        return
    }
    issuedAt := g.now().Format(time.RFC3339)
    events := make([]queue.NotificationEvent, 0, len(passes)+1)
    // On a gift purchase the receipt carries no pass ID: every pass in
    // the batch belongs to a recipient, and each recipient's message
    // names their own.
    receiptPassID := ""
    if len(vp.Recipients) == 0 {
        receiptPassID = passes[0].PublicID
    }
    events = append(events, queue.NotificationEvent{
        MessageID:    uuid.NewString(),
        Kind:         queue.KindPurchaseReceipt,
        ToEmail:      buyer.Email,
        ToName:       buyer.FullName,
        BuyerName:    buyer.FullName,
        EventID:      event.ID,
        EventTitle:   event.Title,
        PassPublicID: receiptPassID,
        Amount:       vp.Amount,
        Currency:     vp.Currency,
        IssuedAt:     issuedAt,
    })
    if len(vp.Recipients) > 0 {
        for i, rc := range vp.Recipients {
            if i >= len(passes) {
                break
            }
            events = append(events, queue.NotificationEvent{
                MessageID:    uuid.NewString(),
                Kind:         queue.KindGiftReceived,
                ToEmail:      rc.Email,
                ToName:       rc.Name,
                BuyerName:    buyer.FullName,
                EventID:      event.ID,
                EventTitle:   event.Title,
                PassPublicID: passes[i].PublicID,
                Amount:       vp.Amount,
                Currency:     vp.Currency,
                IssuedAt:     issuedAt,
            })
        }
    }
    for _, ev := range events {
        ev := ev
        go func() {
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
            defer cancel()
            if err := g.notifier.PublishNotification(ctx, ev); err != nil {
                log.Printf("issuer: notification %s to %s dropped: %v", ev.Kind, ev.ToEmail, err)
            }
        }()
    }
}
