package service

import (
    "context"
    "database/sql"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/payment"
    "github.com/iliyamo/streampass-platform/internal/queue"
    "github.com/iliyamo/streampass-platform/internal/repository"
)

// ----- fakes -----

type fakeVerifier struct {
    vp  *payment.VerifiedPayment
    err error
}

func (f *fakeVerifier) Verify(ctx context.Context, reference string) (*payment.VerifiedPayment, error) {
    return f.vp, f.err
}

type fakePassStore struct {
    existing  *model.Streampass
    anyByRef  *model.Streampass
    created   []model.Streampass
    createErr error
}

func (f *fakePassStore) FindExisting(ctx context.Context, method, reference string, eventID uint64, holder model.Holder) (*model.Streampass, error) {
    return f.existing, nil
}
func (f *fakePassStore) FindAnyByReference(ctx context.Context, method, reference string, eventID uint64) (*model.Streampass, error) {
    return f.anyByRef, nil
}
func (f *fakePassStore) CreateMultipleTx(ctx context.Context, tx *sql.Tx, passes []model.Streampass) error {
    if f.createErr != nil {
        return f.createErr
    }
    f.created = append(f.created, passes...)
    return nil
}

type fakeGiftStore struct {
    created   []model.GiftRecord
    createErr error
}

func (f *fakeGiftStore) CreateMultipleTx(ctx context.Context, tx *sql.Tx, gifts []model.GiftRecord) error {
    if f.createErr != nil {
        return f.createErr
    }
    f.created = append(f.created, gifts...)
    return nil
}

type fakeTxLog struct {
    committed []model.Transaction // written inside the redemption tx
    orphaned  []model.Transaction // written outside any tx (FAILED rows)
}

func (f *fakeTxLog) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
    f.committed = append(f.committed, *t)
    return nil
}
func (f *fakeTxLog) Create(ctx context.Context, t *model.Transaction) error {
    f.orphaned = append(f.orphaned, *t)
    return nil
}

type fakeEventStore struct {
    event  *model.Event
    prices map[string]int64
}

func (f *fakeEventStore) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
    if f.event == nil || f.event.ID != id {
        return nil, repository.ErrEventNotFound
    }
    return f.event, nil
}
func (f *fakeEventStore) PriceFor(ctx context.Context, eventID uint64, currency string) (int64, error) {
    p, ok := f.prices[currency]
    if !ok {
        return 0, repository.ErrPriceNotFound
    }
    return p, nil
}

type fakeIdentityStore struct {
    users  map[uint64]repository.User
    emails map[string]uint64
}

func (f *fakeIdentityStore) GetByID(ctx context.Context, id uint64) (repository.User, error) {
    u, ok := f.users[id]
    if !ok {
        return repository.User{}, sql.ErrNoRows
    }
    return u, nil
}
func (f *fakeIdentityStore) FindIDByEmail(ctx context.Context, email string) (uint64, error) {
    return f.emails[email], nil
}

// fakeNotifier funnels published events into a channel so tests can
// collect them; dispatch runs one goroutine per message.
type fakeNotifier struct {
    ch chan queue.NotificationEvent
}

func (n *fakeNotifier) PublishNotification(ctx context.Context, ev queue.NotificationEvent) error {
    n.ch <- ev
    return nil
}

func (n *fakeNotifier) collect(t *testing.T, want int) []queue.NotificationEvent {
    t.Helper()
    out := make([]queue.NotificationEvent, 0, want)
    for len(out) < want {
        select {
        case ev := <-n.ch:
            out = append(out, ev)
        case <-time.After(2 * time.Second):
            t.Fatalf("expected %d notifications, got %d", want, len(out))
        }
    }
    return out
}

type issuerFixture struct {
    db     *sql.DB
    mock   sqlmock.Sqlmock
    passes *fakePassStore
    gifts  *fakeGiftStore
    txlog  *fakeTxLog
    events *fakeEventStore
    users  *fakeIdentityStore
    notes  *fakeNotifier
    issuer *GrantIssuer
}

func newIssuerFixture(t *testing.T, vp *payment.VerifiedPayment) *issuerFixture {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })

    f := &issuerFixture{
        db:     db,
        mock:   mock,
        passes: &fakePassStore{},
        gifts:  &fakeGiftStore{},
        txlog:  &fakeTxLog{},
        events: &fakeEventStore{
            event:  &model.Event{ID: 3, Title: "Launch Concert"},
            prices: map[string]int64{"NGN": 500000},
        },
        users: &fakeIdentityStore{
            users:  map[uint64]repository.User{7: {ID: 7, Email: "buyer@example.com", FullName: "Buyer"}},
            emails: map[string]uint64{},
        },
        notes: &fakeNotifier{ch: make(chan queue.NotificationEvent, 16)},
    }
    reg := payment.NewRegistry(map[string]payment.Verifier{
        payment.MethodPaystack: &fakeVerifier{vp: vp},
    })
    f.issuer = NewGrantIssuer(db, f.passes, f.gifts, f.txlog, f.events, f.users, reg, f.notes)
    return f
}

// ----- tests -----

func TestRedeemSelfPurchase(t *testing.T) {
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN"}
    f := newIssuerFixture(t, vp)
    f.mock.ExpectBegin()
    f.mock.ExpectCommit()

    pass, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-1")
    require.NoError(t, err)
    require.NotNil(t, pass)

    require.Len(t, f.passes.created, 1)
    created := f.passes.created[0]
    require.Equal(t, model.OriginSelf, created.Origin)
    require.NotNil(t, created.HolderUserID)
    require.Equal(t, uint64(7), *created.HolderUserID)
    require.True(t, created.HasConverted, "self purchases are born converted")
    require.NotEmpty(t, created.PublicID)

    require.Empty(t, f.gifts.created)
    require.Len(t, f.txlog.committed, 1)
    require.Equal(t, model.TxStatusSuccessful, f.txlog.committed[0].Status)
    require.False(t, f.txlog.committed[0].IsGift)
    require.Empty(t, f.txlog.orphaned)
    require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRedeemReplayReturnsExistingPass(t *testing.T) {
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN"}
    f := newIssuerFixture(t, vp)
    holder := uint64(7)
    f.passes.existing = &model.Streampass{ID: 42, PublicID: "already-there", EventID: 3, HolderUserID: &holder}

    pass, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-1")
    require.NoError(t, err)
    require.Equal(t, "already-there", pass.PublicID)

    // A replay has no side effects at all: nothing created, nothing
    // audited, no transaction even begun.
    require.Empty(t, f.passes.created)
    require.Empty(t, f.txlog.committed)
    require.Empty(t, f.txlog.orphaned)
    require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRedeemGiftFanOut(t *testing.T) {
    vp := &payment.VerifiedPayment{
        BuyerID: 7, EventID: 3, Amount: 1000000, Currency: "NGN",
        Recipients: []payment.GiftRecipient{
            {Email: "ada@example.com", Name: "Ada"},
            {Email: "grace@example.com", Name: "Grace"},
        },
    }
    f := newIssuerFixture(t, vp)
    f.users.emails["ada@example.com"] = 12 // Ada already has an account
    f.mock.ExpectBegin()
    f.mock.ExpectCommit()

    pass, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-g")
    require.NoError(t, err)
    require.NotNil(t, pass)

    require.Len(t, f.passes.created, 2)
    require.Len(t, f.gifts.created, 2)

    ada := f.passes.created[0]
    require.Equal(t, model.OriginGift, ada.Origin)
    require.NotNil(t, ada.HolderUserID)
    require.Equal(t, uint64(12), *ada.HolderUserID)
    require.True(t, ada.HasConverted, "registered recipients are pre-converted")

    grace := f.passes.created[1]
    require.Nil(t, grace.HolderUserID)
    require.False(t, grace.HasConverted)
    require.NotNil(t, grace.RecipientEmail)
    require.Equal(t, "grace@example.com", *grace.RecipientEmail)

    // Gift records point at their pass by public id.
    require.Equal(t, ada.PublicID, f.gifts.created[0].PassPublicID)
    require.Equal(t, grace.PublicID, f.gifts.created[1].PassPublicID)

    require.Len(t, f.txlog.committed, 1)
    require.True(t, f.txlog.committed[0].IsGift)
    require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRedeemNotificationPassIDs(t *testing.T) {
    // Self purchase: the receipt names the buyer's own pass.
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN"}
    f := newIssuerFixture(t, vp)
    f.mock.ExpectBegin()
    f.mock.ExpectCommit()

    pass, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-n1")
    require.NoError(t, err)

    msgs := f.notes.collect(t, 1)
    require.Equal(t, queue.KindPurchaseReceipt, msgs[0].Kind)
    require.Equal(t, "buyer@example.com", msgs[0].ToEmail)
    require.Equal(t, pass.PublicID, msgs[0].PassPublicID)

    // Gift purchase: every pass belongs to a recipient, so the buyer's
    // receipt carries no pass ID while each gift message names the
    // recipient's own.
    vp = &payment.VerifiedPayment{
        BuyerID: 7, EventID: 3, Amount: 1000000, Currency: "NGN",
        Recipients: []payment.GiftRecipient{
            {Email: "ada@example.com", Name: "Ada"},
            {Email: "grace@example.com", Name: "Grace"},
        },
    }
    f = newIssuerFixture(t, vp)
    f.mock.ExpectBegin()
    f.mock.ExpectCommit()

    _, err = f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-n2")
    require.NoError(t, err)

    byEmail := map[string]queue.NotificationEvent{}
    for _, m := range f.notes.collect(t, 3) {
        byEmail[m.ToEmail] = m
    }
    receipt := byEmail["buyer@example.com"]
    require.Equal(t, queue.KindPurchaseReceipt, receipt.Kind)
    require.Empty(t, receipt.PassPublicID)

    require.Equal(t, queue.KindGiftReceived, byEmail["ada@example.com"].Kind)
    require.Equal(t, f.passes.created[0].PublicID, byEmail["ada@example.com"].PassPublicID)
    require.Equal(t, f.passes.created[1].PublicID, byEmail["grace@example.com"].PassPublicID)
    require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRedeemGiftAmountMustCoverAllRecipients(t *testing.T) {
    // Two recipients at 500000 each: paying for one is not enough.
    vp := &payment.VerifiedPayment{
        BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN",
        Recipients: []payment.GiftRecipient{
            {Email: "ada@example.com"}, {Email: "grace@example.com"},
        },
    }
    f := newIssuerFixture(t, vp)

    _, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-g")
    require.ErrorIs(t, err, ErrAmountMismatch)

    require.Empty(t, f.passes.created)
    require.Len(t, f.txlog.orphaned, 1)
    require.Equal(t, model.TxStatusFailed, f.txlog.orphaned[0].Status)
    require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRedeemUnpricedCurrency(t *testing.T) {
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 4000, Currency: "USD"}
    f := newIssuerFixture(t, vp)

    _, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-1")
    require.ErrorIs(t, err, ErrAmountMismatch)
    require.Len(t, f.txlog.orphaned, 1)
    require.Equal(t, model.TxStatusFailed, f.txlog.orphaned[0].Status)
}

func TestRedeemDeletedEvent(t *testing.T) {
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN"}
    f := newIssuerFixture(t, vp)
    f.events.event.IsDeleted = true

    _, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-1")
    require.ErrorIs(t, err, repository.ErrEventNotFound)
    // The context was never established, so no FAILED row either.
    require.Empty(t, f.txlog.orphaned)
}

func TestRedeemUnknownMethod(t *testing.T) {
    vp := &payment.VerifiedPayment{BuyerID: 7, EventID: 3, Amount: 500000, Currency: "NGN"}
    f := newIssuerFixture(t, vp)

    _, err := f.issuer.Redeem(context.Background(), "cash", "ref-1")
    require.ErrorIs(t, err, ErrPaymentInvalid)
}

func TestRedeemRollsBackOnGiftWriteFailure(t *testing.T) {
    vp := &payment.VerifiedPayment{
        BuyerID: 7, EventID: 3, Amount: 1000000, Currency: "NGN",
        Recipients: []payment.GiftRecipient{
            {Email: "ada@example.com"}, {Email: "grace@example.com"},
        },
    }
    f := newIssuerFixture(t, vp)
    f.gifts.createErr = errors.New("disk full")
    f.mock.ExpectBegin()
    f.mock.ExpectRollback()

    _, err := f.issuer.Redeem(context.Background(), payment.MethodPaystack, "ref-g")
    require.Error(t, err)

    // The passes fake saw the batch, but the surrounding transaction
    // rolled back, and a FAILED audit row was written outside it.
    require.Empty(t, f.txlog.committed)
    require.Len(t, f.txlog.orphaned, 1)
    require.Equal(t, model.TxStatusFailed, f.txlog.orphaned[0].Status)
    require.NoError(t, f.mock.ExpectationsWereMet())
}
